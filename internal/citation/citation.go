// Package citation defines the opaque citation renderer consumed by the
// serializers. Bibliography styling lives elsewhere; handlers only ask a
// Renderer for its markup, its inline nodes and its DOI.
package citation

import (
	"strings"
	"sync"

	"github.com/dgallion1/doccompile/internal/doctree"
)

// Renderer renders one cited work.
type Renderer interface {
	// Render returns the full bibliography entry as plain markup.
	Render() string
	// Inline returns the in-text form, e.g. "Doe, 2020".
	Inline() []*doctree.Node
	// DOI returns the work's DOI, or "" when unknown.
	DOI() string
}

// Source looks up renderers by citation key.
type Source interface {
	Lookup(key string) (Renderer, bool)
}

// Work is a minimal Renderer backed by preformatted strings.
type Work struct {
	Key       string `json:"key" yaml:"key"`
	Entry     string `json:"entry" yaml:"entry"`
	InText    string `json:"inline" yaml:"inline"`
	DOIString string `json:"doi,omitempty" yaml:"doi,omitempty"`
}

func (w Work) Render() string { return w.Entry }

func (w Work) Inline() []*doctree.Node {
	text := w.InText
	if text == "" {
		text = w.Key
	}
	return []*doctree.Node{doctree.NewText(text)}
}

func (w Work) DOI() string { return strings.TrimPrefix(w.DOIString, "https://doi.org/") }

// Registry is a concurrency-safe in-memory Source.
type Registry struct {
	mu    sync.RWMutex
	works map[string]Renderer
}

// NewRegistry returns a registry preloaded with works.
func NewRegistry(works ...Work) *Registry {
	r := &Registry{works: make(map[string]Renderer, len(works))}
	for _, w := range works {
		r.Add(w.Key, w)
	}
	return r
}

// Add registers a renderer under key, replacing any previous one.
func (r *Registry) Add(key string, rd Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.works[normalizeKey(key)] = rd
}

// Lookup implements Source.
func (r *Registry) Lookup(key string) (Renderer, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.works[normalizeKey(key)]
	return rd, ok
}

func normalizeKey(key string) string {
	return strings.TrimPrefix(strings.TrimSpace(key), "@")
}
