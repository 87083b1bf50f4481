// Package export holds what every backend shares: the input document, the
// result payload and the citation and footnote helpers handlers call.
package export

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgallion1/doccompile/internal/citation"
	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
)

// Document is one resolved page handed to a backend. Backends never mutate
// Tree; each pass works on its own arena copy.
type Document struct {
	File      string
	Title     string
	Tree      *doctree.Node
	Citations citation.Source
}

// Result is one backend's output for one page.
type Result struct {
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	Ext         string `json:"ext"`
	Payload     []byte `json:"-"`
}

// Backend serializes a document into one target format. Recoverable
// problems go to diags; an error means the page has no output for this
// format.
type Backend interface {
	Name() string
	Export(ctx context.Context, doc *Document, diags *diag.Collector, log *slog.Logger) (*Result, error)
}

// MetaCitations is the State.Meta key holding the citation source.
const MetaCitations = "citations"

// Citations returns the citation source stored in meta, or nil.
func Citations(meta map[string]any) citation.Source {
	src, _ := meta[MetaCitations].(citation.Source)
	return src
}

// LookupCite resolves a cite node, reporting unknown keys.
func LookupCite(src citation.Source, n *doctree.Node, diags *diag.Collector) (citation.Renderer, bool) {
	key := n.Label
	if key == "" {
		key = n.Identifier
	}
	if src != nil {
		if r, ok := src.Lookup(key); ok {
			return r, true
		}
	}
	diags.Warn(diag.RuleCitationMissing, n, "unknown citation %q", key)
	return nil, false
}

// InlineText flattens a renderer's inline nodes.
func InlineText(r citation.Renderer) string {
	var sb strings.Builder
	for _, n := range r.Inline() {
		sb.WriteString(doctree.TextContent(n))
	}
	return sb.String()
}

// FootnoteLabels returns footnote labels in the order their definitions
// appear.
func FootnoteLabels(root *doctree.Node) []string {
	var labels []string
	for _, n := range doctree.Select(root, doctree.OfKind(doctree.KindFootnoteDefinition)) {
		labels = append(labels, n.Identifier)
	}
	return labels
}

// IsInline reports whether kind is phrasing content.
func IsInline(kind doctree.Kind) bool {
	switch kind {
	case doctree.KindText, doctree.KindEmphasis, doctree.KindStrong, doctree.KindDelete,
		doctree.KindInlineCode, doctree.KindInlineMath, doctree.KindLink, doctree.KindBreak,
		doctree.KindCiteGroup, doctree.KindCite, doctree.KindFootnoteReference,
		doctree.KindCrossReference, doctree.KindBrokenReference, doctree.KindIndex,
		"subscript", "superscript", "abbreviation":
		return true
	}
	return false
}

// AllInline reports whether every child of n is phrasing content.
func AllInline(n *doctree.Node) bool {
	for _, c := range n.Children {
		if !IsInline(c.Type) {
			return false
		}
	}
	return true
}

// HeaderCell reports whether cell belongs to the table header, either on its
// own or through its row.
func HeaderCell(cell, row *doctree.Node) bool {
	return cell.Attrs.Bool("header") || row != nil && row.Attrs.Bool("header")
}

// Caption returns the caption child of n, or nil.
func Caption(n *doctree.Node) *doctree.Node {
	for _, c := range n.Children {
		if c.Type == doctree.KindCaption {
			return c
		}
	}
	return nil
}

// KindLabel is the visible label of a numbered container, e.g. "Figure 2".
func KindLabel(n *doctree.Node) string {
	e := n.Enumerator()
	if e == "" {
		return ""
	}
	switch n.Type {
	case doctree.KindMath:
		return "(" + e + ")"
	case doctree.KindCode:
		return "Program " + e
	}
	switch n.Attrs.String("kind") {
	case "figure":
		return "Figure " + e
	case "table":
		return "Table " + e
	case "code":
		return "Program " + e
	}
	return ""
}
