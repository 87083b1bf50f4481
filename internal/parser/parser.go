package parser

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
)

// Document is one parsed page.
type Document struct {
	File        string        `json:"file"`
	Title       string        `json:"title"`
	Frontmatter Frontmatter   `json:"-"`
	Tree        *doctree.Node `json:"tree"`
}

// Parser converts raw page bytes into a Document. Recoverable problems go to
// diags; a returned error means the page produced no tree.
type Parser interface {
	Parse(r io.Reader, filename string, diags *diag.Collector) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".myst":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, log *slog.Logger) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown", ".myst":
		return NewMarkdownParser(log), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// MarkdownParser handles the Markdown dialect.
type MarkdownParser struct {
	Log *slog.Logger

	tz         *Tokenizer
	roles      RoleHandlers
	directives DirectiveHandlers
}

// NewMarkdownParser returns a parser with the built-in roles and
// directives.
func NewMarkdownParser(log *slog.Logger) *MarkdownParser {
	if log == nil {
		log = slog.Default()
	}
	return &MarkdownParser{Log: log, tz: NewTokenizer()}
}

// WithRoles adds or replaces role handlers.
func (p *MarkdownParser) WithRoles(h RoleHandlers) *MarkdownParser {
	p.roles = h
	return p
}

// WithDirectives adds or replaces directive handlers.
func (p *MarkdownParser) WithDirectives(h DirectiveHandlers) *MarkdownParser {
	p.directives = h
	return p
}

func (p *MarkdownParser) Parse(r io.Reader, filename string, diags *diag.Collector) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	if diags == nil {
		diags = diag.NewCollector(filename)
	}
	if p.tz == nil {
		p.tz = NewTokenizer()
	}
	if p.Log == nil {
		p.Log = slog.Default()
	}

	doc := &Document{File: filename}
	body, firstLine := data, 1
	if raw, rest, lines, ok := splitFrontmatter(data); ok {
		body, firstLine = rest, lines+1
		fm, err := parseFrontmatter(raw)
		if err != nil {
			diags.Report(diag.Diagnostic{
				Severity: diag.SeverityWarning,
				RuleID:   diag.RuleFrontmatterInvalid,
				Message:  err.Error(),
				Position: &doctree.Position{Start: doctree.Point{Line: 1}, End: doctree.Point{Line: lines}},
			})
		}
		doc.Frontmatter = fm
	}

	b := NewBuilder(p.tz, diags, p.Log).
		WithRoleHandlers(p.roles).
		WithDirectiveHandlers(p.directives)
	tree, err := b.Build(p.tz.Tokenize(body, firstLine))
	if err != nil {
		return nil, fmt.Errorf("build tree for %s: %w", filename, err)
	}
	if fm := doc.Frontmatter; fm.Label != "" {
		tree.SetLabel(fm.Label)
	}
	doc.Tree = tree
	doc.Title = documentTitle(doc.Frontmatter, tree, filename)
	return doc, nil
}

// documentTitle picks the front matter title, then the first top-level
// heading, then the file name without its extension.
func documentTitle(fm Frontmatter, tree *doctree.Node, filename string) string {
	if fm.Title != "" {
		return fm.Title
	}
	h := doctree.SelectFirst(tree, func(n *doctree.Node) bool {
		return n.Type == doctree.KindHeading && n.Depth() == 1
	})
	if h != nil {
		if t := strings.TrimSpace(doctree.TextContent(h)); t != "" {
			return t
		}
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
