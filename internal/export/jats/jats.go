// Package jats writes a document tree as a JATS (Z39.96) archiving article.
//
// Headings at the top level of the page open nested <sec> elements; footnote
// definitions and the works cited are collected into <back>.
package jats

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/indexentry"
)

const Format = "jats"

type (
	State    = engine.State[*Element]
	Handlers = engine.Handlers[*Element]
	Handler  = engine.Handler[*Element]
)

// Backend is the JATS exporter.
type Backend struct {
	Overrides Handlers
}

// New returns a JATS backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return Format }

// Handlers is the full handler table of this backend.
func (b *Backend) Handlers() Handlers {
	return engine.Overlay(base(), handlers(), b.Overrides)
}

func (b *Backend) Export(ctx context.Context, doc *export.Document, diags *diag.Collector, log *slog.Logger) (*export.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := doctree.NewArena(doc.Tree).Root()
	st := engine.New[*Element](Target{}, b.Handlers(), diags, log)
	st.Meta["title"] = doc.Title
	st.Meta[export.MetaCitations] = doc.Citations
	out, err := st.Run(root)
	if err != nil {
		return nil, fmt.Errorf("jats export of %s: %w", doc.File, err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("jats export of %s: %w", doc.File, err)
	}
	return &export.Result{
		Format:      Format,
		ContentType: "application/jats+xml",
		Ext:         ".xml",
		Payload:     buf.Bytes(),
	}, nil
}

// pass is per-run bookkeeping kept in State.Meta.
type pass struct {
	cited     []string
	citedSeen map[string]bool
	footnotes []string
	fnSeen    map[string]bool
	ids       map[string]bool
}

func passOf(s *State) *pass {
	p, ok := s.Meta["jats"].(*pass)
	if !ok {
		p = &pass{citedSeen: map[string]bool{}, fnSeen: map[string]bool{}, ids: map[string]bool{}}
		s.Meta["jats"] = p
	}
	return p
}

// anchor is the id written for a reference target. Each identifier is
// written once per document; reference nodes never get one.
func anchor(s *State, n *doctree.Node) string {
	switch n.Type {
	case doctree.KindCrossReference, doctree.KindBrokenReference, doctree.KindCite,
		doctree.KindCiteGroup, doctree.KindFootnoteReference, doctree.KindFootnoteDefinition:
		return ""
	}
	if n.Identifier == "" {
		return ""
	}
	p := passOf(s)
	if p.ids[n.Identifier] {
		return ""
	}
	p.ids[n.Identifier] = true
	return n.Identifier
}

// wrap is a handler writing the node's children inside tag. A fragment
// (empty tag) holding a target gets a <target> anchor.
func wrap(tag string, kv ...string) Handler {
	return func(s *State, n, _ *doctree.Node) {
		id := anchor(s, n)
		if tag == "" {
			if id != "" {
				s.AddLeaf(n.Type, el("target", "id", id))
			}
			s.OpenNode(n.Type, el(tag, kv...))
		} else {
			s.OpenNode(n.Type, el(tag, append([]string{"id", id}, kv...)...))
		}
		s.RenderChildren(n)
		s.CloseNode()
	}
}

func skip(*State, *doctree.Node, *doctree.Node) {}

// textIn writes value inside a single element.
func textIn(s *State, tag, value string, kv ...string) {
	s.OpenNode(doctree.KindText, el(tag, kv...))
	s.Text(value)
	s.CloseNode()
}

// paragraphs renders the children of n, wrapping runs of inline content in
// <p> where JATS only allows block content.
func paragraphs(s *State, n *doctree.Node) {
	open := false
	for _, c := range n.Children {
		if export.IsInline(c.Type) {
			if !open {
				s.OpenNode(doctree.KindParagraph, el("p"))
				open = true
			}
			s.Render(c, n)
			continue
		}
		if open {
			s.CloseNode()
			open = false
		}
		s.Render(c, n)
	}
	if open {
		s.CloseNode()
	}
}

func base() Handlers {
	return Handlers{
		doctree.KindBlock:              wrap(""),
		doctree.KindLegend:             wrap(""),
		doctree.KindParagraph:          wrap("p"),
		doctree.KindComment:            skip,
		doctree.KindFootnoteDefinition: skip,
		doctree.KindThematicBreak:      skip,
		doctree.KindText: func(s *State, n, _ *doctree.Node) {
			s.Text(n.Value)
		},
	}
}

func handlers() Handlers {
	return Handlers{
		doctree.KindRoot:       article,
		doctree.KindHeading:    wrap("p", "content-type", "heading"),
		doctree.KindEmphasis:   wrap("italic"),
		doctree.KindStrong:     wrap("bold"),
		doctree.KindDelete:     wrap("strike"),
		"subscript":            wrap("sub"),
		"superscript":          wrap("sup"),
		doctree.KindBlockquote: wrap("disp-quote"),
		doctree.KindInlineCode: func(s *State, n, _ *doctree.Node) {
			textIn(s, "monospace", n.Value)
		},
		doctree.KindCode: func(s *State, n, _ *doctree.Node) {
			textIn(s, "code", n.Value, "language", n.Attrs.String("lang"), "id", anchor(s, n))
		},
		doctree.KindMath: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("disp-formula", "id", anchor(s, n)))
			if lbl := export.KindLabel(n); lbl != "" {
				textIn(s, "label", lbl)
			}
			textIn(s, "tex-math", n.Value)
			s.CloseNode()
		},
		doctree.KindInlineMath: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("inline-formula", "id", anchor(s, n)))
			textIn(s, "tex-math", n.Value)
			s.CloseNode()
		},
		doctree.KindList: func(s *State, n, _ *doctree.Node) {
			kind := "bullet"
			if n.Attrs.Bool("ordered") {
				kind = "order"
			}
			s.ListDepth++
			s.OpenNode(n.Type, el("list", "id", anchor(s, n), "list-type", kind))
			s.RenderChildren(n)
			s.CloseNode()
			s.ListDepth--
		},
		doctree.KindListItem: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("list-item", "id", anchor(s, n)))
			paragraphs(s, n)
			s.CloseNode()
		},
		doctree.KindLink: wrapLink,
		doctree.KindImage: func(s *State, n, parent *doctree.Node) {
			tag := "graphic"
			if parent != nil && (parent.Type == doctree.KindParagraph || export.IsInline(parent.Type)) {
				tag = "inline-graphic"
			}
			s.OpenNode(n.Type, el(tag, "id", anchor(s, n), "xlink:href", n.Attrs.String("url")))
			if alt := n.Attrs.String("alt"); alt != "" {
				textIn(s, "alt-text", alt)
			}
			s.CloseNode()
		},
		doctree.KindContainer: container,
		doctree.KindCaption: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("caption"))
			paragraphs(s, n)
			s.CloseNode()
		},
		doctree.KindTable:    table,
		doctree.KindTableRow: wrap("tr"),
		doctree.KindTableCell: func(s *State, n, parent *doctree.Node) {
			tag := "td"
			if export.HeaderCell(n, parent) {
				tag = "th"
			}
			s.OpenNode(n.Type, el(tag, "id", anchor(s, n), "align", n.Attrs.String("align")))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindAdmonition: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("boxed-text", "id", anchor(s, n), "content-type", n.Attrs.String("kind")))
			paragraphs(s, n)
			s.CloseNode()
		},
		doctree.KindAdmonitionTitle: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("caption"))
			s.OpenNode(n.Type, el("title"))
			s.RenderChildren(n)
			s.CloseNode()
			s.CloseNode()
		},
		doctree.KindCrossReference: func(s *State, n, _ *doctree.Node) {
			kind := n.Attrs.String("kind")
			switch url := n.Attrs.String("url"); {
			case url != "":
				s.OpenNode(n.Type, el("ext-link", "ext-link-type", "uri", "xlink:href", url+"#"+n.Identifier))
			case kind == "footnoteDefinition" && s.Footnotes[n.Identifier] != nil:
				p := passOf(s)
				if !p.fnSeen[n.Identifier] {
					p.fnSeen[n.Identifier] = true
					p.footnotes = append(p.footnotes, n.Identifier)
				}
				s.OpenNode(n.Type, el("xref", "ref-type", "fn", "rid", fnID(n.Identifier)))
			default:
				s.OpenNode(n.Type, el("xref", "ref-type", refType(kind), "rid", n.Identifier))
			}
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindBrokenReference: wrap("named-content", "content-type", "broken-reference"),
		doctree.KindCiteGroup: func(s *State, n, _ *doctree.Node) {
			open, sep, closing := "(", "; ", ")"
			if n.Attrs.String("kind") == "narrative" {
				open, sep, closing = "", ", ", ""
			}
			s.Text(open)
			for i, c := range n.Children {
				if i > 0 {
					s.Text(sep)
				}
				s.Render(c, n)
			}
			s.Text(closing)
		},
		doctree.KindCite: func(s *State, n, _ *doctree.Node) {
			r, ok := export.LookupCite(export.Citations(s.Meta), n, s.Diagnostics())
			if !ok {
				s.Text(n.Label)
				return
			}
			p := passOf(s)
			if !p.citedSeen[n.Label] {
				p.citedSeen[n.Label] = true
				p.cited = append(p.cited, n.Label)
			}
			s.OpenNode(n.Type, el("xref", "ref-type", "bibr", "rid", refID(n.Label)))
			s.Text(export.InlineText(r))
			s.CloseNode()
		},
		doctree.KindFootnoteReference: func(s *State, n, _ *doctree.Node) {
			if _, ok := s.Footnotes[n.Identifier]; !ok {
				textIn(s, "sup", n.Label)
				return
			}
			p := passOf(s)
			if !p.fnSeen[n.Identifier] {
				p.fnSeen[n.Identifier] = true
				p.footnotes = append(p.footnotes, n.Identifier)
			}
			s.OpenNode(n.Type, el("xref", "ref-type", "fn", "rid", fnID(n.Identifier)))
			s.Text(n.Label)
			s.CloseNode()
		},
		doctree.KindBreak: func(s *State, n, _ *doctree.Node) {
			s.AddLeaf(n.Type, el("break"))
		},
		doctree.KindIndex: func(s *State, n, _ *doctree.Node) {
			if id := anchor(s, n); id != "" {
				s.AddLeaf(n.Type, el("target", "id", id))
			}
			entries, _ := n.Attrs["indexEntries"].([]indexentry.Entry)
			for _, e := range entries {
				indexTerm(s, e)
			}
		},
		doctree.KindMystTarget: func(s *State, n, _ *doctree.Node) {
			if n.Attrs.Bool("attached") {
				return
			}
			if id := anchor(s, n); id != "" {
				s.AddLeaf(n.Type, el("target", "id", id))
			}
		},
		doctree.KindHTML: func(s *State, n, _ *doctree.Node) {
			s.Text(htmlText(n.Value))
		},
		"abbreviation": func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, el("abbrev", "xlink:title", n.Attrs.String("title")))
			s.RenderChildren(n)
			s.CloseNode()
		},
	}
}

// article writes the document frame and nests top-level content into
// sections by heading depth.
func article(s *State, n, _ *doctree.Node) {
	s.OpenNode(n.Type, el("article",
		"article-type", "research-article",
		"dtd-version", "1.3",
		"xmlns:xlink", "http://www.w3.org/1999/xlink",
		"xmlns:mml", "http://www.w3.org/1998/Math/MathML"))

	s.OpenNode(n.Type, el("front"))
	s.OpenNode(n.Type, el("article-meta"))
	s.OpenNode(n.Type, el("title-group"))
	title, _ := s.Meta["title"].(string)
	textIn(s, "article-title", title)
	s.CloseNode()
	s.CloseNode()
	s.CloseNode()

	s.OpenNode(n.Type, el("body"))
	var open []int
	for _, c := range n.Children {
		if c.Type != doctree.KindHeading {
			s.Render(c, n)
			continue
		}
		depth := max(c.Depth(), 1)
		for len(open) > 0 && open[len(open)-1] >= depth {
			s.CloseNode()
			open = open[:len(open)-1]
		}
		s.OpenNode(c.Type, el("sec", "id", anchor(s, c)))
		open = append(open, depth)
		s.OpenNode(c.Type, el("title"))
		if e := c.Enumerator(); e != "" {
			s.Text(e + " ")
		}
		s.RenderChildren(c)
		s.CloseNode()
	}
	for range open {
		s.CloseNode()
	}
	s.CloseNode()

	back(s)
	s.CloseNode()
}

func back(s *State) {
	p := passOf(s)
	if len(p.footnotes) == 0 && len(p.cited) == 0 {
		return
	}
	s.OpenNode("back", el("back"))
	if len(p.footnotes) > 0 {
		s.OpenNode("back", el("fn-group"))
		for _, id := range p.footnotes {
			def := s.Footnotes[id]
			s.OpenNode(def.Type, el("fn", "id", fnID(id)))
			textIn(s, "label", def.Label)
			paragraphs(s, def)
			s.CloseNode()
		}
		s.CloseNode()
	}
	if len(p.cited) > 0 {
		src := export.Citations(s.Meta)
		s.OpenNode("back", el("ref-list"))
		for _, key := range p.cited {
			r, ok := src.Lookup(key)
			if !ok {
				continue
			}
			s.OpenNode("back", el("ref", "id", refID(key)))
			s.OpenNode("back", el("mixed-citation"))
			s.Text(r.Render())
			if doi := r.DOI(); doi != "" {
				s.Text(" ")
				textIn(s, "pub-id", doi, "pub-id-type", "doi")
			}
			s.CloseNode()
			s.CloseNode()
		}
		s.CloseNode()
	}
	s.CloseNode()
}

func wrapLink(s *State, n, _ *doctree.Node) {
	s.OpenNode(n.Type, el("ext-link", "ext-link-type", "uri", "xlink:href", n.Attrs.String("url")))
	s.RenderChildren(n)
	s.CloseNode()
}

func container(s *State, n, _ *doctree.Node) {
	var tag, figType string
	switch n.Attrs.String("kind") {
	case "figure":
		tag = "fig"
	case "table":
		tag = "table-wrap"
	case "code":
		tag, figType = "fig", "program"
	default:
		s.OpenNode(n.Type, el("boxed-text", "id", anchor(s, n), "content-type", n.Attrs.String("kind")))
		paragraphs(s, n)
		s.CloseNode()
		return
	}
	s.OpenNode(n.Type, el(tag, "id", anchor(s, n), "fig-type", figType))
	if lbl := export.KindLabel(n); lbl != "" {
		textIn(s, "label", lbl)
	}
	var legend *doctree.Node
	caption := export.Caption(n)
	for _, c := range n.Children {
		if c.Type == doctree.KindLegend {
			legend = c
		}
	}
	if caption != nil || legend != nil {
		s.OpenNode(doctree.KindCaption, el("caption"))
		if caption != nil {
			paragraphs(s, caption)
		}
		if legend != nil {
			paragraphs(s, legend)
		}
		s.CloseNode()
	}
	for _, c := range n.Children {
		if c.Type != doctree.KindCaption && c.Type != doctree.KindLegend {
			s.Render(c, n)
		}
	}
	s.CloseNode()
}

func table(s *State, n, _ *doctree.Node) {
	prev := s.InTable
	s.InTable = true
	s.OpenNode(n.Type, el("table", "id", anchor(s, n)))
	var body bool
	for i, row := range n.Children {
		header := row.Attrs.Bool("header")
		switch {
		case header && i == 0:
			s.OpenNode(n.Type, el("thead"))
		case !header && !body:
			if i > 0 {
				s.CloseNode()
			}
			s.OpenNode(n.Type, el("tbody"))
			body = true
		}
		s.Render(row, n)
	}
	if len(n.Children) > 0 {
		s.CloseNode()
	}
	s.CloseNode()
	s.InTable = prev
}

func indexTerm(s *State, e indexentry.Entry) {
	kv := []string{}
	if e.Emphasis {
		kv = append(kv, "content-type", "main")
	}
	s.OpenNode(doctree.KindIndex, el("index-term", kv...))
	textIn(s, "term", e.Entry)
	switch {
	case e.See:
		textIn(s, "see", e.SubEntry)
	case e.SeeAlso:
		textIn(s, "see-also", e.SubEntry)
	case e.SubEntry != "":
		s.OpenNode(doctree.KindIndex, el("index-term"))
		textIn(s, "term", e.SubEntry)
		s.CloseNode()
	}
	s.CloseNode()
}

func refType(kind string) string {
	switch kind {
	case "heading":
		return "sec"
	case "figure", "code":
		return "fig"
	case "table":
		return "table"
	case "equation":
		return "disp-formula"
	case "footnoteDefinition":
		return "fn"
	}
	return "other"
}

func refID(key string) string { return "ref-" + doctree.Slugify(key) }

func fnID(id string) string { return "fn-" + doctree.Slugify(id) }

// htmlText reduces a raw HTML fragment to its text.
func htmlText(raw string) string {
	nodes, err := html.ParseFragment(strings.NewReader(raw), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(h *html.Node) {
		switch {
		case h.Type == html.TextNode:
			sb.WriteString(h.Data)
		case h.Type == html.ElementNode && (h.Data == "script" || h.Data == "style"):
			return
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	for _, h := range nodes {
		visit(h)
	}
	return sb.String()
}
