// Package typst writes a document tree as Typst markup. Math stays in TeX
// syntax and is typeset through the mitex package.
package typst

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/export/textbuf"
)

const Format = "typst"

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
	`$`, `\$`,
	`#`, `\#`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`@`, `\@`,
	`~`, `\~`,
	`/`, `\/`,
)

// Escape makes s safe as Typst markup text.
func Escape(s string) string { return escaper.Replace(s) }

// str quotes s as a Typst string literal.
func str(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(s) + `"`
}

var labelUnsafe = regexp.MustCompile(`[^A-Za-z0-9_.:\-]+`)

func label(id string) string { return "<" + labelUnsafe.ReplaceAllString(id, "-") + ">" }

const preamble = `#import "@preview/mitex:0.2.4": *
`

// Backend is the Typst exporter.
type Backend struct {
	Overrides textbuf.Handlers
}

// New returns a Typst backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return Format }

// Handlers is the full handler table of this backend.
func (b *Backend) Handlers() textbuf.Handlers {
	return engine.Overlay(textbuf.Base(), handlers(), b.Overrides)
}

func (b *Backend) Export(ctx context.Context, doc *export.Document, diags *diag.Collector, log *slog.Logger) (*export.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := doctree.NewArena(doc.Tree).Root()
	st := engine.New[*textbuf.Node](textbuf.Target{Escape: Escape}, b.Handlers(), diags, log)
	st.Meta["title"] = doc.Title
	st.Meta[export.MetaCitations] = doc.Citations
	out, err := st.Run(root)
	if err != nil {
		return nil, fmt.Errorf("typst export of %s: %w", doc.File, err)
	}
	return &export.Result{
		Format:      Format,
		ContentType: "text/vnd.typst",
		Ext:         ".typ",
		Payload:     []byte(textbuf.Finish(out.String())),
	}, nil
}

func fn(name string) textbuf.Handler {
	return textbuf.Wrapped("#"+name+"[", "]")
}

func handlers() textbuf.Handlers {
	return textbuf.Handlers{
		doctree.KindRoot: func(s *textbuf.State, n, _ *doctree.Node) {
			open := preamble
			if title, _ := s.Meta["title"].(string); title != "" {
				open += "#set document(title: " + str(title) + ")\n"
			}
			s.OpenNode(n.Type, textbuf.Wrap(open+"\n", ""))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindHeading: func(s *textbuf.State, n, _ *doctree.Node) {
			open := strings.Repeat("=", max(n.Depth(), 1)) + " "
			if e := n.Enumerator(); e != "" {
				open += e + " "
			}
			closing := "\n\n"
			if n.Identifier != "" {
				closing = " " + label(n.Identifier) + closing
			}
			s.OpenNode(n.Type, textbuf.Wrap(open, closing))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindEmphasis:   fn("emph"),
		doctree.KindStrong:     fn("strong"),
		doctree.KindDelete:     fn("strike"),
		"subscript":            fn("sub"),
		"superscript":          fn("super"),
		doctree.KindBlockquote: textbuf.Wrapped("#quote(block: true)[\n", "]\n\n"),
		doctree.KindInlineCode: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, "#raw("+str(n.Value)+")")
		},
		doctree.KindCode: func(s *textbuf.State, n, _ *doctree.Node) {
			args := "block: true, "
			if lang := n.Attrs.String("lang"); lang != "" {
				args += "lang: " + str(lang) + ", "
			}
			textbuf.Literal(s, "#raw("+args+str(n.Value)+")\n\n")
		},
		doctree.KindMath: func(s *textbuf.State, n, _ *doctree.Node) {
			out := "#math.equation(block: true"
			if n.Enumerator() != "" {
				out += `, numbering: "(1)"`
			}
			out += ", mitex(" + str(n.Value) + "))"
			if n.Identifier != "" {
				out += " " + label(n.Identifier)
			}
			textbuf.Literal(s, out+"\n\n")
		},
		doctree.KindInlineMath: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, "#mi("+str(n.Value)+")")
		},
		doctree.KindList: func(s *textbuf.State, n, _ *doctree.Node) {
			name := "list"
			args := ""
			if n.Attrs.Bool("ordered") {
				name = "enum"
				if start := n.Attrs.Int("start"); start > 1 {
					args = "start: " + strconv.Itoa(start) + ", "
				}
			}
			s.ListDepth++
			s.OpenNode(n.Type, textbuf.Wrap("#"+name+"("+args+"\n", ")\n\n"))
			s.RenderChildren(n)
			s.CloseNode()
			s.ListDepth--
		},
		doctree.KindListItem: textbuf.Wrapped("[", "],\n"),
		doctree.KindLink: func(s *textbuf.State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, textbuf.Wrap("#link("+str(n.Attrs.String("url"))+")[", "]"))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindImage: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, "#image("+str(n.Attrs.String("url"))+", width: 100%)\n")
		},
		doctree.KindContainer: container,
		doctree.KindCaption: func(s *textbuf.State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, textbuf.Wrap("", ""))
			textbuf.InlineChildren(s, n)
			s.CloseNode()
		},
		doctree.KindTable: table,
		doctree.KindTableRow: func(s *textbuf.State, n, _ *doctree.Node) {
			if n.Attrs.Bool("header") {
				s.OpenNode(n.Type, textbuf.Wrap("table.header(", "),\n"))
			} else {
				s.OpenNode(n.Type, textbuf.Wrap("", "\n"))
			}
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindTableCell: textbuf.Wrapped("[", "], "),
		doctree.KindAdmonition: func(s *textbuf.State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, textbuf.Wrap("#block(stroke: 0.5pt, inset: 8pt, width: 100%)[\n", "]\n\n"))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindAdmonitionTitle: textbuf.Wrapped("#strong[", "]\n\n"),
		doctree.KindCrossReference: func(s *textbuf.State, n, _ *doctree.Node) {
			target := label(n.Identifier)
			if url := n.Attrs.String("url"); url != "" {
				target = str(url + "#" + n.Identifier)
			}
			s.OpenNode(n.Type, textbuf.Wrap("#link("+target+")[", "]"))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindCiteGroup: func(s *textbuf.State, n, _ *doctree.Node) {
			open, sep, closing := "(", "; ", ")"
			if n.Attrs.String("kind") == "narrative" {
				open, sep, closing = "", ", ", ""
			}
			s.OpenNode(n.Type, textbuf.Wrap(open, closing))
			for i, c := range n.Children {
				if i > 0 {
					s.Text(sep)
				}
				s.Render(c, n)
			}
			s.CloseNode()
		},
		doctree.KindCite: func(s *textbuf.State, n, _ *doctree.Node) {
			r, ok := export.LookupCite(export.Citations(s.Meta), n, s.Diagnostics())
			if !ok {
				s.Text(n.Label)
				return
			}
			s.Text(export.InlineText(r))
		},
		doctree.KindFootnoteReference: func(s *textbuf.State, n, _ *doctree.Node) {
			def, ok := s.Footnotes[n.Identifier]
			if !ok {
				textbuf.Literal(s, "#super["+Escape(n.Label)+"]")
				return
			}
			s.OpenNode(n.Type, textbuf.Wrap("#footnote[", "]"))
			textbuf.InlineChildren(s, def)
			s.CloseNode()
		},
		doctree.KindBreak: func(s *textbuf.State, _, _ *doctree.Node) {
			textbuf.Literal(s, "#linebreak()\n")
		},
		doctree.KindThematicBreak: func(s *textbuf.State, _, _ *doctree.Node) {
			textbuf.Literal(s, "#line(length: 100%)\n\n")
		},
		doctree.KindIndex: textbuf.Skip,
		doctree.KindMystTarget: func(s *textbuf.State, n, _ *doctree.Node) {
			if n.Identifier != "" && !n.Attrs.Bool("attached") {
				textbuf.Literal(s, "#metadata("+str(n.Identifier)+") "+label(n.Identifier)+"\n")
			}
		},
	}
}

func container(s *textbuf.State, n, _ *doctree.Node) {
	kind := n.Attrs.String("kind")
	switch kind {
	case "figure", "table", "code":
	default:
		s.OpenNode(n.Type, textbuf.Wrap("", ""))
		s.RenderChildren(n)
		s.CloseNode()
		return
	}
	closing := ")"
	if n.Identifier != "" {
		closing += " " + label(n.Identifier)
	}
	args := ""
	switch kind {
	case "table":
		args = ", kind: table"
	case "code":
		args = ", kind: raw"
	}
	if n.Enumerator() == "" {
		args += ", numbering: none"
	}
	s.OpenNode(n.Type, textbuf.Wrap("#figure([\n", closing+"\n\n"))
	for _, c := range n.Children {
		if c.Type != doctree.KindCaption && c.Type != doctree.KindLegend {
			s.Render(c, n)
		}
	}
	textbuf.Literal(s, "]"+args)
	if caption := export.Caption(n); caption != nil {
		textbuf.Literal(s, ", caption: [")
		s.Render(caption, n)
		textbuf.Literal(s, "]")
	}
	s.CloseNode()
}

func table(s *textbuf.State, n, _ *doctree.Node) {
	cols := 0
	var align []string
	if len(n.Children) > 0 {
		cols = len(n.Children[0].Children)
		for _, c := range n.Children[0].Children {
			a := c.Attrs.String("align")
			if a == "" {
				a = "auto"
			}
			align = append(align, a)
		}
	}
	prev := s.InTable
	s.InTable = true
	open := "#table(columns: " + strconv.Itoa(cols)
	if len(align) > 0 {
		open += ", align: (" + strings.Join(align, ", ") + ",)"
	}
	s.OpenNode(n.Type, textbuf.Wrap(open+",\n", ")\n\n"))
	s.RenderChildren(n)
	s.CloseNode()
	s.InTable = prev
}
