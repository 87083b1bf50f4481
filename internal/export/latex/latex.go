// Package latex writes a document tree as a standalone LaTeX article.
package latex

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/export/textbuf"
	"github.com/dgallion1/doccompile/internal/indexentry"
)

const Format = "latex"

var escaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`#`, `\#`,
	`%`, `\%`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape makes s safe as LaTeX body text.
func Escape(s string) string { return escaper.Replace(s) }

var urlEscaper = strings.NewReplacer(`%`, `\%`, `#`, `\#`, `\`, `\\`, `{`, `\{`, `}`, `\}`)

var labelUnsafe = regexp.MustCompile(`[^A-Za-z0-9:.\-]+`)

func label(id string) string { return labelUnsafe.ReplaceAllString(id, "-") }

var sections = []string{`\section`, `\subsection`, `\subsubsection`, `\paragraph`, `\subparagraph`}

const preamble = `\documentclass{article}
\usepackage[utf8]{inputenc}
\usepackage{amsmath}
\usepackage{graphicx}
\usepackage{hyperref}
\usepackage{makeidx}
\usepackage[normalem]{ulem}
\makeindex
`

// Backend is the LaTeX exporter. Overrides are laid over the built-in
// handlers.
type Backend struct {
	Overrides textbuf.Handlers
}

// New returns a LaTeX backend.
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
		return nil, fmt.Errorf("latex export of %s: %w", doc.File, err)
	}
	return &export.Result{
		Format:      Format,
		ContentType: "application/x-latex",
		Ext:         ".tex",
		Payload:     []byte(textbuf.Finish(out.String())),
	}, nil
}

func handlers() textbuf.Handlers {
	return textbuf.Handlers{
		doctree.KindRoot: func(s *textbuf.State, n, _ *doctree.Node) {
			title, _ := s.Meta["title"].(string)
			open := preamble
			if title != "" {
				open += `\title{` + Escape(title) + "}\n"
			}
			open += "\\begin{document}\n"
			if title != "" {
				open += "\\maketitle\n"
			}
			s.OpenNode(n.Type, textbuf.Wrap(open+"\n", "\n\\printindex\n\\end{document}\n"))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindHeading: func(s *textbuf.State, n, _ *doctree.Node) {
			cmd := sections[min(max(n.Depth(), 1), len(sections))-1]
			open := cmd + "*{"
			if e := n.Enumerator(); e != "" {
				open += e + " "
			}
			closing := "}\n"
			if n.Identifier != "" {
				closing += `\label{` + label(n.Identifier) + "}\n"
			}
			s.OpenNode(n.Type, textbuf.Wrap(open, closing+"\n"))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindEmphasis:   textbuf.Wrapped(`\emph{`, "}"),
		doctree.KindStrong:     textbuf.Wrapped(`\textbf{`, "}"),
		doctree.KindDelete:     textbuf.Wrapped(`\sout{`, "}"),
		"subscript":            textbuf.Wrapped(`\textsubscript{`, "}"),
		"superscript":          textbuf.Wrapped(`\textsuperscript{`, "}"),
		doctree.KindBlockquote: textbuf.Wrapped("\\begin{quote}\n", "\\end{quote}\n\n"),
		doctree.KindInlineCode: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, `\texttt{`+Escape(n.Value)+"}")
		},
		doctree.KindCode: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, "\\begin{verbatim}\n"+n.Value+"\n\\end{verbatim}\n\n")
		},
		doctree.KindMath: func(s *textbuf.State, n, _ *doctree.Node) {
			env := "equation*"
			lbl := ""
			if n.Enumerator() != "" {
				env = "equation"
			}
			if n.Identifier != "" {
				lbl = `\label{` + label(n.Identifier) + "}"
			}
			textbuf.Literal(s, `\begin{`+env+"}"+lbl+"\n"+n.Value+"\n\\end{"+env+"}\n\n")
		},
		doctree.KindInlineMath: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, "$"+n.Value+"$")
		},
		doctree.KindList: func(s *textbuf.State, n, _ *doctree.Node) {
			env := "itemize"
			if n.Attrs.Bool("ordered") {
				env = "enumerate"
			}
			s.ListDepth++
			s.OpenNode(n.Type, textbuf.Wrap(`\begin{`+env+"}\n", `\end{`+env+"}\n\n"))
			s.RenderChildren(n)
			s.CloseNode()
			s.ListDepth--
		},
		doctree.KindListItem: textbuf.Wrapped(`\item `, "\n"),
		doctree.KindLink: func(s *textbuf.State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, textbuf.Wrap(`\href{`+urlEscaper.Replace(n.Attrs.String("url"))+"}{", "}"))
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindImage: func(s *textbuf.State, n, _ *doctree.Node) {
			textbuf.Literal(s, `\includegraphics[width=\linewidth]{`+n.Attrs.String("url")+"}\n")
		},
		doctree.KindContainer: container,
		doctree.KindCaption: func(s *textbuf.State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, textbuf.Wrap(`\caption{`, "}\n"))
			textbuf.InlineChildren(s, n)
			s.CloseNode()
		},
		doctree.KindTable: table,
		doctree.KindTableRow: func(s *textbuf.State, n, _ *doctree.Node) {
			closing := " \\\\\n"
			if n.Attrs.Bool("header") {
				closing += "\\hline\n"
			}
			s.OpenNode(n.Type, textbuf.Wrap("", closing))
			for i, c := range n.Children {
				if i > 0 {
					textbuf.Literal(s, " & ")
				}
				s.Render(c, n)
			}
			s.CloseNode()
		},
		doctree.KindTableCell: func(s *textbuf.State, n, parent *doctree.Node) {
			if export.HeaderCell(n, parent) {
				textbuf.Wrapped(`\textbf{`, "}")(s, n, nil)
				return
			}
			textbuf.Wrapped("", "")(s, n, nil)
		},
		doctree.KindAdmonition:      textbuf.Wrapped("\\begin{quote}\n", "\\end{quote}\n\n"),
		doctree.KindAdmonitionTitle: textbuf.Wrapped(`\textbf{`, "}\n\n"),
		doctree.KindCrossReference: func(s *textbuf.State, n, _ *doctree.Node) {
			open := `\hyperref[` + label(n.Identifier) + "]{"
			if url := n.Attrs.String("url"); url != "" {
				open = `\href{` + urlEscaper.Replace(url+"#"+n.Identifier) + "}{"
			}
			s.OpenNode(n.Type, textbuf.Wrap(open, "}"))
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
				textbuf.Literal(s, `\textsuperscript{`+Escape(n.Label)+"}")
				return
			}
			s.OpenNode(n.Type, textbuf.Wrap(`\footnote{`, "}"))
			textbuf.InlineChildren(s, def)
			s.CloseNode()
		},
		doctree.KindBreak: func(s *textbuf.State, _, _ *doctree.Node) {
			textbuf.Literal(s, "\\\\\n")
		},
		doctree.KindThematicBreak: func(s *textbuf.State, _, _ *doctree.Node) {
			textbuf.Literal(s, "\\noindent\\rule{\\linewidth}{0.4pt}\n\n")
		},
		doctree.KindIndex: func(s *textbuf.State, n, _ *doctree.Node) {
			entries, _ := n.Attrs["indexEntries"].([]indexentry.Entry)
			for _, e := range entries {
				textbuf.Literal(s, `\index{`+indexKey(e)+"}")
			}
		},
		doctree.KindMystTarget: func(s *textbuf.State, n, _ *doctree.Node) {
			if n.Identifier != "" && !n.Attrs.Bool("attached") {
				textbuf.Literal(s, `\label{`+label(n.Identifier)+"}\n")
			}
		},
	}
}

// indexKey writes an entry in makeidx syntax.
func indexKey(e indexentry.Entry) string {
	quote := strings.NewReplacer(`!`, `"!`, `@`, `"@`, `|`, `"|`, `"`, `""`)
	key := Escape(quote.Replace(e.Entry))
	switch {
	case e.See:
		return key + `|see{` + Escape(e.SubEntry) + "}"
	case e.SeeAlso:
		return key + `|seealso{` + Escape(e.SubEntry) + "}"
	}
	if e.SubEntry != "" {
		key += "!" + Escape(quote.Replace(e.SubEntry))
	}
	if e.Emphasis {
		key += "|textbf"
	}
	return key
}

func container(s *textbuf.State, n, _ *doctree.Node) {
	env := ""
	switch n.Attrs.String("kind") {
	case "figure", "code":
		env = "figure"
	case "table":
		env = "table"
	}
	if env == "" {
		s.OpenNode(n.Type, textbuf.Wrap("", ""))
		s.RenderChildren(n)
		s.CloseNode()
		return
	}
	closing := ""
	if n.Identifier != "" {
		closing = `\label{` + label(n.Identifier) + "}\n"
	}
	s.OpenNode(n.Type, textbuf.Wrap(`\begin{`+env+"}[htbp]\n\\centering\n", closing+`\end{`+env+"}\n\n"))
	if caption := export.Caption(n); caption != nil && env == "table" {
		s.Render(caption, n)
	}
	for _, c := range n.Children {
		if c.Type == doctree.KindCaption && env == "table" {
			continue
		}
		s.Render(c, n)
	}
	s.CloseNode()
}

func table(s *textbuf.State, n, _ *doctree.Node) {
	var spec strings.Builder
	if len(n.Children) > 0 {
		for _, cell := range n.Children[0].Children {
			switch cell.Attrs.String("align") {
			case "center":
				spec.WriteByte('c')
			case "right":
				spec.WriteByte('r')
			default:
				spec.WriteByte('l')
			}
		}
	}
	prev := s.InTable
	s.InTable = true
	s.OpenNode(n.Type, textbuf.Wrap(`\begin{tabular}{`+spec.String()+"}\n", "\\end{tabular}\n"))
	s.RenderChildren(n)
	s.CloseNode()
	s.InTable = prev
}
