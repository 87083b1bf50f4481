package docx

import (
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/export"
)

func para(style string) doctree.Attrs {
	return doctree.Attrs{"para": true, "style": style}
}

// scoped is a handler rendering the children inside a scope with attrs.
func scoped(attrs doctree.Attrs) Handler {
	return func(s *State, n, _ *doctree.Node) {
		s.OpenNode(n.Type, attrs)
		s.RenderChildren(n)
		s.CloseNode()
	}
}

func skip(*State, *doctree.Node, *doctree.Node) {}

// line writes value as its own paragraph.
func line(s *State, kind doctree.Kind, style, value string) {
	s.OpenNode(kind, para(style))
	s.Text(value)
	s.CloseNode()
}

func base() Handlers {
	return Handlers{
		doctree.KindBlock:     scoped(nil),
		doctree.KindLegend:    scoped(nil),
		doctree.KindParagraph: scoped(para("")),
		doctree.KindText: func(s *State, n, _ *doctree.Node) {
			s.Text(n.Value)
		},
		doctree.KindComment:            skip,
		doctree.KindHTML:               skip,
		doctree.KindIndex:              skip,
		doctree.KindFootnoteDefinition: skip,
		doctree.KindMystTarget:         skip,
	}
}

func handlers() Handlers {
	return Handlers{
		doctree.KindRoot: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, nil)
			if title, _ := s.Meta["title"].(string); title != "" {
				line(s, n.Type, StyleTitle, title)
			}
			s.RenderChildren(n)
			notes(s, n)
			s.CloseNode()
		},
		doctree.KindHeading: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, para(HeadingStyle(n.Depth())))
			if e := n.Enumerator(); e != "" {
				s.Text(e + " ")
			}
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindEmphasis:        scoped(doctree.Attrs{"italic": true}),
		doctree.KindStrong:          scoped(doctree.Attrs{"bold": true}),
		doctree.KindDelete:          scoped(doctree.Attrs{"strike": true}),
		doctree.KindBlockquote:      scoped(doctree.Attrs{"style": StyleQuote}),
		doctree.KindAdmonition:      scoped(doctree.Attrs{"style": StyleQuote}),
		doctree.KindAdmonitionTitle: scoped(doctree.Attrs{"para": true, "bold": true}),
		doctree.KindCaption:         scoped(doctree.Attrs{"style": StyleCaption}),
		doctree.KindInlineCode: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, doctree.Attrs{"code": true})
			s.Text(n.Value)
			s.CloseNode()
		},
		doctree.KindCode: func(s *State, n, _ *doctree.Node) {
			line(s, n.Type, StyleCode, n.Value)
		},
		doctree.KindMath: func(s *State, n, _ *doctree.Node) {
			value := n.Value
			if lbl := export.KindLabel(n); lbl != "" {
				value += "    " + lbl
			}
			line(s, n.Type, StyleEquation, value)
		},
		doctree.KindInlineMath: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, doctree.Attrs{"italic": true})
			s.Text(n.Value)
			s.CloseNode()
		},
		doctree.KindList: func(s *State, n, _ *doctree.Node) {
			style := StyleBullet
			if n.Attrs.Bool("ordered") {
				style = StyleNumber
			}
			s.ListDepth++
			s.OpenNode(n.Type, doctree.Attrs{"style": style})
			s.RenderChildren(n)
			s.CloseNode()
			s.ListDepth--
		},
		doctree.KindListItem: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, doctree.Attrs{"para": export.AllInline(n)})
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindLink: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, doctree.Attrs{"url": n.Attrs.String("url")})
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindImage: func(s *State, n, parent *doctree.Node) {
			text := n.Attrs.String("alt")
			if text == "" {
				text = n.Attrs.String("url")
			}
			if parent != nil && parent.Type == doctree.KindParagraph {
				s.Text("[" + text + "]")
				return
			}
			line(s, n.Type, StyleCaption, "["+text+"]")
		},
		doctree.KindContainer: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, nil)
			for _, c := range n.Children {
				if c.Type != doctree.KindCaption {
					s.Render(c, n)
				}
			}
			if caption := export.Caption(n); caption != nil {
				s.OpenNode(caption.Type, para(StyleCaption))
				if lbl := export.KindLabel(n); lbl != "" {
					s.OpenNode(caption.Type, doctree.Attrs{"bold": true})
					s.Text(lbl + ". ")
					s.CloseNode()
				}
				for _, c := range caption.Children {
					if c.Type == doctree.KindParagraph {
						s.RenderChildren(c)
						continue
					}
					s.Render(c, caption)
				}
				s.CloseNode()
			}
			s.CloseNode()
		},
		doctree.KindTable: func(s *State, n, _ *doctree.Node) {
			prev := s.InTable
			s.InTable = true
			scoped(nil)(s, n, nil)
			s.InTable = prev
		},
		doctree.KindTableRow: func(s *State, n, _ *doctree.Node) {
			s.OpenNode(n.Type, doctree.Attrs{"para": true, "bold": n.Attrs.Bool("header")})
			for i, c := range n.Children {
				if i > 0 {
					s.Text("\t")
				}
				s.Render(c, n)
			}
			s.CloseNode()
		},
		doctree.KindTableCell: scoped(nil),
		doctree.KindCrossReference: func(s *State, n, _ *doctree.Node) {
			url := n.Attrs.String("url")
			if url != "" {
				url += "#" + n.Identifier
			}
			s.OpenNode(n.Type, doctree.Attrs{"url": url})
			s.RenderChildren(n)
			s.CloseNode()
		},
		doctree.KindBrokenReference: scoped(nil),
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
			s.Text(export.InlineText(r))
		},
		doctree.KindFootnoteReference: func(s *State, n, _ *doctree.Node) {
			s.Text("[" + n.Label + "]")
		},
		doctree.KindBreak: func(s *State, _, _ *doctree.Node) {
			s.Text("\n")
		},
		doctree.KindThematicBreak: func(s *State, n, _ *doctree.Node) {
			line(s, n.Type, "", "* * *")
		},
		"subscript":    scoped(nil),
		"superscript":  scoped(nil),
		"abbreviation": scoped(nil),
	}
}

// notes appends footnote definitions after the body, in definition order.
func notes(s *State, root *doctree.Node) {
	seen := map[string]bool{}
	for _, id := range export.FootnoteLabels(root) {
		def, ok := s.Footnotes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		s.OpenNode(def.Type, para(StyleFootnote))
		s.Text("[" + def.Label + "] ")
		for i, c := range def.Children {
			if c.Type == doctree.KindParagraph {
				if i > 0 {
					s.Text(" ")
				}
				s.RenderChildren(c)
				continue
			}
			s.Render(c, def)
		}
		s.CloseNode()
	}
}
