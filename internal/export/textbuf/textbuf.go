// Package textbuf is the engine target shared by the plain-text backends.
// Output is a tree of buffers: each scope contributes an opening string,
// its children and a closing string. Text is escaped as it is appended;
// raw leaves are written verbatim.
package textbuf

import (
	"strings"

	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
)

// KindRaw is the scope kind of verbatim output.
const KindRaw doctree.Kind = "raw"

// Node is one output scope.
type Node struct {
	Kind     doctree.Kind
	Open     string
	Close    string
	Raw      string
	Text     string
	IsText   bool
	Children []*Node
}

// Target builds Nodes, escaping text with Escape.
type Target struct {
	Escape func(string) string
}

var _ engine.Target[*Node] = Target{}

func (t Target) NewNode(kind doctree.Kind, attrs doctree.Attrs) *Node {
	return &Node{
		Kind:  kind,
		Open:  attrs.String("open"),
		Close: attrs.String("close"),
		Raw:   attrs.String("raw"),
	}
}

func (t Target) NewText(value string) *Node {
	return &Node{Kind: doctree.KindText, IsText: true, Text: t.escape(value)}
}

func (Target) AppendChild(parent, child *Node) {
	parent.Children = append(parent.Children, child)
}

func (t Target) MergeText(parent *Node, value string) bool {
	k := len(parent.Children)
	if k == 0 || !parent.Children[k-1].IsText {
		return false
	}
	parent.Children[k-1].Text += t.escape(value)
	return true
}

func (t Target) escape(v string) string {
	if t.Escape == nil {
		return v
	}
	return t.Escape(v)
}

// String renders n and everything below it.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n.IsText {
		sb.WriteString(n.Text)
		return
	}
	sb.WriteString(n.Open)
	sb.WriteString(n.Raw)
	for _, c := range n.Children {
		c.write(sb)
	}
	sb.WriteString(n.Close)
}

// State and Handlers specialize the engine for this target.
type (
	State    = engine.State[*Node]
	Handlers = engine.Handlers[*Node]
	Handler  = engine.Handler[*Node]
)

// Wrap returns scope attributes for a construct written as open, children,
// close.
func Wrap(open, close string) doctree.Attrs {
	return doctree.Attrs{"open": open, "close": close}
}

// Literal appends verbatim output to the current scope.
func Literal(s *State, value string) {
	if value == "" {
		return
	}
	s.AddLeaf(KindRaw, doctree.Attrs{"raw": value})
}

// Wrapped is a handler writing open, the node's children, then close.
func Wrapped(open, close string) Handler {
	return func(s *State, n, _ *doctree.Node) {
		s.OpenNode(n.Type, Wrap(open, close))
		s.RenderChildren(n)
		s.CloseNode()
	}
}

// Skip is a handler that writes nothing.
func Skip(*State, *doctree.Node, *doctree.Node) {}

// Base is the handler table every text backend starts from.
func Base() Handlers {
	return Handlers{
		doctree.KindRoot:      Wrapped("", ""),
		doctree.KindBlock:     Wrapped("", ""),
		doctree.KindParagraph: Wrapped("", "\n\n"),
		doctree.KindLegend:    Wrapped("", ""),
		doctree.KindText: func(s *State, n, _ *doctree.Node) {
			s.Text(n.Value)
		},
		doctree.KindComment:            Skip,
		doctree.KindHTML:               Skip,
		doctree.KindFootnoteDefinition: Skip,
		doctree.KindBrokenReference:    Wrapped("", ""),
		"abbreviation":                 Wrapped("", ""),
	}
}

// Finish trims trailing blank lines and ends the document with one newline.
func Finish(out string) string {
	out = strings.TrimRight(out, " \n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

// InlineChildren renders the children of n, unwrapping paragraphs, for
// contexts that do not allow a paragraph break.
func InlineChildren(s *State, n *doctree.Node) {
	for i, c := range n.Children {
		if c.Type == doctree.KindParagraph {
			if i > 0 {
				s.Text(" ")
			}
			s.RenderChildren(c)
			continue
		}
		s.Render(c, n)
	}
}
