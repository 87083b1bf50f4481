package engine

import "github.com/dgallion1/doccompile/internal/doctree"

// TreeTarget builds doctree nodes; it is the target of the token builder.
type TreeTarget struct{}

var _ Target[*doctree.Node] = TreeTarget{}

func (TreeTarget) NewNode(kind doctree.Kind, attrs doctree.Attrs) *doctree.Node {
	n := &doctree.Node{Type: kind}
	if len(attrs) > 0 {
		n.Attrs = attrs.Clone()
	}
	return n
}

func (TreeTarget) NewText(value string) *doctree.Node { return doctree.NewText(value) }

func (TreeTarget) AppendChild(parent, child *doctree.Node) { parent.AppendChild(child) }

func (TreeTarget) MergeText(parent *doctree.Node, value string) bool {
	if k := len(parent.Children); k > 0 && parent.Children[k-1].Type == doctree.KindText {
		parent.Children[k-1].Value += value
		return true
	}
	return false
}
