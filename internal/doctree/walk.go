package doctree

import "strings"

// WalkStatus tells Walk how to continue after visiting a node.
type WalkStatus int

const (
	WalkContinue WalkStatus = iota
	WalkSkipChildren
	WalkStop
)

// Walker is called for every node with its parent (nil for the root).
type Walker func(n, parent *Node) WalkStatus

// Walk visits n and its descendants depth-first in document order.
// It returns false when the walker stopped early.
func Walk(n *Node, fn Walker) bool {
	return walk(n, nil, fn)
}

func walk(n, parent *Node, fn Walker) bool {
	if n == nil {
		return true
	}
	switch fn(n, parent) {
	case WalkStop:
		return false
	case WalkSkipChildren:
		return true
	}
	for _, c := range n.Children {
		if !walk(c, n, fn) {
			return false
		}
	}
	return true
}

// Map rebuilds the children of every container bottom-up. fn receives each
// node after its own children were mapped and returns the replacement list
// (nil drops the node, one element replaces it, several splice in).
func Map(n *Node, fn func(n *Node) []*Node) *Node {
	if n == nil {
		return nil
	}
	if len(n.Children) > 0 {
		out := make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			out = append(out, fn(Map(c, fn))...)
		}
		n.Children = nil
		for _, c := range out {
			n.AppendChild(c)
		}
	}
	return n
}

// Select returns every node under root (inclusive) matching pred.
func Select(root *Node, pred func(*Node) bool) []*Node {
	var out []*Node
	Walk(root, func(n, _ *Node) WalkStatus {
		if pred(n) {
			out = append(out, n)
		}
		return WalkContinue
	})
	return out
}

// SelectFirst returns the first node matching pred, stopping the walk there.
func SelectFirst(root *Node, pred func(*Node) bool) *Node {
	var found *Node
	Walk(root, func(n, _ *Node) WalkStatus {
		if pred(n) {
			found = n
			return WalkStop
		}
		return WalkContinue
	})
	return found
}

// OfKind is a Select predicate matching any of kinds.
func OfKind(kinds ...Kind) func(*Node) bool {
	return func(n *Node) bool {
		for _, k := range kinds {
			if n.Type == k {
				return true
			}
		}
		return false
	}
}

// TextContent concatenates the Value of every text-bearing leaf.
func TextContent(n *Node) string {
	var sb strings.Builder
	Walk(n, func(c, _ *Node) WalkStatus {
		switch c.Type {
		case KindText, KindInlineCode, KindInlineMath:
			sb.WriteString(c.Value)
		case KindComment, KindMystTarget, KindIndex:
			return WalkSkipChildren
		}
		return WalkContinue
	})
	return sb.String()
}

// MergeAdjacentText restores the adjacent-text invariant on a tree that was
// assembled by hand. Empty text nodes are dropped.
func MergeAdjacentText(root *Node) {
	Walk(root, func(n, _ *Node) WalkStatus {
		if len(n.Children) == 0 {
			return WalkContinue
		}
		merged := n.Children[:0:0]
		for _, c := range n.Children {
			if c.Type == KindText {
				if c.Value == "" {
					continue
				}
				if k := len(merged); k > 0 && merged[k-1].Type == KindText {
					merged[k-1].Value += c.Value
					continue
				}
			}
			merged = append(merged, c)
		}
		n.Children = merged
		return WalkContinue
	})
}

// HasAdjacentText reports whether any parent has two consecutive text
// children.
func HasAdjacentText(root *Node) bool {
	bad := false
	Walk(root, func(n, _ *Node) WalkStatus {
		for i := 1; i < len(n.Children); i++ {
			if n.Children[i].Type == KindText && n.Children[i-1].Type == KindText {
				bad = true
				return WalkStop
			}
		}
		return WalkContinue
	})
	return bad
}
