package doctree

// Clone returns a deep copy of n. Nothing mutable is shared with the source.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:       n.Type,
		Value:      n.Value,
		Identifier: n.Identifier,
		Label:      n.Label,
		Attrs:      n.Attrs.Clone(),
	}
	if n.Position != nil {
		p := *n.Position
		out.Position = &p
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = Clone(c)
		}
	}
	return out
}

// Arena holds every node of one export pass in a single slice. Nodes are
// addressed by index; pointers handed out by Root and At point into the
// arena, so a backend may rewrite them without touching the source tree or
// another pass's arena.
type Arena struct {
	nodes []Node
	index map[*Node]int
}

// NewArena copies the tree under root into a fresh arena.
func NewArena(root *Node) *Arena {
	a := &Arena{index: make(map[*Node]int)}
	if root == nil {
		return a
	}
	// Capacity is exact so appends never move the backing array and the
	// child pointers taken during the copy stay valid.
	a.nodes = make([]Node, 0, Count(root))
	a.copy(root)
	for i := range a.nodes {
		a.index[&a.nodes[i]] = i
	}
	return a
}

func (a *Arena) copy(n *Node) *Node {
	a.nodes = append(a.nodes, Node{
		Type:       n.Type,
		Value:      n.Value,
		Identifier: n.Identifier,
		Label:      n.Label,
		Attrs:      n.Attrs.Clone(),
	})
	out := &a.nodes[len(a.nodes)-1]
	if n.Position != nil {
		p := *n.Position
		out.Position = &p
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = a.copy(c)
		}
	}
	return out
}

// Root returns the arena copy of the source root, or nil for an empty arena.
func (a *Arena) Root() *Node {
	if len(a.nodes) == 0 {
		return nil
	}
	return &a.nodes[0]
}

// Len is the number of nodes in the arena.
func (a *Arena) Len() int { return len(a.nodes) }

// At returns the node at index i in pre-order.
func (a *Arena) At(i int) *Node { return &a.nodes[i] }

// IndexOf returns the arena index of n, or -1 when n is not arena-owned
// (for example a node a backend created during the pass).
func (a *Arena) IndexOf(n *Node) int {
	if i, ok := a.index[n]; ok {
		return i
	}
	return -1
}

// Count returns the number of nodes under n, inclusive.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node, *Node) WalkStatus {
		total++
		return WalkContinue
	})
	return total
}
