// Package doctree is the shared in-memory representation of one parsed
// document: an ordered tree of tagged nodes.
package doctree

// Kind selects what a node represents. The core kinds are listed below; any
// other string is an extension kind whose payload rides in Attrs.
type Kind string

const (
	KindRoot               Kind = "root"
	KindBlock              Kind = "block"
	KindHeading            Kind = "heading"
	KindParagraph          Kind = "paragraph"
	KindText               Kind = "text"
	KindEmphasis           Kind = "emphasis"
	KindStrong             Kind = "strong"
	KindDelete             Kind = "delete"
	KindInlineCode         Kind = "inlineCode"
	KindCode               Kind = "code"
	KindMath               Kind = "math"
	KindInlineMath         Kind = "inlineMath"
	KindList               Kind = "list"
	KindListItem           Kind = "listItem"
	KindTable              Kind = "table"
	KindTableRow           Kind = "tableRow"
	KindTableCell          Kind = "tableCell"
	KindImage              Kind = "image"
	KindLink               Kind = "link"
	KindBreak              Kind = "break"
	KindThematicBreak      Kind = "thematicBreak"
	KindBlockquote         Kind = "blockquote"
	KindContainer          Kind = "container"
	KindCaption            Kind = "caption"
	KindLegend             Kind = "legend"
	KindAdmonition         Kind = "admonition"
	KindAdmonitionTitle    Kind = "admonitionTitle"
	KindCiteGroup          Kind = "citeGroup"
	KindCite               Kind = "cite"
	KindFootnoteReference  Kind = "footnoteReference"
	KindFootnoteDefinition Kind = "footnoteDefinition"
	KindCrossReference     Kind = "crossReference"
	KindBrokenReference    Kind = "brokenReference"
	KindMystTarget         Kind = "mystTarget"
	KindIndex              Kind = "index"
	KindHTML               Kind = "html"
	KindComment            Kind = "comment"
)

var coreKinds = map[Kind]bool{
	KindRoot: true, KindBlock: true, KindHeading: true, KindParagraph: true,
	KindText: true, KindEmphasis: true, KindStrong: true, KindDelete: true,
	KindInlineCode: true, KindCode: true, KindMath: true, KindInlineMath: true,
	KindList: true, KindListItem: true, KindTable: true, KindTableRow: true,
	KindTableCell: true, KindImage: true, KindLink: true, KindBreak: true,
	KindThematicBreak: true, KindBlockquote: true, KindContainer: true,
	KindCaption: true, KindLegend: true, KindAdmonition: true,
	KindAdmonitionTitle: true, KindCiteGroup: true, KindCite: true,
	KindFootnoteReference: true, KindFootnoteDefinition: true,
	KindCrossReference: true, KindBrokenReference: true, KindMystTarget: true,
	KindIndex: true, KindHTML: true, KindComment: true,
}

// leafKinds never carry children.
var leafKinds = map[Kind]bool{
	KindText: true, KindInlineCode: true, KindCode: true, KindMath: true,
	KindInlineMath: true, KindImage: true, KindBreak: true,
	KindThematicBreak: true, KindMystTarget: true, KindHTML: true,
	KindComment: true, KindIndex: true, KindFootnoteReference: true,
}

// IsCore reports whether k is one of the built-in kinds.
func (k Kind) IsCore() bool { return coreKinds[k] }

// IsLeaf reports whether nodes of kind k hold a Value instead of children.
// Extension kinds are containers unless they say otherwise.
func (k Kind) IsLeaf() bool { return leafKinds[k] }

func (k Kind) String() string { return string(k) }

// Point is a 1-based line/column location in the source.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column,omitempty"`
}

// Position is a source span used for diagnostics.
type Position struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Node is one element of a document tree.
type Node struct {
	Type       Kind      `json:"type"`
	Children   []*Node   `json:"children,omitempty"`
	Value      string    `json:"value,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Label      string    `json:"label,omitempty"`
	Position   *Position `json:"position,omitempty"`
	Attrs      Attrs     `json:"attrs,omitempty"`
}

// New returns a node of the given kind with optional children.
func New(kind Kind, children ...*Node) *Node {
	n := &Node{Type: kind}
	if len(children) > 0 {
		n.Children = children
	}
	return n
}

// NewText returns a text leaf.
func NewText(value string) *Node {
	return &Node{Type: KindText, Value: value}
}

// SetLabel sets Label and the normalized Identifier derived from it.
func (n *Node) SetLabel(label string) {
	n.Identifier, n.Label = NormalizeLabel(label)
}

// Attr returns the raw attribute value.
func (n *Node) Attr(key string) (any, bool) {
	if n.Attrs == nil {
		return nil, false
	}
	v, ok := n.Attrs[key]
	return v, ok
}

// SetAttr sets a single attribute, allocating the bag when needed.
func (n *Node) SetAttr(key string, value any) {
	if n.Attrs == nil {
		n.Attrs = make(Attrs)
	}
	n.Attrs[key] = value
}

// DeleteAttr removes a single attribute.
func (n *Node) DeleteAttr(key string) {
	delete(n.Attrs, key)
}

// Depth is the heading depth (or list nesting for other kinds).
func (n *Node) Depth() int { return n.Attrs.Int("depth") }

// Enumerator is the human-visible number assigned by the resolver.
func (n *Node) Enumerator() string { return n.Attrs.String("enumerator") }

// Enumerated reports whether numbering applies to this node. Nodes that
// never set the attribute count as enumerated.
func (n *Node) Enumerated() bool {
	v, ok := n.Attr("enumerated")
	if !ok {
		return true
	}
	b, isBool := v.(bool)
	return !isBool || b
}

// AppendChild adds child as the last child of n, merging adjacent text.
func (n *Node) AppendChild(child *Node) {
	if child == nil {
		return
	}
	if child.Type == KindText && len(n.Children) > 0 {
		last := n.Children[len(n.Children)-1]
		if last.Type == KindText {
			last.Value += child.Value
			return
		}
	}
	n.Children = append(n.Children, child)
}
