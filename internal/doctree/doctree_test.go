package doctree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Node {
	h := New(KindHeading, NewText("Intro"))
	h.SetAttr("depth", 1)
	h.SetLabel("Intro Section")
	p := New(KindParagraph, NewText("hello "), New(KindStrong, NewText("world")))
	fig := New(KindContainer, New(KindImage), New(KindCaption, New(KindParagraph, NewText("cap"))))
	fig.SetAttr("kind", "figure")
	fig.SetAttr("tags", []string{"a", "b"})
	fig.Position = &Position{Start: Point{Line: 3}, End: Point{Line: 5}}
	return New(KindRoot, h, p, fig)
}

func TestClone_NoSharedState(t *testing.T) {
	src := sample()
	cp := Clone(src)
	require.Equal(t, src, cp)

	cp.Children[1].Children[0].Value = "changed"
	cp.Children[2].Attrs["kind"] = "table"
	cp.Children[2].Attrs["tags"].([]string)[0] = "z"
	cp.Children[2].Position.Start.Line = 99
	cp.Children = append(cp.Children, NewText("extra"))

	assert.Equal(t, "hello ", src.Children[1].Children[0].Value)
	assert.Equal(t, "figure", src.Children[2].Attrs.String("kind"))
	assert.Equal(t, []string{"a", "b"}, src.Children[2].Attrs["tags"])
	assert.Equal(t, 3, src.Children[2].Position.Start.Line)
	assert.Len(t, src.Children, 3)
}

func TestWalk_EarlyExit(t *testing.T) {
	var seen []Kind
	completed := Walk(sample(), func(n, _ *Node) WalkStatus {
		seen = append(seen, n.Type)
		if n.Type == KindStrong {
			return WalkStop
		}
		return WalkContinue
	})
	assert.False(t, completed)
	assert.Equal(t, []Kind{KindRoot, KindHeading, KindText, KindParagraph, KindText, KindStrong}, seen)
}

func TestWalk_SkipChildren(t *testing.T) {
	count := 0
	Walk(sample(), func(n, _ *Node) WalkStatus {
		count++
		if n.Type == KindParagraph {
			return WalkSkipChildren
		}
		return WalkContinue
	})
	// root, heading, text, paragraph, container, image, caption, paragraph(caption)
	assert.Equal(t, 8, count)
}

func TestSelect(t *testing.T) {
	texts := Select(sample(), OfKind(KindText))
	require.Len(t, texts, 4)
	assert.Equal(t, "world", texts[2].Value)

	first := SelectFirst(sample(), func(n *Node) bool { return n.Identifier != "" })
	require.NotNil(t, first)
	assert.Equal(t, KindHeading, first.Type)
	assert.Nil(t, SelectFirst(sample(), OfKind("widget")))
}

func TestMap_DropAndSplice(t *testing.T) {
	root := New(KindParagraph, NewText("a"), New(KindEmphasis, NewText("b")), NewText("c"))
	Map(root, func(n *Node) []*Node {
		if n.Type == KindEmphasis {
			return n.Children
		}
		return []*Node{n}
	})
	require.Len(t, root.Children, 1)
	assert.Equal(t, "abc", root.Children[0].Value)
}

func TestAppendChild_MergesText(t *testing.T) {
	p := New(KindParagraph)
	p.AppendChild(NewText("a"))
	p.AppendChild(NewText("b"))
	p.AppendChild(New(KindBreak))
	p.AppendChild(NewText("c"))
	require.Len(t, p.Children, 3)
	assert.Equal(t, "ab", p.Children[0].Value)
	assert.False(t, HasAdjacentText(p))
}

func TestMergeAdjacentText(t *testing.T) {
	root := New(KindRoot, New(KindParagraph, NewText("x"), NewText(""), NewText("y"), New(KindBreak), NewText("z")))
	require.True(t, HasAdjacentText(root))
	MergeAdjacentText(root)
	assert.False(t, HasAdjacentText(root))
	assert.Equal(t, "xy", root.Children[0].Children[0].Value)
	assert.Len(t, root.Children[0].Children, 3)
}

func TestTextContent(t *testing.T) {
	assert.Equal(t, "Introhello worldcap", TextContent(sample()))
}

func TestEnumerated_DefaultsTrue(t *testing.T) {
	n := New(KindContainer)
	assert.True(t, n.Enumerated())
	n.SetAttr("enumerated", false)
	assert.False(t, n.Enumerated())
}

func TestNormalizeLabel(t *testing.T) {
	id, label := NormalizeLabel("  My   Figure\tOne ")
	assert.Equal(t, "my figure one", id)
	assert.Equal(t, "My Figure One", label)

	id, _ = NormalizeLabel("STRASSE")
	id2, _ := NormalizeLabel("strasse")
	assert.Equal(t, id, id2)

	id, label = NormalizeLabel("   ")
	assert.Empty(t, id)
	assert.Empty(t, label)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"Café au lait!", "cafe-au-lait"},
		{"  1.2 Results -- final ", "1-2-results-final"},
		{"???", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "input %q", tt.in)
	}
}

func TestArena_CopiesWithoutAliasing(t *testing.T) {
	src := sample()
	a := NewArena(src)
	require.Equal(t, Count(src), a.Len())

	root := a.Root()
	require.NotNil(t, root)
	assert.Equal(t, 0, a.IndexOf(root))
	assert.Equal(t, KindHeading, a.At(1).Type)
	assert.Same(t, a.At(1), root.Children[0])

	root.Children[1].Children[0].Value = "mutated"
	root.Children[2].Attrs["kind"] = "table"
	assert.Equal(t, "hello ", src.Children[1].Children[0].Value)
	assert.Equal(t, "figure", src.Children[2].Attrs.String("kind"))
	assert.Equal(t, -1, a.IndexOf(NewText("fresh")))

	other := NewArena(src)
	assert.NotSame(t, other.Root(), root)
	assert.Equal(t, "hello ", other.Root().Children[1].Children[0].Value)
}

func TestNode_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(sample())
	require.NoError(t, err)

	var back Node
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "intro section", back.Children[0].Identifier)
	assert.Equal(t, 1, back.Children[0].Depth())
	assert.Equal(t, "figure", back.Children[2].Attrs.String("kind"))
}
