package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyHandlers rebuilds a document tree through the engine, one handler per
// kind, so the output can be compared with the input.
func copyHandlers() Handlers[*doctree.Node] {
	container := func(s *State[*doctree.Node], n, _ *doctree.Node) {
		s.OpenNode(n.Type, n.Attrs)
		s.RenderChildren(n)
		s.CloseNode()
	}
	return Handlers[*doctree.Node]{
		doctree.KindRoot:      container,
		doctree.KindParagraph: container,
		doctree.KindEmphasis:  container,
		doctree.KindStrong:    container,
		doctree.KindText: func(s *State[*doctree.Node], n, _ *doctree.Node) {
			s.Text(n.Value)
		},
		doctree.KindBreak: func(s *State[*doctree.Node], n, _ *doctree.Node) {
			s.AddLeaf(n.Type, nil)
		},
	}
}

func run(t *testing.T, root *doctree.Node) (*doctree.Node, *diag.Collector) {
	t.Helper()
	dc := diag.NewCollector("page.md")
	out, err := New[*doctree.Node](TreeTarget{}, copyHandlers(), dc, nil).Run(root)
	require.NoError(t, err)
	return out, dc
}

func TestRun_CopiesTree(t *testing.T) {
	src := doctree.New(doctree.KindRoot,
		doctree.New(doctree.KindParagraph,
			doctree.NewText("a "),
			doctree.New(doctree.KindStrong, doctree.NewText("b")),
			doctree.New(doctree.KindBreak),
		),
	)
	out, dc := run(t, src)
	assert.Equal(t, src, out)
	assert.Zero(t, dc.Len())
}

func TestText_MergesAdjacent(t *testing.T) {
	src := doctree.New(doctree.KindRoot, doctree.New(doctree.KindParagraph,
		doctree.NewText("one "), doctree.NewText("two "), doctree.NewText("three"),
	))
	out, _ := run(t, src)
	para := out.Children[0]
	require.Len(t, para.Children, 1)
	assert.Equal(t, "one two three", para.Children[0].Value)
}

func TestAdjacencyProperty_RandomTrees(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	kinds := []doctree.Kind{doctree.KindText, doctree.KindText, doctree.KindEmphasis, doctree.KindBreak, "widget"}
	var gen func(depth int) *doctree.Node
	gen = func(depth int) *doctree.Node {
		k := kinds[rng.IntN(len(kinds))]
		if depth > 3 && k != doctree.KindBreak {
			k = doctree.KindText
		}
		switch k {
		case doctree.KindText:
			return doctree.NewText("x")
		case doctree.KindBreak:
			return doctree.New(doctree.KindBreak)
		}
		n := doctree.New(k)
		for range rng.IntN(5) {
			n.Children = append(n.Children, gen(depth+1))
		}
		return n
	}
	for range 200 {
		para := doctree.New(doctree.KindParagraph)
		for range 1 + rng.IntN(8) {
			para.Children = append(para.Children, gen(0))
		}
		out, _ := run(t, doctree.New(doctree.KindRoot, para))
		assert.False(t, doctree.HasAdjacentText(out))
	}
}

func TestRender_UnhandledKindSkipsSubtree(t *testing.T) {
	widget := doctree.New("widget", doctree.NewText("inner one"), doctree.New(doctree.KindStrong, doctree.NewText("inner two")))
	widget.Position = &doctree.Position{Start: doctree.Point{Line: 4, Column: 1}, End: doctree.Point{Line: 6}}
	src := doctree.New(doctree.KindRoot,
		doctree.New(doctree.KindParagraph, doctree.NewText("before")),
		widget,
		doctree.New(doctree.KindParagraph, doctree.NewText("after")),
	)

	out, dc := run(t, src)

	require.Len(t, out.Children, 2)
	assert.Equal(t, "before", out.Children[0].Children[0].Value)
	assert.Equal(t, "after", out.Children[1].Children[0].Value)
	assert.NotContains(t, doctree.TextContent(out), "inner")

	all := dc.All()
	require.Len(t, all, 1)
	assert.Equal(t, diag.RuleUnhandledNode, all[0].RuleID)
	assert.Equal(t, diag.SeverityWarning, all[0].Severity)
	assert.Equal(t, 4, all[0].Position.Start.Line)
	assert.Equal(t, "page.md", all[0].File)
}

func TestContractViolations(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler[*doctree.Node]
		op      string
	}{
		{"close on empty stack", func(s *State[*doctree.Node], _, _ *doctree.Node) { s.CloseNode() }, "close"},
		{"text without scope", func(s *State[*doctree.Node], _, _ *doctree.Node) { s.Text("x") }, "text"},
		{"child inside leaf", func(s *State[*doctree.Node], _, _ *doctree.Node) {
			s.OpenNode(doctree.KindRoot, nil)
			s.OpenLeaf(doctree.KindImage, nil)
			s.OpenNode(doctree.KindText, nil)
		}, "open"},
		{"text inside leaf", func(s *State[*doctree.Node], _, _ *doctree.Node) {
			s.OpenNode(doctree.KindRoot, nil)
			s.OpenLeaf(doctree.KindCode, nil)
			s.Text("x")
		}, "text"},
		{"scope left open", func(s *State[*doctree.Node], _, _ *doctree.Node) {
			s.OpenNode(doctree.KindRoot, nil)
		}, "finish"},
		{"nothing produced", func(*State[*doctree.Node], *doctree.Node, *doctree.Node) {}, "finish"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New[*doctree.Node](TreeTarget{}, Handlers[*doctree.Node]{doctree.KindRoot: tt.handler}, nil, nil)
			out, err := st.Run(doctree.New(doctree.KindRoot))
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, diag.IsCategory(err, diag.CategoryEngine))

			var ce *ContractError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.op, ce.Op)
			assert.Zero(t, st.Depth())
		})
	}
}

func TestGuard_PropagatesForeignPanics(t *testing.T) {
	st := New[*doctree.Node](TreeTarget{}, nil, nil, nil)
	assert.Panics(t, func() {
		_ = st.Guard(func() { panic("not a contract error") })
	})
}

func TestAddLeaf_ReturnsClosedNode(t *testing.T) {
	st := New[*doctree.Node](TreeTarget{}, nil, nil, nil)
	err := st.Guard(func() {
		st.OpenNode(doctree.KindParagraph, nil)
		img := st.AddLeaf(doctree.KindImage, doctree.Attrs{"url": "a.png"})
		assert.Equal(t, "a.png", img.Attrs.String("url"))
		assert.Equal(t, 1, st.Depth())
		assert.Equal(t, doctree.KindParagraph, st.TopKind())
		st.CloseNode()
	})
	require.NoError(t, err)
	out, err := st.Finish(nil)
	require.NoError(t, err)
	require.Len(t, out.Children, 1)
	assert.Equal(t, doctree.KindImage, out.Children[0].Type)
}

func TestOverlay_UnionWithOverridesWinning(t *testing.T) {
	base := map[string]int{"paragraph": 1, "strong": 1, "math": 1}
	o1 := map[string]int{"math": 2, "widget": 2}
	o2 := map[string]int{"math": 3, "table": 3}

	got := Overlay(base, o1, o2)

	assert.Equal(t, map[string]int{"paragraph": 1, "strong": 1, "math": 3, "widget": 2, "table": 3}, got)
	assert.Equal(t, 1, base["math"], "base must not be modified")
	assert.NotContains(t, base, "widget")

	// Every key of base ∪ overrides is present and no other.
	for _, m := range []map[string]int{base, o1, o2} {
		for k := range m {
			assert.Contains(t, got, k)
		}
	}
	assert.Len(t, got, 5)
}

func TestOverlay_HandlerTables(t *testing.T) {
	var called string
	base := Handlers[*doctree.Node]{
		doctree.KindText: func(*State[*doctree.Node], *doctree.Node, *doctree.Node) { called = "base" },
	}
	override := Handlers[*doctree.Node]{
		doctree.KindText: func(*State[*doctree.Node], *doctree.Node, *doctree.Node) { called = "override" },
	}
	table := Overlay(base, override)
	table[doctree.KindText](nil, nil, nil)
	assert.Equal(t, "override", called)
	assert.Equal(t, []doctree.Kind{doctree.KindText}, Kinds(table))
}
