package diag

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_StampsFileAndPosition(t *testing.T) {
	c := NewCollector("intro.md")
	n := doctree.New("widget")
	n.Position = &doctree.Position{Start: doctree.Point{Line: 7}}

	c.Warn(RuleUnhandledNode, n, "no handler for %q", n.Type)
	c.Error(RuleIndexEntryInvalid, nil, "bad entry")

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "intro.md", all[0].File)
	assert.Equal(t, 7, all[0].Position.Start.Line)
	assert.Equal(t, `no handler for "widget"`, all[0].Message)
	assert.Nil(t, all[1].Position)
	assert.True(t, c.HasErrors())
	assert.Equal(t, "intro.md:7: warning: no handler for \"widget\" [unhandled-node]", all[0].String())

	// The collector's copy is detached from the node.
	n.Position.Start.Line = 1
	assert.Equal(t, 7, c.All()[0].Position.Start.Line)
}

func TestCollector_MergeAndSort(t *testing.T) {
	a := NewCollector("b.md")
	a.Warn(RuleUnresolvedReference, &doctree.Node{Position: &doctree.Position{Start: doctree.Point{Line: 9}}}, "x")
	a.Warn(RuleUnresolvedReference, &doctree.Node{Position: &doctree.Position{Start: doctree.Point{Line: 2}}}, "y")
	b := NewCollector("a.md")
	b.Warn(RuleDuplicateIdentifier, nil, "z")

	project := NewCollector("")
	project.Merge(a)
	project.Merge(b)
	project.Merge(project)

	sorted := project.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, "a.md", sorted[0].File)
	assert.Equal(t, "y", sorted[1].Message)
	assert.Equal(t, "x", sorted[2].Message)
	assert.Len(t, project.ByRule(RuleUnresolvedReference), 2)
	assert.False(t, project.HasErrors())
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("")
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Warn(RuleUnhandledNode, nil, "n%d", i)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())
}

func TestDiagnostic_JSON(t *testing.T) {
	d := Diagnostic{File: "p.md", Severity: SeverityWarning, RuleID: RuleDuplicateProjectLabel, Message: "dup", Note: "a.md, b.md"}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"file":"p.md","severity":"warning","ruleId":"duplicate-identifier-project","message":"dup","note":"a.md, b.md"}`, string(data))

	var back Diagnostic
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}

func TestError_WrapAndCategory(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(cause, CategoryEngine, "close on empty stack").WithContext("kind", "paragraph")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCategory(fmt.Errorf("page x: %w", err), CategoryEngine))
	assert.False(t, IsCategory(cause, CategoryEngine))
	assert.Equal(t, "engine: close on empty stack: boom", err.Error())
	assert.Equal(t, "paragraph", err.Context["kind"])
}

func TestCollector_MergeUniqueDropsRepeats(t *testing.T) {
	widget := doctree.New("widget")
	widget.Position = &doctree.Position{Start: doctree.Point{Line: 3}}

	page := NewCollector("w.md")
	page.Warn(RuleUnresolvedReference, nil, "missing")
	for i := 0; i < 3; i++ {
		backend := NewCollector("w.md")
		backend.Warn(RuleUnhandledNode, widget, "no handler for %q", widget.Type)
		backend.Warn(RuleUnresolvedReference, nil, "missing")
		page.MergeUnique(backend)
	}

	all := page.All()
	require.Len(t, all, 2)
	assert.Equal(t, RuleUnresolvedReference, all[0].RuleID)
	assert.Equal(t, RuleUnhandledNode, all[1].RuleID)

	other := NewCollector("w.md")
	moved := doctree.New("widget")
	moved.Position = &doctree.Position{Start: doctree.Point{Line: 8}}
	other.Warn(RuleUnhandledNode, moved, "no handler for %q", moved.Type)
	page.MergeUnique(other)
	if page.Len() != 3 {
		t.Fatalf("expected a second span to be kept, got %d diagnostics", page.Len())
	}
}
