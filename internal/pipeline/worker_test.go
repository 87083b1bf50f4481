package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/dgallion1/doccompile/internal/config"
	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/export/jsontree"
	"github.com/dgallion1/doccompile/internal/metrics"
	"github.com/dgallion1/doccompile/internal/parser"
	"github.com/dgallion1/doccompile/internal/xref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catsPage = "---\n" +
	"title: Cats\n" +
	"references:\n" +
	"  - key: doe2020\n" +
	"    entry: \"Doe, J. (2020). On cats.\"\n" +
	"    inline: \"Doe, 2020\"\n" +
	"---\n" +
	"# Intro\n\n" +
	"```{figure} cat.png\n:label: fig-cat\n\nA cat.\n```\n"

const dogsPage = "# Dogs\n\nSee {numref}`Figure %s <fig-cat>` and {cite:p}`doe2020`.\n"

func newWorker() *Worker {
	return NewWorker(Options{Numbering: xref.DefaultNumbering(), TOCDepth: 3, PageWorkers: 2}, nil, nil)
}

func TestBuild_CrossPageReferencesAndCitations(t *testing.T) {
	out, err := newWorker().Build(context.Background(), Request{
		Pages: []PageInput{
			{File: "cats.md", Content: catsPage},
			{File: "dogs.md", Content: dogsPage},
		},
		Formats: []string{"latex", "typst", "jats", "docx", "json"},
	})
	require.NoError(t, err)
	require.Len(t, out.Pages, 2)

	cats, dogs := out.Pages[0], out.Pages[1]
	assert.Equal(t, "Cats", cats.Title)
	assert.Equal(t, "/cats", cats.URL)
	assert.Equal(t, ContentHashHex([]byte(catsPage)), cats.ContentHash)
	for _, p := range out.Pages {
		assert.True(t, p.OK(), "page %s: %s", p.File, p.Error)
		assert.Len(t, p.Outputs, 5)
		assert.Empty(t, p.Diagnostics)
	}

	latex := string(dogs.Outputs["latex"].Payload)
	assert.Contains(t, latex, "Figure 1")
	assert.Contains(t, latex, "(Doe, 2020)")

	saved, err := jsontree.Load(dogs.Outputs["json"].Payload)
	require.NoError(t, err)
	assert.Equal(t, "dogs.md", saved.File)
	assert.NotNil(t, saved.Tree)

	var ids []string
	for _, r := range out.Xref {
		ids = append(ids, r.Identifier)
	}
	assert.Contains(t, ids, "fig-cat")
	require.Len(t, out.TOC, 2)
	assert.Equal(t, "Cats", out.TOC[0].Title)
}

func TestBuild_UnresolvedReferenceIsAPageDiagnostic(t *testing.T) {
	out, err := newWorker().Build(context.Background(), Request{
		Pages:   []PageInput{{File: "a.md", Content: "See {ref}`nowhere`.\n"}},
		Formats: []string{"latex"},
	})
	require.NoError(t, err)
	page := out.Pages[0]
	assert.True(t, page.OK())
	require.Len(t, page.Diagnostics, 1)
	assert.Equal(t, diag.RuleUnresolvedReference, page.Diagnostics[0].RuleID)
}

func TestBuild_UnhandledNodeReportedOncePerPage(t *testing.T) {
	content := "Before.\n\n" +
		"```{widget}\nInner one.\n\nInner two.\n```\n\n" +
		"After {cite:p}`nobody`.\n"
	out, err := newWorker().Build(context.Background(), Request{
		Pages:   []PageInput{{File: "w.md", Content: content}},
		Formats: []string{"jats", "latex", "typst", "docx", "json"},
	})
	require.NoError(t, err)
	page := out.Pages[0]
	require.True(t, page.OK(), page.Error)

	var unhandled, missing []diag.Diagnostic
	for _, d := range page.Diagnostics {
		switch d.RuleID {
		case diag.RuleUnhandledNode:
			unhandled = append(unhandled, d)
		case diag.RuleCitationMissing:
			missing = append(missing, d)
		}
	}
	require.Len(t, unhandled, 1)
	require.NotNil(t, unhandled[0].Position)
	assert.Equal(t, 3, unhandled[0].Position.Start.Line)
	assert.Equal(t, "w.md", unhandled[0].File)
	assert.Len(t, missing, 1)

	latex := string(page.Outputs["latex"].Payload)
	assert.Contains(t, latex, "Before.")
	assert.Contains(t, latex, "After")
	assert.NotContains(t, latex, "Inner")
}

func TestBuild_FrontmatterNumbering(t *testing.T) {
	content := "---\nnumbering:\n  headings: true\n---\n# One\n\n## One A\n"
	out, err := newWorker().Build(context.Background(), Request{
		Pages: []PageInput{{File: "n.md", Content: content}, {File: "m.md", Content: "# Plain\n"}},
	})
	require.NoError(t, err)

	toc := out.Pages[0].TOC
	require.Len(t, toc, 1)
	assert.Equal(t, "1", toc[0].Enumerator)
	require.Len(t, toc[0].Children, 1)
	assert.Equal(t, "1.1", toc[0].Children[0].Enumerator)

	require.Len(t, out.Pages[1].TOC, 1)
	assert.Empty(t, out.Pages[1].TOC[0].Enumerator)
	assert.Contains(t, out.Pages[0].Outputs, "json")
}

func TestBuild_Errors(t *testing.T) {
	w := newWorker()
	_, err := w.Build(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoPages)

	_, err = w.Build(context.Background(), Request{
		Pages:   []PageInput{{File: "a.md", Content: "x"}},
		Formats: []string{"pdf"},
	})
	assert.ErrorContains(t, err, `unknown format "pdf"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Build(ctx, Request{Pages: []PageInput{{File: "a.md", Content: "x"}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_PartialWhenOnePageFails(t *testing.T) {
	job := NewJob(Request{
		Pages: []PageInput{
			{File: "a.md", Content: "# A\n"},
			{File: "b.pdf", Content: "%PDF"},
		},
		Formats: []string{"typst"},
	})
	newWorker().Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusPartial, snap.Status)
	require.Len(t, snap.Pages, 2)
	assert.Equal(t, []string{"typst"}, snap.Pages[0].Formats)
	assert.Contains(t, snap.Pages[1].Error, "unsupported")
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "b.pdf")
}

func TestProcess_FailedWhenEveryPageFails(t *testing.T) {
	job := NewJob(Request{Pages: []PageInput{{File: "b.txt", Content: "x"}}})
	newWorker().Process(context.Background(), job)
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
}

func TestMergeNumbering(t *testing.T) {
	on, off := true, false
	got := MergeNumbering(xref.DefaultNumbering(), &parser.NumberingFlags{Headings: &on, Code: &off})
	want := xref.Numbering{Headings: true, Figures: true, Tables: true, Equations: true, Code: false}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if MergeNumbering(want, nil) != want {
		t.Fatal("expected nil flags to keep the base numbering")
	}
}

type countingRecorder struct {
	metrics.NoopRecorder
	outcomes chan string
}

func (r *countingRecorder) IncBuildOutcome(outcome string) { r.outcomes <- outcome }

func TestOrchestrator_RunsSubmittedBuilds(t *testing.T) {
	cfg := config.Load()
	cfg.WorkerCount = 2
	rec := &countingRecorder{outcomes: make(chan string, 4)}
	o := NewOrchestrator(cfg, rec, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(Request{Pages: []PageInput{{File: "a.md", Content: "# A\n"}}, Formats: []string{"jats"}})
	require.NoError(t, o.Submit(job))
	assert.Same(t, job, o.GetJob(job.ID))

	select {
	case outcome := <-rec.outcomes:
		assert.Equal(t, string(StatusCompleted), outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("build did not finish")
	}
	out := job.Output()
	require.NotNil(t, out)
	assert.Contains(t, string(out.Pages[0].Outputs["jats"].Payload), "<article")
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Load()
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, nil, nil)

	first := NewJob(Request{})
	second := NewJob(Request{})
	require.NoError(t, o.Submit(first))
	assert.Equal(t, 1, o.QueueDepth())

	err := o.Submit(second)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, second.Snapshot().Status)

	o.Stop()
	assert.Error(t, o.Submit(NewJob(Request{})))
}
