package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/doccompile/internal/citation"
	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/export/docx"
	"github.com/dgallion1/doccompile/internal/export/jats"
	"github.com/dgallion1/doccompile/internal/export/jsontree"
	"github.com/dgallion1/doccompile/internal/export/latex"
	"github.com/dgallion1/doccompile/internal/export/typst"
	"github.com/dgallion1/doccompile/internal/logfields"
	"github.com/dgallion1/doccompile/internal/metrics"
	"github.com/dgallion1/doccompile/internal/parser"
	"github.com/dgallion1/doccompile/internal/xref"
)

// ErrNoPages is returned for a request without pages.
var ErrNoPages = errors.New("build has no pages")

// DefaultBackends returns every built-in backend keyed by format name.
func DefaultBackends() map[string]export.Backend {
	out := map[string]export.Backend{}
	for _, b := range []export.Backend{jats.New(), latex.New(), typst.New(), docx.New(), jsontree.New()} {
		out[b.Name()] = b
	}
	return out
}

// Options are the build defaults a request may override.
type Options struct {
	Numbering   xref.Numbering
	TOCDepth    int
	PageWorkers int
}

// Worker runs project builds.
type Worker struct {
	log      *slog.Logger
	recorder metrics.Recorder
	opts     Options
	backends map[string]export.Backend
}

func NewWorker(opts Options, recorder metrics.Recorder, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if opts.PageWorkers <= 0 {
		opts.PageWorkers = 1
	}
	return &Worker{
		log:      log,
		recorder: recorder,
		opts:     opts,
		backends: DefaultBackends(),
	}
}

// WithBackend registers or replaces a backend.
func (w *Worker) WithBackend(b export.Backend) *Worker {
	w.backends[b.Name()] = b
	return w
}

// Formats reports whether every name is a registered backend and returns
// the first unknown one otherwise.
func (w *Worker) Formats(names []string) (string, bool) {
	for _, f := range names {
		if _, ok := w.backends[f]; !ok {
			return f, false
		}
	}
	return "", true
}

// Process runs the full build for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With(logfields.BuildID(job.ID))
	start := time.Now()

	out, err := w.build(ctx, job.Request, job, log)
	if out != nil {
		job.SetOutput(out)
	}
	w.recorder.ObserveBuildDuration(time.Since(start))

	status := StatusCompleted
	switch {
	case err != nil:
		job.AddError(err.Error())
		status = StatusFailed
		log.Error("build failed", logfields.Error(err))
	default:
		ok, failed := 0, 0
		for _, p := range out.Pages {
			if p.OK() {
				ok++
			} else {
				failed++
			}
			if p.Error != "" {
				job.AddError(fmt.Sprintf("%s: %s", p.File, p.Error))
			}
		}
		switch {
		case ok == 0:
			status = StatusFailed
		case failed > 0:
			status = StatusPartial
		}
	}
	w.recorder.IncBuildOutcome(string(status))
	job.SetStatus(status, "done")
	log.Info("build finished", slog.String("status", string(status)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}

// Build runs a build outside the job queue.
func (w *Worker) Build(ctx context.Context, req Request) (*Output, error) {
	return w.build(ctx, req, nil, w.log)
}

func (w *Worker) build(ctx context.Context, req Request, job *Job, log *slog.Logger) (*Output, error) {
	if len(req.Pages) == 0 {
		return nil, ErrNoPages
	}
	req.Formats = req.formats()
	if f, ok := w.Formats(req.Formats); !ok {
		return nil, fmt.Errorf("unknown format %q", f)
	}
	numbering := w.opts.Numbering
	if req.Numbering != nil {
		numbering = *req.Numbering
	}
	tocDepth := req.TOCDepth
	if tocDepth <= 0 {
		tocDepth = w.opts.TOCDepth
	}
	setStatus := func(s JobStatus, phase string) {
		if job != nil {
			job.SetStatus(s, phase)
		}
	}

	// Phase 1: parse every page. Returning from Parallel is the first
	// barrier: no page is enumerated before every tree exists.
	setStatus(StatusParsing, "parsing")
	stage := time.Now()
	pages := make([]*xref.Page, len(req.Pages))
	fronts := make([]parser.Frontmatter, len(req.Pages))
	err := xref.Parallel(ctx, len(req.Pages), w.opts.PageWorkers, func(i int) {
		pages[i], fronts[i] = w.parsePage(req.Pages[i], numbering, log)
	})
	w.recorder.ObserveStageDuration("parse", time.Since(stage))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	log.Info("pages parsed", logfields.Pages(len(pages)))

	refs := citation.NewRegistry()
	for _, fm := range fronts {
		for _, work := range fm.References {
			refs.Add(work.Key, work)
		}
	}

	// Phase 2: enumerate, check duplicates and resolve.
	setStatus(StatusResolving, "resolving")
	stage = time.Now()
	project := xref.NewProject(log)
	err = project.Build(ctx, pages, w.opts.PageWorkers)
	w.recorder.ObserveStageDuration("resolve", time.Since(stage))
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	// Phase 3: export every page in every requested format.
	setStatus(StatusExporting, "exporting")
	stage = time.Now()
	results := make([]*PageResult, len(pages))
	err = xref.Parallel(ctx, len(pages), w.opts.PageWorkers, func(i int) {
		results[i] = w.exportPage(ctx, pages[i], req.Pages[i], req.Formats, refs, tocDepth, log)
	})
	w.recorder.ObserveStageDuration("export", time.Since(stage))
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	out := &Output{
		Pages:       results,
		Xref:        project.XrefIndex(),
		TOC:         project.TOC(tocDepth),
		Index:       project.GeneralIndex(),
		Diagnostics: project.Diags.Sorted(),
	}
	for _, d := range out.Diagnostics {
		w.recorder.AddDiagnostics(d.RuleID, 1)
	}
	for _, r := range results {
		w.recordPage(r)
	}
	return out, nil
}

// parsePage parses one input page. Parse failures are kept on the page so
// the rest of the project still builds.
func (w *Worker) parsePage(in PageInput, base xref.Numbering, log *slog.Logger) (*xref.Page, parser.Frontmatter) {
	diags := diag.NewCollector(in.File)
	pg := &xref.Page{
		File:      in.File,
		URL:       pageURL(in),
		Title:     in.Title,
		Level:     in.Level,
		Numbering: base,
		Diags:     diags,
	}
	p, err := parser.ForFile(in.File, log)
	if err != nil {
		pg.Err = diag.Wrap(err, diag.CategoryParse, "unsupported page").WithContext("file", in.File)
		return pg, parser.Frontmatter{}
	}
	doc, err := p.Parse(strings.NewReader(in.Content), in.File, diags)
	if err != nil {
		pg.Err = diag.Wrap(err, diag.CategoryParse, "parse failed").WithContext("file", in.File)
		log.Warn("page parse failed", logfields.File(in.File), logfields.Error(err))
		return pg, parser.Frontmatter{}
	}
	pg.Tree = doc.Tree
	if pg.Title == "" {
		pg.Title = doc.Title
	}
	pg.Numbering = MergeNumbering(base, doc.Frontmatter.Numbering)
	return pg, doc.Frontmatter
}

func (w *Worker) exportPage(ctx context.Context, pg *xref.Page, in PageInput, formats []string, refs citation.Source, tocDepth int, log *slog.Logger) *PageResult {
	res := &PageResult{
		File:        pg.File,
		URL:         pg.URL,
		Title:       pg.Title,
		ContentHash: ContentHashHex([]byte(in.Content)),
		Outputs:     map[string]*export.Result{},
	}
	defer func() {
		if pg.Diags != nil {
			res.Diagnostics = pg.Diags.Sorted()
		}
	}()
	if !pg.OK() {
		if pg.Err != nil {
			res.Error = pg.Err.Error()
		}
		return res
	}
	if pg.State != nil {
		res.TOC = xref.PageTOC(pg.State, tocDepth)
	}

	doc := &export.Document{File: pg.File, Title: pg.Title, Tree: pg.Tree, Citations: refs}
	var failed []string
	for _, f := range formats {
		start := time.Now()
		bd := diag.NewCollector(pg.File)
		r, err := w.backends[f].Export(ctx, doc, bd, log)
		pg.Diags.MergeUnique(bd)
		if err != nil {
			res.canceled = res.canceled || errors.Is(err, context.Canceled)
			failed = append(failed, fmt.Sprintf("%s: %s", f, err))
			log.Warn("export failed", logfields.File(pg.File), logfields.Backend(f), logfields.Error(err))
			continue
		}
		res.Outputs[f] = r
		log.Debug("page exported", logfields.File(pg.File), logfields.Backend(f),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	}
	if len(failed) > 0 {
		res.Error = strings.Join(failed, "; ")
	}
	return res
}

func (w *Worker) recordPage(r *PageResult) {
	for _, d := range r.Diagnostics {
		w.recorder.AddDiagnostics(d.RuleID, 1)
	}
	switch {
	case r.canceled:
		w.recorder.IncPageResult(metrics.ResultCanceled)
	case r.Error != "":
		w.recorder.IncPageResult(metrics.ResultFatal)
	case len(r.Diagnostics) > 0:
		w.recorder.IncPageResult(metrics.ResultWarning)
	default:
		w.recorder.IncPageResult(metrics.ResultSuccess)
	}
}

// MergeNumbering applies page front matter switches on top of base.
func MergeNumbering(base xref.Numbering, flags *parser.NumberingFlags) xref.Numbering {
	if flags == nil {
		return base
	}
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&base.Headings, flags.Headings)
	set(&base.Figures, flags.Figures)
	set(&base.Tables, flags.Tables)
	set(&base.Equations, flags.Equations)
	set(&base.Code, flags.Code)
	return base
}

// pageURL is the page's URL, derived from its file name when unset.
func pageURL(in PageInput) string {
	if in.URL != "" {
		return in.URL
	}
	name := in.File
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return "/" + strings.TrimPrefix(name, "/")
}
