package xref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/logfields"
)

// ErrNoTree marks a page that reached resolution without a tree.
var ErrNoTree = errors.New("page has no tree")

// Page is one project page. The project reads Tree and the metadata, and
// owns State once Build starts.
type Page struct {
	File      string
	URL       string
	DataURL   string
	Title     string
	Level     int
	Tree      *doctree.Node
	Numbering Numbering
	Diags     *diag.Collector

	State *State
	Err   error
}

// OK reports whether the page is still part of the build.
func (p *Page) OK() bool { return p.Err == nil && p.Tree != nil }

// Project holds every page of one build in project order.
type Project struct {
	Pages []*Page
	Diags *diag.Collector
	log   *slog.Logger
}

// NewProject returns an empty project.
func NewProject(log *slog.Logger) *Project {
	if log == nil {
		log = slog.Default()
	}
	return &Project{Diags: diag.NewCollector(""), log: log}
}

// Add appends a page in project order.
func (p *Project) Add(pages ...*Page) { p.Pages = append(p.Pages, pages...) }

// Build enumerates every page, checks identifiers across pages and resolves
// every cross-reference. Pages must already carry their trees: the caller's
// tree-building fan-out is the first barrier, the end of Enumerate the
// second.
func (p *Project) Build(ctx context.Context, pages []*Page, workers int) error {
	p.Add(pages...)
	if err := p.Enumerate(ctx, workers); err != nil {
		return err
	}
	p.CheckDuplicates()
	return p.Resolve(ctx, workers)
}

// Enumerate builds each page's State in parallel and returns once all of
// them are stable.
func (p *Project) Enumerate(ctx context.Context, workers int) error {
	return Parallel(ctx, len(p.Pages), workers, func(i int) {
		pg := p.Pages[i]
		if pg.Tree == nil && pg.Err == nil {
			pg.Err = fmt.Errorf("%s: %w", pg.File, ErrNoTree)
		}
		if !pg.OK() {
			return
		}
		if pg.Diags == nil {
			pg.Diags = diag.NewCollector(pg.File)
		}
		pg.State = NewState(pg.File, pg.URL, pg.Title, pg.Tree, pg.Numbering, pg.Diags)
		pg.State.DataURL = pg.DataURL
		pg.State.Enumerate()
		p.log.Debug("page enumerated", logfields.File(pg.File), slog.Int("targets", len(pg.State.Identifiers)))
	})
}

// States returns the enumerated page states in project order.
func (p *Project) States() []*State {
	out := make([]*State, 0, len(p.Pages))
	for _, pg := range p.Pages {
		if pg.OK() && pg.State != nil {
			out = append(out, pg.State)
		}
	}
	return out
}

// CheckDuplicates reports every explicit identifier declared on more than
// one page, once, naming every owning file. References to such identifiers
// still resolve to the first page in project order.
func (p *Project) CheckDuplicates() {
	owners := map[string][]string{}
	var order []string
	for _, s := range p.States() {
		for _, id := range s.Identifiers {
			t := s.Targets[id]
			if t == nil || t.Implicit || t.Kind == KindPage {
				continue
			}
			if _, seen := owners[id]; !seen {
				order = append(order, id)
			}
			owners[id] = append(owners[id], s.File)
		}
	}
	for _, id := range order {
		files := owners[id]
		if len(files) < 2 {
			continue
		}
		p.Diags.Report(diag.Diagnostic{
			File:     files[0],
			Severity: diag.SeverityWarning,
			RuleID:   diag.RuleDuplicateProjectLabel,
			Message:  fmt.Sprintf("identifier %q is declared in %d pages; references use %s", id, len(files), files[0]),
			Note:     "declared in: " + strings.Join(files, ", "),
		})
	}
}

// Resolve rewrites the cross-references of every page in parallel.
func (p *Project) Resolve(ctx context.Context, workers int) error {
	resolver := NewResolver(p.States(), p.log)
	return Parallel(ctx, len(p.Pages), workers, func(i int) {
		pg := p.Pages[i]
		if !pg.OK() || pg.State == nil {
			return
		}
		resolved, broken := resolver.Resolve(pg.State, pg.Diags)
		p.log.Debug("page resolved", logfields.File(pg.File),
			slog.Int("resolved", resolved), slog.Int("broken", broken))
	})
}

// Parallel calls fn for 0..n-1 with at most workers calls in flight. It
// stops scheduling once ctx is done and waits for calls already running.
func Parallel(ctx context.Context, n, workers int, fn func(i int)) error {
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var err error
	for i := range n {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
	return err
}
