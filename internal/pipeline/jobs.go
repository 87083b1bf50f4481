package pipeline

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/export/jsontree"
	"github.com/dgallion1/doccompile/internal/xref"
)

// JobStatus represents the state of a build job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusResolving JobStatus = "resolving"
	StatusExporting JobStatus = "exporting"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// PageInput is one page of a build request, in project order.
type PageInput struct {
	File    string `json:"file"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Level   int    `json:"level,omitempty"`
	Content string `json:"content"`
}

// Request describes one project build.
type Request struct {
	Pages     []PageInput     `json:"pages"`
	Formats   []string        `json:"formats"`
	Numbering *xref.Numbering `json:"numbering,omitempty"`
	TOCDepth  int             `json:"toc_depth,omitempty"`
}

// formats returns the requested formats, the saved tree when none are given.
func (r Request) formats() []string {
	if len(r.Formats) == 0 {
		return []string{jsontree.Format}
	}
	return r.Formats
}

// PageResult is the outcome of one page.
type PageResult struct {
	File        string                    `json:"file"`
	URL         string                    `json:"url"`
	Title       string                    `json:"title"`
	ContentHash string                    `json:"content_hash"`
	TOC         []*xref.TOCEntry          `json:"toc,omitempty"`
	Outputs     map[string]*export.Result `json:"outputs"`
	Diagnostics []diag.Diagnostic         `json:"diagnostics"`
	Error       string                    `json:"error,omitempty"`

	canceled bool
}

// OK reports whether the page produced at least one output.
func (r *PageResult) OK() bool { return r.Error == "" && len(r.Outputs) > 0 }

// Output is everything a finished build produced.
type Output struct {
	Pages       []*PageResult     `json:"pages"`
	Xref        []xref.Record     `json:"xref"`
	TOC         []*xref.TOCEntry  `json:"toc"`
	Index       []*xref.Term      `json:"index"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// Page finds a page by file, by URL or by zero-based position.
func (o *Output) Page(key string) *PageResult {
	if o == nil {
		return nil
	}
	for _, p := range o.Pages {
		if p.File == key || strings.TrimPrefix(p.URL, "/") == strings.TrimPrefix(key, "/") {
			return p
		}
	}
	if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(o.Pages) {
		return o.Pages[i]
	}
	return nil
}

// Job tracks the state of a single project build.
type Job struct {
	mu sync.Mutex

	ID string `json:"build_id"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Request Request `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	output *Output
	errors []string
}

// NewJob returns a queued job for req.
func NewJob(req Request) *Job {
	now := time.Now()
	return &Job{
		ID:        NewBuildID(),
		Status:    StatusQueued,
		Phase:     "queued",
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetOutput stores the finished build.
func (j *Job) SetOutput(out *Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = out
	j.UpdatedAt = time.Now()
}

// Output returns the finished build, or nil while the job is running.
func (j *Job) Output() *Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

// PageSummary is the per-page part of a snapshot. Payloads are left out.
type PageSummary struct {
	File        string            `json:"file"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	ContentHash string            `json:"content_hash"`
	Formats     []string          `json:"formats"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Error       string            `json:"error,omitempty"`
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string            `json:"build_id"`
	Status      JobStatus         `json:"status"`
	Phase       string            `json:"phase"`
	Formats     []string          `json:"formats"`
	Pages       []PageSummary     `json:"pages"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Errors      []string          `json:"errors"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	snap := JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Formats:     append([]string{}, j.Request.formats()...),
		Pages:       []PageSummary{},
		Diagnostics: []diag.Diagnostic{},
		Errors:      errs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.output == nil {
		return snap
	}
	snap.Diagnostics = append(snap.Diagnostics, j.output.Diagnostics...)
	for _, p := range j.output.Pages {
		sum := PageSummary{
			File:        p.File,
			URL:         p.URL,
			Title:       p.Title,
			ContentHash: p.ContentHash,
			Formats:     []string{},
			Diagnostics: append([]diag.Diagnostic{}, p.Diagnostics...),
			Error:       p.Error,
		}
		for _, f := range j.Request.formats() {
			if _, ok := p.Outputs[f]; ok {
				sum.Formats = append(sum.Formats, f)
			}
		}
		snap.Pages = append(snap.Pages, sum)
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
