// Package diag collects build diagnostics: recoverable problems found while
// building, resolving or exporting a page. Diagnostics are data; they never
// stop sibling nodes or sibling pages.
package diag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dgallion1/doccompile/internal/doctree"
)

// Severity indicates the importance level of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets severities serialize by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Stable rule identifiers used for filtering.
const (
	RuleUnhandledNode         = "unhandled-node"
	RuleUnhandledToken        = "unhandled-token"
	RuleIndexEntryInvalid     = "index-entry-invalid"
	RuleIndexEntryEmpty       = "index-entry-empty"
	RuleUnresolvedReference   = "unresolved-reference"
	RuleDuplicateIdentifier   = "duplicate-identifier"
	RuleDuplicateProjectLabel = "duplicate-identifier-project"
	RuleCitationMissing       = "citation-missing"
	RuleFrontmatterInvalid    = "frontmatter-invalid"
	RuleEngineContract        = "engine-contract"
)

// Diagnostic is one problem attached to a source span.
type Diagnostic struct {
	File     string            `json:"file,omitempty"`
	Severity Severity          `json:"severity"`
	RuleID   string            `json:"ruleId"`
	Message  string            `json:"message"`
	Note     string            `json:"note,omitempty"`
	Position *doctree.Position `json:"position,omitempty"`
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Position != nil {
		loc = fmt.Sprintf("%s:%d", d.File, d.Position.Start.Line)
	}
	if loc != "" {
		return fmt.Sprintf("%s: %s: %s [%s]", loc, d.Severity, d.Message, d.RuleID)
	}
	return fmt.Sprintf("%s: %s [%s]", d.Severity, d.Message, d.RuleID)
}

// Collector accumulates diagnostics for one page or one project. It is safe
// for concurrent use so per-page workers can share a project collector.
type Collector struct {
	mu    sync.Mutex
	file  string
	items []Diagnostic
}

// NewCollector returns a collector that stamps File on every diagnostic that
// does not name one.
func NewCollector(file string) *Collector {
	return &Collector{file: file}
}

// Report records d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d.File == "" {
		d.File = c.file
	}
	c.items = append(c.items, d)
}

// Warn records a warning for node n (which may be nil).
func (c *Collector) Warn(rule string, n *doctree.Node, format string, args ...any) {
	c.Report(Diagnostic{Severity: SeverityWarning, RuleID: rule, Message: fmt.Sprintf(format, args...), Position: positionOf(n)})
}

// Error records an error-severity diagnostic for node n (which may be nil).
func (c *Collector) Error(rule string, n *doctree.Node, format string, args ...any) {
	c.Report(Diagnostic{Severity: SeverityError, RuleID: rule, Message: fmt.Sprintf(format, args...), Position: positionOf(n)})
}

// Merge appends every diagnostic held by other.
func (c *Collector) Merge(other *Collector) {
	if other == nil || other == c {
		return
	}
	for _, d := range other.All() {
		c.Report(d)
	}
}

// MergeUnique appends the diagnostics held by other that c does not already
// carry. Two diagnostics match when file, rule, message and position agree.
func (c *Collector) MergeUnique(other *Collector) {
	if other == nil || other == c {
		return
	}
	incoming := other.All()
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[dedupKey]bool, len(c.items))
	for _, d := range c.items {
		seen[keyOf(d)] = true
	}
	for _, d := range incoming {
		if d.File == "" {
			d.File = c.file
		}
		if seen[keyOf(d)] {
			continue
		}
		c.items = append(c.items, d)
	}
}

type dedupKey struct {
	file, rule, message string
	pos                 doctree.Position
	hasPos              bool
}

func keyOf(d Diagnostic) dedupKey {
	k := dedupKey{file: d.File, rule: d.RuleID, message: d.Message}
	if d.Position != nil {
		k.pos, k.hasPos = *d.Position, true
	}
	return k
}

// All returns a copy of the collected diagnostics in report order.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.items...)
}

// Len returns the number of diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// ByRule returns the diagnostics matching rule.
func (c *Collector) ByRule(rule string) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.All() {
		if d.RuleID == rule {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors returns true if any error-level diagnostic exists.
func (c *Collector) HasErrors() bool {
	for _, d := range c.All() {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Sorted returns the diagnostics ordered by file then line, keeping report
// order for ties.
func (c *Collector) Sorted() []Diagnostic {
	items := c.All()
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].File != items[j].File {
			return items[i].File < items[j].File
		}
		return line(items[i]) < line(items[j])
	})
	return items
}

func line(d Diagnostic) int {
	if d.Position == nil {
		return 0
	}
	return d.Position.Start.Line
}

func positionOf(n *doctree.Node) *doctree.Position {
	if n == nil || n.Position == nil {
		return nil
	}
	p := *n.Position
	return &p
}
