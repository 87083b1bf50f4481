// Package xref numbers reference targets and resolves cross-references,
// within one page and across every page of a project.
package xref

import (
	"fmt"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/indexentry"
)

// Target is one resolvable identifier on a page.
type Target struct {
	Identifier string        `json:"identifier"`
	Kind       string        `json:"kind"`
	Node       *doctree.Node `json:"-"`
	Enumerator string        `json:"enumerator,omitempty"`
	Implicit   bool          `json:"implicit,omitempty"`
	Title      string        `json:"title,omitempty"`
}

// IndexMark is one index node with the heading it appears under.
type IndexMark struct {
	Entries []indexentry.Entry
	Anchor  string
}

// State is the reference table of one page. It is written only while the
// page is enumerated and is read-only afterwards.
type State struct {
	File    string `json:"file"`
	URL     string `json:"url"`
	DataURL string `json:"dataUrl,omitempty"`
	Title   string `json:"title"`

	Targets     map[string]*Target `json:"targets"`
	Identifiers []string           `json:"identifiers"`
	Headings    []*Target          `json:"-"`
	Marks       []IndexMark        `json:"-"`

	tree      *doctree.Node
	numbering Numbering
	diags     *diag.Collector
}

// NewState returns an empty state for tree. Call Enumerate to fill it.
func NewState(file, url, title string, tree *doctree.Node, numbering Numbering, diags *diag.Collector) *State {
	if diags == nil {
		diags = diag.NewCollector(file)
	}
	return &State{
		File:      file,
		URL:       url,
		Title:     title,
		Targets:   make(map[string]*Target),
		tree:      tree,
		numbering: numbering,
		diags:     diags,
	}
}

// Tree returns the page tree the state describes.
func (s *State) Tree() *doctree.Node { return s.tree }

// Lookup returns the target for identifier.
func (s *State) Lookup(identifier string) (*Target, bool) {
	t, ok := s.Targets[identifier]
	return t, ok
}

// Rebuild discards the table and enumerates the tree again after the tree
// changed. Diagnostics already reported are not repeated.
func (s *State) Rebuild() {
	s.Targets = make(map[string]*Target)
	s.Identifiers = nil
	s.Headings = nil
	s.Marks = nil
	diags := s.diags
	s.diags = diag.NewCollector(s.File)
	s.Enumerate()
	diags.MergeUnique(s.diags)
	s.diags = diags
}

// Enumerate attaches "(label)=" targets, numbers targets and fills the
// table in document order.
func (s *State) Enumerate() {
	if s.tree == nil {
		return
	}
	attachTargets(s.tree)
	c := newCounters()
	anchor := ""
	doctree.Walk(s.tree, func(n, _ *doctree.Node) doctree.WalkStatus {
		if n.Type == doctree.KindIndex {
			if entries, ok := n.Attrs["indexEntries"].([]indexentry.Entry); ok && len(entries) > 0 {
				a := anchor
				if n.Identifier != "" {
					a = n.Identifier
				}
				s.Marks = append(s.Marks, IndexMark{Entries: entries, Anchor: a})
			}
		}
		kind := numberedKind(n)
		if kind != "" {
			s.number(c, n, kind)
		}
		if n.Identifier == "" || n.Attrs.Bool("attached") {
			return doctree.WalkContinue
		}
		if kind == "" {
			kind = targetKind(n)
		}
		if kind == "" {
			return doctree.WalkContinue
		}
		t := s.add(n, kind)
		if t != nil && n.Type == doctree.KindHeading {
			anchor = t.Identifier
		}
		return doctree.WalkContinue
	})
	if s.tree.Type == doctree.KindRoot && s.tree.Identifier != "" {
		if t, ok := s.Targets[s.tree.Identifier]; ok {
			t.Title = s.Title
		}
	}
}

func (s *State) number(c *counters, n *doctree.Node, kind string) {
	if !n.Enumerated() || !s.numbering.enabled(kind) {
		n.DeleteAttr("enumerator")
		return
	}
	var e string
	if kind == KindHeading {
		e = c.heading(n.Depth())
	} else {
		e = c.next(kind)
	}
	n.SetAttr("enumerator", e)
}

// add registers n. Explicit duplicates keep the first declaration and are
// reported; implicit heading slugs are suffixed until unique instead.
func (s *State) add(n *doctree.Node, kind string) *Target {
	implicit := n.Attrs.Bool("implicit")
	if prev, ok := s.Targets[n.Identifier]; ok {
		switch {
		case implicit:
			n.Identifier = s.uniqueSlug(n.Identifier)
		case prev.Implicit:
			s.rename(prev)
		default:
			s.diags.Warn(diag.RuleDuplicateIdentifier, n,
				"duplicate identifier %q (first declared on line %d)", n.Identifier, line(prev.Node))
			return nil
		}
	}
	t := &Target{
		Identifier: n.Identifier,
		Kind:       kind,
		Node:       n,
		Enumerator: n.Enumerator(),
		Implicit:   implicit,
		Title:      targetTitle(n),
	}
	s.Targets[t.Identifier] = t
	s.Identifiers = append(s.Identifiers, t.Identifier)
	if n.Type == doctree.KindHeading {
		s.Headings = append(s.Headings, t)
	}
	return t
}

// rename moves an implicit target out of the way of an explicit one.
func (s *State) rename(t *Target) {
	old := t.Identifier
	t.Identifier = s.uniqueSlug(old)
	t.Node.Identifier = t.Identifier
	delete(s.Targets, old)
	s.Targets[t.Identifier] = t
	for i, id := range s.Identifiers {
		if id == old {
			s.Identifiers[i] = t.Identifier
			break
		}
	}
}

func (s *State) uniqueSlug(base string) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, taken := s.Targets[candidate]; !taken {
			return candidate
		}
	}
}

func line(n *doctree.Node) int {
	if n == nil || n.Position == nil {
		return 0
	}
	return n.Position.Start.Line
}

// targetTitle is the display title of a target: heading text, or the text
// of a container's caption.
func targetTitle(n *doctree.Node) string {
	switch n.Type {
	case doctree.KindHeading:
		return strings.TrimSpace(doctree.TextContent(n))
	case doctree.KindContainer, doctree.KindAdmonition:
		for _, c := range n.Children {
			if c.Type == doctree.KindCaption || c.Type == doctree.KindAdmonitionTitle {
				return strings.TrimSpace(doctree.TextContent(c))
			}
		}
	}
	return ""
}

// attachTargets moves the label of each "(label)=" line onto the block that
// follows it. A target with nothing after it stays a target of its own.
func attachTargets(root *doctree.Node) {
	doctree.Walk(root, func(n, _ *doctree.Node) doctree.WalkStatus {
		for i, c := range n.Children {
			if c.Type != doctree.KindMystTarget || c.Identifier == "" || c.Attrs.Bool("attached") {
				continue
			}
			next := nextBlock(n.Children[i+1:])
			if next == nil {
				continue
			}
			if next.Identifier != "" && !next.Attrs.Bool("implicit") {
				continue
			}
			next.Identifier, next.Label = c.Identifier, c.Label
			next.DeleteAttr("implicit")
			c.SetAttr("attached", true)
		}
		return doctree.WalkContinue
	})
}

func nextBlock(siblings []*doctree.Node) *doctree.Node {
	for _, s := range siblings {
		switch s.Type {
		case doctree.KindMystTarget, doctree.KindComment:
			continue
		}
		return s
	}
	return nil
}
