package xref

import (
	"strconv"
	"strings"

	"github.com/dgallion1/doccompile/internal/doctree"
)

// Target kinds with their own counters.
const (
	KindHeading  = "heading"
	KindFigure   = "figure"
	KindTable    = "table"
	KindEquation = "equation"
	KindCode     = "code"
	KindPage     = "page"
	KindTarget   = "target"
)

// Numbering selects which target kinds receive enumerators.
type Numbering struct {
	Headings  bool `json:"headings" yaml:"headings"`
	Figures   bool `json:"figures" yaml:"figures"`
	Tables    bool `json:"tables" yaml:"tables"`
	Equations bool `json:"equations" yaml:"equations"`
	Code      bool `json:"code" yaml:"code"`
}

// DefaultNumbering numbers everything except headings.
func DefaultNumbering() Numbering {
	return Numbering{Figures: true, Tables: true, Equations: true, Code: true}
}

func (n Numbering) enabled(kind string) bool {
	switch kind {
	case KindHeading:
		return n.Headings
	case KindFigure:
		return n.Figures
	case KindTable:
		return n.Tables
	case KindEquation:
		return n.Equations
	case KindCode:
		return n.Code
	}
	return false
}

const maxHeadingDepth = 6

// counters hands out enumerators for one page.
type counters struct {
	headings [maxHeadingDepth]int
	kinds    map[string]int
}

func newCounters() *counters {
	return &counters{kinds: make(map[string]int)}
}

// heading advances the counter for depth, clears every deeper level and
// returns the dotted label. Levels that were never set are left out, so a
// depth-2 heading before any depth-1 heading is "1", not "0.1".
func (c *counters) heading(depth int) string {
	depth = min(max(depth, 1), maxHeadingDepth)
	c.headings[depth-1]++
	for i := depth; i < maxHeadingDepth; i++ {
		c.headings[i] = 0
	}
	parts := make([]string, 0, depth)
	for _, v := range c.headings[:depth] {
		if v > 0 {
			parts = append(parts, strconv.Itoa(v))
		}
	}
	return strings.Join(parts, ".")
}

func (c *counters) next(kind string) string {
	c.kinds[kind]++
	return strconv.Itoa(c.kinds[kind])
}

// numberedKind returns the counter a node advances, or "" when the node is
// never numbered.
func numberedKind(n *doctree.Node) string {
	switch n.Type {
	case doctree.KindHeading:
		return KindHeading
	case doctree.KindContainer:
		switch k := n.Attrs.String("kind"); k {
		case KindFigure, KindTable, KindCode:
			return k
		}
	case doctree.KindMath:
		return KindEquation
	case doctree.KindCode:
		if n.Identifier != "" {
			return KindCode
		}
	case doctree.KindTable:
		if n.Identifier != "" {
			return KindTable
		}
	}
	return ""
}

// targetKind is the reference kind of a node carrying an identifier, or ""
// when the node names something else (a citation, a footnote, a reference).
func targetKind(n *doctree.Node) string {
	if k := numberedKind(n); k != "" {
		return k
	}
	switch n.Type {
	case doctree.KindContainer:
		if k := n.Attrs.String("kind"); k != "" {
			return k
		}
		return string(doctree.KindContainer)
	case doctree.KindRoot:
		return KindPage
	case doctree.KindMystTarget:
		return KindTarget
	case doctree.KindCrossReference, doctree.KindBrokenReference, doctree.KindCite,
		doctree.KindCiteGroup, doctree.KindFootnoteReference, doctree.KindFootnoteDefinition:
		return ""
	}
	return string(n.Type)
}
