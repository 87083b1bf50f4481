package xref

import (
	"log/slog"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/logfields"
)

// Resolver looks identifiers up across pages. Pages are searched in the
// order they were given; the page doing the lookup is always searched
// first.
type Resolver struct {
	pages []*State
	log   *slog.Logger
}

// NewResolver returns a resolver over pages, which must all be enumerated.
func NewResolver(pages []*State, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{pages: pages, log: log}
}

// Lookup finds identifier starting from page from, which may be nil.
func (r *Resolver) Lookup(from *State, identifier string) (*Target, *State, bool) {
	if from != nil {
		if t, ok := from.Lookup(identifier); ok {
			return t, from, true
		}
	}
	for _, p := range r.pages {
		if p == from {
			continue
		}
		if t, ok := p.Lookup(identifier); ok {
			return t, p, true
		}
	}
	return nil, nil, false
}

// Resolve rewrites every crossReference in page's tree. Resolved nodes gain
// kind, enumerator and (for other pages) url attributes plus default text;
// unresolved ones become brokenReference nodes.
func (r *Resolver) Resolve(page *State, diags *diag.Collector) (resolved, broken int) {
	if diags == nil {
		diags = page.diags
	}
	doctree.Walk(page.tree, func(n, _ *doctree.Node) doctree.WalkStatus {
		if n.Type != doctree.KindCrossReference {
			return doctree.WalkContinue
		}
		t, owner, ok := r.Lookup(page, n.Identifier)
		if !ok {
			markBroken(n)
			diags.Warn(diag.RuleUnresolvedReference, n, "cross-reference target %q not found", n.Label)
			r.log.Debug("unresolved reference", logfields.File(page.File), logfields.Identifier(n.Identifier))
			broken++
			return doctree.WalkSkipChildren
		}
		apply(n, t, owner, owner != page)
		resolved++
		return doctree.WalkSkipChildren
	})
	return resolved, broken
}

func markBroken(n *doctree.Node) {
	n.Type = doctree.KindBrokenReference
	if len(n.Children) == 0 {
		label := n.Label
		if label == "" {
			label = n.Identifier
		}
		n.AppendChild(doctree.NewText(label))
	}
}

func apply(n *doctree.Node, t *Target, owner *State, remote bool) {
	n.SetAttr("kind", t.Kind)
	n.SetAttr("resolved", true)
	if t.Enumerator != "" {
		n.SetAttr("enumerator", t.Enumerator)
	}
	if remote {
		n.SetAttr("url", owner.URL)
		n.SetAttr("file", owner.File)
	}
	if len(n.Children) == 0 {
		n.AppendChild(doctree.NewText(defaultText(t, n.Attrs.String("role"))))
		return
	}
	fillTemplate(n, t)
}

// fillTemplate substitutes "%s" and "{number}" with the enumerator and
// "{name}" with the target title inside explicit reference text.
func fillTemplate(n *doctree.Node, t *Target) {
	r := strings.NewReplacer("%s", t.Enumerator, "{number}", t.Enumerator, "{name}", t.Title)
	doctree.Walk(n, func(c, _ *doctree.Node) doctree.WalkStatus {
		if c.Type == doctree.KindText {
			c.Value = r.Replace(c.Value)
		}
		return doctree.WalkContinue
	})
}

var kindNames = map[string]string{
	KindFigure:   "Figure",
	KindTable:    "Table",
	KindEquation: "Equation",
	KindCode:     "Program",
	KindHeading:  "Section",
}

// defaultText is the link text of a reference written without any.
func defaultText(t *Target, role string) string {
	if t.Enumerator != "" {
		if t.Kind == KindEquation {
			if role == "eq" {
				return "(" + t.Enumerator + ")"
			}
			return "Equation (" + t.Enumerator + ")"
		}
		if name, ok := kindNames[t.Kind]; ok && (t.Kind != KindHeading || role == "numref" || t.Title == "") {
			return name + " " + t.Enumerator
		}
	}
	if t.Title != "" {
		return t.Title
	}
	return t.Identifier
}
