// Package exporttest builds the fixture documents shared by the backend
// tests.
package exporttest

import (
	"github.com/dgallion1/doccompile/internal/citation"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/export"
)

// Works is the bibliography of Sample.
func Works() *citation.Registry {
	return citation.NewRegistry(citation.Work{
		Key:       "doe2020",
		Entry:     "Doe, J. (2020). On cats.",
		InText:    "Doe, 2020",
		DOIString: "https://doi.org/10.1000/cats",
	})
}

func text(v string) *doctree.Node { return doctree.NewText(v) }

func with(n *doctree.Node, attrs doctree.Attrs) *doctree.Node {
	for k, v := range attrs {
		n.SetAttr(k, v)
	}
	return n
}

// Sample is a resolved page exercising headings, inline markup, a numbered
// figure and equation, a list, a footnote, a citation and a resolved
// cross-reference.
func Sample() *export.Document {
	h := with(doctree.New(doctree.KindHeading, text("Intro")), doctree.Attrs{"depth": 1, "enumerator": "1"})
	h.Identifier, h.Label = "intro", "intro"

	xref := with(doctree.New(doctree.KindCrossReference, text("Figure 1")),
		doctree.Attrs{"kind": "figure", "resolved": true, "enumerator": "1"})
	xref.Identifier, xref.Label = "fig-cat", "fig-cat"

	fnRef := &doctree.Node{Type: doctree.KindFootnoteReference, Identifier: "1", Label: "1"}
	cite := &doctree.Node{Type: doctree.KindCite, Identifier: "doe2020", Label: "doe2020"}
	cites := with(doctree.New(doctree.KindCiteGroup, cite), doctree.Attrs{"kind": "parenthetical"})

	para := doctree.New(doctree.KindParagraph,
		text("Cats & dogs < birds "),
		doctree.New(doctree.KindEmphasis, text("fast")),
		text(" and "),
		doctree.New(doctree.KindStrong, text("bold")),
		fnRef,
		text(" see "),
		xref,
		text(" "),
		cites,
	)

	fig := with(doctree.New(doctree.KindContainer,
		&doctree.Node{Type: doctree.KindImage, Attrs: doctree.Attrs{"url": "cat.png", "alt": "A cat"}},
		doctree.New(doctree.KindCaption, doctree.New(doctree.KindParagraph, text("A cat."))),
	), doctree.Attrs{"kind": "figure", "enumerator": "1"})
	fig.Identifier, fig.Label = "fig-cat", "fig-cat"

	eq := &doctree.Node{Type: doctree.KindMath, Value: "E = mc^2", Identifier: "eq-energy", Label: "eq-energy",
		Attrs: doctree.Attrs{"enumerator": "1"}}

	list := with(doctree.New(doctree.KindList,
		doctree.New(doctree.KindListItem, text("one")),
		doctree.New(doctree.KindListItem, text("two")),
	), doctree.Attrs{"ordered": false})

	note := doctree.New(doctree.KindFootnoteDefinition, doctree.New(doctree.KindParagraph, text("A note.")))
	note.Identifier, note.Label = "1", "1"

	return &export.Document{
		File:      "intro.md",
		Title:     "Cats",
		Tree:      doctree.New(doctree.KindRoot, h, para, fig, eq, list, note),
		Citations: Works(),
	}
}

// Widget is a page holding an unregistered "widget" node with two children
// between two ordinary paragraphs. The widget starts on line 3.
func Widget() *export.Document {
	w := doctree.New("widget",
		doctree.New(doctree.KindParagraph, text("hidden one")),
		doctree.New(doctree.KindParagraph, text("hidden two")),
	)
	w.Position = &doctree.Position{Start: doctree.Point{Line: 3}, End: doctree.Point{Line: 5}}
	return &export.Document{
		File:  "widget.md",
		Title: "Widget",
		Tree: doctree.New(doctree.KindRoot,
			doctree.New(doctree.KindParagraph, text("before")),
			w,
			doctree.New(doctree.KindParagraph, text("after")),
		),
	}
}

// MissingCite is a page citing a key absent from its bibliography.
func MissingCite() *export.Document {
	cite := &doctree.Node{Type: doctree.KindCite, Identifier: "nobody", Label: "nobody"}
	return &export.Document{
		File:  "cite.md",
		Title: "Cite",
		Tree: doctree.New(doctree.KindRoot,
			doctree.New(doctree.KindParagraph, text("As shown "),
				with(doctree.New(doctree.KindCiteGroup, cite), doctree.Attrs{"kind": "parenthetical"})),
		),
		Citations: Works(),
	}
}
