package jats

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/export/exporttest"
	"github.com/dgallion1/doccompile/internal/indexentry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, b *Backend, doc *export.Document) ([]byte, *diag.Collector) {
	t.Helper()
	diags := diag.NewCollector(doc.File)
	res, err := b.Export(context.Background(), doc, diags, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/jats+xml", res.ContentType)
	requireWellFormed(t, res.Payload)
	return res.Payload, diags
}

func requireWellFormed(t *testing.T, data []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		require.NoError(t, err, "output is not well-formed:\n%s", data)
	}
}

func TestExport_Sample(t *testing.T) {
	data, diags := render(t, New(), exporttest.Sample())
	out := string(data)

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<!DOCTYPE article PUBLIC`,
		`<article-title>Cats</article-title>`,
		`<sec id="intro"><title>1 Intro</title>`,
		`<p>Cats &amp; dogs &lt; birds <italic>fast</italic> and <bold>bold</bold>`,
		`<xref ref-type="fn" rid="fn-1">1</xref>`,
		`<xref ref-type="fig" rid="fig-cat">Figure 1</xref>`,
		`(<xref ref-type="bibr" rid="ref-doe2020">Doe, 2020</xref>)`,
		`<fig id="fig-cat"><label>Figure 1</label><caption><p>A cat.</p></caption><graphic xlink:href="cat.png">`,
		`<disp-formula id="eq-energy"><label>(1)</label><tex-math>E = mc^2</tex-math></disp-formula>`,
		`<list list-type="bullet"><list-item><p>one</p></list-item>`,
		`<fn id="fn-1"><label>1</label><p>A note.</p></fn>`,
		`<ref id="ref-doe2020"><mixed-citation>Doe, J. (2020). On cats. <pub-id pub-id-type="doi">10.1000/cats</pub-id>`,
	} {
		assert.Contains(t, out, want)
	}
	assert.Zero(t, diags.Len())
}

func TestExport_SectionsNestByDepth(t *testing.T) {
	h := func(depth int, id string) *doctree.Node {
		n := doctree.New(doctree.KindHeading, doctree.NewText(id))
		n.SetAttr("depth", depth)
		n.Identifier = id
		return n
	}
	p := func(v string) *doctree.Node { return doctree.New(doctree.KindParagraph, doctree.NewText(v)) }
	doc := &export.Document{File: "s.md", Title: "S", Tree: doctree.New(doctree.KindRoot,
		p("lead"), h(1, "a"), p("in a"), h(2, "b"), p("in b"), h(1, "c"))}

	data, _ := render(t, New(), doc)
	assert.Contains(t, string(data),
		`<body><p>lead</p><sec id="a"><title>a</title><p>in a</p><sec id="b"><title>b</title><p>in b</p></sec></sec><sec id="c"><title>c</title></sec></body>`)
}

func TestExport_UnknownKindSkipsSubtree(t *testing.T) {
	data, diags := render(t, New(), exporttest.Widget())
	assert.Contains(t, string(data), "<p>before</p><p>after</p>")
	assert.NotContains(t, string(data), "hidden")
	require.Equal(t, 1, diags.Len())
	assert.Equal(t, diag.RuleUnhandledNode, diags.All()[0].RuleID)
	assert.Equal(t, 3, diags.All()[0].Position.Start.Line)
}

func TestExport_AttributesEscaped(t *testing.T) {
	link := doctree.New(doctree.KindLink, doctree.NewText("q"))
	link.SetAttr("url", `https://x.org/?a=1&b="2"`)
	doc := &export.Document{File: "a.md", Title: `A "quoted" & <odd> title`,
		Tree: doctree.New(doctree.KindRoot, doctree.New(doctree.KindParagraph, link))}
	data, _ := render(t, New(), doc)
	assert.Contains(t, string(data), `xlink:href="https://x.org/?a=1&amp;b=&#34;2&#34;"`)
	assert.Contains(t, string(data), `<article-title>A &#34;quoted&#34; &amp; &lt;odd&gt; title</article-title>`)
}

func TestExport_IndexTerms(t *testing.T) {
	idx := &doctree.Node{Type: doctree.KindIndex, Attrs: doctree.Attrs{"indexEntries": []indexentry.Entry{
		{Entry: "cat", SubEntry: "tabby", Emphasis: true},
		{Entry: "kitten", SubEntry: "cat", See: true},
	}}}
	doc := &export.Document{File: "i.md", Tree: doctree.New(doctree.KindRoot,
		doctree.New(doctree.KindParagraph, idx, doctree.NewText("Cats.")))}
	data, _ := render(t, New(), doc)
	out := string(data)
	assert.Contains(t, out, `<index-term content-type="main"><term>cat</term><index-term><term>tabby</term></index-term></index-term>`)
	assert.Contains(t, out, `<index-term><term>kitten</term><see>cat</see></index-term>`)
}

func TestExport_RawHTMLBecomesText(t *testing.T) {
	raw := &doctree.Node{Type: doctree.KindHTML, Value: `<div class="x">Hello <b>there</b><script>bad()</script></div>`}
	doc := &export.Document{File: "h.md", Tree: doctree.New(doctree.KindRoot, raw)}
	data, _ := render(t, New(), doc)
	assert.Contains(t, string(data), "Hello there")
	assert.NotContains(t, string(data), "bad()")
}

// Leaf text written into the body comes back verbatim from the XML.
func TestRoundTrip_BodyTextPreserved(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	alphabet := []rune(`ab c&<>"'é;`)
	word := func() string {
		var sb strings.Builder
		for range 1 + rng.IntN(8) {
			sb.WriteRune(alphabet[rng.IntN(len(alphabet))])
		}
		return sb.String()
	}
	inline := []doctree.Kind{doctree.KindEmphasis, doctree.KindStrong, doctree.KindDelete}

	for range 50 {
		root := doctree.New(doctree.KindRoot)
		for range 1 + rng.IntN(4) {
			p := doctree.New(doctree.KindParagraph)
			for range 1 + rng.IntN(5) {
				if rng.IntN(2) == 0 {
					p.AppendChild(doctree.NewText(word()))
					continue
				}
				p.AppendChild(doctree.New(inline[rng.IntN(len(inline))], doctree.NewText(word())))
			}
			root.AppendChild(p)
		}
		want := doctree.TextContent(root)

		data, _ := render(t, New(), &export.Document{File: "r.md", Title: "T", Tree: root})
		got, err := BodyText(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestExport_EveryRidHasAnID(t *testing.T) {
	ref := func(id, kind string) *doctree.Node {
		n := doctree.New(doctree.KindCrossReference, doctree.NewText(id))
		n.Identifier, n.Label = id, id
		n.SetAttr("kind", kind)
		return n
	}
	labelled := func(n *doctree.Node, id string) *doctree.Node {
		n.Identifier, n.Label = id, id
		return n
	}
	note := labelled(doctree.New(doctree.KindFootnoteDefinition,
		doctree.New(doctree.KindParagraph, doctree.NewText("A note."))), "n1")
	note.Label = "1"
	idx := labelled(&doctree.Node{Type: doctree.KindIndex, Attrs: doctree.Attrs{"indexEntries": []indexentry.Entry{{Entry: "cat"}}}}, "idx-cat")

	tree := doctree.New(doctree.KindRoot,
		labelled(doctree.New(doctree.KindParagraph, doctree.NewText("Key claim.")), "claim"),
		labelled(doctree.New(doctree.KindAdmonition, doctree.New(doctree.KindParagraph, doctree.NewText("Careful."))), "warn"),
		labelled(doctree.New(doctree.KindList, doctree.New(doctree.KindListItem, doctree.NewText("one"))), "steps"),
		labelled(doctree.New(doctree.KindBlockquote, doctree.New(doctree.KindParagraph, doctree.NewText("Quoted."))), "quote"),
		labelled(doctree.New(doctree.KindParagraph, doctree.NewText("Again.")), "claim"),
		doctree.New(doctree.KindParagraph, idx),
		doctree.New(doctree.KindParagraph,
			ref("claim", "paragraph"), ref("warn", "admonition"), ref("steps", "list"),
			ref("quote", "blockquote"), ref("idx-cat", "index"), ref("n1", "footnoteDefinition")),
		note,
	)
	data, _ := render(t, New(), &export.Document{File: "r.md", Title: "R", Tree: tree})

	ids := map[string]int{}
	var rids []string
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "id":
				ids[a.Value]++
			case "rid":
				rids = append(rids, a.Value)
			}
		}
	}
	require.Len(t, rids, 6)
	for _, rid := range rids {
		assert.Equal(t, 1, ids[rid], "rid %q in:\n%s", rid, data)
	}
	for id, n := range ids {
		if n != 1 {
			t.Fatalf("expected id %q once, got %d", id, n)
		}
	}
	assert.Contains(t, string(data), `<p id="claim">Key claim.</p>`)
	assert.Contains(t, string(data), `<fn id="fn-n1"><label>1</label><p>A note.</p></fn>`)
}

func TestExport_HeaderRowCells(t *testing.T) {
	row := doctree.New(doctree.KindTableRow, doctree.New(doctree.KindTableCell, doctree.NewText("a")))
	row.SetAttr("header", true)
	body := doctree.New(doctree.KindTableRow, doctree.New(doctree.KindTableCell, doctree.NewText("1")))
	doc := &export.Document{File: "t.md", Tree: doctree.New(doctree.KindRoot, doctree.New(doctree.KindTable, row, body))}
	data, _ := render(t, New(), doc)
	assert.Contains(t, string(data), `<thead><tr><th>a</th></tr></thead><tbody><tr><td>1</td></tr></tbody>`)
}
