package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/indexentry"
)

func parse(t *testing.T, input, filename string) (*Document, *diag.Collector) {
	t.Helper()
	diags := diag.NewCollector(filename)
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), filename, diags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return doc, diags
}

func kinds(nodes []*doctree.Node) []doctree.Kind {
	out := make([]doctree.Kind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Type
	}
	return out
}

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.
`
	doc, _ := parse(t, input, "doc.md")

	if doc.Title != "Title" {
		t.Errorf("expected title %q, got %q", "Title", doc.Title)
	}

	got := kinds(doc.Tree.Children)
	want := []doctree.Kind{
		doctree.KindHeading, doctree.KindParagraph,
		doctree.KindHeading, doctree.KindParagraph,
		doctree.KindHeading, doctree.KindParagraph,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d children, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("child %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	secA := doc.Tree.Children[2]
	if secA.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", secA.Depth())
	}
	if secA.Identifier != "section-a" {
		t.Errorf("expected implicit identifier %q, got %q", "section-a", secA.Identifier)
	}
	if !secA.Attrs.Bool("implicit") {
		t.Errorf("expected heading identifier to be marked implicit")
	}
	if secA.Position == nil || secA.Position.Start.Line != 5 {
		t.Errorf("expected heading on line 5, got %+v", secA.Position)
	}
}

func TestMarkdownParser_ExplicitHeadingID(t *testing.T) {
	doc, _ := parse(t, "# Intro {#Sec-Intro}\n", "a.md")
	h := doc.Tree.Children[0]
	if h.Identifier != "sec-intro" || h.Label != "Sec-Intro" {
		t.Errorf("expected identifier sec-intro/Sec-Intro, got %q/%q", h.Identifier, h.Label)
	}
	if h.Attrs.Bool("implicit") {
		t.Errorf("explicit identifier must not be implicit")
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	doc, diags := parse(t, "", "empty.md")
	if doc.Tree.Type != doctree.KindRoot {
		t.Fatalf("expected root, got %s", doc.Tree.Type)
	}
	if len(doc.Tree.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(doc.Tree.Children))
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %v", diags.All())
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"docs/plain.md", "plain"},
	}
	for _, tt := range tests {
		doc, _ := parse(t, "text", tt.filename)
		if doc.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, doc.Title)
		}
	}
}

func TestMarkdownParser_Frontmatter(t *testing.T) {
	input := "---\ntitle: Front\nlabel: intro\nnumbering:\n  headings: true\n---\n# Heading\n"
	doc, diags := parse(t, input, "fm.md")

	if doc.Title != "Front" {
		t.Errorf("expected front matter title, got %q", doc.Title)
	}
	if doc.Tree.Identifier != "intro" {
		t.Errorf("expected page label intro, got %q", doc.Tree.Identifier)
	}
	n := doc.Frontmatter.Numbering
	if n == nil || n.Headings == nil || !*n.Headings {
		t.Errorf("expected numbering.headings=true, got %+v", n)
	}
	if n != nil && n.Figures != nil {
		t.Errorf("unset flag should stay nil")
	}
	h := doc.Tree.Children[0]
	if h.Position == nil || h.Position.Start.Line != 7 {
		t.Errorf("expected heading on page line 7, got %+v", h.Position)
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %v", diags.All())
	}
}

func TestMarkdownParser_BadFrontmatter(t *testing.T) {
	doc, diags := parse(t, "---\ntitle: [unclosed\n---\nbody\n", "bad.md")
	if got := diags.ByRule(diag.RuleFrontmatterInvalid); len(got) != 1 {
		t.Fatalf("expected 1 front matter diagnostic, got %v", diags.All())
	}
	if len(doc.Tree.Children) != 1 || doc.Tree.Children[0].Type != doctree.KindParagraph {
		t.Errorf("body should still parse, got %v", kinds(doc.Tree.Children))
	}
}

func TestMarkdownParser_Roles(t *testing.T) {
	doc, _ := parse(t, "See {numref}`Figure %s <fig-a>` and {cite:t}`doe2020, @roe2021`.\n", "roles.md")

	ref := doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindCrossReference))
	if ref == nil {
		t.Fatalf("expected a crossReference node")
	}
	if ref.Identifier != "fig-a" {
		t.Errorf("expected identifier fig-a, got %q", ref.Identifier)
	}
	if got := doctree.TextContent(ref); got != "Figure %s" {
		t.Errorf("expected display text, got %q", got)
	}
	if ref.Attrs.String("role") != "numref" {
		t.Errorf("expected role numref, got %q", ref.Attrs.String("role"))
	}

	group := doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindCiteGroup))
	if group == nil {
		t.Fatalf("expected a citeGroup node")
	}
	if group.Attrs.String("kind") != "narrative" {
		t.Errorf("expected narrative citation, got %q", group.Attrs.String("kind"))
	}
	if len(group.Children) != 2 || group.Children[0].Identifier != "doe2020" || group.Children[1].Identifier != "roe2021" {
		t.Errorf("unexpected cite children: %+v", group.Children)
	}
	if doctree.HasAdjacentText(doc.Tree) {
		t.Errorf("tree has adjacent text nodes")
	}
}

func TestMarkdownParser_InlineMathAndIndexRole(t *testing.T) {
	doc, diags := parse(t, "Energy {math}`E=mc^2` and {index}`cats <pair: cat; animal>`.\n", "m.md")
	m := doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindInlineMath))
	if m == nil || m.Value != "E=mc^2" {
		t.Fatalf("expected inline math, got %+v", m)
	}
	idx := doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindIndex))
	if idx == nil {
		t.Fatalf("expected an index node")
	}
	entries, _ := idx.Attrs["indexEntries"].([]indexentry.Entry)
	if len(entries) != 2 {
		t.Errorf("expected pair expansion to 2 entries, got %v", entries)
	}
	if !strings.Contains(doctree.TextContent(doc.Tree), "cats") {
		t.Errorf("role display text missing")
	}
	if diags.Len() != 0 {
		t.Errorf("expected no diagnostics, got %v", diags.All())
	}
}

func TestMarkdownParser_FigureDirective(t *testing.T) {
	input := "```{figure} img.png\n:label: fig-a\n:alt: An image\n\nThe caption.\n```\n"
	doc, _ := parse(t, input, "fig.md")

	if len(doc.Tree.Children) != 1 {
		t.Fatalf("expected one block, got %v", kinds(doc.Tree.Children))
	}
	fig := doc.Tree.Children[0]
	if fig.Type != doctree.KindContainer || fig.Attrs.String("kind") != "figure" {
		t.Fatalf("expected figure container, got %s %v", fig.Type, fig.Attrs)
	}
	if fig.Identifier != "fig-a" {
		t.Errorf("expected identifier fig-a, got %q", fig.Identifier)
	}
	if len(fig.Children) != 2 {
		t.Fatalf("expected image and caption, got %v", kinds(fig.Children))
	}
	img := fig.Children[0]
	if img.Attrs.String("url") != "img.png" || img.Attrs.String("alt") != "An image" {
		t.Errorf("unexpected image attrs %v", img.Attrs)
	}
	if fig.Children[1].Type != doctree.KindCaption || doctree.TextContent(fig.Children[1]) != "The caption." {
		t.Errorf("unexpected caption %+v", fig.Children[1])
	}
}

func TestMarkdownParser_MathAndCodeDirectives(t *testing.T) {
	input := "```{math}\n:label: eq-1\n\na^2+b^2=c^2\n```\n\n```{code-block} go\n:caption: Hello\n:label: code-hello\n\nfmt.Println(1)\n```\n"
	doc, _ := parse(t, input, "mc.md")

	m := doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindMath))
	if m == nil || m.Identifier != "eq-1" || m.Value != "a^2+b^2=c^2" {
		t.Fatalf("unexpected math node %+v", m)
	}

	c := doctree.SelectFirst(doc.Tree, func(n *doctree.Node) bool {
		return n.Type == doctree.KindContainer && n.Attrs.String("kind") == "code"
	})
	if c == nil || c.Identifier != "code-hello" {
		t.Fatalf("expected labelled code container, got %+v", c)
	}
	code := c.Children[0]
	if code.Type != doctree.KindCode || code.Attrs.String("lang") != "go" || code.Value != "fmt.Println(1)" {
		t.Errorf("unexpected code node %+v", code)
	}
}

func TestMarkdownParser_TargetsAndComments(t *testing.T) {
	doc, _ := parse(t, "(my-target)=\n# Heading\n\n% a comment\n\nText\n", "t.md")
	got := kinds(doc.Tree.Children)
	want := []doctree.Kind{doctree.KindMystTarget, doctree.KindHeading, doctree.KindComment, doctree.KindParagraph}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if doc.Tree.Children[0].Identifier != "my-target" {
		t.Errorf("expected target label, got %q", doc.Tree.Children[0].Identifier)
	}
	if doc.Tree.Children[2].Value != "a comment" {
		t.Errorf("unexpected comment %q", doc.Tree.Children[2].Value)
	}
}

func TestMarkdownParser_Admonition(t *testing.T) {
	doc, _ := parse(t, "```{note}\nBe careful.\n```\n", "n.md")
	ad := doc.Tree.Children[0]
	if ad.Type != doctree.KindAdmonition || ad.Attrs.String("kind") != "note" {
		t.Fatalf("expected note admonition, got %s %v", ad.Type, ad.Attrs)
	}
	if len(ad.Children) != 2 || ad.Children[0].Type != doctree.KindAdmonitionTitle {
		t.Fatalf("expected title and body, got %v", kinds(ad.Children))
	}
	if doctree.TextContent(ad.Children[0]) != "Note" {
		t.Errorf("expected default title, got %q", doctree.TextContent(ad.Children[0]))
	}
}

func TestMarkdownParser_Table(t *testing.T) {
	doc, _ := parse(t, "| a | b |\n|---|:-:|\n| 1 | 2 |\n", "tbl.md")
	tbl := doc.Tree.Children[0]
	if tbl.Type != doctree.KindTable || len(tbl.Children) != 2 {
		t.Fatalf("expected a two-row table, got %s %v", tbl.Type, kinds(tbl.Children))
	}
	head := tbl.Children[0]
	if !head.Attrs.Bool("header") || !head.Children[0].Attrs.Bool("header") {
		t.Errorf("expected header row and cells")
	}
	if got := tbl.Children[1].Children[1].Attrs.String("align"); got != "center" {
		t.Errorf("expected center alignment, got %q", got)
	}
}

func TestMarkdownParser_IndexDirectiveErrors(t *testing.T) {
	doc, diags := parse(t, "```{index} pair: bad\n```\n", "i.md")
	if len(diags.ByRule(diag.RuleIndexEntryInvalid)) != 1 {
		t.Errorf("expected one invalid-entry diagnostic, got %v", diags.All())
	}
	if len(diags.ByRule(diag.RuleIndexEntryEmpty)) != 1 {
		t.Errorf("expected one empty-directive diagnostic, got %v", diags.All())
	}
	if doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindIndex)) != nil {
		t.Errorf("failed directive must not produce an index node")
	}
}

func TestMarkdownParser_IndexRoleDisplayAndErrors(t *testing.T) {
	doc, diags := parse(t, "Use {index}`!Python` and {index}`x < >`.\n", "r.md")
	if got := len(diags.ByRule(diag.RuleIndexEntryEmpty)); got != 1 {
		t.Errorf("expected one empty-role diagnostic, got %v", diags.All())
	}
	if got := len(diags.ByRule(diag.RuleIndexEntryInvalid)); got != 0 {
		t.Errorf("expected no invalid-entry diagnostics, got %v", diags.All())
	}
	text := doctree.TextContent(doc.Tree)
	if !strings.Contains(text, "Use Python and x") {
		t.Errorf("expected role text without the emphasis marker, got %q", text)
	}
	idx := doctree.SelectFirst(doc.Tree, doctree.OfKind(doctree.KindIndex))
	if idx == nil {
		t.Fatalf("expected an index node")
	}
	entries, _ := idx.Attrs["indexEntries"].([]indexentry.Entry)
	if len(entries) != 1 || entries[0].Entry != "Python" || !entries[0].Emphasis {
		t.Errorf("expected emphasized Python entry, got %+v", entries)
	}
}

func TestMarkdownParser_UnknownDirective(t *testing.T) {
	doc, _ := parse(t, "```{sidebar} Aside\n:class: wide\n\nBody text\n```\n", "s.md")
	n := doc.Tree.Children[0]
	if n.Type != "sidebar" {
		t.Fatalf("expected extension kind sidebar, got %s", n.Type)
	}
	if n.Attrs.String("arg") != "Aside" || n.Attrs.String("class") != "wide" {
		t.Errorf("unexpected attrs %v", n.Attrs)
	}
	if len(n.Children) != 1 || n.Children[0].Type != doctree.KindParagraph {
		t.Errorf("expected nested paragraph, got %v", kinds(n.Children))
	}
}

func TestBuilder_UnknownTokenSkipsSubtree(t *testing.T) {
	diags := diag.NewCollector("x.md")
	b := NewBuilder(NewTokenizer(), diags, nil)
	tree, err := b.Build([]Token{
		{Kind: TokParagraphOpen, Nesting: 1},
		{Kind: TokText, Content: "a"},
		{Kind: "widget_open", Nesting: 1},
		{Kind: TokText, Content: "hidden"},
		{Kind: "widget_close", Nesting: -1},
		{Kind: TokText, Content: "b"},
		{Kind: TokParagraphClose, Nesting: -1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := tree.Children[0]
	if len(p.Children) != 1 || p.Children[0].Value != "ab" {
		t.Errorf("expected merged text %q, got %+v", "ab", p.Children)
	}
	if len(diags.ByRule(diag.RuleUnhandledToken)) != 1 {
		t.Errorf("expected one unhandled-token diagnostic, got %v", diags.All())
	}
}

func TestBuilder_UnbalancedTokensFail(t *testing.T) {
	b := NewBuilder(NewTokenizer(), nil, nil)
	_, err := b.Build([]Token{{Kind: TokParagraphClose, Nesting: -1}, {Kind: TokParagraphClose, Nesting: -1}})
	if err == nil {
		t.Fatalf("expected a contract error")
	}
	if !diag.IsCategory(err, diag.CategoryEngine) {
		t.Errorf("expected engine category, got %v", err)
	}
}

func TestForFile(t *testing.T) {
	if _, err := ForFile("a.md", nil); err != nil {
		t.Errorf("expected markdown parser, got %v", err)
	}
	if _, err := ForFile("a.pdf", nil); err == nil {
		t.Errorf("expected unsupported extension error")
	}
	if !IsSupportedExtension("x.MYST") || IsSupportedExtension("x.txt") {
		t.Errorf("unexpected extension support")
	}
}
