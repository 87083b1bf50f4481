// Package docx writes a document tree as a Word document. The engine emits
// a tree of formatting scopes which is flattened into an ordered list of
// paragraphs and runs and then written with go-docx.
package docx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
	"github.com/dgallion1/doccompile/internal/export"
)

const Format = "docx"

// Paragraph styles written by the backend.
const (
	StyleTitle    = "Title"
	StyleCode     = "Code"
	StyleQuote    = "Quote"
	StyleCaption  = "Caption"
	StyleBullet   = "ListBullet"
	StyleNumber   = "ListNumber"
	StyleFootnote = "FootnoteText"
	StyleEquation = "Equation"
)

// HeadingStyle is the paragraph style of a heading at depth.
func HeadingStyle(depth int) string {
	return "Heading" + strconv.Itoa(min(max(depth, 1), 6))
}

// Run is a span of uniformly formatted text.
type Run struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Strike bool   `json:"strike,omitempty"`
	Code   bool   `json:"code,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Paragraph is one output paragraph.
type Paragraph struct {
	Style string `json:"style,omitempty"`
	Runs  []Run  `json:"runs"`
}

// Text concatenates the paragraph's runs.
func (p Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Level is the heading level of the paragraph, or 0.
func (p Paragraph) Level() int { return headingLevel(p.Style) }

// Item is one formatting scope produced by the engine.
type Item struct {
	Kind     doctree.Kind
	Para     bool
	Style    string
	Format   Run
	Text     string
	IsText   bool
	Children []*Item
}

// Target builds Items from scope attrs: "para", "style", and the run flags
// "bold", "italic", "strike", "code", "url".
type Target struct{}

var _ engine.Target[*Item] = Target{}

func (Target) NewNode(kind doctree.Kind, attrs doctree.Attrs) *Item {
	return &Item{
		Kind:  kind,
		Para:  attrs.Bool("para"),
		Style: attrs.String("style"),
		Format: Run{
			Bold:   attrs.Bool("bold"),
			Italic: attrs.Bool("italic"),
			Strike: attrs.Bool("strike"),
			Code:   attrs.Bool("code"),
			URL:    attrs.String("url"),
		},
	}
}

func (Target) NewText(value string) *Item { return &Item{Kind: doctree.KindText, IsText: true, Text: value} }

func (Target) AppendChild(parent, child *Item) {
	parent.Children = append(parent.Children, child)
}

func (Target) MergeText(parent *Item, value string) bool {
	k := len(parent.Children)
	if k == 0 || !parent.Children[k-1].IsText {
		return false
	}
	parent.Children[k-1].Text += value
	return true
}

type (
	State    = engine.State[*Item]
	Handlers = engine.Handlers[*Item]
	Handler  = engine.Handler[*Item]
)

// Backend is the DOCX exporter.
type Backend struct {
	Overrides Handlers
}

// New returns a DOCX backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return Format }

// Handlers is the full handler table of this backend.
func (b *Backend) Handlers() Handlers {
	return engine.Overlay(base(), handlers(), b.Overrides)
}

// Paragraphs renders doc into the ordered paragraph list written by Export.
func (b *Backend) Paragraphs(ctx context.Context, doc *export.Document, diags *diag.Collector, log *slog.Logger) ([]Paragraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := doctree.NewArena(doc.Tree).Root()
	st := engine.New[*Item](Target{}, b.Handlers(), diags, log)
	st.Meta["title"] = doc.Title
	st.Meta[export.MetaCitations] = doc.Citations
	out, err := st.Run(root)
	if err != nil {
		return nil, fmt.Errorf("docx export of %s: %w", doc.File, err)
	}
	return Flatten(out), nil
}

func (b *Backend) Export(ctx context.Context, doc *export.Document, diags *diag.Collector, log *slog.Logger) (*export.Result, error) {
	paras, err := b.Paragraphs(ctx, doc, diags, log)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Write(&buf, paras); err != nil {
		return nil, fmt.Errorf("docx export of %s: %w", doc.File, err)
	}
	return &export.Result{
		Format:      Format,
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Ext:         ".docx",
		Payload:     buf.Bytes(),
	}, nil
}

// Flatten turns a scope tree into paragraphs. A paragraph scope always
// yields a paragraph; text outside one starts a paragraph in the inherited
// style. Run formatting accumulates down the tree.
func Flatten(root *Item) []Paragraph {
	f := &flattener{}
	f.walk(root, Run{}, "")
	out := make([]Paragraph, 0, len(f.out))
	for _, p := range f.out {
		out = append(out, *p)
	}
	return out
}

type flattener struct {
	out []*Paragraph
	cur *Paragraph
}

func (f *flattener) walk(it *Item, format Run, style string) {
	if it.IsText {
		if it.Text == "" {
			return
		}
		if f.cur == nil {
			f.start(style)
		}
		r := format
		r.Text = it.Text
		if k := len(f.cur.Runs); k > 0 && sameFormat(f.cur.Runs[k-1], r) {
			f.cur.Runs[k-1].Text += r.Text
			return
		}
		f.cur.Runs = append(f.cur.Runs, r)
		return
	}
	if it.Style != "" {
		style = it.Style
	}
	format = merge(format, it.Format)
	if it.Para {
		f.start(style)
	}
	for _, c := range it.Children {
		f.walk(c, format, style)
	}
	if it.Para {
		f.cur = nil
	}
}

func (f *flattener) start(style string) {
	f.cur = &Paragraph{Style: style}
	f.out = append(f.out, f.cur)
}

func merge(outer, inner Run) Run {
	outer.Bold = outer.Bold || inner.Bold
	outer.Italic = outer.Italic || inner.Italic
	outer.Strike = outer.Strike || inner.Strike
	outer.Code = outer.Code || inner.Code
	if inner.URL != "" {
		outer.URL = inner.URL
	}
	return outer
}

func sameFormat(a, b Run) bool {
	a.Text, b.Text = "", ""
	return a == b
}

// CodeFont is the run font used for inline code.
const CodeFont = "Courier New"

// Write encodes paragraphs as a .docx package. Runs carrying a URL become
// hyperlinks.
func Write(w io.Writer, paras []Paragraph) error {
	doc := docx.New().WithDefaultTheme()
	for _, p := range paras {
		para := doc.AddParagraph()
		if p.Style != "" {
			para.Style(p.Style)
		}
		for _, r := range p.Runs {
			var run *docx.Run
			if r.URL != "" {
				link := para.AddLink(r.Text, r.URL)
				link.Run.InstrText = ""
				link.Run.Children = append(link.Run.Children, &docx.Text{Text: r.Text})
				run = &link.Run
			} else {
				run = para.AddText(r.Text)
			}
			applyFormat(run, r)
		}
	}
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func applyFormat(run *docx.Run, r Run) {
	if r.Bold {
		run.Bold()
	}
	if r.Italic {
		run.Italic()
	}
	if r.Strike {
		run.Strike(true)
	}
	if r.Code {
		run.Font(CodeFont, CodeFont, CodeFont, "")
	}
}
