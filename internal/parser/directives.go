package parser

import (
	"errors"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/indexentry"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Directive is a fenced block whose info string is "{name} arg".
type Directive struct {
	Name     string
	Arg      string
	Options  map[string]string
	Body     string
	BodyLine int
}

// Option returns a named option, or "".
func (d Directive) Option(key string) string { return d.Options[key] }

// DirectiveHandler builds the tree for one directive.
type DirectiveHandler func(b *Builder, tok Token, d Directive)

// DirectiveHandlers maps directive names to handlers.
type DirectiveHandlers map[string]DirectiveHandler

func directiveFromToken(tok Token) Directive {
	d := Directive{
		Name:     tok.Attrs.String("name"),
		Arg:      tok.Attrs.String("arg"),
		Body:     tok.Content,
		BodyLine: tok.Attrs.Int("bodyLine"),
	}
	if opts, ok := tok.Attrs["options"].(map[string]string); ok {
		d.Options = opts
	}
	if d.BodyLine == 0 {
		d.BodyLine = tok.Line() + 1
	}
	return d
}

var admonitionKinds = []string{
	"note", "tip", "hint", "important", "attention", "caution",
	"warning", "danger", "error", "seealso",
}

var titleCaser = cases.Title(language.English)

// DefaultDirectiveHandlers returns the built-in directive table.
func DefaultDirectiveHandlers() DirectiveHandlers {
	h := DirectiveHandlers{
		"figure":     figureDirective,
		"table":      tableDirective,
		"list-table": tableDirective,
		"math":       mathDirective,
		"code":       codeDirective,
		"code-block": codeDirective,
		"code-cell":  codeDirective,
		"image":      imageDirective,
		"index":      indexDirective,
		"admonition": admonitionDirective,
	}
	for _, k := range admonitionKinds {
		h[k] = admonitionDirective
	}
	return h
}

// labelTarget applies the :label: (or :name:) and :enumerated: options.
func labelTarget(n *doctree.Node, d Directive) {
	label := d.Option("label")
	if label == "" {
		label = d.Option("name")
	}
	if label != "" {
		n.SetLabel(label)
	}
	if strings.EqualFold(d.Option("enumerated"), "false") || d.Options != nil && hasKey(d.Options, "nonumber") {
		n.SetAttr("enumerated", false)
	}
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func figureDirective(b *Builder, tok Token, d Directive) {
	n := b.Open(doctree.KindContainer, tok, doctree.Attrs{"kind": "figure"})
	labelTarget(n, d)
	attrs := doctree.Attrs{"url": d.Arg, "alt": d.Option("alt")}
	if w := d.Option("width"); w != "" {
		attrs["width"] = w
	}
	b.Leaf(doctree.KindImage, tok, "", attrs)
	captionAndLegend(b, tok, d)
	b.Close()
}

// captionAndLegend puts the first paragraph of the body in a caption and
// anything after it in a legend.
func captionAndLegend(b *Builder, tok Token, d Directive) {
	toks := b.tz.Tokenize([]byte(d.Body), d.BodyLine)
	if len(toks) == 0 {
		return
	}
	end := len(toks)
	if toks[0].Kind == TokParagraphOpen {
		depth := 0
		for i, t := range toks {
			depth += t.Nesting
			if depth == 0 {
				end = i + 1
				break
			}
		}
	} else {
		end = 0
	}
	if end > 0 {
		b.Open(doctree.KindCaption, tok, nil)
		b.Emit(toks[:end])
		b.Close()
	}
	if end < len(toks) {
		b.Open(doctree.KindLegend, tok, nil)
		b.Emit(toks[end:])
		b.Close()
	}
}

func tableDirective(b *Builder, tok Token, d Directive) {
	n := b.Open(doctree.KindContainer, tok, doctree.Attrs{"kind": "table"})
	labelTarget(n, d)
	if d.Arg != "" {
		b.Open(doctree.KindCaption, tok, nil)
		b.Open(doctree.KindParagraph, tok, nil)
		b.EmitInline(d.Arg, tok.Line())
		b.Close()
		b.Close()
	}
	b.EmitSource(d.Body, d.BodyLine)
	b.Close()
}

func mathDirective(b *Builder, tok Token, d Directive) {
	body := d.Body
	if d.Arg != "" {
		body = strings.TrimSpace(d.Arg + "\n" + body)
	}
	n := b.Leaf(doctree.KindMath, tok, body, nil)
	labelTarget(n, d)
}

func codeDirective(b *Builder, tok Token, d Directive) {
	var attrs doctree.Attrs
	if lang := strings.TrimSpace(d.Arg); lang != "" {
		attrs = doctree.Attrs{"lang": lang}
	}
	if caption := d.Option("caption"); caption != "" {
		n := b.Open(doctree.KindContainer, tok, doctree.Attrs{"kind": "code"})
		labelTarget(n, d)
		b.Leaf(doctree.KindCode, tok, d.Body, attrs)
		b.Open(doctree.KindCaption, tok, nil)
		b.Open(doctree.KindParagraph, tok, nil)
		b.EmitInline(caption, tok.Line())
		b.Close()
		b.Close()
		b.Close()
		return
	}
	n := b.Leaf(doctree.KindCode, tok, d.Body, attrs)
	labelTarget(n, d)
}

func imageDirective(b *Builder, tok Token, d Directive) {
	attrs := doctree.Attrs{"url": d.Arg, "alt": d.Option("alt")}
	if w := d.Option("width"); w != "" {
		attrs["width"] = w
	}
	n := b.Leaf(doctree.KindImage, tok, "", attrs)
	labelTarget(n, d)
}

func indexDirective(b *Builder, tok Token, d Directive) {
	src := d.Body
	if d.Arg != "" {
		src = d.Arg + "\n" + src
	}
	entries, errs := indexentry.ParseDirective(src)
	for _, err := range errs {
		rule := diag.RuleIndexEntryInvalid
		if errors.Is(err, indexentry.ErrNoEntries) {
			rule = diag.RuleIndexEntryEmpty
		}
		b.diags.Report(diag.Diagnostic{
			Severity: diag.SeverityError,
			RuleID:   rule,
			Message:  err.Error(),
			Position: tok.Span,
		})
	}
	if len(entries) == 0 {
		return
	}
	n := b.Leaf(doctree.KindIndex, tok, "", doctree.Attrs{"indexEntries": entries})
	if label := d.Option("name"); label != "" {
		n.SetLabel(label)
	}
}

func admonitionDirective(b *Builder, tok Token, d Directive) {
	kind := d.Name
	if c := d.Option("class"); kind == "admonition" && c != "" {
		kind = strings.Fields(c)[0]
	}
	n := b.Open(doctree.KindAdmonition, tok, doctree.Attrs{"kind": kind})
	labelTarget(n, d)
	title := d.Arg
	if title == "" && d.Name != "admonition" {
		title = titleCaser.String(d.Name)
		if d.Name == "seealso" {
			title = "See Also"
		}
	}
	if title != "" {
		b.Open(doctree.KindAdmonitionTitle, tok, nil)
		b.EmitInline(title, tok.Line())
		b.Close()
	}
	b.EmitSource(d.Body, d.BodyLine)
	b.Close()
}

// extensionKind maps a directive or role name to a node kind. Names that
// collide with core kinds become containers tagged with the name, so an
// unknown construct can never open a core leaf.
func extensionKind(name string) (doctree.Kind, doctree.Attrs) {
	k := doctree.Kind(name)
	if k.IsCore() {
		return doctree.KindContainer, doctree.Attrs{"kind": name}
	}
	return k, nil
}

func genericDirective(b *Builder, tok Token, d Directive) {
	kind, attrs := extensionKind(d.Name)
	if attrs == nil {
		attrs = doctree.Attrs{}
	}
	if d.Arg != "" {
		attrs["arg"] = d.Arg
	}
	for k, v := range d.Options {
		attrs[k] = v
	}
	n := b.Open(kind, tok, attrs)
	labelTarget(n, d)
	b.EmitSource(d.Body, d.BodyLine)
	b.Close()
}
