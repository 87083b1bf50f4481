package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	// {name}`content` roles: goldmark sees text ending in "{name}" followed
	// by a code span.
	roleSuffix = regexp.MustCompile(`\{([A-Za-z][\w:+-]*)\}$`)
	// (label)= on a line of its own.
	targetLine = regexp.MustCompile(`^\(([^()\s][^()]*)\)=\s*$`)
	// {name} at the start of a fence info string.
	directiveInfo = regexp.MustCompile(`^\{([A-Za-z][\w:+-]*)\}\s*(.*)$`)
	// :key: value option lines at the top of a directive body.
	optionLine = regexp.MustCompile(`^:([\w-]+):\s*(.*)$`)
)

// Tokenizer flattens goldmark's AST into the token stream. It understands
// the dialect extensions (roles, directives, targets, comments) on top of
// CommonMark with tables, strikethrough and footnotes.
type Tokenizer struct {
	md goldmark.Markdown
}

// NewTokenizer returns a tokenizer with the dialect's goldmark extensions.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Footnote),
			goldmark.WithParserOptions(parser.WithHeadingAttribute()),
		),
	}
}

// Tokenize parses src and returns its tokens. firstLine is the source line
// of src[0], so directive bodies keep their positions in the page.
func (tz *Tokenizer) Tokenize(src []byte, firstLine int) []Token {
	if firstLine <= 0 {
		firstLine = 1
	}
	doc := tz.md.Parser().Parse(text.NewReader(src))
	e := &emitter{src: src, base: firstLine, lineStarts: lineStarts(src)}
	e.block(doc)
	return e.out
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' && i+1 < len(src) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

type emitter struct {
	src        []byte
	base       int
	lineStarts []int
	out        []Token
}

func (e *emitter) line(offset int) int {
	idx := sort.Search(len(e.lineStarts), func(i int) bool { return e.lineStarts[i] > offset })
	return idx - 1 + e.base
}

func (e *emitter) spanOf(n ast.Node) *doctree.Position {
	start, ok := firstOffset(n)
	if !ok {
		return nil
	}
	end, ok := lastOffset(n)
	if !ok || end < start {
		end = start
	}
	return &doctree.Position{
		Start: doctree.Point{Line: e.line(start), Column: start - e.lineStarts[e.line(start)-e.base] + 1},
		End:   doctree.Point{Line: e.line(end)},
	}
}

func firstOffset(n ast.Node) (int, bool) {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, true
	}
	if fc, ok := n.(*ast.FencedCodeBlock); ok && fc.Info != nil {
		return fc.Info.Segment.Start, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off, ok := firstOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

func lastOffset(n ast.Node) (int, bool) {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		seg := n.Lines().At(n.Lines().Len() - 1)
		return max(seg.Start, seg.Stop-1), true
	}
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, true
	}
	for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
		if off, ok := lastOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

func (e *emitter) emit(kind string, nesting int, content string, attrs doctree.Attrs, span *doctree.Position) {
	e.out = append(e.out, Token{Kind: kind, Nesting: nesting, Content: content, Attrs: attrs, Span: span})
}

func (e *emitter) open(kind string, n ast.Node, attrs doctree.Attrs) {
	e.emit(kind, 1, "", attrs, e.spanOf(n))
}

func (e *emitter) close(kind string) {
	e.emit(kind, -1, "", nil, nil)
}

func (e *emitter) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		e.block(c)
	}
}

func (e *emitter) linesText(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(e.src))
	}
	return sb.String()
}

func (e *emitter) block(n ast.Node) {
	switch b := n.(type) {
	case *ast.Document:
		e.children(n)
	case *ast.Heading:
		attrs := doctree.Attrs{"depth": b.Level}
		if id, ok := b.AttributeString("id"); ok {
			if raw, isBytes := id.([]byte); isBytes {
				attrs["id"] = string(raw)
			}
		}
		e.open(TokHeadingOpen, n, attrs)
		e.inlines(n)
		e.close(TokHeadingClose)
	case *ast.Paragraph:
		e.paragraph(b)
	case *ast.TextBlock:
		e.inlines(n)
	case *ast.ThematicBreak:
		e.emit(TokHR, 0, "", nil, e.spanOf(n))
	case *ast.FencedCodeBlock:
		e.fence(b)
	case *ast.CodeBlock:
		e.emit(TokCodeBlock, 0, strings.TrimSuffix(e.linesText(n), "\n"), nil, e.spanOf(n))
	case *ast.Blockquote:
		e.open(TokBlockquoteOpen, n, nil)
		e.children(n)
		e.close(TokBlockquoteClose)
	case *ast.List:
		if b.IsOrdered() {
			e.open(TokOrderedOpen, n, doctree.Attrs{"start": b.Start, "spread": !b.IsTight})
			e.children(n)
			e.close(TokOrderedClose)
			return
		}
		e.open(TokBulletListOpen, n, doctree.Attrs{"spread": !b.IsTight})
		e.children(n)
		e.close(TokBulletListClose)
	case *ast.ListItem:
		e.open(TokListItemOpen, n, nil)
		e.children(n)
		e.close(TokListItemClose)
	case *ast.HTMLBlock:
		content := e.linesText(n)
		if b.HasClosure() {
			content += string(b.ClosureLine.Value(e.src))
		}
		e.emit(TokHTMLBlock, 0, strings.TrimSuffix(content, "\n"), nil, e.spanOf(n))
	case *east.Table:
		e.open(TokTableOpen, n, nil)
		e.children(n)
		e.close(TokTableClose)
	case *east.TableHeader:
		e.open(TokRowOpen, n, doctree.Attrs{"header": true})
		e.cells(n, TokHeaderCellOpen, TokHeaderCellClose)
		e.close(TokRowClose)
	case *east.TableRow:
		e.open(TokRowOpen, n, nil)
		e.cells(n, TokCellOpen, TokCellClose)
		e.close(TokRowClose)
	case *east.FootnoteList:
		e.children(n)
	case *east.Footnote:
		e.open(TokFootnoteOpen, n, doctree.Attrs{"label": strconv.Itoa(b.Index)})
		e.children(n)
		e.close(TokFootnoteClose)
	default:
		e.children(n)
	}
}

func (e *emitter) cells(row ast.Node, openKind, closeKind string) {
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cell, ok := c.(*east.TableCell)
		if !ok {
			continue
		}
		var attrs doctree.Attrs
		if cell.Alignment != east.AlignNone {
			attrs = doctree.Attrs{"align": cell.Alignment.String()}
		}
		e.open(openKind, cell, attrs)
		e.inlines(cell)
		e.close(closeKind)
	}
}

// paragraph recognizes the two paragraph-shaped dialect constructs before
// falling back to a plain paragraph: a lone "(label)=" target line and "%"
// comment lines.
func (e *emitter) paragraph(p *ast.Paragraph) {
	raw := e.linesText(p)
	trimmed := strings.TrimSpace(raw)
	if m := targetLine.FindStringSubmatch(trimmed); m != nil && p.Lines().Len() == 1 {
		e.emit(TokMystTarget, 0, m[1], nil, e.spanOf(p))
		return
	}
	if isComment(raw) {
		e.emit(TokComment, 0, strings.TrimSpace(strings.TrimPrefix(trimmed, "%")), nil, e.spanOf(p))
		return
	}
	e.open(TokParagraphOpen, p, nil)
	e.inlines(p)
	e.close(TokParagraphClose)
}

func isComment(raw string) bool {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	for _, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "%") {
			return false
		}
	}
	return len(lines) > 0
}

func (e *emitter) fence(b *ast.FencedCodeBlock) {
	var info string
	if b.Info != nil {
		info = strings.TrimSpace(string(b.Info.Segment.Value(e.src)))
	}
	body := e.linesText(b)
	span := e.spanOf(b)
	m := directiveInfo.FindStringSubmatch(info)
	if m == nil {
		attrs := doctree.Attrs{}
		if lang := string(b.Language(e.src)); lang != "" {
			attrs["lang"] = lang
		}
		e.emit(TokFence, 0, strings.TrimSuffix(body, "\n"), attrs, span)
		return
	}
	options, rest, skipped := splitOptions(body)
	attrs := doctree.Attrs{"name": m[1], "arg": strings.TrimSpace(m[2]), "options": options}
	if b.Lines().Len() > 0 {
		attrs["bodyLine"] = e.line(b.Lines().At(0).Start) + skipped
	}
	e.emit(TokDirective, 0, rest, attrs, span)
}

// splitOptions peels ":key: value" lines (and the blank line after them)
// off the top of a directive body. It returns how many lines were consumed.
func splitOptions(body string) (map[string]string, string, int) {
	options := map[string]string{}
	lines := strings.SplitAfter(body, "\n")
	i := 0
	for ; i < len(lines); i++ {
		m := optionLine.FindStringSubmatch(strings.TrimRight(lines[i], "\r\n"))
		if m == nil {
			break
		}
		options[m[1]] = strings.TrimSpace(m[2])
	}
	if i > 0 && i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	return options, strings.TrimSuffix(strings.Join(lines[i:], ""), "\n"), i
}

func (e *emitter) inlines(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			value := string(v.Segment.Value(e.src))
			span := e.spanOf(v)
			if cs, ok := v.NextSibling().(*ast.CodeSpan); ok && !v.SoftLineBreak() && !v.HardLineBreak() {
				if m := roleSuffix.FindStringSubmatchIndex(value); m != nil {
					if m[0] > 0 {
						e.emit(TokText, 0, value[:m[0]], nil, span)
					}
					e.emit(TokRole, 0, e.codeSpanText(cs), doctree.Attrs{"name": value[m[2]:m[3]]}, span)
					c = cs
					continue
				}
			}
			e.emit(TokText, 0, value, nil, span)
			switch {
			case v.HardLineBreak():
				e.emit(TokHardBreak, 0, "", nil, nil)
			case v.SoftLineBreak():
				e.emit(TokSoftBreak, 0, "", nil, nil)
			}
		case *ast.String:
			e.emit(TokText, 0, string(v.Value), nil, nil)
		case *ast.CodeSpan:
			e.emit(TokCodeInline, 0, e.codeSpanText(v), nil, e.spanOf(v))
		case *ast.Emphasis:
			openKind, closeKind := TokEmOpen, TokEmClose
			if v.Level >= 2 {
				openKind, closeKind = TokStrongOpen, TokStrongClose
			}
			e.open(openKind, v, nil)
			e.inlines(v)
			e.close(closeKind)
		case *east.Strikethrough:
			e.open(TokStrikeOpen, v, nil)
			e.inlines(v)
			e.close(TokStrikeClose)
		case *ast.Link:
			e.open(TokLinkOpen, v, doctree.Attrs{"url": string(v.Destination), "title": string(v.Title)})
			e.inlines(v)
			e.close(TokLinkClose)
		case *ast.AutoLink:
			e.open(TokLinkOpen, v, doctree.Attrs{"url": string(v.URL(e.src))})
			e.emit(TokText, 0, string(v.Label(e.src)), nil, nil)
			e.close(TokLinkClose)
		case *ast.Image:
			e.emit(TokImage, 0, "", doctree.Attrs{
				"url":   string(v.Destination),
				"title": string(v.Title),
				"alt":   e.plainText(v),
			}, e.spanOf(v))
		case *ast.RawHTML:
			var sb strings.Builder
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				sb.Write(seg.Value(e.src))
			}
			e.emit(TokHTMLInline, 0, sb.String(), nil, nil)
		case *east.FootnoteLink:
			e.emit(TokFootnoteRef, 0, "", doctree.Attrs{"label": strconv.Itoa(v.Index)}, nil)
		case *east.FootnoteBacklink:
			// Rendered by the backends from the definition itself.
		default:
			e.inlines(c)
		}
	}
}

func (e *emitter) codeSpanText(cs *ast.CodeSpan) string {
	var sb strings.Builder
	for c := cs.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(e.src))
		case *ast.String:
			sb.Write(t.Value)
		}
	}
	return sb.String()
}

// plainText gets the text content of an inline subtree.
func (e *emitter) plainText(n ast.Node) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(e.src))
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(e.plainText(c))
		}
	}
	return sb.String()
}
