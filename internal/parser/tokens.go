package parser

import (
	"fmt"
	"strings"

	"github.com/dgallion1/doccompile/internal/doctree"
)

// Token kinds produced by the tokenizer. Open/close pairs follow the
// markdown-it convention: Nesting is +1 on open, -1 on close and 0 for
// self-contained tokens.
const (
	TokHeadingOpen     = "heading_open"
	TokHeadingClose    = "heading_close"
	TokParagraphOpen   = "paragraph_open"
	TokParagraphClose  = "paragraph_close"
	TokBlockquoteOpen  = "blockquote_open"
	TokBlockquoteClose = "blockquote_close"
	TokBulletListOpen  = "bullet_list_open"
	TokBulletListClose = "bullet_list_close"
	TokOrderedOpen     = "ordered_list_open"
	TokOrderedClose    = "ordered_list_close"
	TokListItemOpen    = "list_item_open"
	TokListItemClose   = "list_item_close"
	TokTableOpen       = "table_open"
	TokTableClose      = "table_close"
	TokRowOpen         = "tr_open"
	TokRowClose        = "tr_close"
	TokHeaderCellOpen  = "th_open"
	TokHeaderCellClose = "th_close"
	TokCellOpen        = "td_open"
	TokCellClose       = "td_close"
	TokEmOpen          = "em_open"
	TokEmClose         = "em_close"
	TokStrongOpen      = "strong_open"
	TokStrongClose     = "strong_close"
	TokStrikeOpen      = "s_open"
	TokStrikeClose     = "s_close"
	TokLinkOpen        = "link_open"
	TokLinkClose       = "link_close"
	TokFootnoteOpen    = "footnote_open"
	TokFootnoteClose   = "footnote_close"

	TokText        = "text"
	TokSoftBreak   = "softbreak"
	TokHardBreak   = "hardbreak"
	TokCodeInline  = "code_inline"
	TokFence       = "fence"
	TokCodeBlock   = "code_block"
	TokHR          = "hr"
	TokHTMLBlock   = "html_block"
	TokHTMLInline  = "html_inline"
	TokImage       = "image"
	TokFootnoteRef = "footnote_ref"
	TokMystTarget  = "myst_target"
	TokRole        = "role"
	TokDirective   = "directive"
	TokComment     = "myst_line_comment"
)

// Token is one record of the stream consumed by the tree builder.
type Token struct {
	Kind    string            `json:"kind"`
	Nesting int               `json:"nesting,omitempty"`
	Content string            `json:"content,omitempty"`
	Attrs   doctree.Attrs     `json:"attrs,omitempty"`
	Span    *doctree.Position `json:"span,omitempty"`
}

func (t Token) String() string {
	var sb strings.Builder
	switch {
	case t.Nesting > 0:
		sb.WriteString("+")
	case t.Nesting < 0:
		sb.WriteString("-")
	}
	sb.WriteString(t.Kind)
	if t.Content != "" {
		fmt.Fprintf(&sb, " %q", t.Content)
	}
	return sb.String()
}

// Line returns the first source line of the token, or 0 when unknown.
func (t Token) Line() int {
	if t.Span == nil {
		return 0
	}
	return t.Span.Start.Line
}
