package parser

import (
	"log/slog"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/engine"
	"github.com/dgallion1/doccompile/internal/logfields"
)

// TokenHandler turns one token into tree-building calls on b.
type TokenHandler func(b *Builder, tok Token)

// TokenHandlers maps token kinds to handlers.
type TokenHandlers map[string]TokenHandler

// Builder builds a document tree from a token stream on top of the shared
// engine. Directive bodies are tokenized again and fed back through the
// same builder, so nested constructs land in the right scope.
type Builder struct {
	st         *engine.State[*doctree.Node]
	tokens     TokenHandlers
	roles      RoleHandlers
	directives DirectiveHandlers
	tz         *Tokenizer
	diags      *diag.Collector
	log        *slog.Logger
}

// NewBuilder returns a builder using the default handler tables overlaid
// with any extra tables given.
func NewBuilder(tz *Tokenizer, diags *diag.Collector, log *slog.Logger) *Builder {
	if diags == nil {
		diags = diag.NewCollector("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		st:         engine.New[*doctree.Node](engine.TreeTarget{}, nil, diags, log),
		tokens:     DefaultTokenHandlers(),
		roles:      DefaultRoleHandlers(),
		directives: DefaultDirectiveHandlers(),
		tz:         tz,
		diags:      diags,
		log:        log,
	}
}

// WithTokenHandlers overlays extra token handlers.
func (b *Builder) WithTokenHandlers(h TokenHandlers) *Builder {
	b.tokens = engine.Overlay(b.tokens, h)
	return b
}

// WithRoleHandlers overlays extra role handlers.
func (b *Builder) WithRoleHandlers(h RoleHandlers) *Builder {
	b.roles = engine.Overlay(b.roles, h)
	return b
}

// WithDirectiveHandlers overlays extra directive handlers.
func (b *Builder) WithDirectiveHandlers(h DirectiveHandlers) *Builder {
	b.directives = engine.Overlay(b.directives, h)
	return b
}

// State exposes the engine state to handlers.
func (b *Builder) State() *engine.State[*doctree.Node] { return b.st }

// Diagnostics returns the collector receiving build diagnostics.
func (b *Builder) Diagnostics() *diag.Collector { return b.diags }

// Build consumes tokens and returns the root of the new tree.
func (b *Builder) Build(tokens []Token) (*doctree.Node, error) {
	err := b.st.Guard(func() {
		b.st.OpenNode(doctree.KindRoot, nil)
		b.Emit(tokens)
		b.st.CloseNode()
	})
	return b.st.Finish(err)
}

// Emit dispatches each token. An unknown opening token is skipped together
// with everything up to its matching close.
func (b *Builder) Emit(tokens []Token) {
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		h, ok := b.tokens[tok.Kind]
		if ok {
			h(b, tok)
			continue
		}
		b.diags.Report(diag.Diagnostic{
			Severity: diag.SeverityWarning,
			RuleID:   diag.RuleUnhandledToken,
			Message:  "no handler for token kind " + tok.Kind,
			Position: tok.Span,
		})
		b.log.Debug("unhandled token", logfields.Kind(tok.Kind))
		if tok.Nesting > 0 {
			depth := 1
			for depth > 0 && i+1 < len(tokens) {
				i++
				depth += tokens[i].Nesting
			}
		}
	}
}

// EmitSource tokenizes a nested body starting at line and emits it into the
// current scope.
func (b *Builder) EmitSource(body string, line int) {
	if body == "" {
		return
	}
	b.Emit(b.tz.Tokenize([]byte(body), line))
}

// EmitInline emits a nested body without its paragraph wrapper when the body
// is a single paragraph, for captions and titles.
func (b *Builder) EmitInline(body string, line int) {
	if body == "" {
		return
	}
	toks := b.tz.Tokenize([]byte(body), line)
	if n := len(toks); n >= 2 && toks[0].Kind == TokParagraphOpen && toks[n-1].Kind == TokParagraphClose && singleParagraph(toks) {
		toks = toks[1 : n-1]
	}
	b.Emit(toks)
}

func singleParagraph(toks []Token) bool {
	depth := 0
	for i, t := range toks {
		depth += t.Nesting
		if depth == 0 && i != len(toks)-1 {
			return false
		}
	}
	return true
}

// Open pushes a node for tok and stamps its position.
func (b *Builder) Open(kind doctree.Kind, tok Token, attrs doctree.Attrs) *doctree.Node {
	n := b.st.OpenNode(kind, attrs)
	n.Position = tok.Span
	return n
}

// Close pops the current node.
func (b *Builder) Close() *doctree.Node { return b.st.CloseNode() }

// Leaf appends a childless node carrying value.
func (b *Builder) Leaf(kind doctree.Kind, tok Token, value string, attrs doctree.Attrs) *doctree.Node {
	n := b.st.AddLeaf(kind, attrs)
	n.Value = value
	n.Position = tok.Span
	return n
}

// Text appends text to the current scope.
func (b *Builder) Text(value string) { b.st.Text(value) }

func openAs(kind doctree.Kind, keys ...string) TokenHandler {
	return func(b *Builder, tok Token) {
		var attrs doctree.Attrs
		for _, k := range keys {
			if v, ok := tok.Attrs[k]; ok {
				if attrs == nil {
					attrs = doctree.Attrs{}
				}
				attrs[k] = v
			}
		}
		b.Open(kind, tok, attrs)
	}
}

func closeAny(b *Builder, _ Token) { b.Close() }

// DefaultTokenHandlers returns the handler table for the core token kinds.
func DefaultTokenHandlers() TokenHandlers {
	return TokenHandlers{
		TokHeadingOpen: func(b *Builder, tok Token) {
			n := b.Open(doctree.KindHeading, tok, doctree.Attrs{"depth": tok.Attrs.Int("depth")})
			if id := tok.Attrs.String("id"); id != "" {
				n.SetLabel(id)
			}
		},
		TokHeadingClose: func(b *Builder, _ Token) {
			n := b.Close()
			if n.Identifier != "" {
				return
			}
			title := doctree.TextContent(n)
			if slug := doctree.Slugify(title); slug != "" {
				n.Identifier = slug
				n.Label = title
				n.SetAttr("implicit", true)
			}
		},
		TokParagraphOpen:   openAs(doctree.KindParagraph),
		TokParagraphClose:  closeAny,
		TokBlockquoteOpen:  openAs(doctree.KindBlockquote),
		TokBlockquoteClose: closeAny,
		TokBulletListOpen: func(b *Builder, tok Token) {
			b.Open(doctree.KindList, tok, doctree.Attrs{"ordered": false, "spread": tok.Attrs.Bool("spread")})
		},
		TokBulletListClose: closeAny,
		TokOrderedOpen: func(b *Builder, tok Token) {
			b.Open(doctree.KindList, tok, doctree.Attrs{"ordered": true, "start": tok.Attrs.Int("start"), "spread": tok.Attrs.Bool("spread")})
		},
		TokOrderedClose:    closeAny,
		TokListItemOpen:    openAs(doctree.KindListItem),
		TokListItemClose:   closeAny,
		TokTableOpen:       openAs(doctree.KindTable),
		TokTableClose:      closeAny,
		TokRowOpen:         openAs(doctree.KindTableRow, "header"),
		TokRowClose:        closeAny,
		TokHeaderCellOpen: func(b *Builder, tok Token) {
			attrs := doctree.Attrs{"header": true}
			if a := tok.Attrs.String("align"); a != "" {
				attrs["align"] = a
			}
			b.Open(doctree.KindTableCell, tok, attrs)
		},
		TokHeaderCellClose: closeAny,
		TokCellOpen:        openAs(doctree.KindTableCell, "align"),
		TokCellClose:       closeAny,
		TokEmOpen:          openAs(doctree.KindEmphasis),
		TokEmClose:         closeAny,
		TokStrongOpen:      openAs(doctree.KindStrong),
		TokStrongClose:     closeAny,
		TokStrikeOpen:      openAs(doctree.KindDelete),
		TokStrikeClose:     closeAny,
		TokLinkOpen:        openAs(doctree.KindLink, "url", "title"),
		TokLinkClose:       closeAny,
		TokFootnoteOpen: func(b *Builder, tok Token) {
			n := b.Open(doctree.KindFootnoteDefinition, tok, nil)
			n.SetLabel(tok.Attrs.String("label"))
		},
		TokFootnoteClose: closeAny,

		TokText:      func(b *Builder, tok Token) { b.Text(tok.Content) },
		TokSoftBreak: func(b *Builder, _ Token) { b.Text("\n") },
		TokHardBreak: func(b *Builder, tok Token) { b.Leaf(doctree.KindBreak, tok, "", nil) },
		TokCodeInline: func(b *Builder, tok Token) {
			b.Leaf(doctree.KindInlineCode, tok, tok.Content, nil)
		},
		TokFence: func(b *Builder, tok Token) {
			var attrs doctree.Attrs
			if lang := tok.Attrs.String("lang"); lang != "" {
				attrs = doctree.Attrs{"lang": lang}
			}
			b.Leaf(doctree.KindCode, tok, tok.Content, attrs)
		},
		TokCodeBlock: func(b *Builder, tok Token) { b.Leaf(doctree.KindCode, tok, tok.Content, nil) },
		TokHR:        func(b *Builder, tok Token) { b.Leaf(doctree.KindThematicBreak, tok, "", nil) },
		TokHTMLBlock: func(b *Builder, tok Token) { b.Leaf(doctree.KindHTML, tok, tok.Content, nil) },
		TokHTMLInline: func(b *Builder, tok Token) {
			b.Leaf(doctree.KindHTML, tok, tok.Content, nil)
		},
		TokImage: func(b *Builder, tok Token) {
			b.Leaf(doctree.KindImage, tok, "", doctree.Attrs{
				"url":   tok.Attrs.String("url"),
				"alt":   tok.Attrs.String("alt"),
				"title": tok.Attrs.String("title"),
			})
		},
		TokFootnoteRef: func(b *Builder, tok Token) {
			n := b.Leaf(doctree.KindFootnoteReference, tok, "", nil)
			n.SetLabel(tok.Attrs.String("label"))
		},
		TokMystTarget: func(b *Builder, tok Token) {
			n := b.Leaf(doctree.KindMystTarget, tok, "", nil)
			n.SetLabel(tok.Content)
		},
		TokComment: func(b *Builder, tok Token) { b.Leaf(doctree.KindComment, tok, tok.Content, nil) },
		TokRole: func(b *Builder, tok Token) {
			name := tok.Attrs.String("name")
			if h, ok := b.roles[name]; ok {
				h(b, tok)
				return
			}
			genericRole(b, tok)
		},
		TokDirective: func(b *Builder, tok Token) {
			d := directiveFromToken(tok)
			if h, ok := b.directives[d.Name]; ok {
				h(b, tok, d)
				return
			}
			genericDirective(b, tok, d)
		},
	}
}
