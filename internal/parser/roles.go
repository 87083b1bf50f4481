package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/indexentry"
)

// RoleHandler builds the tree for one inline role.
type RoleHandler func(b *Builder, tok Token)

// RoleHandlers maps role names to handlers.
type RoleHandlers map[string]RoleHandler

// "display text <target>"
var explicitTarget = regexp.MustCompile(`^(.*?)\s*<([^<>]+)>$`)

// "text (title)"
var abbrTitle = regexp.MustCompile(`^(.*?)\s*\(([^()]+)\)$`)

// DefaultRoleHandlers returns the built-in role table.
func DefaultRoleHandlers() RoleHandlers {
	return RoleHandlers{
		"ref":    refRole("ref"),
		"numref": refRole("numref"),
		"eq":     refRole("eq"),
		"doc":    refRole("doc"),
		"cite":   citeRole("parenthetical"),
		"cite:p": citeRole("parenthetical"),
		"cite:t": citeRole("narrative"),
		"math": func(b *Builder, tok Token) {
			b.Leaf(doctree.KindInlineMath, tok, tok.Content, nil)
		},
		"index": indexRole,
		"sub":   wrapRole("subscript"),
		"sup":   wrapRole("superscript"),
		"abbr":  abbrRole,
	}
}

func splitTarget(content string) (display, target string) {
	content = strings.TrimSpace(content)
	if m := explicitTarget.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return "", content
}

func refRole(name string) RoleHandler {
	return func(b *Builder, tok Token) {
		display, target := splitTarget(tok.Content)
		n := b.Open(doctree.KindCrossReference, tok, doctree.Attrs{"role": name})
		n.SetLabel(target)
		if display != "" {
			b.Text(display)
		}
		b.Close()
	}
}

func citeRole(kind string) RoleHandler {
	return func(b *Builder, tok Token) {
		b.Open(doctree.KindCiteGroup, tok, doctree.Attrs{"kind": kind})
		for _, key := range strings.FieldsFunc(tok.Content, func(r rune) bool { return r == ',' || r == ';' }) {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			n := b.Leaf(doctree.KindCite, tok, "", nil)
			n.SetLabel(strings.TrimPrefix(key, "@"))
		}
		b.Close()
	}
}

func indexRole(b *Builder, tok Token) {
	display, entries, err := indexentry.ParseRole(tok.Content)
	if err != nil {
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
	if len(entries) > 0 {
		b.Leaf(doctree.KindIndex, tok, "", doctree.Attrs{"indexEntries": entries})
	}
	b.Text(display)
}

func wrapRole(kind doctree.Kind) RoleHandler {
	return func(b *Builder, tok Token) {
		b.Open(kind, tok, nil)
		b.Text(tok.Content)
		b.Close()
	}
}

func abbrRole(b *Builder, tok Token) {
	text, title := tok.Content, ""
	if m := abbrTitle.FindStringSubmatch(tok.Content); m != nil {
		text, title = m[1], m[2]
	}
	var attrs doctree.Attrs
	if title != "" {
		attrs = doctree.Attrs{"title": title}
	}
	b.Open("abbreviation", tok, attrs)
	b.Text(text)
	b.Close()
}

func genericRole(b *Builder, tok Token) {
	name := tok.Attrs.String("name")
	kind, attrs := extensionKind(name)
	b.Open(kind, tok, attrs)
	b.Text(tok.Content)
	b.Close()
}
