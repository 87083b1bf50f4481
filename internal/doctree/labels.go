package doctree

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeLabel returns the identifier for a label together with the label
// itself, whitespace-collapsed. Identifiers compare case-insensitively, so
// "Fig 1" and "fig  1" name the same target.
func NormalizeLabel(label string) (identifier, cleaned string) {
	cleaned = strings.Join(strings.Fields(label), " ")
	if cleaned == "" {
		return "", ""
	}
	identifier = folder.String(norm.NFC.String(cleaned))
	return identifier, cleaned
}

// Slugify turns heading text into an implicit identifier: accents stripped,
// lower-cased, runs of anything else collapsed to a single hyphen.
func Slugify(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, text)
	if err != nil {
		plain = text
	}
	var sb strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(plain) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return sb.String()
}
