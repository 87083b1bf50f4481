// Package indexentry parses the index annotation mini-language:
//
//	single: term; sub term
//	pair: term one; term two
//	triple: one; two; three
//	see: term; other term
//	seealso: term; other term
//	plain term, another term; sub, !emphasized
//
// A typed line splits on unescaped ';' into parts. A line without a prefix
// splits on unescaped ',' into independent single entries. A leading '!'
// marks a group as the main (emphasized) entry. '\;', '\,' and '\!' escape
// their character.
package indexentry

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Type is the prefix selecting how the parts of a line expand.
type Type string

const (
	TypeSingle  Type = "single"
	TypePair    Type = "pair"
	TypeTriple  Type = "triple"
	TypeSee     Type = "see"
	TypeSeeAlso Type = "seealso"
)

var partCounts = map[Type][2]int{
	TypeSingle:  {1, 2},
	TypePair:    {2, 2},
	TypeTriple:  {3, 3},
	TypeSee:     {2, 2},
	TypeSeeAlso: {2, 2},
}

// Entry is one expanded index entry.
type Entry struct {
	Entry    string `json:"entry"`
	SubEntry string `json:"subEntry,omitempty"`
	Emphasis bool   `json:"emphasis"`
	See      bool   `json:"see,omitempty"`
	SeeAlso  bool   `json:"seeAlso,omitempty"`
}

// ErrNoEntries is returned when a whole annotation yields nothing.
var ErrNoEntries = errors.New("index directive produced no entries")

// SyntaxError describes one rejected line.
type SyntaxError struct {
	Line   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid index entry %q: %s", e.Line, e.Reason)
}

// ParseLine parses one annotation line. On error no entries are returned.
func ParseLine(line string) ([]Entry, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	typ, rest, typed := splitPrefix(line)
	if !typed {
		return parseBare(line)
	}
	counts, known := partCounts[typ]
	if !known {
		return nil, &SyntaxError{Line: line, Reason: fmt.Sprintf("unknown entry type %q", typ)}
	}
	parts, emphasis := splitGroup(rest, ';')
	if len(parts) < counts[0] || len(parts) > counts[1] {
		return nil, &SyntaxError{Line: line, Reason: fmt.Sprintf("%s expects %s, got %d", typ, describe(counts), len(parts))}
	}
	for _, p := range parts {
		if p == "" {
			return nil, &SyntaxError{Line: line, Reason: "empty term"}
		}
	}
	return expand(typ, parts, emphasis), nil
}

// ParseDirective parses every line of a directive body. Rejected lines are
// reported and contribute nothing; the other lines still count. When no line
// yields an entry ErrNoEntries is among the returned errors.
func ParseDirective(body string) ([]Entry, []error) {
	var (
		entries []Entry
		errs    []error
	)
	for _, line := range strings.Split(body, "\n") {
		got, err := ParseLine(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, got...)
	}
	if len(entries) == 0 {
		errs = append(errs, ErrNoEntries)
	}
	return entries, errs
}

// ParseRole parses the inline form: either a bare term or "text <entry>",
// where the entry in angle brackets uses the line grammar. It returns the
// text to display alongside the entries.
func ParseRole(content string) (display string, entries []Entry, err error) {
	content = strings.TrimSpace(content)
	if strings.HasSuffix(content, ">") {
		if open := strings.LastIndex(content, "<"); open > 0 {
			display = strings.TrimSpace(content[:open])
			entries, err = ParseLine(content[open+1 : len(content)-1])
			if err == nil && len(entries) == 0 {
				err = ErrNoEntries
			}
			return display, entries, err
		}
	}
	entries, err = ParseLine(content)
	if err == nil && len(entries) == 0 {
		err = ErrNoEntries
	}
	display = unescape(strings.TrimSpace(strings.TrimPrefix(content, "!")))
	return display, entries, err
}

func describe(c [2]int) string {
	if c[0] == c[1] {
		return fmt.Sprintf("exactly %d parts", c[0])
	}
	return fmt.Sprintf("%d to %d parts", c[0], c[1])
}

// splitPrefix recognizes "word:" at the start of a line, word being letters
// only. Anything else is a bare line.
func splitPrefix(line string) (Type, string, bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", line, false
	}
	for _, r := range line[:i] {
		if !unicode.IsLetter(r) {
			return "", line, false
		}
	}
	return Type(strings.ToLower(line[:i])), line[i+1:], true
}

func parseBare(line string) ([]Entry, error) {
	var out []Entry
	for _, item := range splitUnescaped(line, ',') {
		if strings.TrimSpace(item) == "" {
			continue
		}
		parts, emphasis := splitGroup(item, ';')
		if len(parts) > 2 {
			return nil, &SyntaxError{Line: line, Reason: fmt.Sprintf("single expects 1 to 2 parts, got %d", len(parts))}
		}
		if parts[0] == "" || (len(parts) == 2 && parts[1] == "") {
			return nil, &SyntaxError{Line: line, Reason: "empty term"}
		}
		out = append(out, expand(TypeSingle, parts, emphasis)...)
	}
	return out, nil
}

// splitGroup splits a group on sep, detects the leading '!' of the first
// part, trims and unescapes every part.
func splitGroup(s string, sep byte) ([]string, bool) {
	raw := splitUnescaped(s, sep)
	emphasis := false
	parts := make([]string, len(raw))
	for i, p := range raw {
		p = strings.TrimSpace(p)
		if i == 0 && strings.HasPrefix(p, "!") {
			emphasis = true
			p = strings.TrimSpace(p[1:])
		}
		parts[i] = unescape(p)
	}
	return parts, emphasis
}

// splitUnescaped splits on sep unless it is preceded by a backslash. Escape
// sequences are kept for unescape.
func splitUnescaped(s string, sep byte) []string {
	var (
		out  []string
		last int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			out = append(out, s[last:i])
			last = i + 1
		}
	}
	return append(out, s[last:])
}

// unescape resolves \; \, \! and \\. Other backslashes are kept verbatim.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case ';', ',', '!', '\\':
				sb.WriteByte(s[i+1])
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func expand(typ Type, p []string, emphasis bool) []Entry {
	switch typ {
	case TypeSingle:
		e := Entry{Entry: p[0], Emphasis: emphasis}
		if len(p) == 2 {
			e.SubEntry = p[1]
		}
		return []Entry{e}
	case TypePair:
		return []Entry{
			{Entry: p[0], SubEntry: p[1], Emphasis: emphasis},
			{Entry: p[1], SubEntry: p[0], Emphasis: emphasis},
		}
	case TypeTriple:
		a, b, c := p[0], p[1], p[2]
		pairs := [][2]string{{a, b}, {b, a}, {b, c}, {c, b}, {a, c}, {c, a}}
		out := make([]Entry, len(pairs))
		for i, pr := range pairs {
			out[i] = Entry{Entry: pr[0], SubEntry: pr[1], Emphasis: emphasis}
		}
		return out
	case TypeSee:
		return []Entry{{Entry: p[0], SubEntry: p[1], Emphasis: emphasis, See: true}}
	case TypeSeeAlso:
		return []Entry{{Entry: p[0], SubEntry: p[1], Emphasis: emphasis, SeeAlso: true}}
	}
	return nil
}
