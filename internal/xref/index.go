package xref

import (
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Record is one row of the flat cross-reference index.
type Record struct {
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
	URL        string `json:"url"`
	File       string `json:"file"`
	Title      string `json:"title,omitempty"`
	Enumerator string `json:"enumerator,omitempty"`
}

// XrefIndex lists every target of every page in project order. An
// identifier appears once, with the page references resolve to.
func (p *Project) XrefIndex() []Record {
	seen := map[string]bool{}
	var out []Record
	for _, s := range p.States() {
		for _, id := range s.Identifiers {
			if seen[id] {
				continue
			}
			t := s.Targets[id]
			if t == nil {
				continue
			}
			seen[id] = true
			out = append(out, Record{
				Identifier: id,
				Kind:       t.Kind,
				URL:        s.URL + "#" + id,
				File:       s.File,
				Title:      t.Title,
				Enumerator: t.Enumerator,
			})
		}
	}
	return out
}

// Location is where an index term is mentioned.
type Location struct {
	File     string `json:"file"`
	URL      string `json:"url"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Term is one entry of the general index.
type Term struct {
	Term      string     `json:"term"`
	Locations []Location `json:"locations,omitempty"`
	SubTerms  []*Term    `json:"subTerms,omitempty"`
	See       []string   `json:"see,omitempty"`
	SeeAlso   []string   `json:"seeAlso,omitempty"`

	sub map[string]*Term
}

var fold = cases.Fold()

func (t *Term) child(name string) *Term {
	key := fold.String(name)
	if c, ok := t.sub[key]; ok {
		return c
	}
	if t.sub == nil {
		t.sub = map[string]*Term{}
	}
	c := &Term{Term: name}
	t.sub[key] = c
	t.SubTerms = append(t.SubTerms, c)
	return c
}

// GeneralIndex collects every index entry of the project into an
// alphabetical term list. Terms differing only in case are merged.
func (p *Project) GeneralIndex() []*Term {
	root := &Term{}
	for _, s := range p.States() {
		for _, m := range s.Marks {
			loc := Location{File: s.File, URL: s.URL}
			if m.Anchor != "" {
				loc.URL += "#" + m.Anchor
			}
			for _, e := range m.Entries {
				term := root.child(e.Entry)
				switch {
				case e.See:
					term.See = appendOnce(term.See, e.SubEntry)
				case e.SeeAlso:
					term.SeeAlso = appendOnce(term.SeeAlso, e.SubEntry)
				case e.SubEntry != "":
					l := loc
					l.Emphasis = e.Emphasis
					sub := term.child(e.SubEntry)
					sub.Locations = append(sub.Locations, l)
				default:
					l := loc
					l.Emphasis = e.Emphasis
					term.Locations = append(term.Locations, l)
				}
			}
		}
	}
	sortTerms(root.SubTerms, collate.New(language.English, collate.IgnoreCase))
	return root.SubTerms
}

func sortTerms(terms []*Term, c *collate.Collator) {
	slices.SortStableFunc(terms, func(a, b *Term) int { return c.CompareString(a.Term, b.Term) })
	for _, t := range terms {
		sortTerms(t.SubTerms, c)
	}
}

func appendOnce(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
