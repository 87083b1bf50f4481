package docx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// ReadParagraphs parses a .docx package back into paragraphs with their
// styles, run formatting and hyperlink targets.
func ReadParagraphs(data []byte) ([]Paragraph, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	links := map[string]string{}
	_ = doc.RangeRelationships(func(rel *docx.Relationship) error {
		links[rel.ID] = rel.Target
		return nil
	})
	var out []Paragraph
	for _, item := range doc.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		out = append(out, Paragraph{Style: paragraphStyle(p), Runs: paragraphRuns(p, links)})
	}
	return out, nil
}

func paragraphStyle(p *docx.Paragraph) string {
	if p.Properties == nil || p.Properties.Style == nil {
		return ""
	}
	return p.Properties.Style.Val
}

func paragraphRuns(p *docx.Paragraph, links map[string]string) []Run {
	var runs []Run
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			if r, ok := readRun(c); ok {
				runs = append(runs, r)
			}
		case *docx.Hyperlink:
			r, ok := readRun(&c.Run)
			if !ok && c.Run.InstrText != "" {
				r, ok = Run{Text: c.Run.InstrText}, true
			}
			if ok {
				r.URL = links[c.ID]
				runs = append(runs, r)
			}
		}
	}
	return runs
}

func readRun(run *docx.Run) (Run, bool) {
	var buf strings.Builder
	for _, rc := range run.Children {
		if t, ok := rc.(*docx.Text); ok {
			buf.WriteString(t.Text)
		}
	}
	if buf.Len() == 0 {
		return Run{}, false
	}
	r := Run{Text: buf.String()}
	if rp := run.RunProperties; rp != nil {
		r.Bold = rp.Bold != nil
		r.Italic = rp.Italic != nil
		r.Strike = rp.Strike != nil && rp.Strike.Val != "false" && rp.Strike.Val != "0"
		r.Code = rp.Fonts != nil && rp.Fonts.ASCII == CodeFont
	}
	return r, true
}

// headingLevel accepts both style ids ("Heading2") and display names
// ("heading 2").
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	rest, ok := strings.CutPrefix(s, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}
