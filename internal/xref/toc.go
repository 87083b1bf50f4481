package xref

// TOCEntry is one line of a table of contents.
type TOCEntry struct {
	Title      string      `json:"title"`
	URL        string      `json:"url,omitempty"`
	Identifier string      `json:"identifier,omitempty"`
	Enumerator string      `json:"enumerator,omitempty"`
	Level      int         `json:"level"`
	Children   []*TOCEntry `json:"children,omitempty"`
}

// nest arranges a flat, ordered list into a tree by level. Entries deeper
// than maxDepth are left out; maxDepth <= 0 keeps everything.
func nest(flat []*TOCEntry, maxDepth int) []*TOCEntry {
	type frame struct {
		entry *TOCEntry
		level int
	}
	root := &TOCEntry{}
	stack := []frame{{entry: root, level: 0}}
	for _, e := range flat {
		if maxDepth > 0 && e.Level > maxDepth {
			continue
		}
		for len(stack) > 1 && stack[len(stack)-1].level >= e.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].entry
		parent.Children = append(parent.Children, e)
		stack = append(stack, frame{entry: e, level: e.Level})
	}
	return root.Children
}

// TOC is the project table of contents built from the pages' levels.
func (p *Project) TOC(maxDepth int) []*TOCEntry {
	flat := make([]*TOCEntry, 0, len(p.Pages))
	for _, pg := range p.Pages {
		if !pg.OK() {
			continue
		}
		level := pg.Level
		if level <= 0 {
			level = 1
		}
		flat = append(flat, &TOCEntry{Title: pg.Title, URL: pg.URL, Level: level})
	}
	return nest(flat, maxDepth)
}

// PageTOC is the table of contents of one page built from its headings.
func PageTOC(s *State, maxDepth int) []*TOCEntry {
	flat := make([]*TOCEntry, 0, len(s.Headings))
	for _, h := range s.Headings {
		flat = append(flat, &TOCEntry{
			Title:      h.Title,
			URL:        s.URL + "#" + h.Identifier,
			Identifier: h.Identifier,
			Enumerator: h.Enumerator,
			Level:      h.Node.Depth(),
		})
	}
	return nest(flat, maxDepth)
}
