package parser

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/doccompile/internal/citation"
	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML block a page may start with.
type Frontmatter struct {
	Title      string          `yaml:"title"`
	Label      string          `yaml:"label"`
	Numbering  *NumberingFlags `yaml:"numbering"`
	References []citation.Work `yaml:"references"`
}

// NumberingFlags overrides project numbering for one page. Nil fields keep
// the project setting.
type NumberingFlags struct {
	Headings  *bool `yaml:"headings"`
	Figures   *bool `yaml:"figures"`
	Tables    *bool `yaml:"tables"`
	Equations *bool `yaml:"equations"`
	Code      *bool `yaml:"code"`
}

var fmDelim = []byte("---")

// splitFrontmatter separates a leading "---" YAML block from the body. It
// returns the number of source lines the block occupied so body positions
// can be shifted back to page lines.
func splitFrontmatter(src []byte) (fm, body []byte, lines int, ok bool) {
	if !bytes.HasPrefix(src, fmDelim) {
		return nil, src, 0, false
	}
	first := bytes.IndexByte(src, '\n')
	if first < 0 || len(bytes.TrimSpace(src[:first])) != len(fmDelim) {
		return nil, src, 0, false
	}
	rest := src[first+1:]
	offset := 0
	for offset <= len(rest) {
		end := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		if end < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+end]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), fmDelim) {
			fm = rest[:offset]
			if end < 0 {
				body = nil
			} else {
				body = rest[offset+end+1:]
			}
			lines = bytes.Count(src[:len(src)-len(body)], []byte("\n"))
			return fm, body, lines, true
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return nil, src, 0, false
}

func parseFrontmatter(raw []byte) (Frontmatter, error) {
	var fm Frontmatter
	if len(bytes.TrimSpace(raw)) == 0 {
		return fm, nil
	}
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return Frontmatter{}, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, nil
}
