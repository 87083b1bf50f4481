package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dgallion1/doccompile/internal/export/docx"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	File string `arg:"" type:"existingfile" help:"DOCX file to read"`
}

func (c *InspectCmd) Run(_ *CLI, stdout io.Writer) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}
	paras, err := docx.ReadParagraphs(data)
	if err != nil {
		return err
	}
	for _, p := range paras {
		style := p.Style
		if style == "" {
			style = "-"
		}
		fmt.Fprintf(stdout, "%s\t%s\n", style, p.Text())
	}
	return nil
}
