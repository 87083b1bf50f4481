package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/doccompile/internal/indexentry"
)

// IndexCmd implements the 'index' command.
type IndexCmd struct {
	Lines []string `arg:"" help:"Annotation lines, e.g. \"pair: cat; animal\""`
}

func (c *IndexCmd) Run(_ *CLI, stdout io.Writer) error {
	entries, errs := indexentry.ParseDirective(strings.Join(c.Lines, "\n"))
	enc := json.NewEncoder(stdout)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	for _, err := range errs {
		fmt.Fprintf(stdout, "error: %s\n", err)
	}
	if len(entries) == 0 {
		return indexentry.ErrNoEntries
	}
	return nil
}
