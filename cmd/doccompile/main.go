// Command doccompile builds a project of Markdown pages into JATS, LaTeX,
// Typst, DOCX and JSON without running the HTTP service.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI definition & global flags.
type CLI struct {
	Verbose bool `short:"v" help:"Enable verbose logging"`

	Build   BuildCmd   `cmd:"" help:"Build pages into the requested formats"`
	Index   IndexCmd   `cmd:"" help:"Parse index annotation lines and print the entries"`
	Inspect InspectCmd `cmd:"" help:"List the paragraphs of a DOCX file"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("doccompile"),
		kong.Description("Compile MyST-flavoured Markdown pages into publishing formats."),
		kong.UsageOnError(),
		kong.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil)),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
