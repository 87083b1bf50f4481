package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/doccompile/internal/pipeline"
	"github.com/dgallion1/doccompile/internal/xref"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Files          []string `arg:"" type:"existingfile" help:"Pages in project order"`
	Out            string   `short:"o" help:"Output directory" default:"./out"`
	Format         []string `short:"f" help:"Output formats (jats, latex, typst, docx, json)" default:"json" sep:","`
	NumberHeadings bool     `name:"number-headings" help:"Number section headings"`
	TOCDepth       int      `name:"toc-depth" help:"Deepest heading level in tables of contents" default:"3"`
	Workers        int      `help:"Pages processed in parallel" default:"4"`
}

func (b *BuildCmd) Run(_ *CLI, stdout io.Writer) error {
	req := pipeline.Request{Formats: b.Format, TOCDepth: b.TOCDepth}
	root := commonDir(b.Files)
	for _, f := range b.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		name := f
		if rel, err := filepath.Rel(root, f); err == nil {
			name = rel
		}
		req.Pages = append(req.Pages, pipeline.PageInput{File: filepath.ToSlash(name), Content: string(data)})
	}

	numbering := xref.DefaultNumbering()
	numbering.Headings = b.NumberHeadings
	w := pipeline.NewWorker(pipeline.Options{Numbering: numbering, TOCDepth: b.TOCDepth, PageWorkers: b.Workers}, nil, slog.Default())
	out, err := w.Build(context.Background(), req)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return writeOutput(out, b.Out, stdout)
}

// writeOutput stores every payload under dir next to the project-wide
// indexes and prints the diagnostics.
func writeOutput(out *pipeline.Output, dir string, stdout io.Writer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	failed := 0
	for _, p := range out.Pages {
		for _, d := range p.Diagnostics {
			fmt.Fprintln(stdout, d.String())
		}
		if p.Error != "" {
			failed++
			fmt.Fprintf(stdout, "%s: error: %s\n", p.File, p.Error)
		}
		base := outputBase(p.File)
		for _, res := range p.Outputs {
			target := filepath.Join(dir, base+res.Ext)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			if err := os.WriteFile(target, res.Payload, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
		}
	}
	for _, d := range out.Diagnostics {
		fmt.Fprintln(stdout, d.String())
	}

	for name, v := range map[string]any{"xref.json": out.Xref, "toc.json": out.TOC, "genindex.json": out.Index} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	fmt.Fprintf(stdout, "built %d pages into %s\n", len(out.Pages)-failed, dir)
	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(out.Pages))
	}
	return nil
}

// commonDir is the deepest directory holding every file.
func commonDir(files []string) string {
	if len(files) == 0 {
		return "."
	}
	dir := filepath.Dir(files[0])
	for _, f := range files[1:] {
		for !within(dir, f) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func within(dir, file string) bool {
	rel, err := filepath.Rel(dir, file)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// outputBase maps a page file to its output path without extension. ".."
// segments cannot climb out of the output directory.
func outputBase(file string) string {
	file = strings.ReplaceAll(file, "\\", "/")
	name := strings.TrimPrefix(path.Clean("/"+strings.TrimSuffix(file, path.Ext(file))), "/")
	if name == "" {
		name = "unnamed"
	}
	return filepath.FromSlash(name)
}
