package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/dgallion1/doccompile/internal/export"
	"github.com/dgallion1/doccompile/internal/pipeline"
	"github.com/dgallion1/doccompile/internal/xref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	var out bytes.Buffer
	parser, err := kong.New(&cli, kong.Name("doccompile"), kong.BindTo(io.Writer(&out), (*io.Writer)(nil)))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = ctx.Run(&cli)
	return out.String(), err
}

func writePage(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestBuildCommand(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "site")
	a := writePage(t, src, "a.md", "# Alpha\n\n(tbl)=\n\n| x | y |\n|---|---|\n| 1 | 2 |\n")
	b := writePage(t, src, "b.md", "# Beta\n\nSee {ref}`Alpha <alpha>` and {ref}`missing`.\n")

	stdout, err := run(t, "build", a, b, "-o", out, "-f", "typst,docx", "--number-headings")
	require.NoError(t, err)
	assert.Contains(t, stdout, "built 2 pages")
	assert.Contains(t, stdout, "[unresolved-reference]")

	for _, name := range []string{"a.typ", "a.docx", "b.typ", "b.docx", "xref.json", "toc.json", "genindex.json"} {
		found := false
		_ = filepath.WalkDir(out, func(p string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() && filepath.Base(p) == name {
				found = true
			}
			return nil
		})
		assert.True(t, found, "missing %s", name)
	}

	data, err := os.ReadFile(filepath.Join(out, "xref.json"))
	require.NoError(t, err)
	var records []xref.Record
	require.NoError(t, json.Unmarshal(data, &records))
	var ids []string
	for _, r := range records {
		ids = append(ids, r.Identifier)
	}
	assert.Contains(t, ids, "alpha")
}

func TestBuildCommand_UnknownFormat(t *testing.T) {
	a := writePage(t, t.TempDir(), "a.md", "# A\n")
	_, err := run(t, "build", a, "-o", t.TempDir(), "-f", "pdf")
	assert.ErrorContains(t, err, "unknown format")
}

func TestIndexCommand(t *testing.T) {
	stdout, err := run(t, "index", "pair: cat; animal", "see: kitten; cat")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"entry":"cat","subEntry":"animal","emphasis":false}`, lines[0])
	assert.JSONEq(t, `{"entry":"kitten","subEntry":"cat","emphasis":false,"see":true}`, lines[2])

	stdout, err = run(t, "index", "quad: a; b")
	assert.Error(t, err)
	assert.Contains(t, stdout, "unknown entry type")
}

func TestInspectCommand(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	a := writePage(t, src, "a.md", "# Alpha\n\nBody text.\n")
	_, err := run(t, "build", a, "-o", out, "-f", "docx")
	require.NoError(t, err)

	var docxPath string
	_ = filepath.WalkDir(out, func(p string, d os.DirEntry, err error) error {
		if err == nil && strings.HasSuffix(p, ".docx") {
			docxPath = p
		}
		return nil
	})
	require.NotEmpty(t, docxPath)

	stdout, err := run(t, "inspect", docxPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Heading1\tAlpha")
	assert.Contains(t, stdout, "Body text.")
}

func TestBuildCommand_PagesNamedRelativeToCommonDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "guide"), 0o755))
	a := writePage(t, src, "intro.md", "# Intro\n\nSee {ref}`usage`.\n")
	b := writePage(t, filepath.Join(src, "guide"), "use.md", "(usage)=\n# Usage\n")
	out := filepath.Join(t.TempDir(), "site")

	_, err := run(t, "build", a, b, "-o", out, "-f", "latex")
	require.NoError(t, err)
	for _, name := range []string{"intro.tex", filepath.Join("guide", "use.tex")} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, "missing %s", name)
	}
	tex, err := os.ReadFile(filepath.Join(out, "intro.tex"))
	require.NoError(t, err)
	assert.Contains(t, string(tex), `/guide/use\#usage`)
}

func TestWriteOutput_StaysInsideDir(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "nested", "site")
	out := &pipeline.Output{Pages: []*pipeline.PageResult{{
		File:    "../../escape.md",
		Outputs: map[string]*export.Result{"typst": {Ext: ".typ", Payload: []byte("= Escape\n")}},
	}}}

	var stdout bytes.Buffer
	require.NoError(t, writeOutput(out, dir, &stdout))
	_, err := os.Stat(filepath.Join(dir, "escape.typ"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(parent, "escape.typ"))
	assert.True(t, os.IsNotExist(err), "page escaped the output directory")

	cases := map[string]string{
		"a.md":         "a",
		"guide/use.md": filepath.Join("guide", "use"),
		"../../x.md":   "x",
		"/abs/y.md":    filepath.Join("abs", "y"),
		`..\win\z.md`:  filepath.Join("win", "z"),
		"":             "unnamed",
	}
	for in, want := range cases {
		if got := outputBase(in); got != want {
			t.Fatalf("outputBase(%q): expected %q, got %q", in, want, got)
		}
	}
}
