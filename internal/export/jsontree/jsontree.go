// Package jsontree writes the resolved document tree as JSON, the save
// format other tools load back.
package jsontree

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/export"
)

// Format is the backend name.
const Format = "json"

// File is the saved form of one page.
type File struct {
	File  string        `json:"file"`
	Title string        `json:"title"`
	Tree  *doctree.Node `json:"tree"`
}

type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return Format }

func (b *Backend) Export(ctx context.Context, doc *export.Document, _ *diag.Collector, _ *slog.Logger) (*export.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(File{File: doc.File, Title: doc.Title, Tree: doc.Tree}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", doc.File, err)
	}
	return &export.Result{
		Format:      Format,
		ContentType: "application/json",
		Ext:         ".json",
		Payload:     append(data, '\n'),
	}, nil
}

// Load reads a page saved by Export.
func Load(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &f, nil
}
