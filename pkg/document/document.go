// Package document loads raw files from the corpus into plain-text documents
// ready for chunking.
package document

import (
	"context"
	"strconv"
)

// Metadata describes where a document came from.
type Metadata struct {
	// Source identifies the file the text was loaded from.
	Source string `json:"source"`

	// Page is the 1-based page number for paginated formats, nil otherwise.
	Page *int `json:"page,omitempty"`
}

// PageLabel renders Page for display, "unknown" when absent.
func (m Metadata) PageLabel() string {
	if m.Page == nil {
		return "unknown"
	}
	return strconv.Itoa(*m.Page)
}

// Document is the extracted text of a file, or of one page of it.
type Document struct {
	Text     string
	Metadata Metadata
}

// Loader extracts documents from a single file.
type Loader interface {
	// Load reads the file at path. Paginated formats return one Document per
	// page that carries text.
	Load(ctx context.Context, path string) ([]Document, error)

	// Extensions lists the lower-case file extensions, with leading dot,
	// this loader handles.
	Extensions() []string
}

// PageOf returns a pointer to n for use as Metadata.Page.
func PageOf(n int) *int {
	return &n
}
