package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLoader extracts plain text from PDF files, one document per page.
type PDFLoader struct{}

// NewPDFLoader creates a PDFLoader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

func (l *PDFLoader) Extensions() []string {
	return []string{".pdf"}
}

// Load returns the pages that carry text. Page numbers are 1-based.
func (l *PDFLoader) Load(ctx context.Context, path string) (docs []Document, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %w", ErrMalformed, path, err)
	}
	defer f.Close()

	// The pdf package panics on some malformed content streams.
	defer func() {
		if p := recover(); p != nil {
			docs = nil
			err = fmt.Errorf("%w: read pdf %s: %v", ErrMalformed, path, p)
		}
	}()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s page %d: %w", path, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		docs = append(docs, Document{
			Text:     text,
			Metadata: Metadata{Source: path, Page: PageOf(i)},
		})
	}

	return docs, nil
}
