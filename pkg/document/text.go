package document

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"
)

// TextLoader reads plain text and markdown files as-is.
type TextLoader struct{}

// NewTextLoader creates a TextLoader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

func (l *TextLoader) Load(ctx context.Context, path string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrMalformed, path)
	}

	return []Document{{
		Text:     string(data),
		Metadata: Metadata{Source: path},
	}}, nil
}
