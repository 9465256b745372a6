// Package prompt renders the retrieval-augmented prompt sent to the
// generation model.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/papercomputeco/docqa/pkg/vector"
)

//go:embed template.txt
var defaultTemplate string

// contextSeparator joins retrieved chunk texts.
const contextSeparator = "\n\n"

// Builder renders prompts from a parsed template.
type Builder struct {
	tmpl *template.Template
}

type data struct {
	Context  string
	Question string
}

// NewBuilder parses the built-in template.
func NewBuilder() *Builder {
	return &Builder{tmpl: template.Must(template.New("prompt").Parse(defaultTemplate))}
}

// Build fills the template with the retrieved chunk texts, in order, and the
// question. No retrieved chunks yields an empty context block.
func (b *Builder) Build(question string, retrieved []vector.QueryResult) (string, error) {
	texts := make([]string, 0, len(retrieved))
	for _, r := range retrieved {
		texts = append(texts, r.Text)
	}

	var out strings.Builder
	err := b.tmpl.Execute(&out, data{
		Context:  strings.Join(texts, contextSeparator),
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	return out.String(), nil
}
