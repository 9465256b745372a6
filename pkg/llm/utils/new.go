// Package llmutils builds generators from configuration.
package llmutils

import (
	"fmt"

	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/llm/anthropic"
	"github.com/papercomputeco/docqa/pkg/llm/ollama"
	"github.com/papercomputeco/docqa/pkg/llm/openai"
)

type NewGeneratorOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Temperature  float64
	APIKey       string
}

// Providers lists the accepted ProviderType values.
func Providers() []string {
	return []string{"ollama", "openai", "anthropic"}
}

func NewGenerator(o *NewGeneratorOpts) (llm.Generator, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewGenerator(ollama.GeneratorConfig{
			BaseURL:     o.TargetURL,
			Model:       o.Model,
			Temperature: o.Temperature,
		})
	case "openai":
		return openai.NewGenerator(openai.GeneratorConfig{
			BaseURL:     o.TargetURL,
			APIKey:      o.APIKey,
			Model:       o.Model,
			Temperature: o.Temperature,
		})
	case "anthropic":
		return anthropic.NewGenerator(anthropic.GeneratorConfig{
			BaseURL:     o.TargetURL,
			APIKey:      o.APIKey,
			Model:       o.Model,
			Temperature: o.Temperature,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
