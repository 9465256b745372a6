// Package llm defines the generation client that turns a rendered prompt into
// an answer.
package llm

import (
	"context"
	"errors"
)

// DefaultTemperature keeps answers close to the retrieved context.
const DefaultTemperature = 0.1

// ErrGeneration is matched by every failure to obtain a completion from a
// provider.
var ErrGeneration = errors.New("generation service failure")

// Generator produces a completion for a single prompt. Sampling parameters
// are fixed when the generator is constructed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Close releases any resources held by the generator.
	Close() error
}
