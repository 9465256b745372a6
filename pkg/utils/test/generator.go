package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/docqa/pkg/llm"
)

// MockGenerator records prompts and returns a fixed reply.
type MockGenerator struct {
	Reply string

	// Fail causes Generate to return an ErrGeneration failure.
	Fail bool

	mu      sync.Mutex
	prompts []string
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Fail {
		return "", fmt.Errorf("%w: mock generation failure", llm.ErrGeneration)
	}
	return m.Reply, nil
}

// Prompts returns every prompt received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockGenerator) Close() error {
	return nil
}
