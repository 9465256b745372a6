// Package answer runs the online question answering pipeline: retrieve,
// build the prompt, generate, and cite.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/docqa/pkg/eventstream"
	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/prompt"
	"github.com/papercomputeco/docqa/pkg/vector"
)

// unknownPage is rendered for sources without a page number.
const unknownPage = "unknown"

// Source identifies the document and page one retrieved chunk came from.
type Source struct {
	Source string
	Page   *int
}

type sourceJSON struct {
	Source string `json:"source"`
	Page   any    `json:"page"`
}

// MarshalJSON renders Page as a number, or "unknown" when absent.
func (s Source) MarshalJSON() ([]byte, error) {
	var page any = unknownPage
	if s.Page != nil {
		page = *s.Page
	}
	return json.Marshal(sourceJSON{Source: s.Source, Page: page})
}

// UnmarshalJSON accepts a numeric page or any string as unknown.
func (s *Source) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source string          `json:"source"`
		Page   json.RawMessage `json:"page"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Source = raw.Source
	s.Page = nil

	var n int
	if len(raw.Page) > 0 && json.Unmarshal(raw.Page, &n) == nil {
		s.Page = &n
	}
	return nil
}

// PageLabel renders Page for display.
func (s Source) PageLabel() string {
	if s.Page == nil {
		return unknownPage
	}
	return fmt.Sprint(*s.Page)
}

// Answer is the generated text and one source per retrieved chunk, in
// retrieval order.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"source_documents"`
}

// Retriever finds the chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]vector.QueryResult, error)
}

// EventSink accepts events for asynchronous delivery.
type EventSink interface {
	Enqueue(event *eventstream.Event) bool
}

// Config configures a Pipeline.
type Config struct {
	Retriever Retriever
	Prompt    *prompt.Builder
	Generator llm.Generator

	// Events receives a question answered event per answer. Optional.
	Events EventSink

	Logger *slog.Logger
}

// Pipeline is immutable after construction and safe for concurrent use.
type Pipeline struct {
	retriever Retriever
	prompt    *prompt.Builder
	generator llm.Generator
	events    EventSink
	logger    *slog.Logger
}

// New creates a Pipeline.
func New(c Config) (*Pipeline, error) {
	if c.Retriever == nil {
		return nil, errors.New("answer pipeline requires a retriever")
	}
	if c.Generator == nil {
		return nil, errors.New("answer pipeline requires a generator")
	}

	builder := c.Prompt
	if builder == nil {
		builder = prompt.NewBuilder()
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		retriever: c.Retriever,
		prompt:    builder,
		generator: c.Generator,
		events:    c.Events,
		logger:    logger,
	}, nil
}

// Answer retrieves context for question and generates an answer. An empty
// retrieval still reaches the model with an empty context. Any failing step
// aborts the call.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	retrieved, err := p.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	rendered, err := p.prompt.Build(question, retrieved)
	if err != nil {
		return nil, err
	}

	text, err := p.generator.Generate(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	sources := make([]Source, len(retrieved))
	for i, r := range retrieved {
		sources[i] = Source{Source: r.Source, Page: r.Page}
	}

	duration := time.Since(start)
	p.logger.Info("question answered",
		"retrieved", len(retrieved),
		"duration", duration,
	)
	p.emit(question, sources, duration)

	return &Answer{Text: text, Sources: sources}, nil
}

func (p *Pipeline) emit(question string, sources []Source, duration time.Duration) {
	if p.events == nil {
		return
	}

	refs := make([]eventstream.SourceRef, len(sources))
	for i, s := range sources {
		refs[i] = eventstream.SourceRef{Source: s.Source, Page: s.Page}
	}

	p.events.Enqueue(eventstream.NewEvent(eventstream.EventTypeQuestionAnswered, eventstream.QuestionAnsweredPayload{
		Question:   question,
		Sources:    refs,
		DurationMs: duration.Milliseconds(),
	}))
}
