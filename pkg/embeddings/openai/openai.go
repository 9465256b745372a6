// Package openai implements pkg/embeddings' Embedder client for the OpenAI
// embeddings API and any server compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/docqa/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultBaseURL is the public OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Embedder wraps the OpenAI embeddings endpoint.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions uint
	batchSize  int
	embed      embeddings.BatchFunc
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	BaseURL string
	APIKey  string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions requests shortened vectors from models that support it.
	// Zero keeps the model's native size.
	Dimensions uint

	BatchSize int

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit uint

	HTTPClient *http.Client
}

// NewEmbedder creates a new embedder using the OpenAI embeddings API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder requires an API key")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	e := &Embedder{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		),
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}
	e.embed = embeddings.Throttle(e.embedBatch, cfg.RateLimit)

	return e, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embeddings.EmbedOne(ctx, e, text)
}

// EmbedMany converts texts into embeddings, one request per batch.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return embeddings.Batched(ctx, texts, e.batchSize, e.embed)
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	// Data is not guaranteed to be in request order; Index is authoritative.
	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(batch) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}

	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai embeddings: missing embedding for input %d", i)
		}
	}

	return out, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
