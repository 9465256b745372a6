// Package embeddings defines the text embedding client used by ingestion and
// retrieval.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
//
// Implementations must be deterministic for identical input and model, and
// must return exactly one vector per input text, in input order.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany converts each text into a vector embedding.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
