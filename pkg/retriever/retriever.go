// Package retriever finds the chunks most relevant to a question.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/docqa/pkg/embeddings"
	"github.com/papercomputeco/docqa/pkg/utils"
	"github.com/papercomputeco/docqa/pkg/vector"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 3

// previewLen is the number of runes of each retrieved chunk logged at debug.
const previewLen = 200

// ErrRetrieval is returned when the vector index fails to answer a query.
var ErrRetrieval = errors.New("retrieval failed")

// Config configures a Retriever.
type Config struct {
	Embedder embeddings.Embedder
	Index    vector.Driver

	// K defaults to DefaultK when zero.
	K int

	Logger *slog.Logger
}

// Retriever embeds a question and queries the index with a fixed k.
type Retriever struct {
	embedder embeddings.Embedder
	index    vector.Driver
	k        int
	logger   *slog.Logger
}

// New creates a Retriever.
func New(c Config) (*Retriever, error) {
	if c.Embedder == nil {
		return nil, errors.New("retriever requires an embedder")
	}
	if c.Index == nil {
		return nil, errors.New("retriever requires a vector index")
	}
	if c.K < 0 {
		return nil, fmt.Errorf("retriever k must not be negative, got %d", c.K)
	}

	k := c.K
	if k == 0 {
		k = DefaultK
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Retriever{
		embedder: c.Embedder,
		index:    c.Index,
		k:        k,
		logger:   logger,
	}, nil
}

// K returns the number of chunks requested per question.
func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns at most k results ordered by descending similarity.
// Embedding failures keep their embeddings.ErrEmbedding kind; index failures
// match ErrRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]vector.QueryResult, error) {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		if !errors.Is(err, embeddings.ErrEmbedding) {
			err = &embeddings.ServiceError{Err: err}
		}
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.index.Query(ctx, embedding, r.k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	r.logger.Debug("retrieved chunks", "k", r.k, "count", len(results))
	for i, res := range results {
		page := "unknown"
		if res.Page != nil {
			page = fmt.Sprint(*res.Page)
		}
		r.logger.Debug("retrieved chunk",
			"rank", i+1,
			"source", res.Source,
			"page", page,
			"score", res.Score,
			"preview", utils.Preview(res.Text, previewLen),
		)
	}

	return results, nil
}
