package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of texts sent per provider request when no
// batch size is configured.
const DefaultBatchSize = 64

// BatchFunc embeds a single batch of texts.
type BatchFunc func(ctx context.Context, batch []string) ([][]float32, error)

// Batched splits texts into requests of at most size texts and concatenates
// the results in input order. A failing batch aborts the whole call with a
// *ServiceError carrying its index.
func Batched(ctx context.Context, texts []string, size int, fn BatchFunc) ([][]float32, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start, batch := 0, 0; start < len(texts); start, batch = start+size, batch+1 {
		if err := ctx.Err(); err != nil {
			return nil, &ServiceError{BatchIndex: batch, Err: err}
		}

		end := min(start+size, len(texts))
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, &ServiceError{BatchIndex: batch, Err: err}
		}
		if len(vecs) != end-start {
			return nil, &ServiceError{
				BatchIndex: batch,
				Err:        fmt.Errorf("provider returned %d embeddings for %d inputs", len(vecs), end-start),
			}
		}

		out = append(out, vecs...)
	}

	return out, nil
}

// EmbedOne runs a single text through EmbedMany. Providers use it to
// implement Embed.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Throttle wraps fn so that at most perSecond batches start each second. A
// zero rate returns fn unchanged. Waiting honours ctx cancellation.
func Throttle(fn BatchFunc, perSecond uint) BatchFunc {
	if perSecond == 0 {
		return fn
	}

	lim := rate.NewLimiter(rate.Limit(perSecond), 1)
	return func(ctx context.Context, batch []string) ([][]float32, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limit: %w", err)
		}
		return fn(ctx, batch)
	}
}
