// Package inmemory provides an exact brute-force vector driver kept entirely
// in process memory.
package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/docqa/pkg/vector"
)

// Driver implements vector.Driver with a linear scan over all entries.
type Driver struct {
	mu        sync.RWMutex
	entries   []vector.Entry
	dims      int
	persisted bool
	logger    *slog.Logger
}

// NewDriver creates an empty in-memory index.
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{logger: logger}
}

// InsertAll appends entries in order.
func (d *Driver) InsertAll(_ context.Context, entries []vector.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.persisted {
		return vector.ErrReadOnly
	}

	for _, e := range entries {
		if d.dims == 0 {
			d.dims = len(e.Embedding)
		}
		if len(e.Embedding) != d.dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), d.dims)
		}
		d.entries = append(d.entries, e)
	}

	d.logger.Debug("inserted entries into memory index", "count", len(entries))

	return nil
}

// Persist freezes the index.
func (d *Driver) Persist(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.persisted = true
	return nil
}

// Query scores every entry against embedding.
func (d *Driver) Query(_ context.Context, embedding []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if k <= 0 || len(d.entries) == 0 {
		return []vector.QueryResult{}, nil
	}
	if len(embedding) != d.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), d.dims)
	}

	results := make([]vector.QueryResult, len(d.entries))
	for i, e := range d.entries {
		results[i] = vector.QueryResult{
			Entry: e,
			Score: vector.CosineSimilarity(embedding, e.Embedding),
		}
	}

	vector.SortResults(results, func(i int) int64 { return int64(i) })

	return vector.Truncate(results, k), nil
}

// Count returns the number of entries.
func (d *Driver) Count(context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries), nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
