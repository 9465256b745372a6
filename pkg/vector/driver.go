// Package vector provides the vector index used to store chunk embeddings and
// answer nearest-neighbour queries.
package vector

import "context"

// Entry is a single indexed chunk.
type Entry struct {
	// ID is the chunk's stable identifier.
	ID string

	// Text is the chunk text returned to the prompt builder.
	Text string

	// Source is the origin file of the chunk.
	Source string

	// Page is the 1-based page number, nil when the source format has no pages.
	Page *int

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Entry

	// Score is the cosine similarity to the query (higher = more similar).
	Score float32
}

// Mode selects how a driver opens its target.
type Mode int

const (
	// ModeBuild starts a fresh index. Nothing is visible at the target until
	// Persist succeeds.
	ModeBuild Mode = iota

	// ModeLoad opens a previously persisted index for querying. A missing
	// target fails with ErrIndexNotFound.
	ModeLoad
)

func (m Mode) String() string {
	switch m {
	case ModeBuild:
		return "build"
	case ModeLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Metric is the similarity every driver records with its index.
const Metric = "cosine"

// Driver handles storage and retrieval of vector embeddings.
//
// Query results are ordered by descending Score; equal scores keep the order
// in which entries were inserted.
type Driver interface {
	// InsertAll bulk loads entries into an index opened with ModeBuild.
	InsertAll(ctx context.Context, entries []Entry) error

	// Persist makes the built index durable and visible at its target. After
	// Persist the driver can be queried like one opened with ModeLoad.
	Persist(ctx context.Context) error

	// Query finds the k entries most similar to the given embedding.
	Query(ctx context.Context, embedding []float32, k int) ([]QueryResult, error)

	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver. Closing a build that
	// was never persisted discards it.
	Close() error
}
