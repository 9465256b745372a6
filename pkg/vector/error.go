package vector

import "errors"

var (
	// ErrIndexNotFound is returned when a driver opened with ModeLoad finds
	// no usable persisted index at its target.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrReadOnly is returned by InsertAll on an index opened with ModeLoad
	// or one that was already persisted.
	ErrReadOnly = errors.New("vector index is read-only")

	// ErrDimensionMismatch is returned when an embedding's length differs
	// from the index's dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
