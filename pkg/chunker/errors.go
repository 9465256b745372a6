package chunker

import "errors"

var (
	// ErrEmptyInput is returned when a document has no non-whitespace text.
	ErrEmptyInput = errors.New("document has no text to chunk")

	// ErrInvalidConfig is returned for a non-positive size or an overlap
	// that is not smaller than the size.
	ErrInvalidConfig = errors.New("invalid chunker config")
)
