package document

import "errors"

var (
	// ErrRootNotFound is returned when the documents root does not exist or
	// is not a directory.
	ErrRootNotFound = errors.New("documents root not found")

	// ErrUnsupportedFormat is returned when no loader is registered for a
	// file's extension.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrMalformed is returned when a file cannot be parsed as its format.
	ErrMalformed = errors.New("malformed document")
)
