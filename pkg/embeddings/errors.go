package embeddings

import (
	"errors"
	"fmt"
)

// ErrEmbedding is matched by every failure to obtain embeddings from a provider.
var ErrEmbedding = errors.New("embedding service failure")

// ServiceError reports which request batch failed. It matches ErrEmbedding
// with errors.Is and unwraps to the provider error.
type ServiceError struct {
	BatchIndex int
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (batch %d): %v", ErrEmbedding, e.BatchIndex, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrEmbedding
}
