package semantic

import (
	"errors"
	"fmt"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingError reports that the semantic index could not obtain or use a vector.
type EmbeddingError struct {
	Op      string
	ChunkID string
	Err     error
}

func (e *EmbeddingError) Error() string {
	if e.ChunkID != "" {
		return fmt.Sprintf("embedding %s failed for chunk %s: %v", e.Op, e.ChunkID, e.Err)
	}
	return fmt.Sprintf("embedding %s failed: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
