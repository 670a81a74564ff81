package batch

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a RetryPolicy has MaxAttempts <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingCountMismatch is returned when an embedder returns a different
	// number of vectors than texts it was given
	ErrEmbeddingCountMismatch = errors.New("embedding count does not match input count")
)
