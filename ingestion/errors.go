package ingestion

import "errors"

var (
	// ErrChunkStoreRequired is returned when a chunk store is not provided.
	ErrChunkStoreRequired = errors.New("chunk store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrLoaderRequired is returned when a pipeline has no loader for its input.
	ErrLoaderRequired = errors.New("loader required")

	// ErrUnsupportedFormat is returned for source files no loader understands.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrInvalidEPUB is returned when an EPUB archive is missing required parts.
	ErrInvalidEPUB = errors.New("invalid epub")

	// ErrInvalidChunkSize is returned when chunk size or overlap are out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")
)
