package storage

import (
	"context"

	"github.com/poiesic/versed/core"
)

// ChunkStore persists embedded document chunks and answers similarity queries.
// Implementations must be thread-safe and support concurrent access.
type ChunkStore interface {
	// AddChunks stores one or more chunks.
	// Assigns IDs and InsertedAt when the backend generates them.
	// Re-adding identical content appends a new chunk; it does not deduplicate.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// SimilarChunks returns up to k chunks ordered by similarity to vector,
	// highest first. An empty store yields an empty result, not an error.
	SimilarChunks(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Clear removes every stored chunk.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// ChunkScanner is implemented by chunk stores that can walk and rewrite
// their own contents, which re-embedding requires.
type ChunkScanner interface {
	ChunkStore

	// ScanChunks returns up to limit chunks with ID greater than after,
	// in ascending ID order. Pass 0 to start from the beginning.
	ScanChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error)

	// UpdateVectors replaces the stored vectors of existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateVectors(ctx context.Context, chunks ...*core.Chunk) error
}

// HistoryStore holds the ordered turns of every conversation session.
// Implementations must be thread-safe. Sessions are created implicitly
// on first append.
type HistoryStore interface {
	// AppendTurns appends turns to a session in the given order.
	// Either all turns are appended or none are.
	AppendTurns(ctx context.Context, sessionID string, turns ...core.Turn) error

	// Turns returns every turn of a session in append order.
	// An unknown session yields an empty result.
	Turns(ctx context.Context, sessionID string) ([]core.Turn, error)

	// ClearSession removes all turns of a session.
	ClearSession(ctx context.Context, sessionID string) error

	// Close releases resources held by the store.
	Close() error
}
