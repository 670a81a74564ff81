package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/batch"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

// BatchProcessor embeds batches of chunks and writes the new vectors back.
type BatchProcessor struct {
	store    storage.ChunkScanner
	embedder ai.Embedder
	policy   batch.RetryPolicy
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(store storage.ChunkScanner, embedder ai.Embedder, policy batch.RetryPolicy) *BatchProcessor {
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
		policy:   policy,
	}
}

// Process generates embeddings for a batch of chunks and updates them in the store.
// Vectors are normalized before they are written.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.PageContent
	}

	vectors, err := batch.EmbedBatch(ctx, bp.embedder, texts, bp.policy)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.policy.MaxAttempts, core.ClassifyCallError(err))
	}

	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	if err := bp.store.UpdateVectors(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}

	return nil
}
