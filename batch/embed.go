package batch

import (
	"context"
	"fmt"

	"github.com/poiesic/versed/ai"
)

// EmbedBatch embeds texts with the given retry policy and returns unit-length
// vectors in input order.
func EmbedBatch(ctx context.Context, embedder ai.Embedder, texts []string, policy RetryPolicy) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, policy, func(ctx context.Context) error {
		var err error
		vectors, err = embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCountMismatch, len(vectors), len(texts))
	}

	for i, v := range vectors {
		vectors[i] = NormalizeVector(v)
	}
	return vectors, nil
}
