package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/versed/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder wraps a langchaingo embedder and checks the shape of what comes back.
// Every vector from one Embedder must have the same dimension, since they all
// land in the same vector store.
type Embedder struct {
	embedder  embeddings.Embedder
	dimension atomic.Int64
	logger    *slog.Logger
}

func newEmbedder(config *ai.Config, clientOpts ...openai.Option) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(clientOptions(config, config.EmbeddingHost, openai.WithEmbeddingModel(config.EmbeddingModel), clientOpts)...)
	if err != nil {
		return nil, err
	}
	inner, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.EmbeddingBatchSize),
	)
	if err != nil {
		return nil, err
	}
	return newEmbedderFrom(inner), nil
}

func newEmbedderFrom(inner embeddings.Embedder) *Embedder {
	return &Embedder{
		embedder: inner,
		logger:   slog.Default().With("component", "openai-embedder"),
	}
}

// NewEmbedder builds a standalone embedder from config.
func NewEmbedder(config *ai.Config, clientOpts ...openai.Option) (ai.Embedder, error) {
	return newEmbedder(config, clientOpts...)
}

// EmbedText embeds a question or other single query string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("query embedding failed", "length", len(text), "err", err)
		return nil, err
	}
	if err := e.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedTexts embeds chunk texts in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("document embedding failed", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", ErrEmbeddingShape, len(vectors), len(texts))
	}
	for _, v := range vectors {
		if err := e.checkDimension(v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// checkDimension records the first dimension seen and rejects any other.
func (e *Embedder) checkDimension(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrEmbeddingShape)
	}
	n := int64(len(v))
	if e.dimension.CompareAndSwap(0, n) {
		return nil
	}
	if want := e.dimension.Load(); want != n {
		return fmt.Errorf("%w: dimension %d, expected %d", ErrEmbeddingShape, n, want)
	}
	return nil
}
