package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 2

// Retriever embeds a question and fetches the most similar chunks.
type Retriever struct {
	store       storage.ChunkStore
	embedder    ai.Embedder
	topK        int
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithTopK sets how many chunks are returned.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return fmt.Errorf("%w: top k must be positive, got %d", storage.ErrInvalidQuery, k)
		}
		r.topK = k
		return nil
	}
}

// WithCallTimeout bounds each external call. Zero leaves calls unbounded
// apart from the caller's context.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Retriever) error {
		r.callTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(store storage.ChunkStore, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		store:    store,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// TopK returns the configured number of chunks per question.
func (r *Retriever) TopK() int { return r.topK }

// Retrieve returns up to TopK chunks ordered by descending similarity.
// An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]core.ScoredChunk, error) {
	return r.RetrieveWithMonitor(ctx, question, nil)
}

// RetrieveWithMonitor is Retrieve with hooks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, question string, monitor RetrievalMonitor) ([]core.ScoredChunk, error) {
	if monitor == nil {
		monitor = noopMonitor{}
	}
	monitor.Start(question)

	vector, err := withTimeout(ctx, r.callTimeout, func(ctx context.Context) ([]float32, error) {
		return r.embedder.EmbedText(ctx, question)
	})
	if err != nil {
		r.logger.Error("error generating embedding for question", "err", err)
		return nil, retrievalError("embed question", err)
	}
	monitor.AfterEmbedding(vector)

	results, err := withTimeout(ctx, r.callTimeout, func(ctx context.Context) ([]core.ScoredChunk, error) {
		return r.store.SimilarChunks(ctx, vector, r.topK)
	})
	if err != nil {
		r.logger.Error("error querying for similar chunks", "err", err)
		return nil, retrievalError("query chunks", err)
	}
	if results == nil {
		results = []core.ScoredChunk{}
	}

	r.logger.Debug("retrieved chunks", "count", len(results))
	monitor.Finish(results)
	return results, nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func retrievalError(stage string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrRetrievalUnavailable, stage, core.ClassifyCallError(err))
}
