package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/batch"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

// DefaultIndexBatchSize is the number of chunks embedded per request.
const DefaultIndexBatchSize = 100

// Indexer embeds chunks in batches on a worker pool and writes them to a chunk store.
type Indexer struct {
	store     storage.ChunkStore
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	policy    batch.RetryPolicy
	progress  io.Writer
	logger    *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer) error

// WithPoolSize sets the number of batches embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) IndexerOption {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		ix.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of chunks per embedding request.
func WithBatchSize(size int) IndexerOption {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		ix.batchSize = size
		return nil
	}
}

// WithRetryPolicy overrides the embedding retry policy.
func WithRetryPolicy(policy batch.RetryPolicy) IndexerOption {
	return func(ix *Indexer) error {
		ix.policy = policy
		return nil
	}
}

// WithProgress reports progress to w, typically os.Stderr.
func WithProgress(w io.Writer) IndexerOption {
	return func(ix *Indexer) error {
		ix.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger.With("component", "indexer")
		return nil
	}
}

// NewIndexer creates an indexer. Call Release when done.
func NewIndexer(store storage.ChunkStore, embedder ai.Embedder, opts ...IndexerOption) (*Indexer, error) {
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	ix := &Indexer{
		store:     store,
		embedder:  embedder,
		batchSize: DefaultIndexBatchSize,
		policy:    batch.DefaultRetryPolicy(),
		logger:    slog.Default().With("component", "indexer"),
	}
	if err := WithPoolSize(max(runtime.NumCPU()/2, 1))(ix); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			ix.Release()
			return nil, err
		}
	}
	return ix, nil
}

// Index embeds and stores chunks. It waits for every batch and returns the
// number stored along with all batch errors joined.
func (ix *Indexer) Index(ctx context.Context, chunks []*core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tracker := batch.NewProgressTracker(ix.progress, len(chunks), ix.batchSize).WithLabel("Indexing", "chunks")
	tracker.Start()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		stored int
	)
	record := func(n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		stored += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	for start := 0; start < len(chunks); start += ix.batchSize {
		part := chunks[start:min(start+ix.batchSize, len(chunks))]
		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			n, err := ix.indexBatch(ctx, part)
			record(n, err)
			tracker.Increment(len(part))
		})
		if err != nil {
			wg.Done()
			record(0, fmt.Errorf("submit batch: %w", err))
		}
	}
	wg.Wait()
	tracker.Finish()

	if len(errs) > 0 {
		return stored, errors.Join(errs...)
	}
	ix.logger.Info("indexed chunks", "count", stored, "elapsed", tracker.Elapsed())
	return stored, nil
}

func (ix *Indexer) indexBatch(ctx context.Context, chunks []*core.Chunk) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.PageContent
	}

	vectors, err := batch.EmbedBatch(ctx, ix.embedder, texts, ix.policy)
	if err != nil {
		ix.logger.Error("error generating embeddings", "chunks", len(chunks), "err", err)
		return 0, fmt.Errorf("embed batch: %w", core.ClassifyCallError(err))
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	if _, err := ix.store.AddChunks(ctx, chunks...); err != nil {
		ix.logger.Error("error storing chunks", "chunks", len(chunks), "err", err)
		return 0, fmt.Errorf("store batch: %w", err)
	}
	return len(chunks), nil
}

// Release releases the worker pool.
// The indexer should not be used after calling Release.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}
