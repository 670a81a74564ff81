package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/storage"
)

// Report summarizes one ingestion run.
type Report struct {
	Source   string
	Sections int
	// Propagated counts sections whose chapter came from a preceding section.
	Propagated int
	Kept       int
	Chunks     int
	Stored     int
	Cleared    bool
	Elapsed    time.Duration
}

// Pipeline runs Load, PropagateMetadata, ContentFilter, Chunker and Indexer in order.
type Pipeline struct {
	store      storage.ChunkStore
	indexer    *Indexer
	loader     Loader
	filter     *ContentFilter
	chunker    *Chunker
	documentID string
	clearFirst bool
	logger     *slog.Logger

	indexerOpts []IndexerOption
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLoader forces a loader instead of choosing one by file extension.
func WithLoader(loader Loader) Option {
	return func(p *Pipeline) error {
		p.loader = loader
		return nil
	}
}

// WithDocumentID sets the source recorded on every chunk.
// Default is DefaultDocumentID.
func WithDocumentID(id string) Option {
	return func(p *Pipeline) error {
		p.documentID = id
		return nil
	}
}

// WithFilter replaces the default content filter.
func WithFilter(filter *ContentFilter) Option {
	return func(p *Pipeline) error {
		p.filter = filter
		return nil
	}
}

// WithChunking sets chunk size and overlap in runes.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		chunker, err := NewChunker(size, overlap)
		if err != nil {
			return err
		}
		p.chunker = chunker
		return nil
	}
}

// WithClearFirst empties the chunk store before indexing. Without it a
// second run appends duplicate chunks.
func WithClearFirst(clear bool) Option {
	return func(p *Pipeline) error {
		p.clearFirst = clear
		return nil
	}
}

// WithIndexerOptions passes options through to the pipeline's Indexer.
func WithIndexerOptions(opts ...IndexerOption) Option {
	return func(p *Pipeline) error {
		p.indexerOpts = append(p.indexerOpts, opts...)
		return nil
	}
}

// WithPipelineLogger sets a custom logger.
func WithPipelineLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. Call Release when done.
func NewPipeline(store storage.ChunkStore, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if provider == nil {
		return nil, ErrEmbedderRequired
	}

	chunker, err := NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		store:      store,
		filter:     NewContentFilter(),
		chunker:    chunker,
		documentID: DefaultDocumentID,
		logger:     slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	indexer, err := NewIndexer(store, provider.Embedder(), p.indexerOpts...)
	if err != nil {
		return nil, err
	}
	p.indexer = indexer
	return p, nil
}

// Run ingests the document at path.
func (p *Pipeline) Run(ctx context.Context, path string) (*Report, error) {
	started := time.Now()
	report := &Report{Source: path}

	loader := p.loader
	if loader == nil {
		var err error
		if loader, err = LoaderFor(path, p.documentID); err != nil {
			return nil, err
		}
	}

	sections, err := loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	report.Sections = len(sections)

	propagated := PropagateMetadata(sections, p.documentID)
	for i := range sections {
		if sections[i].Metadata.Chapter != propagated[i].Metadata.Chapter {
			report.Propagated++
		}
	}

	kept := p.filter.Apply(propagated)
	report.Kept = len(kept)

	chunks, err := p.chunker.Split(kept)
	if err != nil {
		return nil, err
	}
	report.Chunks = len(chunks)
	p.logger.Info("prepared chunks", "sections", report.Sections, "kept", report.Kept, "chunks", report.Chunks)

	if p.clearFirst {
		if err := p.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear store: %w", err)
		}
		report.Cleared = true
	}

	report.Stored, err = p.indexer.Index(ctx, chunks)
	report.Elapsed = time.Since(started)
	if err != nil {
		return report, err
	}
	return report, nil
}

// Release releases the indexer's worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.indexer != nil {
		p.indexer.Release()
	}
}
