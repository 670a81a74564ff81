package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer turns a fully rendered prompt into model text.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends prompt to the language model and returns its raw text output.
	// The configured sampling temperature is applied unless overridden by options.
	Complete(ctx context.Context, prompt string, opts ...CompletionOption) (string, error)
}

// CompletionOptions holds per-call overrides for a completion.
type CompletionOptions struct {
	// Temperature overrides the configured temperature when non-nil.
	Temperature *float64
	// MaxTokens caps the completion length when positive.
	MaxTokens int
}

// CompletionOption adjusts a single completion call.
type CompletionOption func(*CompletionOptions)

// WithCallTemperature overrides the sampling temperature for one call.
func WithCallTemperature(t float64) CompletionOption {
	return func(o *CompletionOptions) {
		o.Temperature = &t
	}
}

// WithMaxTokens caps the completion length for one call.
func WithMaxTokens(n int) CompletionOption {
	return func(o *CompletionOptions) {
		o.MaxTokens = n
	}
}

// ApplyCompletionOptions folds opts into a CompletionOptions value.
func ApplyCompletionOptions(opts ...CompletionOption) CompletionOptions {
	var o CompletionOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Completer instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Completer returns the language model completion service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
