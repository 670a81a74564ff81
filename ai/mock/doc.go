// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Completer,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	completer := mock.NewMockCompleter()
//	completer.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
//	    return "The soul is eternal.", nil
//	}
//
//	// Assertions
//	count := completer.CallCount()
//	prompts := completer.Prompts()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns unit-length bag-of-words vectors, so texts that
//     share words score as similar
//   - MockCompleter: Returns DefaultCompletion and records the prompt
//   - MockProvider: Aggregates mock embedder and completer
//
// All mocks are safe for concurrent use.
package mock
