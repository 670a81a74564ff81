package mock

import (
	"context"
	"sync"

	"github.com/poiesic/versed/ai"
)

// DefaultCompletion is returned by MockCompleter when no behavior is injected.
const DefaultCompletion = "mock completion"

// MockCompleter is a test double for ai.Completer.
// It records every prompt it receives.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, returns DefaultCompletion.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	mu           sync.Mutex
	prompts      []string
	temperatures []*float64
}

// NewMockCompleter creates a mock completer with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockCompleter().
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete records the prompt and returns the injected or default completion.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, opts ...ai.CompletionOption) (string, error) {
	var callOpts ai.CompletionOptions
	for _, opt := range opts {
		opt(&callOpts)
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.temperatures = append(m.temperatures, callOpts.Temperature)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return DefaultCompletion, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Temperatures returns the per-call temperature override of every call,
// nil where none was given.
func (m *MockCompleter) Temperatures() []*float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*float64(nil), m.temperatures...)
}

// Reset clears recorded prompts and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.temperatures = nil
	m.CompleteFunc = nil
}
