package mock

import (
	"sync/atomic"

	"github.com/poiesic/versed/ai"
)

// MockProvider is a test double for ai.AIProvider that hands out a
// MockEmbedder and a MockCompleter and counts Close calls.
type MockProvider struct {
	embedder   *MockEmbedder
	completer  *MockCompleter
	closeCalls atomic.Int32
}

// NewMockProvider returns a provider backed by default mocks.
// Type-assert to *MockProvider to reach the mocks.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), NewMockCompleter())
}

// NewMockProviderWithServices wraps caller-configured mocks.
func NewMockProviderWithServices(embedder *MockEmbedder, completer *MockCompleter) ai.AIProvider {
	return &MockProvider{embedder: embedder, completer: completer}
}

func (p *MockProvider) Embedder() ai.Embedder   { return p.embedder }
func (p *MockProvider) Completer() ai.Completer { return p.completer }

func (p *MockProvider) Close() error {
	p.closeCalls.Add(1)
	return nil
}

// CloseCalls reports how many times Close ran.
func (p *MockProvider) CloseCalls() int { return int(p.closeCalls.Load()) }

func (p *MockProvider) GetMockEmbedder() *MockEmbedder   { return p.embedder }
func (p *MockProvider) GetMockCompleter() *MockCompleter { return p.completer }
