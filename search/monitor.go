package search

import "github.com/poiesic/versed/core"

// RetrievalMonitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps, e.g. in debugging tools.
type RetrievalMonitor interface {
	Start(question string)
	AfterEmbedding(vector []float32)
	Finish(results []core.ScoredChunk)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = noopMonitor{}

func (noopMonitor) Start(_ string)              {}
func (noopMonitor) AfterEmbedding(_ []float32)  {}
func (noopMonitor) Finish(_ []core.ScoredChunk) {}
