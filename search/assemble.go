package search

import (
	"strings"

	"github.com/poiesic/versed/core"
)

// AssembleContext joins chunk contents with newlines, keeping retrieval order.
func AssembleContext(chunks []core.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Chunk == nil {
			continue
		}
		parts = append(parts, c.Chunk.PageContent)
	}
	return strings.Join(parts, "\n")
}
