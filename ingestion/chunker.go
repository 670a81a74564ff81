package ingestion

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/versed/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the overlap between consecutive chunks in runes.
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order when splitting.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits sections into overlapping chunks that keep their metadata.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	size     int
	overlap  int
}

// NewChunker creates a recursive character chunker. Sizes are in runes.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunkSize, size, overlap)
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(DefaultSeparators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
		size:    size,
		overlap: overlap,
	}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Split chunks every section. Blank chunks are dropped.
func (c *Chunker) Split(sections []core.Section) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	for _, s := range sections {
		parts, err := c.splitter.SplitText(s.PageContent)
		if err != nil {
			return nil, fmt.Errorf("split section %q: %w", s.Metadata.Chapter, err)
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, &core.Chunk{
				PageContent: part,
				Metadata:    s.Metadata,
			})
		}
	}
	return chunks, nil
}
