package badger

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

func newChunk(text, chapter string, vector ...float32) *core.Chunk {
	return &core.Chunk{
		PageContent: text,
		Metadata:    core.Metadata{Source: "book.epub", Chapter: chapter},
		Vector:      vector,
	}
}

func TestChunkStoreBasics(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()

	added, err := chunks.AddChunks(ctx,
		newChunk("The soul is eternal", "Chapter 2", 3, 4),
		newChunk("Preface text", "", 1, 0),
	)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(added))
	}
	if added[0].Id == 0 || added[1].Id <= added[0].Id {
		t.Fatalf("Expected increasing non-zero IDs, got %d and %d", added[0].Id, added[1].Id)
	}
	if added[0].Digest != core.IDFromContent("The soul is eternal") {
		t.Fatal("Expected content digest to be set")
	}
	if added[0].InsertedAt.IsZero() {
		t.Fatal("Expected InsertedAt to be set")
	}

	count, err := chunks.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected count 2, got %d", count)
	}
}

func TestChunkStore_RejectsInvalidChunks(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	_, err = chunks.AddChunks(ctx, &core.Chunk{PageContent: "no source"})
	if err == nil {
		t.Fatal("Expected error for chunk without source")
	}
	_, err = chunks.AddChunks(ctx, newChunk("   ", "Chapter 1"))
	if err == nil {
		t.Fatal("Expected error for empty chunk")
	}

	count, _ := chunks.Count(ctx)
	if count != 0 {
		t.Fatalf("Expected nothing stored, got %d", count)
	}
}

func TestSimilarChunks_Ordering(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	_, err = chunks.AddChunks(ctx,
		newChunk("orthogonal", "C", 0, 0, 1),
		newChunk("close", "B", 0.9, 0.1, 0),
		newChunk("exact", "A", 5, 0, 0),
		newChunk("unembedded", "D"),
	)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	results, err := chunks.SimilarChunks(ctx, []float32{2, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.PageContent != "exact" || results[1].Chunk.PageContent != "close" {
		t.Fatalf("Unexpected order: %q, %q", results[0].Chunk.PageContent, results[1].Chunk.PageContent)
	}
	if math.Abs(float64(results[0].Score)-1) > 1e-5 {
		t.Fatalf("Expected score 1 for identical direction, got %f", results[0].Score)
	}
	if results[0].Chunk.Metadata.Chapter != "A" {
		t.Fatalf("Expected metadata to survive storage, got %+v", results[0].Chunk.Metadata)
	}
}

func TestSimilarChunks_EmptyStoreAndBadK(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	results, err := chunks.SimilarChunks(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Empty store should not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Expected no results, got %d", len(results))
	}

	if _, err := chunks.SimilarChunks(ctx, []float32{1, 0}, 0); err == nil {
		t.Fatal("Expected error for k=0")
	}
}

func TestSimilarChunks_DimensionMismatch(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	if _, err := chunks.AddChunks(ctx, newChunk("x", "A", 1, 0, 0)); err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}
	_, err = chunks.SimilarChunks(ctx, []float32{1, 0}, 1)
	if err == nil {
		t.Fatal("Expected dimension mismatch error")
	}
}

func TestChunkStore_ReingestAppendsDuplicates(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := chunks.AddChunks(ctx, newChunk("same text", "A", 1, 0)); err != nil {
			t.Fatalf("Failed to add chunk: %v", err)
		}
	}
	count, _ := chunks.Count(ctx)
	if count != 2 {
		t.Fatalf("Expected duplicates to be appended, got %d", count)
	}

	if err := chunks.Clear(ctx); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	count, _ = chunks.Count(ctx)
	if count != 0 {
		t.Fatalf("Expected empty store after clear, got %d", count)
	}
}

func TestScanChunksAndUpdateVectors(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := chunks.AddChunks(ctx, newChunk(fmt.Sprintf("chunk %d", i), "A", 1, 0)); err != nil {
			t.Fatalf("Failed to add chunk: %v", err)
		}
	}

	var seen []*core.Chunk
	var after core.ID
	for {
		page, err := chunks.ScanChunks(ctx, after, 2)
		if err != nil {
			t.Fatalf("Failed to scan: %v", err)
		}
		if len(page) == 0 {
			break
		}
		seen = append(seen, page...)
		after = page[len(page)-1].Id
	}
	if len(seen) != 5 {
		t.Fatalf("Expected to scan 5 chunks, got %d", len(seen))
	}
	for i, c := range seen {
		if c.PageContent != fmt.Sprintf("chunk %d", i) {
			t.Fatalf("Expected insertion order, got %q at %d", c.PageContent, i)
		}
	}

	seen[0].Vector = []float32{0, 2}
	if err := chunks.UpdateVectors(ctx, seen[0]); err != nil {
		t.Fatalf("Failed to update vectors: %v", err)
	}
	results, err := chunks.SimilarChunks(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if results[0].Chunk.Id != seen[0].Id {
		t.Fatalf("Expected updated chunk to rank first, got %d", results[0].Chunk.Id)
	}
	if results[0].Chunk.Vector[1] != 1 {
		t.Fatalf("Expected normalized vector, got %v", results[0].Chunk.Vector)
	}

	missing := &core.Chunk{Id: 9999, Vector: []float32{1, 0}}
	if err := chunks.UpdateVectors(ctx, missing); err == nil || !errorsIs(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
