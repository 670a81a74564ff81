package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/versed/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIterator_Batches(t *testing.T) {
	store := setupTestStore(t)
	added := addChunks(t, store, 7)

	var sizes []int
	var seen []core.ID
	it := NewChunkIterator(store, 3)
	err := it.ForEach(context.Background(), func(chunks []*core.Chunk) error {
		sizes = append(sizes, len(chunks))
		for _, c := range chunks {
			seen = append(seen, c.Id)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, sizes)
	require.Len(t, seen, 7)
	for i, c := range added {
		assert.Equal(t, c.Id, seen[i], "ascending id order")
	}
}

func TestChunkIterator_ExactMultiple(t *testing.T) {
	store := setupTestStore(t)
	addChunks(t, store, 4)

	calls := 0
	err := NewChunkIterator(store, 2).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestChunkIterator_Empty(t *testing.T) {
	store := setupTestStore(t)

	called := false
	err := NewChunkIterator(store, 10).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	store := setupTestStore(t)
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(store, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(store, -5).batchSize)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	store := setupTestStore(t)
	addChunks(t, store, 6)

	stop := errors.New("stop")
	calls := 0
	err := NewChunkIterator(store, 2).ForEach(context.Background(), func(chunks []*core.Chunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_ContextCanceled(t *testing.T) {
	store := setupTestStore(t)
	addChunks(t, store, 6)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewChunkIterator(store, 2).ForEach(ctx, func(chunks []*core.Chunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
