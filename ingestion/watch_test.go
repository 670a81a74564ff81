package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/versed/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReingestsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(path, []byte("# One\nfirst version\n"), 0644))

	store := newTestChunkStore(t)
	p, err := NewPipeline(store, mock.NewMockProvider(), WithClearFirst(true), WithDocumentID("book.txt"))
	require.NoError(t, err)
	defer p.Release()

	runs := make(chan *Report, 4)
	w := NewWatcher(p, path, 20*time.Millisecond, func(r *Report, err error) {
		assert.NoError(t, err)
		runs <- r
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("# One\nsecond version\n# Two\nmore\n"), 0644))

	select {
	case r := <-runs:
		assert.True(t, r.Cleared)
		assert.Equal(t, 2, r.Stored)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not re-ingest")
	}

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
