package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/versed/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "missing directories are created")
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(*badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestGetSequence_SkipsZero(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("test_sequence")
	require.NoError(t, err)
	defer seq.Release()

	id1, err := nextID(seq)
	require.NoError(t, err)
	id2, err := nextID(seq)
	require.NoError(t, err)

	assert.NotZero(t, id1)
	assert.Greater(t, id2, id1)
}

func TestDeleteKeysAndDropPrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	keys := [][]byte{[]byte("a:1"), []byte("a:2"), []byte("b:1")}
	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		for _, k := range keys {
			if err := tx.Set(k, []byte("v")); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true))

	require.NoError(t, backend.DeleteKeys(context.Background(), keys[:1]))
	require.NoError(t, backend.DropPrefix("b:"))

	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte("a:1"))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		_, err = tx.Get([]byte("a:2"))
		assert.NoError(t, err)
		_, err = tx.Get([]byte("b:1"))
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
		return nil
	}, false))
}

func TestHistoryKeys_OrderWithinSession(t *testing.T) {
	prefix := makeSessionPrefix("abc")
	k1 := makeHistoryKey("abc", 1)
	k2 := makeHistoryKey("abc", 256)

	assert.Equal(t, prefix, k1[:len(prefix)])
	assert.Less(t, string(k1), string(k2), "big-endian keys sort by sequence")
	assert.NotEqual(t, prefix, makeSessionPrefix("abd"))
}

func TestChunkKeys(t *testing.T) {
	id, ok := chunkIDFromKey(makeChunkKey(42))
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	_, ok = chunkIDFromKey([]byte(chunkIDSeq))
	assert.False(t, ok)
}
