package badger

import "github.com/poiesic/versed/storage"

// NewMemoryStores creates in-memory chunk and history stores for testing.
// Returns chunks, history, backend, and error.
// Caller must close both stores and then the backend when done.
func NewMemoryStores() (storage.ChunkScanner, storage.HistoryStore, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	chunks, err := NewChunkStore(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	history, err := NewHistoryStore(backend)
	if err != nil {
		chunks.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return chunks, history, backend, nil
}
