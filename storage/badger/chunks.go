// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/versed/batch"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

// chunkStore implements storage.ChunkScanner for BadgerDB.
// Vectors are normalized on write so similarity is a plain dot product.
type chunkStore struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkScanner = (*chunkStore)(nil)

// NewChunkStore creates a chunk store on an open backend.
func NewChunkStore(backend *Backend) (storage.ChunkScanner, error) {
	return newChunkStore(backend)
}

func newChunkStore(backend *Backend) (*chunkStore, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}
	return &chunkStore{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence. The backend is closed by its owner.
func (s *chunkStore) Close() error {
	return s.idSeq.Release()
}

// AddChunks stores chunks under freshly generated sequential IDs.
func (s *chunkStore) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			id, err := nextID(s.idSeq)
			if err != nil {
				return err
			}
			chunk.Id = core.ID(id)
			chunk.Digest = core.IDFromContent(chunk.PageContent)
			chunk.Vector = batch.NormalizeVector(chunk.Vector)
			if chunk.InsertedAt.IsZero() {
				chunk.InsertedAt = now
			}

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// SimilarChunks scans every stored chunk and returns the k best by cosine similarity.
func (s *chunkStore) SimilarChunks(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	query := batch.NormalizeVector(vector)

	var results []core.ScoredChunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := readChunk(iter.Item())
			if err != nil {
				return err
			}

			// Skip chunks without embeddings
			if len(chunk.Vector) == 0 {
				continue
			}
			if len(chunk.Vector) != len(query) {
				return fmt.Errorf("%w: query has %d dimensions, chunk %d has %d",
					storage.ErrDimensionMismatch, len(query), chunk.Id, len(chunk.Vector))
			}

			results = append(results, core.ScoredChunk{
				Chunk: chunk,
				Score: batch.DotProduct(query, chunk.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending; ties keep insertion order
	slices.SortStableFunc(results, func(a, b core.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *chunkStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Clear removes every stored chunk. IDs keep increasing afterwards.
func (s *chunkStore) Clear(ctx context.Context) error {
	return s.backend.DropPrefix(chunkPrefix)
}

// ScanChunks returns up to limit chunks with ID greater than after.
func (s *chunkStore) ScanChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	var results []*core.Chunk
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(after + 1)); iter.Valid() && len(results) < limit; iter.Next() {
			if _, ok := chunkIDFromKey(iter.Item().Key()); !ok {
				continue
			}
			chunk, err := readChunk(iter.Item())
			if err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	return results, err
}

// UpdateVectors replaces the vectors of existing chunks.
func (s *chunkStore) UpdateVectors(ctx context.Context, chunks ...*core.Chunk) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)
			item, err := tx.Get(key)
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, chunk.Id)
			}
			if err != nil {
				return err
			}
			stored, err := readChunk(item)
			if err != nil {
				return err
			}

			stored.Vector = batch.NormalizeVector(chunk.Vector)
			chunk.Vector = stored.Vector
			if err := tx.Set(key, storage.MarshalChunk(stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func readChunk(item *badger.Item) (*core.Chunk, error) {
	var chunk *core.Chunk
	err := item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}
