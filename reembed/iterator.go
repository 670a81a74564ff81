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


package reembed

import (
	"context"

	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 100
)

// ChunkIterator walks all stored chunks in batches, in ascending ID order.
type ChunkIterator struct {
	store     storage.ChunkScanner
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch (DefaultBatchSize if <= 0)
func NewChunkIterator(store storage.ChunkScanner, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		store:     store,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of chunks.
// Iteration stops on first error from fn or when all chunks are visited.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	var after core.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks, err := it.store.ScanChunks(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		after = chunks[len(chunks)-1].Id

		if err := fn(chunks); err != nil {
			return err
		}

		if len(chunks) < it.batchSize {
			return nil
		}
	}
}
