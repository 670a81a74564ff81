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


// Package storage provides the storage abstraction layer for versed.
//
// It defines two store interfaces that decouple persistence from the
// ingestion and chat pipelines:
//
//   - ChunkStore: embedded document chunks and top-k similarity queries
//   - HistoryStore: ordered conversation turns per session
//
// ChunkScanner extends ChunkStore for backends that can rewrite their own
// vectors, which re-embedding needs.
//
// # Backends
//
//   - storage/badger: embedded local store for both chunks and history
//   - storage/supabase: PostgREST "documents" table and "match_documents" RPC
//   - storage/upstash: Redis lists in LangChain's message history layout
//
// # Constructor Return Type Pattern
//
// Public constructors return the interface so backends stay swappable:
//
//	chunks, err := badger.NewChunkStore(backend)  // returns storage.ChunkScanner
//
// Internal package constructors (newChunkStore, newHistoryStore) may return
// concrete types since they're only used within the implementation package.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	chunks, history, backend, err := badger.NewMemoryStores()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All store implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
