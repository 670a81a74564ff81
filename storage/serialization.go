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


package storage

import (
	"fmt"

	"github.com/poiesic/versed/core"
)

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	rec := chunkRecord{
		Id:         chunk.Id,
		Content:    chunk.PageContent,
		Source:     chunk.Metadata.Source,
		Chapter:    chunk.Metadata.Chapter,
		Vector:     chunk.Vector,
		Digest:     chunk.Digest,
		InsertedAt: chunk.InsertedAt,
	}
	buf := make([]byte, ChunkMUS.Size(rec))
	ChunkMUS.Marshal(rec, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	rec, n, err := ChunkMUS.Unmarshal(data)
	if err := decodeError(err, n, len(data)); err != nil {
		return nil, err
	}
	return &core.Chunk{
		Id:          rec.Id,
		PageContent: rec.Content,
		Metadata:    core.Metadata{Source: rec.Source, Chapter: rec.Chapter},
		Vector:      rec.Vector,
		Digest:      rec.Digest,
		InsertedAt:  rec.InsertedAt,
	}, nil
}

// MarshalTurn serializes a Turn together with the session it belongs to.
func MarshalTurn(sessionID string, turn core.Turn) []byte {
	rec := turnRecord{
		SessionID: sessionID,
		Role:      turn.Role,
		Content:   turn.Content,
		Timestamp: turn.Timestamp,
	}
	buf := make([]byte, TurnMUS.Size(rec))
	TurnMUS.Marshal(rec, buf)
	return buf
}

// UnmarshalTurn deserializes a Turn and returns the session it was stored under.
func UnmarshalTurn(data []byte) (string, core.Turn, error) {
	if len(data) == 0 {
		return "", core.Turn{}, ErrTruncatedData
	}
	rec, n, err := TurnMUS.Unmarshal(data)
	if err := decodeError(err, n, len(data)); err != nil {
		return "", core.Turn{}, err
	}
	return rec.SessionID, core.Turn{
		Role:      rec.Role,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
	}, nil
}

// decodeError rejects failed decodes and values with trailing bytes.
func decodeError(err error, read, total int) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if read != total {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, total-read)
	}
	return nil
}
