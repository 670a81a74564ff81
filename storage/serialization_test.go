package storage

import (
	"testing"
	"time"

	"github.com/poiesic/versed/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name  string
		chunk *core.Chunk
	}{
		{
			name: "full chunk",
			chunk: &core.Chunk{
				Id:          7,
				PageContent: "Krishna speaks to Arjuna",
				Metadata:    core.Metadata{Source: "book.epub", Chapter: "Chapter 1"},
				Vector:      []float32{0.6, 0.8},
				Digest:      core.IDFromContent("Krishna speaks to Arjuna"),
				InsertedAt:  now,
			},
		},
		{
			name: "no chapter and no vector",
			chunk: &core.Chunk{
				Id:          1,
				PageContent: "preface",
				Metadata:    core.Metadata{Source: "book.epub"},
			},
		},
		{
			name: "multibyte text",
			chunk: &core.Chunk{
				Id:          1 << 40,
				PageContent: "कर्मण्येवाधिकारस्ते",
				Metadata:    core.Metadata{Source: "gita.epub", Chapter: "Chapter 2: Knowledge"},
				Vector:      []float32{-1, 0, 1e-7},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalChunk(tt.chunk)

			decoded, err := UnmarshalChunk(data)
			require.NoError(t, err)
			assert.Equal(t, tt.chunk.Id, decoded.Id)
			assert.Equal(t, tt.chunk.PageContent, decoded.PageContent)
			assert.Equal(t, tt.chunk.Metadata, decoded.Metadata)
			assert.Equal(t, tt.chunk.Vector, decoded.Vector)
			assert.Equal(t, tt.chunk.Digest, decoded.Digest)
			assert.True(t, tt.chunk.InsertedAt.Equal(decoded.InsertedAt))
			assert.Equal(t, tt.chunk.InsertedAt.IsZero(), decoded.InsertedAt.IsZero())
		})
	}
}

func TestMarshalChunk_SizeMatchesEncoding(t *testing.T) {
	rec := chunkRecord{Content: "x", Source: "s", Vector: []float32{1, 2, 3}}
	assert.Len(t, MarshalChunk(&core.Chunk{PageContent: "x", Metadata: core.Metadata{Source: "s"}, Vector: []float32{1, 2, 3}}), ChunkMUS.Size(rec))
}

func TestUnmarshalChunk_Invalid(t *testing.T) {
	_, err := UnmarshalChunk(nil)
	assert.ErrorIs(t, err, ErrTruncatedData)

	data := MarshalChunk(&core.Chunk{Id: 3, PageContent: "the field of dharma", Metadata: core.Metadata{Source: "s"}})
	_, err = UnmarshalChunk(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrSerializationFailed, "truncated value")

	_, err = UnmarshalChunk(append(data, 0))
	assert.ErrorIs(t, err, ErrSerializationFailed, "trailing bytes")
}

func TestMarshalUnmarshalTurn(t *testing.T) {
	turn := core.Turn{Role: core.RoleAI, Content: "An answer", Timestamp: time.Now()}

	data := MarshalTurn("session-1", turn)

	session, decoded, err := UnmarshalTurn(data)
	require.NoError(t, err)
	assert.Equal(t, "session-1", session)
	assert.Equal(t, turn.Role, decoded.Role)
	assert.Equal(t, turn.Content, decoded.Content)
	assert.True(t, turn.Timestamp.Equal(decoded.Timestamp))
}

func TestUnmarshalTurn_Invalid(t *testing.T) {
	_, _, err := UnmarshalTurn([]byte{})
	assert.ErrorIs(t, err, ErrTruncatedData)

	data := MarshalTurn("s1", core.Turn{Role: core.RoleHuman, Content: "hello"})
	_, _, err = UnmarshalTurn(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
