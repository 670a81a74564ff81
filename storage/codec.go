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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/versed/core"
)

// chunkRecord is the persisted form of a chunk.
type chunkRecord struct {
	Id         core.ID
	Content    string
	Source     string
	Chapter    string
	Vector     []float32
	Digest     core.ID
	InsertedAt time.Time
}

// turnRecord is the persisted form of a conversation turn.
type turnRecord struct {
	SessionID string
	Role      core.Role
	Content   string
	Timestamp time.Time
}

var (
	// ChunkMUS encodes chunk records in field order. Times are Unix nanoseconds,
	// with zero standing for the zero time.
	ChunkMUS = chunkMUS{}
	// TurnMUS encodes turn records in field order.
	TurnMUS = turnMUS{}

	vectorMUS = ord.NewSliceSer[float32](raw.Float32)
)

func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type chunkMUS struct{}

func (chunkMUS) Marshal(v chunkRecord, bs []byte) (n int) {
	n = raw.Uint64.Marshal(uint64(v.Id), bs)
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Source, bs[n:])
	n += ord.String.Marshal(v.Chapter, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += raw.Uint64.Marshal(uint64(v.Digest), bs[n:])
	n += varint.Int64.Marshal(timeToNanos(v.InsertedAt), bs[n:])
	return
}

func (chunkMUS) Unmarshal(bs []byte) (v chunkRecord, n int, err error) {
	var (
		id, digest uint64
		nanos      int64
		n1         int
	)
	if id, n, err = raw.Uint64.Unmarshal(bs); err != nil {
		return
	}
	v.Id = core.ID(id)
	if v.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Chapter, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if len(v.Vector) == 0 {
		v.Vector = nil
	}
	if digest, n1, err = raw.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Digest = core.ID(digest)
	if nanos, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.InsertedAt = nanosToTime(nanos)
	return
}

func (chunkMUS) Size(v chunkRecord) (size int) {
	size = raw.Uint64.Size(uint64(v.Id))
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Source)
	size += ord.String.Size(v.Chapter)
	size += vectorMUS.Size(v.Vector)
	size += raw.Uint64.Size(uint64(v.Digest))
	return size + varint.Int64.Size(timeToNanos(v.InsertedAt))
}

func (chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = ChunkMUS.Unmarshal(bs)
	return
}

type turnMUS struct{}

func (turnMUS) Marshal(v turnRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.SessionID, bs)
	n += ord.String.Marshal(string(v.Role), bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += varint.Int64.Marshal(timeToNanos(v.Timestamp), bs[n:])
	return
}

func (turnMUS) Unmarshal(bs []byte) (v turnRecord, n int, err error) {
	var (
		role  string
		nanos int64
		n1    int
	)
	if v.SessionID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if role, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Role = core.Role(role)
	if v.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if nanos, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Timestamp = nanosToTime(nanos)
	return
}

func (turnMUS) Size(v turnRecord) (size int) {
	size = ord.String.Size(v.SessionID)
	size += ord.String.Size(string(v.Role))
	size += ord.String.Size(v.Content)
	return size + varint.Int64.Size(timeToNanos(v.Timestamp))
}

func (turnMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = TurnMUS.Unmarshal(bs)
	return
}
