package badger

import (
	"encoding/binary"

	"github.com/poiesic/versed/core"
)

// Key prefixes for different data types
const (
	chunkPrefix   = "chunk:"
	chunkIDSeq    = "chunkseq"
	historyPrefix = "hist:"
	historySeq    = "histseq"
)

// makeChunkKey generates a key for a chunk by ID.
// Format: prefix + big-endian id, so keys iterate in insertion order.
func makeChunkKey(id core.ID) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// chunkIDFromKey extracts the ID from a chunk key.
func chunkIDFromKey(key []byte) (core.ID, bool) {
	if len(key) != len(chunkPrefix)+8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(chunkPrefix):])), true
}

// makeHistoryKey generates a composite key for a session turn.
// Format: prefix + sessionHash + seq. Written big-endian so a session's
// turns sort in append order.
func makeHistoryKey(sessionID string, seq uint64) []byte {
	buf := makeSessionPrefix(sessionID)
	return binary.BigEndian.AppendUint64(buf, seq)
}

// makeSessionPrefix generates the partial key shared by all turns of a session.
func makeSessionPrefix(sessionID string) []byte {
	buf := make([]byte, len(historyPrefix)+8, len(historyPrefix)+16)
	offset := copy(buf, historyPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(sessionID)))
	return buf
}
