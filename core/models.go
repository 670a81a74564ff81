package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/tmc/langchaingo/llms"
)

// RefusalAnswer is the fixed reply used when an answer cannot be determined
// from the retrieved context and conversation history.
const RefusalAnswer = "I am sorry. I do not know the answer."

// DefaultSessionID is used when a caller does not identify its conversation.
const DefaultSessionID = "123"

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleHuman is the person asking questions.
	RoleHuman Role = "human"
	// RoleAI is the assistant answering them.
	RoleAI Role = "ai"
)

// Turn is one message in a session's history. Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Metadata is the structural metadata carried by sections and chunks.
// An empty Chapter means the content precedes the first recognised chapter.
type Metadata struct {
	Source  string `json:"source"`
	Chapter string `json:"chapter,omitempty"`
}

// Section is one raw unit produced by a document loader.
type Section struct {
	PageContent string
	// Defined is false when the loader found no page content for the section.
	Defined  bool
	Metadata Metadata
}

// Chunk is a unit of retrievable text stored with its embedding.
type Chunk struct {
	Id          ID
	PageContent string
	Metadata    Metadata
	Vector      []float32
	// Digest is the content hash of PageContent.
	Digest     ID
	InsertedAt time.Time
}

// ScoredChunk is a chunk returned from a similarity query.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// HistorySnapshot is the read-only view of a session's history used as prompt
// input for a single turn. Text holds caller-supplied history when the
// conversation is not backed by a history store.
type HistorySnapshot struct {
	Turns []Turn
	Text  string
}

// Messages converts the stored turns into langchaingo chat messages.
// Roles other than human and ai keep their name as a generic speaker.
func (h HistorySnapshot) Messages() []llms.ChatMessage {
	msgs := make([]llms.ChatMessage, 0, len(h.Turns))
	for _, t := range h.Turns {
		switch t.Role {
		case RoleHuman:
			msgs = append(msgs, llms.HumanChatMessage{Content: t.Content})
		case RoleAI:
			msgs = append(msgs, llms.AIChatMessage{Content: t.Content})
		default:
			msgs = append(msgs, llms.GenericChatMessage{Role: string(t.Role), Content: t.Content})
		}
	}
	return msgs
}

// String renders the snapshot as alternating "Human:" and "AI:" lines.
// Caller-supplied text takes precedence over stored turns.
func (h HistorySnapshot) String() string {
	if h.Text != "" {
		return h.Text
	}
	// Only plain message types are produced, so rendering cannot fail.
	buf, _ := llms.GetBufferString(h.Messages(), "Human", "AI")
	return buf
}

// Empty reports whether the snapshot carries no history at all.
func (h HistorySnapshot) Empty() bool {
	return h.Text == "" && len(h.Turns) == 0
}
