package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "The soul is eternal, unborn, and never perishes when the body is slain.",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("session-a")
	id2 := IDFromContent("session-b")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestHistorySnapshot_String(t *testing.T) {
	tests := []struct {
		name     string
		snapshot HistorySnapshot
		want     string
	}{
		{
			name:     "empty",
			snapshot: HistorySnapshot{},
			want:     "",
		},
		{
			name: "alternating turns",
			snapshot: HistorySnapshot{Turns: []Turn{
				{Role: RoleHuman, Content: "Who is Arjuna?"},
				{Role: RoleAI, Content: "A warrior prince."},
			}},
			want: "Human: Who is Arjuna?\nAI: A warrior prince.",
		},
		{
			name: "unknown role keeps its name",
			snapshot: HistorySnapshot{Turns: []Turn{
				{Role: RoleHuman, Content: "Who speaks?"},
				{Role: Role("narrator"), Content: "Sanjaya."},
			}},
			want: "Human: Who speaks?\nnarrator: Sanjaya.",
		},
		{
			name: "caller text wins over turns",
			snapshot: HistorySnapshot{
				Text:  "Human: hi\nAI: hello",
				Turns: []Turn{{Role: RoleHuman, Content: "ignored"}},
			},
			want: "Human: hi\nAI: hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snapshot.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistorySnapshot_Messages(t *testing.T) {
	snapshot := HistorySnapshot{Turns: []Turn{
		{Role: RoleHuman, Content: "q"},
		{Role: RoleAI, Content: "a"},
		{Role: Role("narrator"), Content: "n"},
	}}

	msgs := snapshot.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Messages() returned %d messages, want 3", len(msgs))
	}
	if _, ok := msgs[0].(llms.HumanChatMessage); !ok {
		t.Errorf("message 0 is %T, want llms.HumanChatMessage", msgs[0])
	}
	if _, ok := msgs[1].(llms.AIChatMessage); !ok {
		t.Errorf("message 1 is %T, want llms.AIChatMessage", msgs[1])
	}
	generic, ok := msgs[2].(llms.GenericChatMessage)
	if !ok {
		t.Fatalf("message 2 is %T, want llms.GenericChatMessage", msgs[2])
	}
	if generic.Role != "narrator" || generic.Content != "n" {
		t.Errorf("generic message = %+v", generic)
	}
}

func TestHistorySnapshot_Empty(t *testing.T) {
	if !(HistorySnapshot{}).Empty() {
		t.Error("zero snapshot should be empty")
	}
	if (HistorySnapshot{Text: "x"}).Empty() {
		t.Error("snapshot with text should not be empty")
	}
	if (HistorySnapshot{Turns: []Turn{{Role: RoleAI, Content: "x"}}}).Empty() {
		t.Error("snapshot with turns should not be empty")
	}
}

func TestClassifyCallError(t *testing.T) {
	cause := errors.New("connection refused")

	if ClassifyCallError(nil) != nil {
		t.Fatal("nil should stay nil")
	}

	err := ClassifyCallError(cause)
	if !errors.Is(err, ErrUpstreamUnavailable) || !errors.Is(err, cause) {
		t.Errorf("transport error = %v, want ErrUpstreamUnavailable wrapping cause", err)
	}

	err = ClassifyCallError(fmt.Errorf("embed: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrDownstreamTimeout) {
		t.Errorf("deadline error = %v, want ErrDownstreamTimeout", err)
	}

	err = ClassifyCallError(context.Canceled)
	if errors.Is(err, ErrUpstreamUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("canceled error = %v, want plain context.Canceled", err)
	}

	already := fmt.Errorf("%w: %w", ErrDownstreamTimeout, cause)
	if got := ClassifyCallError(already); got != already {
		t.Errorf("classified error should pass through unchanged, got %v", got)
	}
}
