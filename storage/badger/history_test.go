package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/versed/core"
)

func errorsIs(err, target error) bool {
	return errors.Is(err, target)
}

func TestHistoryStore_AppendOrder(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := history.AppendTurns(ctx, "s1",
			core.Turn{Role: core.RoleHuman, Content: fmt.Sprintf("q%d", i)},
			core.Turn{Role: core.RoleAI, Content: fmt.Sprintf("a%d", i)},
		)
		if err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	turns, err := history.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Failed to read turns: %v", err)
	}
	if len(turns) != 6 {
		t.Fatalf("Expected 6 turns, got %d", len(turns))
	}
	for i := 0; i < 3; i++ {
		h, a := turns[2*i], turns[2*i+1]
		if h.Role != core.RoleHuman || h.Content != fmt.Sprintf("q%d", i) {
			t.Fatalf("Unexpected human turn at %d: %+v", i, h)
		}
		if a.Role != core.RoleAI || a.Content != fmt.Sprintf("a%d", i) {
			t.Fatalf("Unexpected ai turn at %d: %+v", i, a)
		}
		if h.Timestamp.IsZero() {
			t.Fatal("Expected timestamp to be set")
		}
	}
}

func TestHistoryStore_SessionsAreIsolated(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	if err := history.AppendTurns(ctx, "a", core.Turn{Role: core.RoleHuman, Content: "from a"}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := history.AppendTurns(ctx, "b", core.Turn{Role: core.RoleHuman, Content: "from b"}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	turns, _ := history.Turns(ctx, "a")
	if len(turns) != 1 || turns[0].Content != "from a" {
		t.Fatalf("Expected only session a turns, got %+v", turns)
	}

	unknown, err := history.Turns(ctx, "nobody")
	if err != nil {
		t.Fatalf("Unknown session should not error: %v", err)
	}
	if len(unknown) != 0 {
		t.Fatalf("Expected empty history, got %d", len(unknown))
	}

	if err := history.ClearSession(ctx, "a"); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	turns, _ = history.Turns(ctx, "a")
	if len(turns) != 0 {
		t.Fatalf("Expected cleared session, got %d turns", len(turns))
	}
	turns, _ = history.Turns(ctx, "b")
	if len(turns) != 1 {
		t.Fatalf("Expected session b untouched, got %d turns", len(turns))
	}
}

func TestHistoryStore_RejectsInvalidAppends(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	if err := history.AppendTurns(ctx, "", core.Turn{Role: core.RoleHuman, Content: "x"}); !errorsIs(err, core.ErrEmptySessionID) {
		t.Fatalf("Expected ErrEmptySessionID, got %v", err)
	}

	err = history.AppendTurns(ctx, "s",
		core.Turn{Role: core.RoleHuman, Content: "valid"},
		core.Turn{Role: "robot", Content: "invalid"},
	)
	if !errorsIs(err, core.ErrInvalidTurn) {
		t.Fatalf("Expected ErrInvalidTurn, got %v", err)
	}
	turns, _ := history.Turns(ctx, "s")
	if len(turns) != 0 {
		t.Fatalf("Expected all-or-nothing append, got %d turns", len(turns))
	}
}

func TestHistoryStore_ConcurrentSessions(t *testing.T) {
	chunks, history, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { history.Close(); chunks.Close(); backend.Close() }()

	ctx := context.Background()
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				err := history.AppendTurns(ctx, session, core.Turn{Role: core.RoleHuman, Content: fmt.Sprintf("%d", i)})
				if err != nil {
					t.Errorf("append failed: %v", err)
					return
				}
			}
		}(fmt.Sprintf("session-%d", s))
	}
	wg.Wait()

	for s := 0; s < 4; s++ {
		turns, err := history.Turns(ctx, fmt.Sprintf("session-%d", s))
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if len(turns) != 10 {
			t.Fatalf("Expected 10 turns, got %d", len(turns))
		}
		for i, turn := range turns {
			if turn.Content != fmt.Sprintf("%d", i) {
				t.Fatalf("Expected append order within a session, got %q at %d", turn.Content, i)
			}
		}
	}
}
