package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/versed/ai/mock"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/search"
	"github.com/poiesic/versed/storage"
	"github.com/poiesic/versed/storage/badger"
	"github.com/stretchr/testify/require"
)

type rewriterFunc func(ctx context.Context, question, history string) (string, error)

func (f rewriterFunc) Rewrite(ctx context.Context, question, history string) (string, error) {
	return f(ctx, question, history)
}

type synthesizerFunc func(ctx context.Context, contextText, history, question string) (string, error)

func (f synthesizerFunc) Synthesize(ctx context.Context, contextText, history, question string) (string, error) {
	return f(ctx, contextText, history, question)
}

// passthroughRewriter returns the question unchanged.
var passthroughRewriter = rewriterFunc(func(_ context.Context, question, _ string) (string, error) {
	return question, nil
})

// echoSynthesizer answers with a string derived from the question.
var echoSynthesizer = synthesizerFunc(func(_ context.Context, _, _, question string) (string, error) {
	return "answer to " + question, nil
})

// failingHistory delegates to a real store but fails appends or reads
// when the matching error is set. It records the session of every read.
type failingHistory struct {
	storage.HistoryStore
	appendErr error
	readErr   error

	mu    sync.Mutex
	reads []string
}

func (f *failingHistory) readSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reads...)
}

func (f *failingHistory) AppendTurns(ctx context.Context, sessionID string, turns ...core.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.HistoryStore.AppendTurns(ctx, sessionID, turns...)
}

func (f *failingHistory) Turns(ctx context.Context, sessionID string) ([]core.Turn, error) {
	f.mu.Lock()
	f.reads = append(f.reads, sessionID)
	f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.HistoryStore.Turns(ctx, sessionID)
}

type recordingMonitor struct {
	mu             sync.Mutex
	stages         []Stage
	persistErrs    []error
	finished       []Stage
	finishedErrors []error
}

func (m *recordingMonitor) StageEntered(state *TurnState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, state.Stage)
}

func (m *recordingMonitor) HistoryPersistFailed(state *TurnState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistErrs = append(m.persistErrs, err)
}

func (m *recordingMonitor) TurnFinished(state *TurnState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, state.Stage)
	m.finishedErrors = append(m.finishedErrors, err)
}

type harness struct {
	chunks   storage.ChunkScanner
	history  storage.HistoryStore
	embedder *mock.MockEmbedder
	deps     Deps
}

// newHarness builds in-memory stores holding texts as chapter one of a book,
// a retriever over them, and pass-through stages.
func newHarness(t *testing.T, texts ...string) *harness {
	t.Helper()
	chunks, history, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		history.Close()
		chunks.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	ctx := context.Background()
	for _, text := range texts {
		vec, err := embedder.EmbedText(ctx, text)
		require.NoError(t, err)
		_, err = chunks.AddChunks(ctx, &core.Chunk{
			PageContent: text,
			Metadata:    core.Metadata{Source: "book.epub", Chapter: "Chapter 1"},
			Vector:      vec,
		})
		require.NoError(t, err)
	}

	retriever, err := search.NewRetriever(chunks, embedder)
	require.NoError(t, err)

	return &harness{
		chunks:   chunks,
		history:  history,
		embedder: embedder,
		deps: Deps{
			Rewriter:    passthroughRewriter,
			Retriever:   retriever,
			Synthesizer: echoSynthesizer,
			History:     history,
		},
	}
}

func (h *harness) turns(t *testing.T, sessionID string) []core.Turn {
	t.Helper()
	turns, err := h.history.Turns(context.Background(), sessionID)
	require.NoError(t, err)
	return turns
}

var errBoom = errors.New("boom")
