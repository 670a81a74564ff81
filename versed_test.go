package versed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/versed/ai/mock"
	"github.com/poiesic/versed/chat"
	"github.com/poiesic/versed/config"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoChapterBook = `# Chapter 1: Despondency

Arjuna sees his kinsmen arrayed on the battlefield and lays down his bow in sorrow.

# Chapter 2: Knowledge

Krishna teaches that the soul is eternal, never born and never dying.

# Notes

The translator's note on the soul: atman is rendered here as soul throughout.
`

// bookCompleter rewrites questions without history verbatim and answers
// with the retrieved context.
func bookCompleter() *mock.MockCompleter {
	c := mock.NewMockCompleter()
	c.CompleteFunc = func(_ context.Context, prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Given some conversation history"):
			return "Who teaches that the soul is eternal?", nil
		case strings.HasPrefix(prompt, "Given a question"):
			line := strings.Split(prompt, "\n")[1]
			return strings.TrimPrefix(line, "question: "), nil
		}
		start := strings.Index(prompt, "context: ")
		end := strings.Index(prompt, "\nconversation history:")
		if start < 0 || end < start {
			return core.RefusalAnswer, nil
		}
		return prompt[start+len("context: ") : end], nil
	}
	return c
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OpenAI.BaseURL = "http://localhost:11434"
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func openTestService(t *testing.T, opts ...ServiceOption) (*Service, *mock.MockCompleter) {
	t.Helper()
	completer := bookCompleter()
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), completer)
	svc, err := Open(testConfig(t), append([]ServiceOption{WithProvider(provider), WithInMemoryStorage()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, completer
}

func writeBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.md")
	require.NoError(t, os.WriteFile(path, []byte(twoChapterBook), 0o644))
	return path
}

func TestOpen_ValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()

	_, err := Open(cfg)
	assert.ErrorIs(t, err, core.ErrConfigurationMissing, "hosted api without a key")
}

func TestOpen_LocalStorageOnDisk(t *testing.T) {
	cfg := testConfig(t)
	provider := mock.NewMockProvider().(*mock.MockProvider)
	svc, err := Open(cfg, WithProvider(provider))
	require.NoError(t, err)

	assert.NotNil(t, svc.ChunkStore())
	assert.NotNil(t, svc.HistoryStore())
	assert.Same(t, cfg, svc.Config())
	require.NoError(t, svc.Close())
	assert.Equal(t, 1, provider.CloseCalls())

	_, err = os.Stat(cfg.Storage.DataDir)
	assert.NoError(t, err, "data directory is created")
}

func TestService_EndToEnd(t *testing.T) {
	svc, _ := openTestService(t)
	ctx := context.Background()

	conv, err := svc.NewConversation("reader")
	require.NoError(t, err)

	// Nothing ingested yet: the fixed refusal.
	state, err := conv.Ask(ctx, chat.TurnRequest{Question: "Is the soul eternal?"})
	require.NoError(t, err)
	assert.Equal(t, core.RefusalAnswer, state.Answer)
	require.NoError(t, svc.ClearHistory(ctx, "reader"))

	ingest, err := svc.NewIngestionPipeline(ingestion.WithClearFirst(true))
	require.NoError(t, err)
	defer ingest.Release()

	report, err := ingest.Run(ctx, writeBook(t))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stored, "the Notes chapter is excluded")

	count, err := svc.ChunkStore().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Back matter mentioning the soul never reaches the context.
	conv, err = svc.NewConversation("notes-reader")
	require.NoError(t, err)
	state, err = conv.Ask(ctx, chat.TurnRequest{Question: "What does the text say about the soul?"})
	require.NoError(t, err)
	require.NotEmpty(t, state.Retrieved)
	for _, r := range state.Retrieved {
		assert.NotEqual(t, "Notes", r.Chunk.Metadata.Chapter)
	}
	assert.NotContains(t, state.ContextText, "translator's note")
	assert.NotContains(t, state.Answer, "atman")

	// A fresh pipeline per request, as the server builds them.
	conv, err = svc.NewConversation("reader")
	require.NoError(t, err)
	state, err = conv.Ask(ctx, chat.TurnRequest{Question: "Is the soul eternal?"})
	require.NoError(t, err)

	assert.Equal(t, chat.StageCompleted, state.Stage)
	assert.Equal(t, "reader", state.SessionID)
	require.NotEmpty(t, state.Retrieved)
	top := state.Retrieved[0].Chunk
	assert.Equal(t, "Chapter 2: Knowledge", top.Metadata.Chapter)
	assert.Equal(t, svc.Config().Pipeline.DocumentID, top.Metadata.Source)
	assert.Contains(t, state.Answer, "the soul is eternal")

	conv, err = svc.NewConversation("reader")
	require.NoError(t, err)
	state, err = conv.Ask(ctx, chat.TurnRequest{Question: "Who teaches this?"})
	require.NoError(t, err)
	assert.Equal(t, "Who teaches that the soul is eternal?", state.StandaloneQuestion)
	assert.Len(t, state.History.Turns, 2)
	assert.Contains(t, state.Answer, "Krishna")

	turns, err := svc.History(ctx, "reader")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, core.RoleHuman, turns[0].Role)
	assert.Equal(t, "Is the soul eternal?", turns[0].Content)
	assert.Equal(t, core.RoleAI, turns[1].Role)
	assert.Equal(t, "Who teaches this?", turns[2].Content)

	other, err := svc.History(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_AnswerSettingsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.HistoryInRewrite = false
	cfg.Pipeline.RefuseOnEmptyContext = false
	temperature := 0.1
	cfg.Pipeline.AnswerTemperature = &temperature

	completer := bookCompleter()
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), completer)
	svc, err := Open(cfg, WithProvider(provider), WithInMemoryStorage())
	require.NoError(t, err)
	defer svc.Close()
	ctx := context.Background()

	for _, question := range []string{"Is the soul eternal?", "Who teaches this?"} {
		conv, err := svc.NewConversation("reader")
		require.NoError(t, err)
		state, err := conv.Ask(ctx, chat.TurnRequest{Question: question})
		require.NoError(t, err)
		assert.NotEqual(t, core.RefusalAnswer, state.Answer, "empty context still consults the model")
	}

	prompts := completer.Prompts()
	require.Len(t, prompts, 4, "rewrite and answer per turn")
	assert.True(t, strings.HasPrefix(prompts[2], "Given a question"), "history stays out of the rewrite")
	assert.Equal(t, "question: Who teaches this?", strings.Split(prompts[2], "\n")[1])

	temps := completer.Temperatures()
	require.Len(t, temps, 4)
	assert.Nil(t, temps[0], "rewrites keep the configured temperature")
	require.NotNil(t, temps[1])
	assert.Equal(t, 0.1, *temps[1])
}

func TestService_DefaultSession(t *testing.T) {
	svc, _ := openTestService(t)
	ctx := context.Background()

	conv, err := svc.NewConversation("")
	require.NoError(t, err)
	state, err := conv.Ask(ctx, chat.TurnRequest{Question: "Who is Arjuna?"})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultSessionID, state.SessionID)

	turns, err := svc.History(ctx, core.DefaultSessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestService_IngestRole(t *testing.T) {
	svc, _ := openTestService(t, WithRole(config.RoleIngest))
	ctx := context.Background()

	assert.Nil(t, svc.HistoryStore())
	_, err := svc.NewConversation("reader")
	assert.ErrorIs(t, err, chat.ErrHistoryStoreRequired)
	_, err = svc.History(ctx, "reader")
	assert.ErrorIs(t, err, chat.ErrHistoryStoreRequired)

	conv, err := svc.NewConversation("reader", chat.WithHistoryMode(chat.HistoryFromCaller))
	require.NoError(t, err, "caller-supplied history needs no store")
	assert.Equal(t, chat.HistoryFromCaller, conv.Mode())

	ingest, err := svc.NewIngestionPipeline()
	require.NoError(t, err)
	defer ingest.Release()
	_, err = ingest.Run(ctx, writeBook(t))
	require.NoError(t, err)

	r, err := svc.NewReembedder(nil, nil)
	require.NoError(t, err)
	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_Retriever(t *testing.T) {
	svc, _ := openTestService(t)
	svc.Config().Pipeline.TopK = 1

	retriever, err := svc.NewRetriever()
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.TopK())
}
