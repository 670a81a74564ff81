package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestMockEmbedder_BagOfWords(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	soul, err := m.EmbedText(ctx, "What does the text say about the soul?")
	require.NoError(t, err)
	related, err := m.EmbedText(ctx, "The soul is eternal")
	require.NoError(t, err)
	unrelated, err := m.EmbedText(ctx, "Kriya Yoga lessons by mail")
	require.NoError(t, err)

	assert.Len(t, soul, DefaultDimensions)
	assert.InDelta(t, 1.0, dot(soul, soul), 1e-5, "vectors are unit length")
	assert.Greater(t, dot(soul, related), dot(soul, unrelated))

	again, err := m.EmbedText(ctx, "The soul is eternal")
	require.NoError(t, err)
	assert.Equal(t, related, again, "embedding is deterministic")
	assert.Equal(t, 4, m.CallCount())
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	v := BagOfWordsVector("", 8)
	assert.Equal(t, make([]float32, 8), v)
}

func TestMockEmbedder_Injection(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := m.EmbedTexts(context.Background(), []string{"a"})
	assert.EqualError(t, err, "boom")

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	out, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMockCompleter(t *testing.T) {
	c := NewMockCompleter()
	ctx := context.Background()

	got, err := c.Complete(ctx, "first prompt")
	require.NoError(t, err)
	assert.Equal(t, DefaultCompletion, got)

	c.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	}
	got, err = c.Complete(ctx, "second prompt")
	require.NoError(t, err)
	assert.Equal(t, "echo: second prompt", got)

	assert.Equal(t, 2, c.CallCount())
	assert.Equal(t, []string{"first prompt", "second prompt"}, c.Prompts())

	c.Reset()
	assert.Equal(t, 0, c.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockCompleter(), p.Completer())
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.Equal(t, 2, p.CloseCalls())
}
