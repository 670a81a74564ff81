package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/versed/ai"
	"github.com/tmc/langchaingo/prompts"
)

// QueryRewriter turns a question that may depend on earlier turns into one
// that stands on its own.
type QueryRewriter interface {
	// Rewrite returns a standalone form of question. history is the rendered
	// conversation so far and may be empty.
	Rewrite(ctx context.Context, question, history string) (string, error)
}

type llmRewriter struct {
	completer   ai.Completer
	withHistory prompts.PromptTemplate
	noHistory   prompts.PromptTemplate
}

// NewQueryRewriter creates a rewriter backed by a language model.
// The model's output is trimmed but otherwise trusted.
func NewQueryRewriter(completer ai.Completer) (QueryRewriter, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	return &llmRewriter{
		completer:   completer,
		withHistory: standaloneWithHistoryPrompt(),
		noHistory:   standalonePrompt(),
	}, nil
}

func (r *llmRewriter) Rewrite(ctx context.Context, question, history string) (string, error) {
	var (
		prompt string
		err    error
	)
	if strings.TrimSpace(history) == "" {
		prompt, err = r.noHistory.Format(map[string]any{"question": question})
	} else {
		prompt, err = r.withHistory.Format(map[string]any{"history": history, "question": question})
	}
	if err != nil {
		return "", fmt.Errorf("render standalone prompt: %w", err)
	}

	out, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	standalone := strings.TrimSpace(out)
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}
