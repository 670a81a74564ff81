package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/core"
	"github.com/tmc/langchaingo/prompts"
)

// AnswerSynthesizer produces the final answer for a turn.
type AnswerSynthesizer interface {
	// Synthesize answers question using only contextText and history.
	Synthesize(ctx context.Context, contextText, history, question string) (string, error)
}

type llmSynthesizer struct {
	completer     ai.Completer
	prompt        prompts.PromptTemplate
	refuseOnEmpty bool
	temperature   *float64
}

// SynthesizerOption configures the language model synthesizer.
type SynthesizerOption func(*llmSynthesizer)

// WithRefusalOnEmptyContext makes Synthesize return core.RefusalAnswer
// without calling the model when no context was retrieved and the history
// is blank. With history present the model is still consulted.
// Enabled by default.
func WithRefusalOnEmptyContext(enabled bool) SynthesizerOption {
	return func(s *llmSynthesizer) {
		s.refuseOnEmpty = enabled
	}
}

// WithAnswerTemperature overrides the completer's configured temperature
// for answers.
func WithAnswerTemperature(t float64) SynthesizerOption {
	return func(s *llmSynthesizer) {
		s.temperature = &t
	}
}

// NewAnswerSynthesizer creates a synthesizer backed by a language model.
// The completion is returned as produced by the model.
func NewAnswerSynthesizer(completer ai.Completer, opts ...SynthesizerOption) (AnswerSynthesizer, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	s := &llmSynthesizer{
		completer:     completer,
		prompt:        answerPrompt(),
		refuseOnEmpty: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *llmSynthesizer) Synthesize(ctx context.Context, contextText, history, question string) (string, error) {
	if s.refuseOnEmpty && strings.TrimSpace(contextText) == "" && strings.TrimSpace(history) == "" {
		return core.RefusalAnswer, nil
	}

	prompt, err := s.prompt.Format(map[string]any{
		"context":  contextText,
		"history":  history,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("render answer prompt: %w", err)
	}

	var callOpts []ai.CompletionOption
	if s.temperature != nil {
		callOpts = append(callOpts, ai.WithCallTemperature(*s.temperature))
	}
	return s.completer.Complete(ctx, prompt, callOpts...)
}
