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


package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/versed/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newCompleter is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newCompleter(config *ai.Config, clientOpts ...openai.Option) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(clientOptions(config, config.CompletionHost, openai.WithModel(config.CompletionModel), clientOpts)...)
	if err != nil {
		return nil, err
	}

	return newCompleterWithModel(client, config.Temperature), nil
}

// newCompleterWithModel wraps an existing langchaingo model.
func newCompleterWithModel(model llms.Model, temperature float64) *Completer {
	return &Completer{
		client:      model,
		temperature: temperature,
		logger:      slog.Default().With("component", "openai-completer"),
	}
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config, clientOpts ...openai.Option) (ai.Completer, error) {
	return newCompleter(config, clientOpts...)
}

// NewCompleterFromModel adapts any langchaingo model to ai.Completer.
// Useful for wiring alternate backends or fakes.
func NewCompleterFromModel(model llms.Model, temperature float64) ai.Completer {
	return newCompleterWithModel(model, temperature)
}

// Complete sends a single human prompt and returns the first choice's content.
func (c *Completer) Complete(ctx context.Context, prompt string, opts ...ai.CompletionOption) (string, error) {
	o := ai.ApplyCompletionOptions(opts...)

	temperature := c.temperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	callOpts := []llms.CallOption{llms.WithTemperature(temperature)}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}

	c.logger.Debug("requesting completion", "promptLength", len(prompt), "temperature", temperature)

	text, err := llms.GenerateFromSinglePrompt(ctx, c.client, prompt, callOpts...)
	if err != nil {
		c.logger.Error("failed to generate completion", "err", err)
		return "", err
	}

	return text, nil
}
