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
	"errors"
	"log/slog"

	"github.com/poiesic/versed/ai"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmbeddingShape is returned when the service answers with the wrong
// number of vectors or with vectors whose dimension changes between calls.
var ErrEmbeddingShape = errors.New("unexpected embedding shape")

// Provider pairs the embedding and chat clients built from one ai.Config.
type Provider struct {
	embedder  *Embedder
	completer *Completer
	logger    *slog.Logger
}

// NewProvider validates config and builds both clients. clientOpts are
// appended to each client's options, so openai.WithHTTPClient reaches both.
//
// Returns ai.AIProvider so callers don't depend on this package's types.
func NewProvider(config *ai.Config, clientOpts ...openai.Option) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config, clientOpts...)
	if err != nil {
		return nil, err
	}
	completer, err := newCompleter(config, clientOpts...)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready",
		"embeddingHost", config.EmbeddingHost,
		"embeddingModel", config.EmbeddingModel,
		"completionHost", config.CompletionHost,
		"completionModel", config.CompletionModel)

	return &Provider{embedder: embedder, completer: completer, logger: logger}, nil
}

// clientOptions returns the options shared by every client pointed at host.
func clientOptions(config *ai.Config, host string, model openai.Option, extra []openai.Option) []openai.Option {
	opts := []openai.Option{
		openai.WithBaseURL(host),
		openai.WithToken(config.Token()),
		model,
	}
	return append(opts, extra...)
}

func (p *Provider) Embedder() ai.Embedder   { return p.embedder }
func (p *Provider) Completer() ai.Completer { return p.completer }

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
