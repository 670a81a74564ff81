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


package versed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/ai/openai"
	"github.com/poiesic/versed/chat"
	"github.com/poiesic/versed/config"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/ingestion"
	"github.com/poiesic/versed/reembed"
	"github.com/poiesic/versed/search"
	"github.com/poiesic/versed/storage"
	"github.com/poiesic/versed/storage/badger"
	"github.com/poiesic/versed/storage/supabase"
	"github.com/poiesic/versed/storage/upstash"
)

// ErrReembedUnsupported is returned when the configured chunk store cannot
// be walked and rewritten in place.
var ErrReembedUnsupported = errors.New("chunk store does not support re-embedding")

// Service owns the stores and model provider and builds pipelines over them.
type Service struct {
	config   *config.Config
	backend  *badger.Backend
	chunks   storage.ChunkStore
	history  storage.HistoryStore
	provider ai.AIProvider
	locks    *chat.SessionLocks
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	role     config.Role
	provider ai.AIProvider
	inMemory bool
}

// WithRole selects what the service is opened for. RoleIngest opens no
// history store. Default is config.RoleServe.
func WithRole(role config.Role) ServiceOption {
	return func(o *serviceOptions) {
		o.role = role
	}
}

// WithProvider uses provider instead of the configured OpenAI-compatible one.
// The service takes ownership and closes it.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps badger-backed stores in memory instead of
// under the configured data directory.
func WithInMemoryStorage() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// Open validates cfg and connects to the configured stores and provider.
func Open(cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{role: config.RoleServe}
	for _, opt := range opts {
		opt(options)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(options.role); err != nil {
		return nil, err
	}

	s := &Service{
		config: cfg,
		locks:  chat.NewSessionLocks(),
		logger: slog.Default().With("component", "service"),
	}
	if err := s.open(options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) open(options *serviceOptions) error {
	cfg := s.config
	serving := options.role == config.RoleServe

	if cfg.Storage.VectorBackend == config.BackendBadger || (serving && cfg.Storage.HistoryBackend == config.BackendBadger) {
		backend, err := badger.OpenBackend(cfg.Storage.DataDir, options.inMemory)
		if err != nil {
			return fmt.Errorf("open local storage: %w", err)
		}
		s.backend = backend
	}

	var err error
	switch cfg.Storage.VectorBackend {
	case config.BackendSupabase:
		s.chunks, err = supabase.NewChunkStore(cfg.SupabaseConfig())
	default:
		s.chunks, err = badger.NewChunkStore(s.backend)
	}
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}

	if serving {
		switch cfg.Storage.HistoryBackend {
		case config.BackendUpstash:
			s.history, err = upstash.NewHistoryStore(cfg.UpstashConfig())
		default:
			s.history, err = badger.NewHistoryStore(s.backend)
		}
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
	}

	s.provider = options.provider
	if s.provider == nil {
		s.provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return fmt.Errorf("create ai provider: %w", err)
		}
	}

	s.logger.Info("service opened",
		"role", options.role,
		"vectorBackend", cfg.Storage.VectorBackend,
		"historyBackend", cfg.Storage.HistoryBackend)
	return nil
}

// Close releases the provider, the stores, and the local backend.
func (s *Service) Close() error {
	var errs []error
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Error("error closing history store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.chunks != nil {
		if err := s.chunks.Close(); err != nil {
			s.logger.Error("error closing chunk store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) Config() *config.Config {
	return s.config
}

func (s *Service) ChunkStore() storage.ChunkStore {
	return s.chunks
}

// HistoryStore is nil when the service was opened for ingestion.
func (s *Service) HistoryStore() storage.HistoryStore {
	return s.history
}

// NewIngestionPipeline builds an ingestion pipeline using the configured
// document id and chunking. opts are applied last. Call Release when done.
func (s *Service) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithDocumentID(s.config.Pipeline.DocumentID),
		ingestion.WithChunking(s.config.Pipeline.ChunkSize, s.config.Pipeline.ChunkOverlap),
	}
	return ingestion.NewPipeline(s.chunks, s.provider, append(base, opts...)...)
}

// NewRetriever builds a retriever using the configured top k and call timeout.
func (s *Service) NewRetriever(opts ...search.Option) (*search.Retriever, error) {
	base := []search.Option{
		search.WithTopK(s.config.Pipeline.TopK),
		search.WithCallTimeout(s.config.Pipeline.CallTimeout),
	}
	return search.NewRetriever(s.chunks, s.provider.Embedder(), append(base, opts...)...)
}

// NewConversation builds a fresh query pipeline whose turns default to
// sessionID, or to the configured default session when sessionID is empty.
// Pipelines built by one Service share its session locks.
func (s *Service) NewConversation(sessionID string, opts ...chat.Option) (*chat.Pipeline, error) {
	if sessionID == "" {
		sessionID = s.config.Pipeline.DefaultSession
	}

	retriever, err := s.NewRetriever()
	if err != nil {
		return nil, err
	}
	rewriter, err := chat.NewQueryRewriter(s.provider.Completer())
	if err != nil {
		return nil, err
	}
	answerOpts := []chat.SynthesizerOption{
		chat.WithRefusalOnEmptyContext(s.config.Pipeline.RefuseOnEmptyContext),
	}
	if t := s.config.Pipeline.AnswerTemperature; t != nil {
		answerOpts = append(answerOpts, chat.WithAnswerTemperature(*t))
	}
	synthesizer, err := chat.NewAnswerSynthesizer(s.provider.Completer(), answerOpts...)
	if err != nil {
		return nil, err
	}

	base := []chat.Option{
		chat.WithCallTimeout(s.config.Pipeline.CallTimeout),
		chat.WithDefaultSession(sessionID),
		chat.WithHistoryInRewrite(s.config.Pipeline.HistoryInRewrite),
		chat.WithSessionLocks(s.locks),
		chat.WithMonitor(chat.NewLogMonitor(nil)),
	}
	return chat.NewPipeline(chat.Deps{
		Rewriter:    rewriter,
		Retriever:   retriever,
		Synthesizer: synthesizer,
		History:     s.history,
	}, append(base, opts...)...)
}

// History returns the stored turns of a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]core.Turn, error) {
	if s.history == nil {
		return nil, chat.ErrHistoryStoreRequired
	}
	return s.history.Turns(ctx, sessionID)
}

// ClearHistory forgets a session.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	if s.history == nil {
		return chat.ErrHistoryStoreRequired
	}
	return s.history.ClearSession(ctx, sessionID)
}

// NewReembedder builds a re-embedder over the chunk store. Only stores that
// can scan their own contents support this.
func (s *Service) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	scanner, ok := s.chunks.(storage.ChunkScanner)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReembedUnsupported, s.config.Storage.VectorBackend)
	}
	return reembed.NewReembedder(scanner, s.provider.Embedder(), cfg, progress)
}
