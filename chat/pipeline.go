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


package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/search"
	"github.com/poiesic/versed/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultCallTimeout bounds every external call made during a turn.
const DefaultCallTimeout = 30 * time.Second

// HistoryMode selects where a turn's conversation history comes from.
type HistoryMode int

const (
	// HistoryFromStore reads the session's turns from the history store and
	// appends the new question and answer once the turn is answered.
	HistoryFromStore HistoryMode = iota
	// HistoryFromCaller uses TurnRequest.History and never writes history.
	HistoryFromCaller
)

func (m HistoryMode) String() string {
	switch m {
	case HistoryFromStore:
		return "store"
	case HistoryFromCaller:
		return "caller"
	default:
		return fmt.Sprintf("HistoryMode(%d)", int(m))
	}
}

// Retriever fetches the chunks most relevant to a standalone question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]core.ScoredChunk, error)
}

var _ Retriever = (*search.Retriever)(nil)

// Deps are the stages a pipeline runs.
type Deps struct {
	Rewriter    QueryRewriter
	Retriever   Retriever
	Synthesizer AnswerSynthesizer
	// History is required with HistoryFromStore.
	History storage.HistoryStore
}

// Pipeline runs conversational turns. It keeps no state between turns,
// so a fresh value may be built for every request.
type Pipeline struct {
	deps             Deps
	mode             HistoryMode
	callTimeout      time.Duration
	defaultSession   string
	historyInRewrite bool
	locks            *SessionLocks
	monitor          TurnMonitor
	logger           *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithHistoryMode selects the history source.
// Default is HistoryFromStore.
func WithHistoryMode(mode HistoryMode) Option {
	return func(p *Pipeline) error {
		switch mode {
		case HistoryFromStore, HistoryFromCaller:
			p.mode = mode
			return nil
		default:
			return fmt.Errorf("unknown history mode %d", int(mode))
		}
	}
}

// WithCallTimeout bounds each external call. Zero disables the bound.
// Default is DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return ErrInvalidCallTimeout
		}
		p.callTimeout = d
		return nil
	}
}

// WithDefaultSession sets the session used when a request names none.
// Default is core.DefaultSessionID.
func WithDefaultSession(sessionID string) Option {
	return func(p *Pipeline) error {
		if err := core.ValidateSessionID(sessionID); err != nil {
			return err
		}
		p.defaultSession = sessionID
		return nil
	}
}

// WithHistoryInRewrite controls whether the rewriter sees the conversation
// history. When disabled the question is rewritten on its own and the
// history read runs concurrently with rewriting and retrieval.
// Default is true.
func WithHistoryInRewrite(enabled bool) Option {
	return func(p *Pipeline) error {
		p.historyInRewrite = enabled
		return nil
	}
}

// WithSessionLocks shares turn serialization across pipelines. Pipelines
// built per request must share one SessionLocks to keep appends ordered.
func WithSessionLocks(locks *SessionLocks) Option {
	return func(p *Pipeline) error {
		if locks != nil {
			p.locks = locks
		}
		return nil
	}
}

// WithMonitor sets the turn observer.
// Default is a no-op monitor.
func WithMonitor(monitor TurnMonitor) Option {
	return func(p *Pipeline) error {
		if monitor != nil {
			p.monitor = monitor
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "chat")
		return nil
	}
}

// NewPipeline creates a pipeline over the given stages.
func NewPipeline(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Rewriter == nil {
		return nil, ErrRewriterRequired
	}
	if deps.Retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if deps.Synthesizer == nil {
		return nil, ErrSynthesizerRequired
	}

	p := &Pipeline{
		deps:             deps,
		mode:             HistoryFromStore,
		callTimeout:      DefaultCallTimeout,
		defaultSession:   core.DefaultSessionID,
		historyInRewrite: true,
		monitor:          noopMonitor{},
		logger:           slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.mode == HistoryFromStore && deps.History == nil {
		return nil, ErrHistoryStoreRequired
	}
	if p.locks == nil {
		p.locks = NewSessionLocks()
	}
	return p, nil
}

// Mode returns the pipeline's history mode.
func (p *Pipeline) Mode() HistoryMode { return p.mode }

// Ask runs one turn. On success the returned state is Completed, or
// CompletedWithWarning when the answer could not be added to history; in
// both cases Answer is set. On failure the state is Failed, nothing has
// been written, and the error wraps one of the core pipeline sentinels.
func (p *Pipeline) Ask(ctx context.Context, req TurnRequest) (*TurnState, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = p.defaultSession
	}

	state := &TurnState{
		SessionID:   sessionID,
		RawQuestion: question,
	}
	p.enter(state, StageReceived)

	if p.mode == HistoryFromStore {
		unlock := p.locks.Lock(sessionID)
		defer unlock()
	} else {
		state.History = req.History
	}

	if err := p.prepare(ctx, state); err != nil {
		return p.fail(state, err)
	}

	p.enter(state, StageSynthesizing)
	answer, err := call(ctx, p.callTimeout, func(ctx context.Context) (string, error) {
		return p.deps.Synthesizer.Synthesize(ctx, state.ContextText, state.History.String(), question)
	})
	if err != nil {
		return p.fail(state, fmt.Errorf("synthesize answer: %w", core.ClassifyCallError(err)))
	}
	state.Answer = answer

	if p.mode == HistoryFromStore {
		p.persist(ctx, state)
	}
	if state.Warning == nil {
		state.Stage = StageCompleted
	} else {
		state.Stage = StageCompletedWithWarning
	}
	p.monitor.TurnFinished(state, nil)
	return state, nil
}

// prepare fills in the history, standalone question, and retrieved context.
func (p *Pipeline) prepare(ctx context.Context, state *TurnState) error {
	readHistory := p.mode == HistoryFromStore

	if p.historyInRewrite || !readHistory {
		if readHistory {
			snapshot, err := p.readHistory(ctx, state.SessionID)
			if err != nil {
				return err
			}
			state.History = snapshot
		}
		history := ""
		if p.historyInRewrite {
			history = state.History.String()
		}
		return p.rewriteAndRetrieve(ctx, state, history)
	}

	// The rewriter doesn't need history, so the snapshot is read alongside
	// retrieval. It is still taken before this turn's append.
	var snapshot core.HistorySnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = p.readHistory(gctx, state.SessionID)
		return err
	})
	g.Go(func() error {
		return p.rewriteAndRetrieve(gctx, state, "")
	})
	if err := g.Wait(); err != nil {
		return err
	}
	state.History = snapshot
	return nil
}

func (p *Pipeline) readHistory(ctx context.Context, sessionID string) (core.HistorySnapshot, error) {
	turns, err := call(ctx, p.callTimeout, func(ctx context.Context) ([]core.Turn, error) {
		return p.deps.History.Turns(ctx, sessionID)
	})
	if err != nil {
		return core.HistorySnapshot{}, fmt.Errorf("read history: %w", core.ClassifyCallError(err))
	}
	return core.HistorySnapshot{Turns: turns}, nil
}

func (p *Pipeline) rewriteAndRetrieve(ctx context.Context, state *TurnState, history string) error {
	p.enter(state, StageRewriting)
	standalone, err := call(ctx, p.callTimeout, func(ctx context.Context) (string, error) {
		return p.deps.Rewriter.Rewrite(ctx, state.RawQuestion, history)
	})
	if err != nil {
		return fmt.Errorf("rewrite question: %w", core.ClassifyCallError(err))
	}
	state.StandaloneQuestion = standalone

	p.enter(state, StageRetrieving)
	chunks, err := call(ctx, p.callTimeout, func(ctx context.Context) ([]core.ScoredChunk, error) {
		return p.deps.Retriever.Retrieve(ctx, standalone)
	})
	if err != nil {
		return retrievalError(err)
	}
	state.Retrieved = chunks
	state.ContextText = search.AssembleContext(chunks)
	return nil
}

// persist appends the answered turn. Failure leaves the answer intact and
// is recorded as a warning.
func (p *Pipeline) persist(ctx context.Context, state *TurnState) {
	p.enter(state, StagePersisting)

	now := time.Now().UTC()
	turns := []core.Turn{
		{Role: core.RoleHuman, Content: state.RawQuestion, Timestamp: now},
		{Role: core.RoleAI, Content: state.Answer, Timestamp: now},
	}

	// The answer already exists; a client disconnect must not drop it from history.
	ctx = context.WithoutCancel(ctx)
	_, err := call(ctx, p.callTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deps.History.AppendTurns(ctx, state.SessionID, turns...)
	})
	if err != nil {
		state.Warning = fmt.Errorf("%w: %w", core.ErrHistoryPersistFailure, core.ClassifyCallError(err))
		p.logger.Warn("failed to append turn to history", "session", state.SessionID, "err", err)
		p.monitor.HistoryPersistFailed(state, state.Warning)
	}
}

func (p *Pipeline) enter(state *TurnState, stage Stage) {
	state.Stage = stage
	p.monitor.StageEntered(state)
}

func (p *Pipeline) fail(state *TurnState, err error) (*TurnState, error) {
	state.Stage = StageFailed
	p.logger.Error("turn failed", "session", state.SessionID, "err", err)
	p.monitor.TurnFinished(state, err)
	return state, err
}

func retrievalError(err error) error {
	if errors.Is(err, core.ErrRetrievalUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrRetrievalUnavailable, core.ClassifyCallError(err))
}

func call[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
