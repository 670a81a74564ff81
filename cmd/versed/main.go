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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/versed"
	"github.com/poiesic/versed/batch"
	"github.com/poiesic/versed/chat"
	"github.com/poiesic/versed/config"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/ingestion"
	"github.com/poiesic/versed/reembed"
	"github.com/poiesic/versed/search"
	"github.com/poiesic/versed/server"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	sessionFlag := &cli.StringFlag{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Conversation session id (defaults to VERSED_DEFAULT_SESSION)",
	}

	return &cli.App{
		Name:  "versed",
		Usage: "Ask questions about a book and get answers grounded in its text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (overrides VERSED_CONFIG)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the chat API and static frontend",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "mint-sessions",
						Usage: "Give requests without a session_id their own random session",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Load, filter, chunk, embed and store a book",
				ArgsUsage: "<path>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Remove existing chunks before indexing",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Re-ingest whenever the file changes (implies --clear)",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period after a change before re-ingesting",
						Value: ingestion.DefaultDebounce,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent embedding batches (0 uses half the CPUs)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask one question",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags:     []cli.Flag{sessionFlag},
			},
			{
				Name:   "history",
				Usage:  "Print a session's conversation",
				Action: historyCommand,
				Flags:  []cli.Flag{sessionFlag},
			},
			{
				Name:   "clear",
				Usage:  "Forget a session's conversation",
				Action: clearCommand,
				Flags:  []cli.Flag{sessionFlag},
			},
			{
				Name:      "search",
				Usage:     "Show the chunks retrieved for a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of chunks to show (defaults to VERSED_TOP_K)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print timing and embedding details",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the vectors of all stored chunks",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func openService(c *cli.Context, role config.Role) (*versed.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	svc, err := versed.Open(cfg, versed.WithRole(role))
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

func serveCommand(c *cli.Context) error {
	svc, err := openService(c, config.RoleServe)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := svc.Config()
	srv := server.New(svc,
		server.WithStaticDir(cfg.Server.StaticDir),
		server.WithFrontendURL(cfg.Server.FrontendURL),
		server.WithSessionMinting(c.Bool("mint-sessions")),
		server.WithTurnMonitor(chat.NewLogMonitor(nil)),
	)
	return srv.Run(ctx, cfg.Addr())
}

func ingestCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("path to the book is required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read book: %w", err)
	}
	if c.Int("workers") < 0 {
		return errors.New("workers must not be negative")
	}

	svc, err := openService(c, config.RoleIngest)
	if err != nil {
		return err
	}
	defer svc.Close()

	watch := c.Bool("watch")
	indexerOpts := []ingestion.IndexerOption{ingestion.WithProgress(os.Stderr)}
	if n := c.Int("workers"); n > 0 {
		indexerOpts = append(indexerOpts, ingestion.WithPoolSize(n))
	}
	pipeline, err := svc.NewIngestionPipeline(
		ingestion.WithClearFirst(c.Bool("clear") || watch),
		ingestion.WithIndexerOptions(indexerOpts...),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.Run(ctx, path)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printReport(report)

	if !watch {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl-C to stop)\n", path)
	watcher := ingestion.NewWatcher(pipeline, path, c.Duration("debounce"), func(report *ingestion.Report, err error) {
		if err != nil {
			slog.Error("re-ingestion failed", "err", err)
			return
		}
		printReport(report)
	})
	if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}

func printReport(r *ingestion.Report) {
	fmt.Fprintf(os.Stderr, "Source: %s\n", r.Source)
	fmt.Fprintf(os.Stderr, "Sections: %d loaded, %d kept (%d inherited a chapter)\n", r.Sections, r.Kept, r.Propagated)
	fmt.Fprintf(os.Stderr, "Chunks: %d created, %d stored", r.Chunks, r.Stored)
	if r.Cleared {
		fmt.Fprint(os.Stderr, " (store cleared first)")
	}
	fmt.Fprintf(os.Stderr, "\nElapsed: %v\n", r.Elapsed.Round(time.Millisecond))
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	svc, err := openService(c, config.RoleServe)
	if err != nil {
		return err
	}
	defer svc.Close()

	conv, err := svc.NewConversation(c.String("session"))
	if err != nil {
		return err
	}
	state, err := conv.Ask(c.Context, chat.TurnRequest{Question: question})
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}
	if state.Warning != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", state.Warning)
	}
	fmt.Println(state.Answer)
	return nil
}

func historyCommand(c *cli.Context) error {
	svc, err := openService(c, config.RoleServe)
	if err != nil {
		return err
	}
	defer svc.Close()

	session := sessionOrDefault(c, svc)
	turns, err := svc.History(c.Context, session)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(turns) == 0 {
		fmt.Fprintf(os.Stderr, "No history for session %q\n", session)
		return nil
	}
	for _, t := range turns {
		fmt.Printf("[%s] %s: %s\n", t.Timestamp.Local().Format(time.DateTime), t.Role, t.Content)
	}
	return nil
}

func clearCommand(c *cli.Context) error {
	svc, err := openService(c, config.RoleServe)
	if err != nil {
		return err
	}
	defer svc.Close()

	session := sessionOrDefault(c, svc)
	if err := svc.ClearHistory(c.Context, session); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Cleared session %q\n", session)
	return nil
}

func sessionOrDefault(c *cli.Context, svc *versed.Service) string {
	if s := c.String("session"); s != "" {
		return s
	}
	return svc.Config().Pipeline.DefaultSession
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	svc, err := openService(c, config.RoleIngest)
	if err != nil {
		return err
	}
	defer svc.Close()

	var opts []search.Option
	if k := c.Int("top-k"); k != 0 {
		opts = append(opts, search.WithTopK(k))
	}
	retriever, err := svc.NewRetriever(opts...)
	if err != nil {
		return err
	}

	var monitor search.RetrievalMonitor
	if c.Bool("verbose") {
		monitor = &traceMonitor{out: os.Stderr}
	}
	results, err := retriever.RetrieveWithMonitor(c.Context, query, monitor)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		chapter := hit.Chunk.Metadata.Chapter
		if chapter == "" {
			chapter = "(front matter)"
		}
		fmt.Printf("%d: [%0.3f] %s (%d)\n%s\n\n", i, hit.Score, chapter, hit.Chunk.Id, hit.Chunk.PageContent)
	}
	return nil
}

// traceMonitor prints each retrieval step with the time since Start.
type traceMonitor struct {
	out   io.Writer
	start time.Time
}

func (m *traceMonitor) Start(question string) {
	m.start = time.Now()
	fmt.Fprintf(m.out, "query: %q\n", question)
}

func (m *traceMonitor) AfterEmbedding(vector []float32) {
	fmt.Fprintf(m.out, "embedded (%d dims) after %v\n", len(vector), time.Since(m.start).Round(time.Millisecond))
}

func (m *traceMonitor) Finish(results []core.ScoredChunk) {
	fmt.Fprintf(m.out, "%d results after %v\n\n", len(results), time.Since(m.start).Round(time.Millisecond))
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Retry: batch.RetryPolicy{
			MaxAttempts: c.Int("max-retries"),
			BaseDelay:   c.Duration("retry-delay"),
			MaxDelay:    batch.DefaultRetryPolicy().MaxDelay,
		},
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	svc, err := openService(c, config.RoleIngest)
	if err != nil {
		return err
	}
	defer svc.Close()

	reembedder, err := svc.NewReembedder(reembedConfig, os.Stderr)
	if err != nil {
		return err
	}

	cfg := svc.Config()
	fmt.Fprintf(os.Stderr, "Vector backend: %s\n", cfg.Storage.VectorBackend)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.OpenAI.BaseURL)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.OpenAI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
