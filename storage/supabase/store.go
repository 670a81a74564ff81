package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
	"github.com/supabase-community/postgrest-go"
)

const (
	// DefaultTable is the table LangChain's Supabase vector store writes to.
	DefaultTable = "documents"
	// DefaultQueryName is the similarity RPC installed alongside the table.
	DefaultQueryName = "match_documents"
)

// Config locates the Supabase project.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co. A URL already
	// ending in /rest/v1 is used as is.
	URL       string
	APIKey    string
	Table     string
	QueryName string
}

// Validate reports missing connection settings.
func (c Config) Validate() error {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "SUPABASE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", core.ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) restURL() string {
	u := strings.TrimRight(c.URL, "/")
	if strings.HasSuffix(u, "/rest/v1") {
		return u
	}
	return u + "/rest/v1"
}

// documentRow mirrors a row of the documents table.
type documentRow struct {
	Id         int64         `json:"id,omitempty"`
	Content    string        `json:"content"`
	Metadata   core.Metadata `json:"metadata"`
	Embedding  []float32     `json:"embedding,omitempty"`
	Similarity float32       `json:"similarity,omitempty"`
}

type matchRequest struct {
	QueryEmbedding []float32      `json:"query_embedding"`
	MatchCount     int            `json:"match_count"`
	Filter         map[string]any `json:"filter"`
}

// chunkStore implements storage.ChunkStore over PostgREST.
type chunkStore struct {
	config Config
	logger *slog.Logger
}

var _ storage.ChunkStore = (*chunkStore)(nil)

// NewChunkStore creates a chunk store backed by a Supabase table and RPC.
func NewChunkStore(config Config) (storage.ChunkStore, error) {
	return newChunkStore(config)
}

func newChunkStore(config Config) (*chunkStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Table == "" {
		config.Table = DefaultTable
	}
	if config.QueryName == "" {
		config.QueryName = DefaultQueryName
	}
	return &chunkStore{
		config: config,
		logger: slog.Default().With("component", "supabase-store"),
	}, nil
}

// client builds a fresh client per call. postgrest-go records RPC failures on
// the client itself, so sharing one across goroutines would mix errors.
func (s *chunkStore) client() *postgrest.Client {
	return postgrest.NewClient(s.config.restURL(), "public", map[string]string{
		"apikey":        s.config.APIKey,
		"Authorization": "Bearer " + s.config.APIKey,
	})
}

// call runs fn in a goroutine so ctx can end the wait; postgrest-go has no
// context support.
//
// Cancelling ctx only abandons the wait. The HTTP request keeps running in
// the background until the server answers or the connection fails, because
// postgrest-go builds requests without a context and its http.Client has no
// timeout we can set. The result channel is buffered so the abandoned
// goroutine exits as soon as fn returns.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.val, r.err
	}
}

// AddChunks inserts chunks and reads back their generated IDs.
func (s *chunkStore) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	rows := make([]documentRow, len(chunks))
	for i, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		rows[i] = documentRow{
			Content:   chunk.PageContent,
			Metadata:  chunk.Metadata,
			Embedding: chunk.Vector,
		}
	}

	body, err := call(ctx, func() ([]byte, error) {
		data, _, err := s.client().From(s.config.Table).
			Insert(rows, false, "", "representation", "").
			Execute()
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", s.config.Table, err)
	}

	var inserted []documentRow
	if err := json.Unmarshal(body, &inserted); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	now := time.Now().UTC()
	for i, chunk := range chunks {
		if i < len(inserted) {
			chunk.Id = core.ID(inserted[i].Id)
		}
		chunk.Digest = core.IDFromContent(chunk.PageContent)
		chunk.InsertedAt = now
	}
	s.logger.Debug("inserted chunks", "count", len(chunks))
	return chunks, nil
}

// SimilarChunks calls the match RPC and returns rows by descending similarity.
func (s *chunkStore) SimilarChunks(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	req := matchRequest{QueryEmbedding: vector, MatchCount: k, Filter: map[string]any{}}

	body, err := call(ctx, func() (string, error) {
		c := s.client()
		resp := c.Rpc(s.config.QueryName, "", req)
		return resp, c.ClientError
	})
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", s.config.QueryName, err)
	}

	var rows []documentRow
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, fmt.Errorf("rpc %s: %w: %s", s.config.QueryName, storage.ErrSerializationFailed, truncate(body, 200))
	}

	results := make([]core.ScoredChunk, 0, min(len(rows), k))
	for _, row := range rows {
		if len(results) == k {
			break
		}
		results = append(results, core.ScoredChunk{
			Chunk: &core.Chunk{
				Id:          core.ID(row.Id),
				PageContent: row.Content,
				Metadata:    row.Metadata,
				Digest:      core.IDFromContent(row.Content),
			},
			Score: row.Similarity,
		})
	}
	return results, nil
}

// Count returns the exact row count of the table.
func (s *chunkStore) Count(ctx context.Context) (int, error) {
	n, err := call(ctx, func() (int64, error) {
		_, count, err := s.client().From(s.config.Table).
			Select("id", "exact", true).
			Execute()
		return count, err
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.config.Table, err)
	}
	return int(n), nil
}

// Clear deletes every row of the table.
func (s *chunkStore) Clear(ctx context.Context) error {
	_, err := call(ctx, func() ([]byte, error) {
		data, _, err := s.client().From(s.config.Table).
			Delete("minimal", "").
			Not("id", "is", "null").
			Execute()
		return data, err
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", s.config.Table, err)
	}
	return nil
}

// Close is a no-op; every call uses its own client.
func (s *chunkStore) Close() error {
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
