package upstash

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix matches the prefix LangChain's Upstash history uses.
const DefaultKeyPrefix = "message_store:"

// Config locates the Redis database holding chat history.
type Config struct {
	// URL is either the Upstash REST URL (https://name.upstash.io), in which
	// case the Redis endpoint on port 6379 with TLS is used, or a redis:// or
	// rediss:// connection URL.
	URL   string
	Token string
	// KeyPrefix is prepended to the session id to form the list key.
	KeyPrefix string
	// TTL expires a session's history after the last append. Zero keeps it forever.
	TTL time.Duration
}

// Validate reports missing connection settings.
func (c Config) Validate() error {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "UPSTASH_URL")
	}
	if c.Token == "" && strings.HasPrefix(c.URL, "https://") {
		missing = append(missing, "UPSTASH_REDIS_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", core.ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

// redisOptions converts the configured URL into go-redis options.
func (c Config) redisOptions() (*redis.Options, error) {
	if strings.HasPrefix(c.URL, "redis://") || strings.HasPrefix(c.URL, "rediss://") {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, err
		}
		if opts.Password == "" {
			opts.Password = c.Token
		}
		return opts, nil
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("upstash url %q has no host", c.URL)
	}
	return &redis.Options{
		Addr:      u.Hostname() + ":6379",
		Username:  "default",
		Password:  c.Token,
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: u.Hostname()},
	}, nil
}

// storedMessage is LangChain's serialized chat message layout.
type storedMessage struct {
	Type string      `json:"type"`
	Data messageData `json:"data"`
}

type messageData struct {
	Content string `json:"content"`
	// Timestamp is an extension; LangChain readers ignore it.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// historyStore implements storage.HistoryStore on Redis lists.
// Messages are LPUSHed, so a list holds the newest message first.
type historyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ storage.HistoryStore = (*historyStore)(nil)

// NewHistoryStore connects to Redis using config.
func NewHistoryStore(config Config) (storage.HistoryStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	opts, err := config.redisOptions()
	if err != nil {
		return nil, err
	}
	return newHistoryStore(redis.NewClient(opts), config), nil
}

func newHistoryStore(client *redis.Client, config Config) *historyStore {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &historyStore{
		client: client,
		prefix: prefix,
		ttl:    config.TTL,
		logger: slog.Default().With("component", "upstash-history"),
	}
}

func (s *historyStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// AppendTurns pushes all turns in one MULTI/EXEC so a session never sees half a pair.
func (s *historyStore) AppendTurns(ctx context.Context, sessionID string, turns ...core.Turn) error {
	if err := core.ValidateSessionID(sessionID); err != nil {
		return err
	}
	values := make([]any, len(turns))
	now := time.Now().UTC()
	for i := range turns {
		if err := core.ValidateTurn(&turns[i]); err != nil {
			return err
		}
		ts := turns[i].Timestamp
		if ts.IsZero() {
			ts = now
		}
		data, err := json.Marshal(storedMessage{
			Type: string(turns[i].Role),
			Data: messageData{Content: turns[i].Content, Timestamp: ts},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		values[i] = data
	}
	if len(values) == 0 {
		return nil
	}

	key := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Turns reads the whole list and reverses it into append order.
func (s *historyStore) Turns(ctx context.Context, sessionID string) ([]core.Turn, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	slices.Reverse(raw)

	turns := make([]core.Turn, 0, len(raw))
	for _, item := range raw {
		var msg storedMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.Warn("skipping unreadable history entry", "session", sessionID, "err", err)
			continue
		}
		turns = append(turns, core.Turn{
			Role:      core.Role(msg.Type),
			Content:   msg.Data.Content,
			Timestamp: msg.Data.Timestamp,
		})
	}
	return turns, nil
}

// ClearSession deletes the session's list.
func (s *historyStore) ClearSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

// Close closes the Redis client.
func (s *historyStore) Close() error {
	return s.client.Close()
}
