// Package config loads service settings from an optional YAML file, a .env
// file, and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/versed/ai"
	"github.com/poiesic/versed/core"
	"github.com/poiesic/versed/storage/supabase"
	"github.com/poiesic/versed/storage/upstash"
	"gopkg.in/yaml.v3"
)

// Role names the command a configuration is validated for.
type Role string

const (
	// RoleServe answers questions over HTTP or the CLI.
	RoleServe Role = "serve"
	// RoleIngest builds or rebuilds the vector store.
	RoleIngest Role = "ingest"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendSupabase Backend = "supabase"
	BackendUpstash  Backend = "upstash"
	BackendBadger   Backend = "badger"
)

// ErrInvalidConfig indicates a setting is present but unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

type OpenAIConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	ChatModel      string  `yaml:"chat_model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float64 `yaml:"temperature"`
}

type SupabaseConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Table     string `yaml:"table"`
	QueryName string `yaml:"query_name"`
}

type UpstashConfig struct {
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`
	StaticDir   string `yaml:"static_dir"`
}

type StorageConfig struct {
	DataDir        string  `yaml:"data_dir"`
	VectorBackend  Backend `yaml:"vector_backend"`
	HistoryBackend Backend `yaml:"history_backend"`
}

type PipelineConfig struct {
	CallTimeout    time.Duration `yaml:"call_timeout"`
	TopK           int           `yaml:"top_k"`
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	DefaultSession string        `yaml:"default_session"`
	DocumentID     string        `yaml:"document_id"`

	// HistoryInRewrite feeds the session history to the query rewriter.
	HistoryInRewrite bool `yaml:"history_in_rewrite"`

	// RefuseOnEmptyContext answers with the fixed refusal when nothing was
	// retrieved and the session has no history.
	RefuseOnEmptyContext bool `yaml:"refuse_on_empty_context"`

	// AnswerTemperature overrides openai.temperature for answers when set.
	AnswerTemperature *float64 `yaml:"answer_temperature,omitempty"`
}

// Config is the complete service configuration.
type Config struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Upstash  UpstashConfig  `yaml:"upstash"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		OpenAI: OpenAIConfig{
			BaseURL:        aiDefaults.CompletionHost,
			ChatModel:      aiDefaults.CompletionModel,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			Temperature:    aiDefaults.Temperature,
		},
		Supabase: SupabaseConfig{
			Table:     supabase.DefaultTable,
			QueryName: supabase.DefaultQueryName,
		},
		Upstash: UpstashConfig{
			KeyPrefix: upstash.DefaultKeyPrefix,
		},
		Server: ServerConfig{
			Port:      3000,
			StaticDir: "public",
		},
		Storage: StorageConfig{
			DataDir: "versed-data",
		},
		Pipeline: PipelineConfig{
			CallTimeout:    30 * time.Second,
			TopK:           2,
			ChunkSize:      500,
			ChunkOverlap:   50,
			DefaultSession: core.DefaultSessionID,
			DocumentID:     "./God TalkswithArjuna.epub",

			HistoryInRewrite:     true,
			RefuseOnEmptyContext: true,
		},
	}
}

// Load reads .env (if present), then the YAML file at path, then the
// environment. An empty path falls back to $VERSED_CONFIG; if that is
// also empty no file is read.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path, _ = lookup("VERSED_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	cfg.resolveBackends()
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	env.str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	env.str("OPENAI_CHAT_MODEL", &cfg.OpenAI.ChatModel)
	env.str("OPENAI_EMBEDDING_MODEL", &cfg.OpenAI.EmbeddingModel)
	env.float("OPENAI_TEMPERATURE", &cfg.OpenAI.Temperature)

	env.str("SUPABASE_URL", &cfg.Supabase.URL)
	env.str("SUPABASE_API_KEY", &cfg.Supabase.APIKey)
	env.str("SUPABASE_TABLE", &cfg.Supabase.Table)
	env.str("SUPABASE_QUERY_NAME", &cfg.Supabase.QueryName)

	env.str("UPSTASH_URL", &cfg.Upstash.URL)
	env.str("UPSTASH_REDIS_TOKEN", &cfg.Upstash.Token)
	env.duration("VERSED_HISTORY_TTL", &cfg.Upstash.TTL)

	env.integer("PORT", &cfg.Server.Port)
	env.str("FRONTEND_URL", &cfg.Server.FrontendURL)
	env.str("VERSED_STATIC_DIR", &cfg.Server.StaticDir)

	env.str("VERSED_DATA_DIR", &cfg.Storage.DataDir)
	env.backend("VERSED_VECTOR_BACKEND", &cfg.Storage.VectorBackend)
	env.backend("VERSED_HISTORY_BACKEND", &cfg.Storage.HistoryBackend)

	env.duration("VERSED_CALL_TIMEOUT", &cfg.Pipeline.CallTimeout)
	env.integer("VERSED_TOP_K", &cfg.Pipeline.TopK)
	env.integer("VERSED_CHUNK_SIZE", &cfg.Pipeline.ChunkSize)
	env.integer("VERSED_CHUNK_OVERLAP", &cfg.Pipeline.ChunkOverlap)
	env.str("VERSED_DEFAULT_SESSION", &cfg.Pipeline.DefaultSession)
	env.str("VERSED_DOCUMENT_ID", &cfg.Pipeline.DocumentID)
	env.boolean("VERSED_HISTORY_IN_REWRITE", &cfg.Pipeline.HistoryInRewrite)
	env.boolean("VERSED_REFUSE_ON_EMPTY_CONTEXT", &cfg.Pipeline.RefuseOnEmptyContext)
	env.optionalFloat("VERSED_ANSWER_TEMPERATURE", &cfg.Pipeline.AnswerTemperature)

	return errors.Join(env.errs...)
}

// resolveBackends picks hosted backends when their URL is configured and
// the local badger store otherwise.
func (c *Config) resolveBackends() {
	if c.Storage.VectorBackend == "" {
		c.Storage.VectorBackend = BackendBadger
		if c.Supabase.URL != "" {
			c.Storage.VectorBackend = BackendSupabase
		}
	}
	if c.Storage.HistoryBackend == "" {
		c.Storage.HistoryBackend = BackendBadger
		if c.Upstash.URL != "" {
			c.Storage.HistoryBackend = BackendUpstash
		}
	}
}

// Validate checks that everything role needs is present. Absent settings
// are reported together as core.ErrConfigurationMissing, naming the
// environment variables to set.
func (c *Config) Validate(role Role) error {
	var problems []error

	switch c.Storage.VectorBackend {
	case BackendSupabase, BackendBadger:
	default:
		problems = append(problems, fmt.Errorf("%w: vector backend %q", ErrInvalidConfig, c.Storage.VectorBackend))
	}
	switch c.Storage.HistoryBackend {
	case BackendUpstash, BackendBadger:
	default:
		problems = append(problems, fmt.Errorf("%w: history backend %q", ErrInvalidConfig, c.Storage.HistoryBackend))
	}
	if c.Pipeline.TopK < 1 {
		problems = append(problems, fmt.Errorf("%w: top k must be positive", ErrInvalidConfig))
	}
	if c.Pipeline.ChunkSize < 1 || c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		problems = append(problems, fmt.Errorf("%w: chunk size %d with overlap %d", ErrInvalidConfig, c.Pipeline.ChunkSize, c.Pipeline.ChunkOverlap))
	}
	if c.Pipeline.CallTimeout < 0 {
		problems = append(problems, fmt.Errorf("%w: call timeout cannot be negative", ErrInvalidConfig))
	}
	if t := c.Pipeline.AnswerTemperature; t != nil && (*t < 0 || *t > 2) {
		problems = append(problems, fmt.Errorf("%w: answer temperature %v outside [0, 2]", ErrInvalidConfig, *t))
	}

	var missing []string
	if c.OpenAI.APIKey == "" && c.AIConfig().RequiresAPIKey() {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Storage.VectorBackend == BackendSupabase {
		if c.Supabase.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Supabase.APIKey == "" {
			missing = append(missing, "SUPABASE_API_KEY")
		}
	}
	if role == RoleServe && c.Storage.HistoryBackend == BackendUpstash {
		if c.Upstash.URL == "" {
			missing = append(missing, "UPSTASH_URL")
		}
		if c.Upstash.Token == "" {
			missing = append(missing, "UPSTASH_REDIS_TOKEN")
		}
	}
	if c.usesBadger(role) && c.Storage.DataDir == "" {
		missing = append(missing, "VERSED_DATA_DIR")
	}
	if len(missing) > 0 {
		problems = append(problems, fmt.Errorf("%w: %s", core.ErrConfigurationMissing, strings.Join(missing, ", ")))
	}

	return errors.Join(problems...)
}

func (c *Config) usesBadger(role Role) bool {
	if c.Storage.VectorBackend == BackendBadger {
		return true
	}
	return role == RoleServe && c.Storage.HistoryBackend == BackendBadger
}

// AIConfig returns the model provider settings.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithAPIKey(c.OpenAI.APIKey),
		ai.WithHost(c.OpenAI.BaseURL),
		ai.WithCompletionModel(c.OpenAI.ChatModel),
		ai.WithEmbeddingModel(c.OpenAI.EmbeddingModel),
		ai.WithTemperature(c.OpenAI.Temperature),
	)
}

// SupabaseConfig returns the hosted vector store settings.
func (c *Config) SupabaseConfig() supabase.Config {
	return supabase.Config{
		URL:       c.Supabase.URL,
		APIKey:    c.Supabase.APIKey,
		Table:     c.Supabase.Table,
		QueryName: c.Supabase.QueryName,
	}
}

// UpstashConfig returns the hosted history store settings.
func (c *Config) UpstashConfig() upstash.Config {
	return upstash.Config{
		URL:       c.Upstash.URL,
		Token:     c.Upstash.Token,
		KeyPrefix: c.Upstash.KeyPrefix,
		TTL:       c.Upstash.TTL,
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
			return
		}
		*dst = f
	}
}

func (e *envReader) optionalFloat(key string, dst **float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
			return
		}
		*dst = &f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
			return
		}
		*dst = d
	}
}

func (e *envReader) backend(key string, dst *Backend) {
	if v, ok := e.get(key); ok {
		*dst = Backend(strings.ToLower(v))
	}
}
