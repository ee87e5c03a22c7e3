// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/poiesic/partners/ai"
	"github.com/poiesic/partners/core"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PARTNERS"

// Store backends.
const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Config holds all environment-based configuration.
// Env names are Prefix + "_" + the envconfig tag, e.g. PARTNERS_STORE.
type Config struct {
	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: info)
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Store selects the storage backend: badger or postgres.
	// Env: STORE (default: badger)
	Store string `envconfig:"STORE" default:"badger"`

	// DataDir is the badger database directory.
	// Env: DATA_DIR
	// Default: ~/.partners/db
	DataDir string `envconfig:"DATA_DIR"`

	// Postgres configures the postgres backend.
	Postgres PostgresConfig `envconfig:"POSTGRES"`

	// Embedding configures the embedding generator.
	Embedding EmbeddingConfig `envconfig:"EMBEDDING"`

	// WorkerCount is the size of the import worker pool.
	// Env: WORKER_COUNT (default: 4)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"4"`

	// TopN is the default number of search results.
	// Env: TOP_N (default: 5)
	TopN int `envconfig:"TOP_N" default:"5"`
}

// PostgresConfig holds the postgres connection settings.
type PostgresConfig struct {
	// URL overrides the individual connection fields when set.
	// Env: POSTGRES_URL
	URL string `envconfig:"URL"`

	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD" default:"postgres"`
	DB       string `envconfig:"DB" default:"partners_db"`
}

// ConnString returns URL, or a postgres:// URL assembled from the
// individual fields.
func (p PostgresConfig) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.DB,
	}
	return u.String()
}

// EmbeddingConfig holds the embedding generator settings.
type EmbeddingConfig struct {
	// Backend is openai (any OpenAI-compatible endpoint) or hugot (local ONNX).
	// Env: EMBEDDING_BACKEND (default: openai)
	Backend string `envconfig:"BACKEND" default:"openai"`

	// Env: EMBEDDING_HOST (default: http://localhost:11434/v1)
	Host string `envconfig:"HOST" default:"http://localhost:11434/v1"`

	// Env: EMBEDDING_MODEL (default: mxbai-embed-large)
	Model string `envconfig:"MODEL" default:"mxbai-embed-large"`

	// ModelPath is the ONNX model directory used by the hugot backend.
	// Env: EMBEDDING_MODEL_PATH
	ModelPath string `envconfig:"MODEL_PATH"`

	// Env: EMBEDDING_DIMENSIONS (default: 1024)
	Dimensions int `envconfig:"DIMENSIONS" default:"1024"`
}

// Load reads an optional .env file at envPath and then the environment.
func Load(envPath string) (*Config, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", core.ErrConfiguration, envPath, err)
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from PARTNERS_* environment variables.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Normalize lowercases enumerations and fills derived defaults.
func (c *Config) Normalize() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
}

// Validate checks the configuration, including the embedding settings.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreBadger:
		if c.DataDir == "" {
			return fmt.Errorf("%w: data directory is required", core.ErrConfiguration)
		}
	case StorePostgres:
	default:
		return fmt.Errorf("%w: unknown store %q", core.ErrConfiguration, c.Store)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker count must be positive", core.ErrConfiguration)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, core.ErrInvalidTopN)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return c.AIConfig().Validate()
}

// AIConfig converts the embedding settings to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithBackend(c.Embedding.Backend),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithModelPath(c.Embedding.ModelPath),
		ai.WithDimensions(c.Embedding.Dimensions),
	)
}

// DefaultDataDir returns ~/.partners/db, or ./partners.db when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "partners.db"
	}
	return filepath.Join(home, ".partners", "db")
}

// ParseLogLevel converts debug, info, warn or error to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: invalid log level %q", core.ErrConfiguration, level)
}
