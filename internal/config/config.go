package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Index backends.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendPathstore = "pathstore"
)

type Config struct {
	Port string `toml:"port"`

	// Auth
	APIKey string `toml:"api_key"`

	// Vault root as an afs URL (file:///notes, mem://localhost/notes)
	VaultURL string `toml:"vault_url"`

	// Reference index persistence
	IndexBackend    string `toml:"index_backend"`
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password"`
	RedisDB         int    `toml:"redis_db"`
	RedisPrefix     string `toml:"redis_prefix"`
	PathstoreURL    string `toml:"pathstore_url"`
	PathstoreAPIKey string `toml:"pathstore_api_key"`
	PathstorePrefix string `toml:"pathstore_prefix"`

	// Worker pool
	WorkerCount  int `toml:"worker_count"`
	MaxQueueSize int `toml:"max_queue_size"`

	// Request limits
	MaxBodyBytes int64 `toml:"max_body_bytes"`

	// Job state
	JobTTL time.Duration `toml:"-"`

	// Rename rewrites
	SafeReadAttempts int           `toml:"safe_read_attempts"`
	SafeReadWait     time.Duration `toml:"-"`

	// Capture and render defaults
	DefaultDisplay    string `toml:"default_display"`
	DefaultShowTitle  bool   `toml:"default_show_title"`
	DefaultShowAuthor bool   `toml:"default_show_author"`
	NormalizeQuotes   bool   `toml:"normalize_quotes"`

	LogLevel string `toml:"log_level"`
}

// durations are written as strings ("90s") in the config file.
type fileDurations struct {
	JobTTL       string `toml:"job_ttl"`
	SafeReadWait string `toml:"safe_read_wait"`
}

func defaults() Config {
	return Config{
		Port:             "8090",
		IndexBackend:     BackendMemory,
		RedisAddr:        "localhost:6379",
		RedisPrefix:      "quoth:",
		PathstoreURL:     "http://localhost:8080",
		PathstorePrefix:  "quoth/refs",
		WorkerCount:      2,
		MaxQueueSize:     100,
		MaxBodyBytes:     1 << 20,
		JobTTL:           1 * time.Hour,
		SafeReadAttempts: 10,
		SafeReadWait:     50 * time.Millisecond,
		DefaultDisplay:   "embedded",
		LogLevel:         "info",
	}
}

// Load builds the config from defaults, then the TOML file named by
// QUOTH_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("QUOTH_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("QUOTH_API_KEY", cfg.APIKey)
	cfg.VaultURL = envOr("QUOTH_VAULT_URL", cfg.VaultURL)

	cfg.IndexBackend = envOr("QUOTH_INDEX_BACKEND", cfg.IndexBackend)
	cfg.RedisAddr = envOr("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.RedisPrefix = envOr("REDIS_PREFIX", cfg.RedisPrefix)
	cfg.PathstoreURL = envOr("PATHSTORE_URL", cfg.PathstoreURL)
	cfg.PathstoreAPIKey = envOr("PATHSTORE_API_KEY", cfg.PathstoreAPIKey)
	cfg.PathstorePrefix = envOr("PATHSTORE_PREFIX", cfg.PathstorePrefix)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxBodyBytes = envInt64("MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.SafeReadAttempts = envInt("SAFE_READ_ATTEMPTS", cfg.SafeReadAttempts)
	cfg.SafeReadWait = envDuration("SAFE_READ_WAIT", cfg.SafeReadWait)

	cfg.DefaultDisplay = envOr("QUOTH_DEFAULT_DISPLAY", cfg.DefaultDisplay)
	cfg.DefaultShowTitle = envBool("QUOTH_DEFAULT_SHOW_TITLE", cfg.DefaultShowTitle)
	cfg.DefaultShowAuthor = envBool("QUOTH_DEFAULT_SHOW_AUTHOR", cfg.DefaultShowAuthor)
	cfg.NormalizeQuotes = envBool("QUOTH_NORMALIZE_QUOTES", cfg.NormalizeQuotes)

	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	def := defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.SafeReadAttempts <= 0 {
		cfg.SafeReadAttempts = def.SafeReadAttempts
	}
	if cfg.SafeReadWait <= 0 {
		cfg.SafeReadWait = def.SafeReadWait
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	var d fileDurations
	if err := toml.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if d.JobTTL != "" {
		if c.JobTTL, err = time.ParseDuration(d.JobTTL); err != nil {
			return fmt.Errorf("job_ttl: %w", err)
		}
	}
	if d.SafeReadWait != "" {
		if c.SafeReadWait, err = time.ParseDuration(d.SafeReadWait); err != nil {
			return fmt.Errorf("safe_read_wait: %w", err)
		}
	}
	return nil
}

// Validate checks the settings the HTTP server needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("QUOTH_API_KEY is required")
	}
	if c.VaultURL == "" {
		return fmt.Errorf("QUOTH_VAULT_URL is required")
	}
	switch c.IndexBackend {
	case BackendMemory, BackendRedis:
	case BackendPathstore:
		if c.PathstoreURL == "" {
			return fmt.Errorf("PATHSTORE_URL is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("unknown index backend %q", c.IndexBackend)
	}
	if c.DefaultDisplay != "embedded" && c.DefaultDisplay != "inline" {
		return fmt.Errorf("default display must be embedded or inline, got %q", c.DefaultDisplay)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// SlogLevel returns LogLevel as a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
