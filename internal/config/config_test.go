package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUOTH_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8090" || cfg.IndexBackend != BackendMemory {
		t.Errorf("port %q backend %q", cfg.Port, cfg.IndexBackend)
	}
	if cfg.SafeReadAttempts != 10 || cfg.SafeReadWait != 50*time.Millisecond {
		t.Errorf("safe read %d / %s", cfg.SafeReadAttempts, cfg.SafeReadWait)
	}
	if cfg.DefaultDisplay != "embedded" {
		t.Errorf("display %q", cfg.DefaultDisplay)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("QUOTH_CONFIG", "")
	t.Setenv("PORT", "9999")
	t.Setenv("QUOTH_INDEX_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SAFE_READ_WAIT", "10ms")
	t.Setenv("QUOTH_DEFAULT_SHOW_AUTHOR", "true")
	t.Setenv("WORKER_COUNT", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" || cfg.IndexBackend != BackendRedis || cfg.RedisDB != 3 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.SafeReadWait != 10*time.Millisecond {
		t.Errorf("SafeReadWait = %s", cfg.SafeReadWait)
	}
	if !cfg.DefaultShowAuthor {
		t.Error("DefaultShowAuthor not set")
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("non-positive worker count should fall back, got %d", cfg.WorkerCount)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quoth.toml")
	data := `
vault_url = "mem://localhost/notes"
index_backend = "pathstore"
pathstore_prefix = "notes/refs"
worker_count = 6
normalize_quotes = true
job_ttl = "90s"
safe_read_wait = "5ms"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUOTH_CONFIG", path)
	t.Setenv("WORKER_COUNT", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VaultURL != "mem://localhost/notes" || cfg.IndexBackend != BackendPathstore || cfg.PathstorePrefix != "notes/refs" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("env should win over file, WorkerCount = %d", cfg.WorkerCount)
	}
	if !cfg.NormalizeQuotes {
		t.Error("NormalizeQuotes not set")
	}
	if cfg.JobTTL != 90*time.Second || cfg.SafeReadWait != 5*time.Millisecond {
		t.Errorf("durations %s / %s", cfg.JobTTL, cfg.SafeReadWait)
	}
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("QUOTH_CONFIG", filepath.Join(dir, "missing.toml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte(`job_ttl = "soon"`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUOTH_CONFIG", bad)
	if _, err := Load(); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	valid := defaults()
	valid.APIKey = "k"
	valid.VaultURL = "mem://localhost/v"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing key", func(c *Config) { c.APIKey = "" }, true},
		{"missing vault", func(c *Config) { c.VaultURL = "" }, true},
		{"redis", func(c *Config) { c.IndexBackend = BackendRedis }, false},
		{"pathstore without url", func(c *Config) { c.IndexBackend = BackendPathstore; c.PathstoreURL = "" }, true},
		{"unknown backend", func(c *Config) { c.IndexBackend = "sqlite" }, true},
		{"bad display", func(c *Config) { c.DefaultDisplay = "sideways" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	} {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
