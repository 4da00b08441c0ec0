package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "STORAGE_BACKEND", "DATA_DIR", "SAVE_TIMEOUT", "REDIS_URL", "CACHE_TTL", "LOCK_TTL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.StorageBackend != BackendFile {
		t.Fatalf("expected default backend %q, got %q", BackendFile, cfg.StorageBackend)
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.SaveTimeout != 10*time.Second {
		t.Fatalf("expected 10s save timeout, got %s", cfg.SaveTimeout)
	}
	if cfg.CacheTTL != 10*time.Minute || cfg.LockTTL != 30*time.Second {
		t.Fatalf("unexpected cache/lock TTLs %s/%s", cfg.CacheTTL, cfg.LockTTL)
	}
	if cfg.RedisEnabled() {
		t.Fatalf("expected redis to be disabled without REDIS_URL")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/books")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("LOCK_TTL", "1m")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.StorageBackend != BackendPostgres || cfg.DatabaseURL != "postgres://user:pass@db:5432/books" {
		t.Fatalf("unexpected database settings %+v", cfg)
	}
	if !cfg.RedisEnabled() || cfg.LockTTL != time.Minute {
		t.Fatalf("unexpected redis settings %+v", cfg)
	}
	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.HTTPPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StorageBackend: BackendFile,
			DataDir:        "./data",
			SaveTimeout:    10 * time.Second,
			LockTTL:        30 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid file backend", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "sqlite" }, true},
		{"file backend without dir", func(c *Config) { c.DataDir = "" }, true},
		{"postgres without url", func(c *Config) { c.StorageBackend = BackendPostgres }, true},
		{"zero save timeout", func(c *Config) { c.SaveTimeout = 0 }, true},
		{"lock shorter than save", func(c *Config) {
			c.RedisURL = "redis://localhost:6379"
			c.LockTTL = time.Second
		}, true},
		{"negative rate limit", func(c *Config) { c.RateLimitRPS = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
