package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.WSPort != 8080 {
		t.Errorf("expected WSPort=8080, got %d", cfg.WSPort)
	}
	if cfg.MaxNameLength != 64 {
		t.Errorf("expected MaxNameLength=64, got %d", cfg.MaxNameLength)
	}
	if cfg.StoreTimeout() != 2*time.Second {
		t.Errorf("expected StoreTimeout=2s, got %v", cfg.StoreTimeout())
	}
	if cfg.DatabaseURL != "" || cfg.SQLitePath != "" {
		t.Errorf("expected no store by default, got %q %q", cfg.DatabaseURL, cfg.SQLitePath)
	}
	if len(cfg.AIProfiles) == 0 {
		t.Error("expected at least one AI profile")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("WS_PORT", "9090")
	t.Setenv("SQLITE_PATH", "/tmp/triad.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.WSPort != 9090 {
		t.Errorf("expected WSPort=9090 after env override, got %d", cfg.WSPort)
	}
	if cfg.SQLitePath != "/tmp/triad.db" {
		t.Errorf("expected SQLitePath override, got %q", cfg.SQLitePath)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	// Non-overridden fields should remain default
	if cfg.MaxNameLength != 64 {
		t.Errorf("expected MaxNameLength=64 (default), got %d", cfg.MaxNameLength)
	}
}

func TestLoadWithInvalidEnv(t *testing.T) {
	t.Setenv("WS_PORT", "invalid")

	cfg := Load()

	// Should fall back to default when env value is invalid
	if cfg.WSPort != 8080 {
		t.Errorf("expected WSPort=8080 (default) with invalid env, got %d", cfg.WSPort)
	}
}
