package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// AIParams holds the parameters for one AI profile (name and behavior).
type AIParams struct {
	Name              string `json:"name"`
	DelayMinMS        int    `json:"delay_min_ms"`
	DelayMaxMS        int    `json:"delay_max_ms"`
	UseBestMoveChance int    `json:"use_best_move_chance"` // 0-100, probability to play the move with the most captures
}

// Config holds all configurable server parameters.
type Config struct {
	WSPort int `json:"ws_port" env:"WS_PORT"`

	// MaxNameLength bounds player ids. Token subjects are UUIDs, so keep it at 36 or more.
	MaxNameLength int `json:"max_name_length" env:"MAX_NAME_LENGTH"`

	// DatabaseURL selects the Postgres store; SQLitePath the embedded one.
	// With neither set, matches live in memory only.
	DatabaseURL string `json:"-" env:"DATABASE_URL"`
	SQLitePath  string `json:"sqlite_path" env:"SQLITE_PATH"`

	// StoreTimeoutMS bounds each write-through save of a match.
	StoreTimeoutMS int `json:"store_timeout_ms" env:"STORE_TIMEOUT_MS"`

	// AuthBaseURL enables bearer-token checks against <AuthBaseURL>/.well-known/jwks.json.
	AuthBaseURL string `json:"auth_base_url" env:"AUTH_BASE_URL"`

	ShutdownTimeoutSec int    `json:"shutdown_timeout_sec" env:"SHUTDOWN_TIMEOUT_SEC"`
	LogLevel           string `json:"log_level" env:"LOG_LEVEL"`

	// AIProfiles lists available AI opponents; one is chosen at random for opponent "AI".
	AIProfiles []AIParams `json:"ai_profiles"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:             8080,
		MaxNameLength:      64,
		StoreTimeoutMS:     2000,
		ShutdownTimeoutSec: 10,
		LogLevel:           "info",
		AIProfiles: []AIParams{
			{Name: "Quistis", DelayMinMS: 800, DelayMaxMS: 1800, UseBestMoveChance: 90},
			{Name: "Zell", DelayMinMS: 400, DelayMaxMS: 900, UseBestMoveChance: 60},
			{Name: "Selphie", DelayMinMS: 600, DelayMaxMS: 1500, UseBestMoveChance: 75},
		},
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values. If any environment
// value is invalid, all environment overrides are ignored.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config.json", "tag", "config", "err", err)
		}
	}

	overridden := *cfg
	if err := env.Parse(&overridden); err != nil {
		slog.Warn("invalid environment override; ignoring environment", "tag", "config", "err", err)
		return cfg
	}
	return &overridden
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutSec as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// SlogLevel maps LogLevel to a slog.Level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
