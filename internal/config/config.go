package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// ストアバックエンドの種別。
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`

	// Cache
	EnableSecondaryCache bool   `env:"ENABLE_SECONDARY_CACHE" envDefault:"false"`
	CacheTTLSeconds      int    `env:"CACHE_TTL_SECONDS" envDefault:"86400"`
	CacheCleanupSchedule string `env:"CACHE_CLEANUP_SCHEDULE" envDefault:"@hourly"`

	// Conversation
	PageSize int `env:"PAGE_SIZE" envDefault:"10"`

	// Server
	ServerPort         string `env:"SERVER_PORT" envDefault:"8080"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// CacheTTL はキャッシュ有効期限をtime.Durationで返す。
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。Load済みの値は常に有効。
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 値が不正な場合や必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be %q or %q", c.StoreBackend, StoreBackendPostgres, StoreBackendMemory)
	}

	if c.EnableSecondaryCache && c.DatabaseURL == "" {
		return fmt.Errorf("ENABLE_SECONDARY_CACHE requires DATABASE_URL")
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("invalid CACHE_TTL_SECONDS %d: must be positive", c.CacheTTLSeconds)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("invalid PAGE_SIZE %d: must be positive", c.PageSize)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %d: must be positive", c.RateLimitPerMinute)
	}

	if _, err := cron.ParseStandard(c.CacheCleanupSchedule); err != nil {
		return fmt.Errorf("invalid CACHE_CLEANUP_SCHEDULE %q: %w", c.CacheCleanupSchedule, err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}
