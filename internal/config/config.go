// Package config は環境変数（と任意の .env）からアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config は環境変数から読み込んだアプリケーション設定です。
type Config struct {
	AppEnv   string
	Port     string
	LogLevel slog.Level

	GeminiAPIKey string
	GeminiModel  string

	MaxUploadBytes     int64
	MaxImageDimension  int
	SessionTTL         time.Duration
	GenerateRatePerMin int
	FetchTimeout       time.Duration
	ReferenceCacheTTL  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig は .env があれば読み込んだ上で、環境変数から設定を組み立てます。
// 既に設定されている環境変数は .env で上書きされません。
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗しました: %w", err)
	}

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "production"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           parseLevel(getEnv("LOG_LEVEL", "info")),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxImageDimension:  getEnvInt("MAX_IMAGE_DIMENSION", 2048),
		SessionTTL:         time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)),
		GenerateRatePerMin: getEnvInt("GENERATE_RATE_PER_MINUTE", 10),
		FetchTimeout:       time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 20)),
		ReferenceCacheTTL:  time.Minute * time.Duration(getEnvInt("REFERENCE_CACHE_TTL_MINUTES", 10)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive: %d", cfg.MaxUploadBytes)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}

	return cfg, nil
}

// IsDevelopment は開発環境かどうかです。ログをテキスト形式にするのに使います。
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Addr は待ち受けアドレスです。
func (c *Config) Addr() string {
	return ":" + c.Port
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
