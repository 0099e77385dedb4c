package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Telegram
	BotToken string

	// Auth
	JWTSecret   string
	TokenMaxAge time.Duration
	AuthMaxAge  time.Duration

	// Confirmation pipeline
	ConfirmPollInterval  time.Duration
	ConfirmMaxConcurrent int
	ConfirmMaxAttempts   int
	ConfirmRetention     time.Duration

	// Geo sync
	GeoSyncURL      string
	GeoSyncInterval time.Duration
	GeoSyncTimeout  time.Duration
	GeoSyncMaxSize  int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitPayment int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenMaxAge = getEnvDuration("TOKEN_MAX_AGE", 72*time.Hour)
	cfg.AuthMaxAge = getEnvDuration("AUTH_MAX_AGE", 24*time.Hour)
	cfg.ConfirmPollInterval = getEnvDuration("CONFIRM_POLL_INTERVAL", 5*time.Second)
	cfg.ConfirmMaxConcurrent = getEnvInt("CONFIRM_MAX_CONCURRENT", 10)
	cfg.ConfirmMaxAttempts = getEnvInt("CONFIRM_MAX_ATTEMPTS", 8)
	cfg.ConfirmRetention = getEnvDuration("CONFIRM_RETENTION", 72*time.Hour)
	cfg.GeoSyncURL = getEnvString("GEO_SYNC_URL", "")
	cfg.GeoSyncInterval = getEnvDuration("GEO_SYNC_INTERVAL", 24*time.Hour)
	cfg.GeoSyncTimeout = getEnvDuration("GEO_SYNC_TIMEOUT", 10*time.Second)
	cfg.GeoSyncMaxSize = getEnvInt64("GEO_SYNC_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPayment = getEnvInt("RATE_LIMIT_PAYMENT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
