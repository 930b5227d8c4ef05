package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	RedisURL    string
	DatabaseURL string // postgres:// DSN, or a sqlite file path; empty disables the archive

	SlackBotToken string
	AdminSecret   string
	EngineURL     string

	// Streaming
	StreamingEnabled bool
	UpdateInterval   time.Duration
	FlushWindow      time.Duration

	// Deduplication
	DedupTTL           time.Duration
	DedupSweepInterval time.Duration

	// Delivery retries
	DeliveryRetryDelay  time.Duration
	DeliveryMaxAttempts int
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		SlackBotToken: os.Getenv("SLACK_BOT_TOKEN"),
		AdminSecret:   os.Getenv("ADMIN_SECRET"),
		EngineURL:     getEnv("ENGINE_URL", "http://localhost:8090"),

		StreamingEnabled: getEnv("STREAMING_ENABLED", "false") == "true",
		UpdateInterval:   getDuration("STREAM_UPDATE_INTERVAL", 2*time.Second),
		FlushWindow:      getDuration("STREAM_FLUSH_WINDOW", time.Second),

		DedupTTL:           getDuration("DEDUP_TTL", time.Hour),
		DedupSweepInterval: getDuration("DEDUP_SWEEP_INTERVAL", 10*time.Minute),

		DeliveryRetryDelay:  getDuration("DELIVERY_RETRY_DELAY", 1200*time.Millisecond),
		DeliveryMaxAttempts: getInt("DELIVERY_MAX_ATTEMPTS", 3),
	}

	// In production, require the shared store and the admin gate
	if cfg.Env == "production" {
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.AdminSecret == "" {
			panic("ADMIN_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
