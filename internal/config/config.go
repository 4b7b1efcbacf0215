// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Exchange  ExchangeConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Snapshots SnapshotConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// Addr is the host:port the listener binds.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Production reports whether the service runs against live venues.
func (c ServerConfig) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ExchangeConfig holds the default venue credentials the webhook trades
// with.
type ExchangeConfig struct {
	APIKey    string
	APISecret string

	// WebhookPassphrase authenticates incoming alerts.
	WebhookPassphrase string
}

// Configured reports whether venue credentials were provided.
func (c ExchangeConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// DatabaseConfig points at Postgres. An empty URL selects the in-memory
// store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig points at the optional response cache.
type RedisConfig struct {
	Addr     string
	CacheTTL time.Duration
}

// AuthConfig controls JWT issuance for the management API. An empty secret
// disables authentication.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LoggingConfig mirrors the logger package options.
type LoggingConfig struct {
	Level  string
	Format string
	Output string

	// DataDir receives log files when Output is "file". It is the only
	// path the process writes besides the database.
	DataDir string
}

// RateLimitConfig caps per-client request rates.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// SnapshotConfig controls the balance snapshot poller.
type SnapshotConfig struct {
	// Interval is a cron expression or descriptor such as "@every 15m".
	// Empty disables the poller.
	Interval string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first without overriding real environment
// variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Host:        getEnv("HOST", "0.0.0.0"),
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Exchange: ExchangeConfig{
			APIKey:            os.Getenv("API_KEY"),
			APISecret:         os.Getenv("API_SECRET"),
			WebhookPassphrase: os.Getenv("WEBHOOK_PASSPHRASE"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  getEnvDuration("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "text"),
			Output:  getEnv("LOG_OUTPUT", "stdout"),
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_RPM", 60),
		},
		Snapshots: SnapshotConfig{
			Interval: getEnv("SNAPSHOT_INTERVAL", "@every 15m"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Exchange.WebhookPassphrase == "" {
		return fmt.Errorf("WEBHOOK_PASSPHRASE is required")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
