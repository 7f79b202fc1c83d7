// Package config provides configuration management functionality.
//
// Configuration is loaded once at startup from environment variables (with an
// optional .env file loaded first via godotenv). There is no settings
// database in this service; every tunable lives in the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var databaseURLPattern = regexp.MustCompile(`^postgres(ql)?://`)

// Config holds application configuration for the PXI service.
type Config struct {
	DatabaseURL string // store DSN, must match postgres(ql)?://... (validated, surfaced to operators)
	SQLitePath  string // local embedded-engine file backing the store (see internal/database)

	FREDAPIKey          string
	AlphaVantageAPIKey  string
	TwelveDataAPIKey    string
	CoinGeckoBase       string

	IngestCron        string        // cron schedule for the per-minute ingest tick
	StaleThreshold    time.Duration // sample-age alert threshold

	Host string
	Port int

	CORSOrigins []string // "*" or an explicit allowlist

	LogLevel   string
	DevMode    bool

	DBPoolMax int
	DBPoolMin int

	CacheEnabled    bool
	CacheTTL        time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration

	MaxMetricContribution float64 // per-indicator cap-and-redistribute cap

	AlertEnabled    bool
	AlertWebhookURL string

	BackupEnabled   bool
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string
	BackupRetentionDays int
}

// Load reads configuration from environment variables.
//
// godotenv.Load loads an optional .env file first; its absence is not an
// error. Required variables are validated by Validate after defaults are
// applied.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/pxi.db"),

		FREDAPIKey:         getEnv("FRED_API_KEY", ""),
		AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		TwelveDataAPIKey:   getEnv("TWELVEDATA_API_KEY", ""),
		CoinGeckoBase:      getEnv("COINGECKO_BASE", "https://api.coingecko.com/api/v3"),

		IngestCron:     getEnv("INGEST_CRON", "* * * * *"),
		StaleThreshold: time.Duration(getEnvAsInt("STALE_THRESHOLD_MS", 300_000)) * time.Millisecond,

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvAsInt("PORT", 8080),

		CORSOrigins: getEnvAsList("CORS_ORIGINS", "*"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		DBPoolMax: getEnvAsInt("DB_POOL_MAX", 25),
		DBPoolMin: getEnvAsInt("DB_POOL_MIN", 5),

		CacheEnabled:    getEnvAsBool("CACHE_ENABLED", true),
		CacheTTL:        time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		RateLimitMax:    getEnvAsInt("RATE_LIMIT_MAX", 120),
		RateLimitWindow: time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		MaxMetricContribution: getEnvAsFloat("MAX_METRIC_CONTRIBUTION", 0.25),

		AlertEnabled:    getEnvAsBool("ALERT_ENABLED", false),
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),

		BackupEnabled:       getEnvAsBool("BACKUP_ENABLED", false),
		BackupBucket:        getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:      getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey:     getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:     getEnv("BACKUP_SECRET_KEY", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and well-formed.
func (c *Config) Validate() error {
	if !databaseURLPattern.MatchString(c.DatabaseURL) {
		return fmt.Errorf("DATABASE_URL must match postgres(ql)?://..., got %q", redactDSN(c.DatabaseURL))
	}
	if len(c.FREDAPIKey) < 8 {
		return fmt.Errorf("FRED_API_KEY is required and must be at least 8 characters")
	}
	if len(c.AlphaVantageAPIKey) < 8 {
		return fmt.Errorf("ALPHA_VANTAGE_API_KEY is required and must be at least 8 characters")
	}
	if len(c.TwelveDataAPIKey) < 8 {
		return fmt.Errorf("TWELVEDATA_API_KEY is required and must be at least 8 characters")
	}
	if c.MaxMetricContribution <= 0 || c.MaxMetricContribution > 1 {
		return fmt.Errorf("MAX_METRIC_CONTRIBUTION must be in (0, 1], got %f", c.MaxMetricContribution)
	}
	if c.AlertEnabled && c.AlertWebhookURL == "" {
		return fmt.Errorf("ALERT_WEBHOOK_URL is required when ALERT_ENABLED is true")
	}
	if c.BackupEnabled && c.BackupBucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when BACKUP_ENABLED is true")
	}
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return "(empty)"
	}
	if idx := strings.Index(dsn, "://"); idx >= 0 {
		return dsn[:idx] + "://***"
	}
	return "***"
}

// ==========================================
// Helper functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "*" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
