// ABOUTME: This file loads and validates service configuration from the environment
// ABOUTME: Secrets accept *_FILE variants pointing at mounted files, plain env otherwise

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"reader-sync/models"
)

// Config holds all configuration for the reader-sync service.
type Config struct {
	ServiceName string
	LogLevel    string

	Server     ServerConfig
	Database   DatabaseConfig
	Reader     ReaderConfig
	Sync       SyncConfig
	Retention  RetentionConfig
	Extraction ExtractionConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// ConnString renders the pgx keyword/value connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ReaderConfig holds remote reader API settings.
type ReaderConfig struct {
	BaseURL     string
	AccessToken string
}

// SyncConfig holds per-session limits and the non-sync sweep cadences.
type SyncConfig struct {
	StreamID             string
	PageSize             int
	MaxPages             int
	WriteBackLimit       int
	EditBatchSize        int
	MaxExtractPerSession int
	RetryMaxAttempts     int
	RetryBaseDelay       time.Duration
	FeedSyncInterval     time.Duration
	TickTimeout          time.Duration
}

// RetentionConfig holds the local cleanup policy and its cadence.
type RetentionConfig struct {
	ReadArticlesDays       int
	UnreadArticlesDays     int
	StarredArticlesDays    int
	FullContentCacheDays   int
	TombstoneRetentionDays int
	BatchSize              int
	PreserveRecentDays     int
	Enabled                bool
	DryRun                 bool
	Interval               time.Duration
}

// Policy converts the section into the model-level retention policy.
func (r RetentionConfig) Policy() models.RetentionPolicy {
	return models.RetentionPolicy{
		ReadArticlesDays:       r.ReadArticlesDays,
		UnreadArticlesDays:     r.UnreadArticlesDays,
		StarredArticlesDays:    r.StarredArticlesDays,
		FullContentCacheDays:   r.FullContentCacheDays,
		TombstoneRetentionDays: r.TombstoneRetentionDays,
		BatchSize:              r.BatchSize,
		PreserveRecentDays:     r.PreserveRecentDays,
		Enabled:                r.Enabled,
		DryRun:                 r.DryRun,
	}
}

// ExtractionConfig holds full-content extraction settings.
type ExtractionConfig struct {
	Enabled           bool
	PerArticleTimeout time.Duration
	HostInterval      time.Duration
	BatchConcurrency  int
	UserAgent         string
}

// RedisConfig holds the sync event stream settings.
type RedisConfig struct {
	Address       string
	ConsumerGroup string
	EventsEnabled bool
}

// RateLimitConfig holds quota limits and the background sync cadence.
type RateLimitConfig struct {
	Zone1DailyLimit     int
	Zone2DailyLimit     int
	SafetyBufferPercent int
	SyncInterval        time.Duration
	MaxSyncInterval     time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnvOrDefault("SERVICE_NAME", "reader-sync"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			ShutdownTimeout: getEnvDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},

		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Name:     getEnvOrDefault("DB_NAME", "reader_sync"),
			User:     getEnvOrDefault("READER_SYNC_DB_USER", "reader_sync_user"),
			Password: getSecretOrEnv("READER_SYNC_DB_PASSWORD_FILE", "READER_SYNC_DB_PASSWORD"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getEnvIntOrDefault("DB_MAX_CONNS", 10),
			MinConns: getEnvIntOrDefault("DB_MIN_CONNS", 2),
		},

		Reader: ReaderConfig{
			BaseURL:     getEnvOrDefault("READER_BASE_URL", "https://www.inoreader.com/reader/api/0"),
			AccessToken: getSecretOrEnv("READER_ACCESS_TOKEN_FILE", "READER_ACCESS_TOKEN"),
		},

		Sync: SyncConfig{
			StreamID:             getEnvOrDefault("SYNC_STREAM_ID", models.StreamReadingList),
			PageSize:             getEnvIntOrDefault("SYNC_PAGE_SIZE", 100),
			MaxPages:             getEnvIntOrDefault("SYNC_MAX_PAGES", 5),
			WriteBackLimit:       getEnvIntOrDefault("SYNC_WRITE_BACK_LIMIT", 200),
			EditBatchSize:        getEnvIntOrDefault("SYNC_EDIT_BATCH_SIZE", 50),
			MaxExtractPerSession: getEnvIntOrDefault("SYNC_MAX_EXTRACT_PER_SESSION", 10),
			RetryMaxAttempts:     getEnvIntOrDefault("SYNC_RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:       getEnvDurationOrDefault("SYNC_RETRY_BASE_DELAY", 2*time.Second),
			FeedSyncInterval:     getEnvDurationOrDefault("FEED_SYNC_INTERVAL", 24*time.Hour),
			TickTimeout:          getEnvDurationOrDefault("SCHEDULER_TICK_TIMEOUT", 5*time.Minute),
		},

		Retention: RetentionConfig{
			ReadArticlesDays:       getEnvIntOrDefault("RETENTION_READ_ARTICLES_DAYS", 30),
			UnreadArticlesDays:     getEnvIntOrDefault("RETENTION_UNREAD_ARTICLES_DAYS", 90),
			StarredArticlesDays:    getEnvIntOrDefault("RETENTION_STARRED_ARTICLES_DAYS", models.StarredKeepForever),
			FullContentCacheDays:   getEnvIntOrDefault("RETENTION_FULL_CONTENT_CACHE_DAYS", 14),
			TombstoneRetentionDays: getEnvIntOrDefault("RETENTION_TOMBSTONE_DAYS", 90),
			BatchSize:              getEnvIntOrDefault("RETENTION_BATCH_SIZE", 1000),
			PreserveRecentDays:     getEnvIntOrDefault("RETENTION_PRESERVE_RECENT_DAYS", 3),
			Enabled:                getEnvBoolOrDefault("RETENTION_ENABLED", true),
			DryRun:                 getEnvBoolOrDefault("RETENTION_DRY_RUN", false),
			Interval:               getEnvDurationOrDefault("RETENTION_INTERVAL", 24*time.Hour),
		},

		Extraction: ExtractionConfig{
			Enabled:           getEnvBoolOrDefault("EXTRACTION_ENABLED", true),
			PerArticleTimeout: getEnvDurationOrDefault("EXTRACTION_TIMEOUT", 30*time.Second),
			HostInterval:      getEnvDurationOrDefault("EXTRACTION_HOST_INTERVAL", 2*time.Second),
			BatchConcurrency:  getEnvIntOrDefault("EXTRACTION_BATCH_CONCURRENCY", 4),
			UserAgent:         getEnvOrDefault("EXTRACTION_USER_AGENT", "reader-sync/1.0"),
		},

		Redis: RedisConfig{
			Address:       getEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
			ConsumerGroup: getEnvOrDefault("REDIS_CONSUMER_GROUP", "reader-sync"),
			EventsEnabled: getEnvBoolOrDefault("SYNC_EVENTS_ENABLED", true),
		},

		RateLimit: RateLimitConfig{
			Zone1DailyLimit:     getEnvIntOrDefault("API_ZONE1_DAILY_LIMIT", 100),
			Zone2DailyLimit:     getEnvIntOrDefault("API_ZONE2_DAILY_LIMIT", 100),
			SafetyBufferPercent: getEnvIntOrDefault("API_SAFETY_BUFFER_PERCENT", 10),
			SyncInterval:        getEnvDurationOrDefault("SYNC_INTERVAL", 30*time.Minute),
			MaxSyncInterval:     getEnvDurationOrDefault("MAX_SYNC_INTERVAL", 4*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks required values and bounds.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("READER_SYNC_DB_PASSWORD is required")
	}
	if c.Reader.AccessToken == "" {
		return fmt.Errorf("READER_ACCESS_TOKEN is required")
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 100 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 100, got %d", c.Sync.PageSize)
	}
	if c.Sync.MaxPages < 1 {
		return fmt.Errorf("SYNC_MAX_PAGES must be at least 1, got %d", c.Sync.MaxPages)
	}
	if c.Sync.EditBatchSize < 1 {
		return fmt.Errorf("SYNC_EDIT_BATCH_SIZE must be at least 1, got %d", c.Sync.EditBatchSize)
	}
	if c.Sync.WriteBackLimit < 0 {
		return fmt.Errorf("SYNC_WRITE_BACK_LIMIT must be >= 0, got %d", c.Sync.WriteBackLimit)
	}

	if c.RateLimit.Zone1DailyLimit < 1 || c.RateLimit.Zone2DailyLimit < 1 {
		return fmt.Errorf("API zone daily limits must be positive, got zone1=%d zone2=%d",
			c.RateLimit.Zone1DailyLimit, c.RateLimit.Zone2DailyLimit)
	}
	if c.RateLimit.SafetyBufferPercent < 0 || c.RateLimit.SafetyBufferPercent > 100 {
		return fmt.Errorf("API_SAFETY_BUFFER_PERCENT must be between 0 and 100, got %d",
			c.RateLimit.SafetyBufferPercent)
	}
	if c.RateLimit.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.RateLimit.SyncInterval)
	}
	if c.RateLimit.MaxSyncInterval < c.RateLimit.SyncInterval {
		return fmt.Errorf("MAX_SYNC_INTERVAL must be >= SYNC_INTERVAL, got %s < %s",
			c.RateLimit.MaxSyncInterval, c.RateLimit.SyncInterval)
	}

	if err := c.Retention.Policy().Validate(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}

	if c.Extraction.Enabled {
		if c.Extraction.PerArticleTimeout <= 0 {
			return fmt.Errorf("EXTRACTION_TIMEOUT must be positive, got %s", c.Extraction.PerArticleTimeout)
		}
		if c.Extraction.BatchConcurrency < 1 {
			return fmt.Errorf("EXTRACTION_BATCH_CONCURRENCY must be at least 1, got %d", c.Extraction.BatchConcurrency)
		}
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or the default if
// not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault parses the variable as an int, falling back to the
// default when unset or malformed.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault parses the variable as a time.ParseDuration string,
// falling back to the default when unset or malformed.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault parses the variable as a bool, falling back to the
// default when unset or malformed.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getSecretOrEnv reads a secret from the file named by fileKey when set,
// otherwise from the plain environment variable. Mounted secret files often
// end with a newline, so the value is trimmed.
func getSecretOrEnv(fileKey, envKey string) string {
	if path := os.Getenv(fileKey); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return os.Getenv(envKey)
}
