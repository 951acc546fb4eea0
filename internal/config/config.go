// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SettingsReader is the subset of the settings repository used to override env values.
type SettingsReader interface {
	Get(key string) (*string, error)
}

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the sqlite database and logs (always absolute)
	LogLevel string
	LogFile  string
	Port     int
	DevMode  bool

	Broker   BrokerConfig
	Market   MarketSession
	Auth     AuthConfig
	Feed     FeedConfig
	Cache    CacheConfig
	Jobs     JobsConfig
	Snapshot SnapshotConfig

	// Symbols polled for quotes (index spot symbols, e.g. "NSE:NIFTY 50")
	Symbols []string
	// OptionUnderlyings are the symbols whose option chains feed the OI / PCR metrics
	OptionUnderlyings []string
}

// BrokerConfig holds broker API connection settings
type BrokerConfig struct {
	BaseURL        string
	StreamURL      string
	APIKey         string
	AccessToken    string
	TokenIssuedAt  time.Time // zero when unknown
	RequestsPerSec int
	Timeout        time.Duration
}

// AuthConfig controls how often the access token is re-verified
type AuthConfig struct {
	CheckInterval time.Duration
	VerifyTimeout time.Duration
}

// FeedConfig holds the watchdog thresholds
type FeedConfig struct {
	StaleAfter        time.Duration
	DisconnectedAfter time.Duration
	QualityWindow     time.Duration
}

// CacheConfig holds advisory TTLs for the cache store
type CacheConfig struct {
	LiveTTL       time.Duration
	BackupTTL     time.Duration
	CandleHistory int
}

// JobsConfig holds cron schedules for background jobs
type JobsConfig struct {
	QuotePoll     string
	AuthCheck     string
	CacheBackup   string
	Snapshot      string
	StatusMonitor time.Duration
}

// SnapshotConfig configures the optional S3-compatible snapshot export
type SnapshotConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string // custom endpoint for R2 / MinIO, empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // 0 keeps snapshots forever
}

// Enabled reports whether snapshot export is configured.
func (s SnapshotConfig) Enabled() bool {
	return s.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("MARKETPULSE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	market, err := loadMarketSession()
	if err != nil {
		return nil, err
	}

	tokenIssuedAt, err := getEnvAsTime("BROKER_TOKEN_ISSUED_AT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
		Port:     getEnvAsInt("PORT", 8000),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Broker: BrokerConfig{
			BaseURL:        getEnv("BROKER_BASE_URL", "https://api.kite.trade"),
			StreamURL:      getEnv("BROKER_STREAM_URL", "wss://ws.kite.trade"),
			APIKey:         getEnv("BROKER_API_KEY", ""),
			AccessToken:    getEnv("BROKER_ACCESS_TOKEN", ""),
			TokenIssuedAt:  tokenIssuedAt,
			RequestsPerSec: getEnvAsInt("BROKER_REQUESTS_PER_SEC", 3),
			Timeout:        getEnvAsDuration("BROKER_TIMEOUT", 10*time.Second),
		},
		Market: market,
		Auth: AuthConfig{
			CheckInterval: getEnvAsDuration("AUTH_CHECK_INTERVAL", 5*time.Minute),
			VerifyTimeout: getEnvAsDuration("AUTH_VERIFY_TIMEOUT", 10*time.Second),
		},
		Feed: FeedConfig{
			StaleAfter:        getEnvAsDuration("FEED_STALE_AFTER", 10*time.Second),
			DisconnectedAfter: getEnvAsDuration("FEED_DISCONNECTED_AFTER", 60*time.Second),
			QualityWindow:     getEnvAsDuration("FEED_QUALITY_WINDOW", 60*time.Second),
		},
		Cache: CacheConfig{
			LiveTTL:       getEnvAsDuration("CACHE_LIVE_TTL", 60*time.Second),
			BackupTTL:     getEnvAsDuration("CACHE_BACKUP_TTL", 24*time.Hour),
			CandleHistory: getEnvAsInt("CACHE_CANDLE_HISTORY", 200),
		},
		Jobs: JobsConfig{
			QuotePoll:     getEnv("QUOTE_POLL_SCHEDULE", "@every 5s"),
			AuthCheck:     getEnv("AUTH_CHECK_SCHEDULE", "@every 1m"),
			CacheBackup:   getEnv("BACKUP_SCHEDULE", "@every 1m"),
			Snapshot:      getEnv("SNAPSHOT_SCHEDULE", "@hourly"),
			StatusMonitor: getEnvAsDuration("STATUS_MONITOR_INTERVAL", 5*time.Second),
		},
		Snapshot: SnapshotConfig{
			Bucket:          getEnv("SNAPSHOT_BUCKET", ""),
			Prefix:          getEnv("SNAPSHOT_PREFIX", "snapshots"),
			Endpoint:        getEnv("SNAPSHOT_ENDPOINT", ""),
			Region:          getEnv("SNAPSHOT_REGION", "auto"),
			AccessKeyID:     getEnv("SNAPSHOT_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SNAPSHOT_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 7),
		},
		Symbols:           getEnvAsList("SYMBOLS", []string{"NSE:NIFTY 50", "NSE:NIFTY BANK"}),
		OptionUnderlyings: getEnvAsList("OPTION_UNDERLYINGS", []string{"NIFTY", "BANKNIFTY"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settings SettingsReader) error {
	token, err := settings.Get(SettingAccessToken)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", SettingAccessToken, err)
	}
	if token != nil && *token != "" {
		c.Broker.AccessToken = *token
	}

	issuedAt, err := settings.Get(SettingTokenIssuedAt)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", SettingTokenIssuedAt, err)
	}
	if issuedAt != nil && *issuedAt != "" {
		if t, err := time.Parse(time.RFC3339, *issuedAt); err == nil {
			c.Broker.TokenIssuedAt = t
		}
	}

	return nil
}

// Settings keys shared with the settings repository
const (
	SettingAccessToken   = "broker_access_token"
	SettingTokenIssuedAt = "broker_token_issued_at"
)

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if c.Feed.StaleAfter <= 0 || c.Feed.DisconnectedAfter <= c.Feed.StaleAfter {
		return fmt.Errorf("feed thresholds must satisfy 0 < stale (%s) < disconnected (%s)",
			c.Feed.StaleAfter, c.Feed.DisconnectedAfter)
	}
	if c.Auth.CheckInterval <= 0 {
		return fmt.Errorf("auth check interval must be positive, got %s", c.Auth.CheckInterval)
	}
	if c.Auth.VerifyTimeout <= 0 {
		return fmt.Errorf("auth verify timeout must be positive, got %s", c.Auth.VerifyTimeout)
	}

	// Broker credentials are optional: without a token the auth tracker reports REQUIRED
	return nil
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsTime(key string) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s (want RFC3339): %w", key, err)
	}
	return t, nil
}
