// Package config defines the top-level configuration for the arbitrage
// monitor and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBMON_* environment variables.
type Config struct {
	Monitor     MonitorConfig     `toml:"monitor"`
	Backoff     BackoffConfig     `toml:"backoff"`
	Persistence PersistenceConfig `toml:"persistence"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	CriptoYa    CriptoYaConfig    `toml:"criptoya"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// MonitorConfig holds the poll loop parameters: which markets to watch and
// how aggressively to poll them.
type MonitorConfig struct {
	Coins          []string `toml:"coins"`
	Fiats          []string `toml:"fiats"`
	Volume         float64  `toml:"volume"`
	MinSpreadPct   float64  `toml:"min_spread_pct"`
	Interval       duration `toml:"interval"`
	RequestDelay   duration `toml:"request_delay"`
	TopN           int      `toml:"top_n"`
	RequireFeeData bool     `toml:"require_fee_data"`
}

// BackoffConfig holds retry parameters for transient fetch failures.
type BackoffConfig struct {
	BaseDelay duration `toml:"base_delay"`
	MaxDelay  duration `toml:"max_delay"`
}

// PersistenceConfig selects whether and how much of each cycle is stored.
type PersistenceConfig struct {
	Enabled bool `toml:"enabled"`
	// Granularity is "basic" (opportunities only) or "detailed" (full market
	// snapshot with per-exchange quotes plus opportunities).
	Granularity string `toml:"granularity"`
	// RetentionDays is how long rows are kept before the archiver prunes
	// them. Zero disables pruning.
	RetentionDays int `toml:"retention_days"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CriptoYaConfig holds the quote API endpoint parameters.
type CriptoYaConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials and alert gating.
type NotifyConfig struct {
	MinSpreadPct      float64  `toml:"min_spread_pct"`
	Cooldown          duration `toml:"cooldown"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Monitor: MonitorConfig{
			Coins:          []string{"BTC", "USDT"},
			Fiats:          []string{"ARS"},
			Volume:         0.1,
			MinSpreadPct:   0.5,
			Interval:       duration{60 * time.Second},
			RequestDelay:   duration{500 * time.Millisecond},
			TopN:           3,
			RequireFeeData: false,
		},
		Backoff: BackoffConfig{
			BaseDelay: duration{1 * time.Second},
			MaxDelay:  duration{1 * time.Minute},
		},
		Persistence: PersistenceConfig{
			Enabled:       true,
			Granularity:   "basic",
			RetentionDays: 90,
		},
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "arbmon",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			CacheTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbmon-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		CriptoYa: CriptoYaConfig{
			BaseURL: "https://criptoya.com/api",
			Timeout: duration{10 * time.Second},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			MinSpreadPct: 2.0,
			Cooldown:     duration{15 * time.Minute},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"analyze": true,
	"archive": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validGranularities enumerates the accepted persistence granularities.
var validGranularities = map[string]bool{
	"basic":    true,
	"detailed": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, analyze, archive, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Monitor
	if len(c.Monitor.Coins) == 0 {
		errs = append(errs, "monitor: at least one coin must be configured")
	}
	if len(c.Monitor.Fiats) == 0 {
		errs = append(errs, "monitor: at least one fiat must be configured")
	}
	if c.Monitor.Volume <= 0 {
		errs = append(errs, "monitor: volume must be > 0")
	}
	if c.Monitor.MinSpreadPct < 0 {
		errs = append(errs, "monitor: min_spread_pct must be >= 0")
	}
	if c.Monitor.Interval.Duration <= 0 {
		errs = append(errs, "monitor: interval must be > 0")
	}
	if c.Monitor.RequestDelay.Duration < 0 {
		errs = append(errs, "monitor: request_delay must be >= 0")
	}
	if c.Monitor.TopN < 0 {
		errs = append(errs, "monitor: top_n must be >= 0")
	}

	// Backoff
	if c.Backoff.BaseDelay.Duration <= 0 {
		errs = append(errs, "backoff: base_delay must be > 0")
	}
	if c.Backoff.MaxDelay.Duration < c.Backoff.BaseDelay.Duration {
		errs = append(errs, "backoff: max_delay must be >= base_delay")
	}

	// Persistence
	if c.Persistence.Enabled && !validGranularities[strings.ToLower(c.Persistence.Granularity)] {
		errs = append(errs, fmt.Sprintf("persistence: unknown granularity %q (valid: basic, detailed)", c.Persistence.Granularity))
	}
	if c.Persistence.RetentionDays < 0 {
		errs = append(errs, "persistence: retention_days must be >= 0")
	}

	// Database — required whenever persistence is on or a mode that reads
	// history runs.
	needsDB := c.Persistence.Enabled || c.Mode == "analyze" || c.Mode == "archive" || c.Mode == "server"
	if needsDB && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.CacheTTL.Duration <= 0 {
			errs = append(errs, "redis: cache_ttl must be > 0")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// CriptoYa
	if c.CriptoYa.BaseURL == "" {
		errs = append(errs, "criptoya: base_url must not be empty")
	}
	if c.CriptoYa.Timeout.Duration <= 0 {
		errs = append(errs, "criptoya: timeout must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — chat ID and token go together.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must both be set together")
	}
	if c.Notify.MinSpreadPct < 0 {
		errs = append(errs, "notify: min_spread_pct must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
