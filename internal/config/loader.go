package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBMON_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBMON_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Monitor ──
	setStringSlice(&cfg.Monitor.Coins, "ARBMON_MONITOR_COINS")
	setStringSlice(&cfg.Monitor.Fiats, "ARBMON_MONITOR_FIATS")
	setFloat64(&cfg.Monitor.Volume, "ARBMON_MONITOR_VOLUME")
	setFloat64(&cfg.Monitor.MinSpreadPct, "ARBMON_MONITOR_MIN_SPREAD_PCT")
	setDuration(&cfg.Monitor.Interval, "ARBMON_MONITOR_INTERVAL")
	setDuration(&cfg.Monitor.RequestDelay, "ARBMON_MONITOR_REQUEST_DELAY")
	setInt(&cfg.Monitor.TopN, "ARBMON_MONITOR_TOP_N")
	setBool(&cfg.Monitor.RequireFeeData, "ARBMON_MONITOR_REQUIRE_FEE_DATA")

	// ── Backoff ──
	setDuration(&cfg.Backoff.BaseDelay, "ARBMON_BACKOFF_BASE_DELAY")
	setDuration(&cfg.Backoff.MaxDelay, "ARBMON_BACKOFF_MAX_DELAY")

	// ── Persistence ──
	setBool(&cfg.Persistence.Enabled, "ARBMON_PERSISTENCE_ENABLED")
	setStr(&cfg.Persistence.Granularity, "ARBMON_PERSISTENCE_GRANULARITY")
	setInt(&cfg.Persistence.RetentionDays, "ARBMON_PERSISTENCE_RETENTION_DAYS")

	// ── Database ──
	setStr(&cfg.Database.DSN, "ARBMON_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "ARBMON_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ARBMON_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBMON_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBMON_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "ARBMON_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBMON_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBMON_DATABASE_SSLMODE")
	setStr(&cfg.Database.SSLMode, "ARBMON_DATABASE_SSL_MODE") // compatibility alias
	setInt(&cfg.Database.PoolMaxConns, "ARBMON_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARBMON_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARBMON_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBMON_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBMON_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBMON_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBMON_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBMON_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBMON_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBMON_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "ARBMON_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBMON_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBMON_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBMON_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBMON_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBMON_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBMON_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBMON_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBMON_S3_FORCE_PATH_STYLE")

	// ── CriptoYa ──
	setStr(&cfg.CriptoYa.BaseURL, "ARBMON_CRIPTOYA_BASE_URL")
	setDuration(&cfg.CriptoYa.Timeout, "ARBMON_CRIPTOYA_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBMON_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBMON_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBMON_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBMON_SERVER_API_KEY")

	// ── Notify ──
	setFloat64(&cfg.Notify.MinSpreadPct, "ARBMON_NOTIFY_MIN_SPREAD_PCT")
	setDuration(&cfg.Notify.Cooldown, "ARBMON_NOTIFY_COOLDOWN")
	setStr(&cfg.Notify.TelegramToken, "ARBMON_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBMON_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBMON_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBMON_MODE")
	setStr(&cfg.LogLevel, "ARBMON_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
