package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "arbmon/internal/blob/s3"
	"arbmon/internal/cache/redis"
	"arbmon/internal/config"
	"arbmon/internal/domain"
	"arbmon/internal/notify"
	"arbmon/internal/platform/criptoya"
	"arbmon/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function. Optional dependencies are nil when the
// corresponding backend is disabled or the mode does not need them.
type Dependencies struct {
	Fetcher *criptoya.Client

	// Stores
	Snapshots     domain.SnapshotStore
	Opportunities domain.OpportunityStore

	// Redis
	Cache domain.QuoteCache
	Bus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(cfg *config.Config) bool {
	switch cfg.Mode {
	case "analyze", "archive", "server":
		return true
	case "monitor", "full":
		return cfg.Persistence.Enabled
	default:
		return false
	}
}

// needsRedis returns true for modes that can use the cache and signal bus.
func needsRedis(mode string) bool {
	switch mode {
	case "monitor", "server", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Fetcher: criptoya.NewClient(cfg.CriptoYa.BaseURL, cfg.CriptoYa.Timeout.Duration, logger),
	}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Snapshots = postgres.NewSnapshotStore(pool)
		deps.Opportunities = postgres.NewOpportunityStore(pool)
	}

	// --- Redis (optional; the monitor degrades to store-only output) ---
	if cfg.Redis.Enabled && needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cache = redis.NewQuoteCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (only for modes that archive) ---
	if cfg.S3.Enabled && needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		// Archiver needs the opportunity store to read and prune rows.
		if deps.Opportunities != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Opportunities, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.MinSpreadPct, cfg.Notify.Cooldown.Duration, logger)
	}

	return deps, cleanup, nil
}
