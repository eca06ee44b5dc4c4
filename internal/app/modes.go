package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"arbmon/internal/analytics"
	"arbmon/internal/config"
	"arbmon/internal/detector"
	"arbmon/internal/domain"
	"arbmon/internal/monitor"
	"arbmon/internal/server"
	"arbmon/internal/server/handler"
	"arbmon/internal/server/ws"
)

// analyzeWindowDays is the trailing window for the one-shot analyze mode.
const analyzeWindowDays = 7

// archiveInterval is how often the full mode runs the retention archiver.
const archiveInterval = 24 * time.Hour

// MonitorMode runs the poll loop alone: fetch, detect, persist, publish.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	poller := a.newPoller(deps)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	return g.Wait()
}

// AnalyzeMode builds a temporal report for each configured fiat over the
// trailing window and prints them as JSON to stdout, then exits.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting analyze mode")

	if deps.Opportunities == nil {
		return fmt.Errorf("analyze mode: database is required")
	}

	engine := analytics.NewEngine(deps.Opportunities, a.logger)
	since := time.Now().UTC().AddDate(0, 0, -analyzeWindowDays)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, fiat := range a.cfg.Monitor.Fiats {
		report, err := engine.Analyze(ctx, fiat, since)
		if err != nil {
			a.logger.Warn("report skipped",
				slog.String("fiat", fiat),
				slog.String("error", err.Error()))
			continue
		}
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("analyze mode: encode report: %w", err)
		}
	}

	return nil
}

// ArchiveMode runs one archive-and-prune pass over opportunities older than
// the retention window, then exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: s3 and database must both be configured")
	}
	if a.cfg.Persistence.RetentionDays <= 0 {
		return fmt.Errorf("archive mode: persistence.retention_days must be > 0")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Persistence.RetentionDays)
	return a.runArchivePass(ctx, deps.Archiver, deps.Snapshots, cutoff)
}

// ServerMode runs the HTTP + WebSocket API without an embedded monitor.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode runs everything together: the poll loop, the HTTP + WebSocket API,
// and a periodic retention archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	poller := a.newPoller(deps)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	if deps.Archiver != nil && a.cfg.Persistence.RetentionDays > 0 {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps.Archiver, deps.Snapshots)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, poller)
	}

	return g.Wait()
}

// newPoller assembles the monitor poll loop from config and wired deps.
func (a *App) newPoller(deps *Dependencies) *monitor.Poller {
	var alerter monitor.Alerter
	if deps.Notifier != nil {
		alerter = deps.Notifier
	}

	return monitor.NewPoller(
		deps.Fetcher,
		deps.Snapshots,
		deps.Opportunities,
		deps.Cache,
		deps.Bus,
		alerter,
		nil, // wall clock
		monitor.Config{
			Pairs:        pairsFromConfig(&a.cfg.Monitor),
			Volume:       a.cfg.Monitor.Volume,
			Interval:     a.cfg.Monitor.Interval.Duration,
			RequestDelay: a.cfg.Monitor.RequestDelay.Duration,
			TopN:         a.cfg.Monitor.TopN,
			Detector: detector.Config{
				MinSpreadPct:   a.cfg.Monitor.MinSpreadPct,
				RequireFeeData: a.cfg.Monitor.RequireFeeData,
			},
			PersistEnabled: a.cfg.Persistence.Enabled,
			Granularity:    a.cfg.Persistence.Granularity,
			CacheTTL:       a.cfg.Redis.CacheTTL.Duration,
			BackoffBase:    a.cfg.Backoff.BaseDelay.Duration,
			BackoffMax:     a.cfg.Backoff.MaxDelay.Duration,
		},
		a.logger,
	)
}

// pairsFromConfig expands the coin and fiat lists into the full set of
// monitored pairs.
func pairsFromConfig(cfg *config.MonitorConfig) []domain.Pair {
	pairs := make([]domain.Pair, 0, len(cfg.Coins)*len(cfg.Fiats))
	for _, coin := range cfg.Coins {
		for _, fiat := range cfg.Fiats {
			pairs = append(pairs, domain.Pair{Coin: coin, Fiat: fiat})
		}
	}
	return pairs
}

// startHTTPServer adds the HTTP server (and the WebSocket hub when Redis is
// wired) to the given errgroup. statusSource is the embedded poller, or nil
// when the server runs standalone. The server is shut down gracefully when
// the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	statusSource handler.StatusSource,
) {
	var engine handler.ReportEngine
	if deps.Opportunities != nil {
		engine = analytics.NewEngine(deps.Opportunities, a.logger)
	}

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Opportunities, deps.Cache, a.logger),
		Report:        handler.NewReportHandler(engine, a.logger),
		Status:        handler.NewStatusHandler(statusSource),
	}

	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runArchiveLoop periodically archives and prunes rows past the retention
// window until the context is cancelled.
func (a *App) runArchiveLoop(ctx context.Context, archiver domain.Archiver, snapshots domain.SnapshotStore) error {
	ticker := time.NewTicker(archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Persistence.RetentionDays)
			if err := a.runArchivePass(ctx, archiver, snapshots, cutoff); err != nil {
				a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runArchivePass uploads rows older than cutoff to object storage, then
// prunes them from the database. Pruning only happens after a successful
// upload. Aged detailed snapshots (and their quote rows, via cascade) are
// removed in the same pass, even when no opportunity rows were archived.
func (a *App) runArchivePass(ctx context.Context, archiver domain.Archiver, snapshots domain.SnapshotStore, cutoff time.Time) error {
	archived, err := archiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	var pruned int64
	if archived > 0 {
		pruned, err = archiver.Prune(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive: prune: %w", err)
		}
	}

	var snapsDeleted int64
	if snapshots != nil {
		snapsDeleted, err = snapshots.DeleteSnapshotsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive: delete snapshots: %w", err)
		}
	}

	if archived == 0 && snapsDeleted == 0 {
		a.logger.Info("nothing to archive", slog.Time("cutoff", cutoff))
		return nil
	}

	a.logger.Info("archive pass complete",
		slog.Int64("archived", archived),
		slog.Int64("pruned", pruned),
		slog.Int64("snapshots_deleted", snapsDeleted),
		slog.Time("cutoff", cutoff))
	return nil
}
