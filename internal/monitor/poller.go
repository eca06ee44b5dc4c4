// Package monitor runs the polling cycle: fetch quotes for each monitored
// pair, detect arbitrage opportunities, persist and publish them, then
// sleep until the next cycle. Fetch failures are retried with exponential
// backoff.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"arbmon/internal/detector"
	"arbmon/internal/domain"
)

// State is the poll loop's current phase, exposed for status reporting.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateDetecting  State = "detecting"
	StatePersisting State = "persisting"
	StateSleeping   State = "sleeping"
	StateBackingOff State = "backing_off"
)

// Pub/sub channels the poller publishes on.
const (
	ChannelOpportunities = "arb"
	ChannelQuotes        = "quotes"
)

// QuoteFetcher fetches all exchange quotes for one pair.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, pair domain.Pair, volume float64) (domain.MarketSnapshot, error)
}

// Alerter pushes a detected opportunity to external notification channels.
type Alerter interface {
	NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error
}

// Granularity selects how much of each cycle is persisted.
const (
	GranularityBasic    = "basic"    // top opportunity only
	GranularityDetailed = "detailed" // full snapshot + quotes + opportunities
)

// Config holds the poll loop's tunables.
type Config struct {
	Pairs        []domain.Pair
	Volume       float64
	Interval     time.Duration
	RequestDelay time.Duration
	// TopN limits how many opportunities per cycle are published on the
	// signal bus. Detailed persistence keeps all of them; basic keeps only
	// the top one.
	TopN     int
	Detector detector.Config

	PersistEnabled bool
	Granularity    string

	CacheTTL time.Duration

	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Status is a point-in-time view of the poll loop for the status endpoint.
type Status struct {
	State               State     `json:"state"`
	Cycles              int64     `json:"cycles"`
	LastCycleAt         time.Time `json:"last_cycle_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Poller drives the monitor cycle. Stores, cache, bus, and alerter are all
// optional; a nil dependency disables that output.
type Poller struct {
	fetcher   QuoteFetcher
	snapshots domain.SnapshotStore
	opps      domain.OpportunityStore
	cache     domain.QuoteCache
	bus       domain.SignalBus
	alerter   Alerter
	clock     Clock
	logger    *slog.Logger
	cfg       Config

	mu     sync.Mutex
	status Status
}

// NewPoller creates a poll loop over the given dependencies.
func NewPoller(
	fetcher QuoteFetcher,
	snapshots domain.SnapshotStore,
	opps domain.OpportunityStore,
	cache domain.QuoteCache,
	bus domain.SignalBus,
	alerter Alerter,
	clock Clock,
	cfg Config,
	logger *slog.Logger,
) *Poller {
	if clock == nil {
		clock = NewClock()
	}
	return &Poller{
		fetcher:   fetcher,
		snapshots: snapshots,
		opps:      opps,
		cache:     cache,
		bus:       bus,
		alerter:   alerter,
		clock:     clock,
		logger:    logger.With(slog.String("component", "monitor")),
		cfg:       cfg,
		status:    Status{State: StateIdle},
	}
}

// Status returns a copy of the poller's current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run executes poll cycles until ctx is cancelled. It returns ctx.Err() on
// shutdown; fetch and persistence failures are logged and retried, never
// fatal.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("monitor starting",
		slog.Int("pairs", len(p.cfg.Pairs)),
		slog.Duration("interval", p.cfg.Interval),
		slog.Float64("min_spread_pct", p.cfg.Detector.MinSpreadPct))

	for {
		if err := p.runCycle(ctx); err != nil {
			return err
		}

		p.setState(StateSleeping)
		if err := p.clock.Sleep(ctx, p.cfg.Interval); err != nil {
			p.logger.Info("monitor stopped")
			return err
		}
	}
}

// runCycle polls every configured pair once. It returns an error only when
// ctx is cancelled.
func (p *Poller) runCycle(ctx context.Context) error {
	backoff := Backoff{Base: p.cfg.BackoffBase, Max: p.cfg.BackoffMax}

	for i, pair := range p.cfg.Pairs {
		if i > 0 && p.cfg.RequestDelay > 0 {
			if err := p.clock.Sleep(ctx, p.cfg.RequestDelay); err != nil {
				return err
			}
		}
		if err := p.pollPair(ctx, pair, &backoff); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.status.Cycles++
	p.status.LastCycleAt = p.clock.Now().UTC()
	p.mu.Unlock()
	return nil
}

// pollPair fetches one pair, retrying transient fetch failures with
// exponential backoff. Unknown pairs (HTTP 404) are skipped without retry so
// one bad config entry cannot starve the rest.
func (p *Poller) pollPair(ctx context.Context, pair domain.Pair, backoff *Backoff) error {
	for {
		p.setState(StateFetching)
		snap, err := p.fetcher.FetchQuotes(ctx, pair, p.cfg.Volume)
		if err == nil {
			backoff.Reset()
			p.clearError()
			p.processSnapshot(ctx, snap)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("pair not available, skipping",
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()))
			return nil
		}

		delay := backoff.Next()
		p.recordError(err, backoff.Failures())
		p.logger.Warn("fetch failed, backing off",
			slog.String("pair", pair.String()),
			slog.Int("failures", backoff.Failures()),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		p.setState(StateBackingOff)
		if err := p.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// processSnapshot runs detection and fans the results out to every
// configured sink. Sink failures are logged and do not stop the cycle.
func (p *Poller) processSnapshot(ctx context.Context, snap domain.MarketSnapshot) {
	p.setState(StateDetecting)
	opps := detector.Detect(snap, p.cfg.Detector)

	p.logger.Info("cycle detection complete",
		slog.String("pair", snap.Pair().String()),
		slog.Int("exchanges", len(snap.Quotes)),
		slog.Int("opportunities", len(opps)))

	p.setState(StatePersisting)
	p.persist(ctx, snap, opps)
	p.updateCache(ctx, snap, opps)
	p.publish(ctx, snap, opps)

	if p.alerter != nil && len(opps) > 0 {
		if err := p.alerter.NotifyOpportunity(ctx, opps[0]); err != nil {
			p.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}
}

func (p *Poller) persist(ctx context.Context, snap domain.MarketSnapshot, opps []domain.Opportunity) {
	if !p.cfg.PersistEnabled {
		return
	}

	switch p.cfg.Granularity {
	case GranularityDetailed:
		if p.snapshots == nil {
			return
		}
		id, err := p.snapshots.SaveSnapshot(ctx, snap, opps)
		if err != nil {
			p.logger.Error("snapshot persistence failed",
				slog.String("pair", snap.Pair().String()),
				slog.String("error", err.Error()))
			return
		}
		for i := range opps {
			opps[i].SnapshotID = id
		}
	default:
		if p.opps == nil || len(opps) == 0 {
			return
		}
		// Basic granularity keeps only the top-ranked opportunity per cycle.
		if err := p.opps.SaveBatch(ctx, opps[:1]); err != nil {
			p.logger.Error("opportunity persistence failed",
				slog.String("pair", snap.Pair().String()),
				slog.String("error", err.Error()))
		}
	}
}

func (p *Poller) updateCache(ctx context.Context, snap domain.MarketSnapshot, opps []domain.Opportunity) {
	if p.cache == nil {
		return
	}

	pair := snap.Pair()
	for _, q := range snap.Quotes {
		if err := p.cache.SetQuote(ctx, pair, q); err != nil {
			p.logger.Warn("quote cache update failed",
				slog.String("exchange", q.Exchange),
				slog.String("error", err.Error()))
		}
	}
	if len(opps) > 0 {
		if err := p.cache.SetTopOpportunity(ctx, pair, opps[0], p.cfg.CacheTTL); err != nil {
			p.logger.Warn("top opportunity cache update failed", slog.String("error", err.Error()))
		}
	}
}

func (p *Poller) publish(ctx context.Context, snap domain.MarketSnapshot, opps []domain.Opportunity) {
	if p.bus == nil {
		return
	}

	summary := struct {
		Pair       string    `json:"pair"`
		Exchanges  int       `json:"exchanges"`
		CapturedAt time.Time `json:"captured_at"`
	}{snap.Pair().String(), len(snap.Quotes), snap.CapturedAt}
	if payload, err := json.Marshal(summary); err == nil {
		if err := p.bus.Publish(ctx, ChannelQuotes, payload); err != nil {
			p.logger.Warn("quote publish failed", slog.String("error", err.Error()))
		}
	}

	top := opps
	if p.cfg.TopN > 0 && len(top) > p.cfg.TopN {
		top = top[:p.cfg.TopN]
	}
	for _, opp := range top {
		payload, err := json.Marshal(opp)
		if err != nil {
			continue
		}
		if err := p.bus.Publish(ctx, ChannelOpportunities, payload); err != nil {
			p.logger.Warn("opportunity publish failed", slog.String("error", err.Error()))
		}
	}
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.status.State = s
	p.mu.Unlock()
}

func (p *Poller) recordError(err error, failures int) {
	p.mu.Lock()
	p.status.LastError = err.Error()
	p.status.ConsecutiveFailures = failures
	p.mu.Unlock()
}

func (p *Poller) clearError() {
	p.mu.Lock()
	p.status.LastError = ""
	p.status.ConsecutiveFailures = 0
	p.mu.Unlock()
}
