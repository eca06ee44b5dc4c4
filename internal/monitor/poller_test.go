package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbmon/internal/detector"
	"arbmon/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock records every sleep without blocking and can cancel the run
// context after a fixed number of sleeps to end the loop.
type fakeClock struct {
	mu          sync.Mutex
	now         time.Time
	sleeps      []time.Duration
	cancel      context.CancelFunc
	cancelAfter int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	c.mu.Unlock()

	if c.cancelAfter > 0 && n >= c.cancelAfter {
		c.cancel()
	}
	return ctx.Err()
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type fakeFetcher struct {
	mu       sync.Mutex
	failures int // fail this many calls before succeeding
	notFound map[string]bool
	calls    int
	snap     domain.MarketSnapshot
}

func (f *fakeFetcher) FetchQuotes(_ context.Context, pair domain.Pair, _ float64) (domain.MarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.notFound[pair.String()] {
		return domain.MarketSnapshot{}, &domain.FetchError{
			Pair: pair,
			Err:  fmt.Errorf("%w: unknown pair", domain.ErrNotFound),
		}
	}
	if f.calls <= f.failures {
		return domain.MarketSnapshot{}, &domain.FetchError{Pair: pair, Err: errors.New("connection reset")}
	}
	snap := f.snap
	snap.Coin = pair.Coin
	snap.Fiat = pair.Fiat
	return snap, nil
}

type fakeOppStore struct {
	mu      sync.Mutex
	batches [][]domain.Opportunity
}

func (s *fakeOppStore) Save(context.Context, domain.Opportunity) error { return nil }
func (s *fakeOppStore) SaveBatch(_ context.Context, opps []domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, opps)
	return nil
}
func (s *fakeOppStore) List(context.Context, domain.OpportunityFilter) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeOppStore) ListSince(context.Context, string, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeOppStore) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeOppStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *fakeOppStore) Count(context.Context) (int64, error)                   { return 0, nil }

func f64(v float64) *float64 { return &v }

func spreadSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Volume:     1,
		CapturedAt: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
		Quotes: map[string]domain.ExchangeQuote{
			"a": {Exchange: "a", TotalAsk: f64(100), TotalBid: f64(98)},
			"b": {Exchange: "b", TotalAsk: f64(105), TotalBid: f64(103)},
		},
	}
}

func testConfig() Config {
	return Config{
		Pairs:          []domain.Pair{{Coin: "BTC", Fiat: "ARS"}},
		Volume:         1,
		Interval:       30 * time.Second,
		Detector:       detector.Config{MinSpreadPct: 0.5},
		PersistEnabled: true,
		Granularity:    GranularityBasic,
		BackoffBase:    time.Second,
		BackoffMax:     time.Minute,
	}
}

func TestPoller_RetriesFetchWithBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(1700000000, 0), cancel: cancel, cancelAfter: 3}
	fetcher := &fakeFetcher{failures: 2, snap: spreadSnapshot()}
	store := &fakeOppStore{}

	p := NewPoller(fetcher, nil, store, nil, nil, nil, clock, testConfig(), testLogger())
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Two backoff sleeps before the successful fetch, then the cycle sleep.
	sleeps := clock.recorded()
	require.Len(t, sleeps, 3)
	assert.Equal(t, 1*time.Second, sleeps[0])
	assert.Equal(t, 2*time.Second, sleeps[1])
	assert.Equal(t, 30*time.Second, sleeps[2])

	require.Len(t, store.batches, 1)
	require.Len(t, store.batches[0], 1)
	opp := store.batches[0][0]
	assert.Equal(t, "a", opp.BuyExchange)
	assert.Equal(t, "b", opp.SellExchange)
	assert.InDelta(t, 3.0, opp.SpreadPct, 1e-9)

	status := p.Status()
	assert.Equal(t, int64(1), status.Cycles)
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
}

func TestPoller_CancelInterruptsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fetch never succeeds; cancel during the third backoff sleep.
	clock := &fakeClock{now: time.Unix(1700000000, 0), cancel: cancel, cancelAfter: 3}
	fetcher := &fakeFetcher{failures: 1 << 30, snap: spreadSnapshot()}

	p := NewPoller(fetcher, nil, &fakeOppStore{}, nil, nil, nil, clock, testConfig(), testLogger())
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	sleeps := clock.recorded()
	require.Len(t, sleeps, 3)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, sleeps)

	status := p.Status()
	assert.Equal(t, 3, status.ConsecutiveFailures)
	assert.NotEmpty(t, status.LastError)
}

func TestPoller_UnknownPairSkippedWithoutBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(1700000000, 0), cancel: cancel, cancelAfter: 1}
	fetcher := &fakeFetcher{
		snap:     spreadSnapshot(),
		notFound: map[string]bool{"XXX/ARS": true},
	}
	store := &fakeOppStore{}

	cfg := testConfig()
	cfg.Pairs = []domain.Pair{{Coin: "XXX", Fiat: "ARS"}, {Coin: "BTC", Fiat: "ARS"}}

	p := NewPoller(fetcher, nil, store, nil, nil, nil, clock, cfg, testLogger())
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Only the cycle sleep: the unknown pair must not trigger backoff and
	// must not block the healthy pair.
	sleeps := clock.recorded()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 30*time.Second, sleeps[0])

	require.Len(t, store.batches, 1)
	assert.Equal(t, "BTC", store.batches[0][0].Coin)
}

func TestPoller_RequestDelayBetweenPairs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(1700000000, 0), cancel: cancel, cancelAfter: 2}
	fetcher := &fakeFetcher{snap: spreadSnapshot()}
	store := &fakeOppStore{}

	cfg := testConfig()
	cfg.Pairs = []domain.Pair{{Coin: "BTC", Fiat: "ARS"}, {Coin: "ETH", Fiat: "ARS"}}
	cfg.RequestDelay = 500 * time.Millisecond

	p := NewPoller(fetcher, nil, store, nil, nil, nil, clock, cfg, testLogger())
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	sleeps := clock.recorded()
	require.Len(t, sleeps, 2)
	assert.Equal(t, 500*time.Millisecond, sleeps[0])
	assert.Equal(t, 30*time.Second, sleeps[1])

	require.Len(t, store.batches, 2)
}

func TestPoller_PersistenceDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(1700000000, 0), cancel: cancel, cancelAfter: 1}
	fetcher := &fakeFetcher{snap: spreadSnapshot()}
	store := &fakeOppStore{}

	cfg := testConfig()
	cfg.PersistEnabled = false

	p := NewPoller(fetcher, nil, store, nil, nil, nil, clock, cfg, testLogger())
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.batches)
}
