package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbmon/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubOppStore struct {
	opps []domain.Opportunity
	err  error
}

func (s *stubOppStore) Save(context.Context, domain.Opportunity) error        { return nil }
func (s *stubOppStore) SaveBatch(context.Context, []domain.Opportunity) error { return nil }
func (s *stubOppStore) List(context.Context, domain.OpportunityFilter) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *stubOppStore) ListSince(context.Context, string, time.Time) ([]domain.Opportunity, error) {
	return s.opps, s.err
}
func (s *stubOppStore) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *stubOppStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *stubOppStore) Count(context.Context) (int64, error)                   { return 0, nil }

func opp(buy, sell, coin string, spread, profit float64, at time.Time) domain.Opportunity {
	return domain.Opportunity{
		Coin:          coin,
		Fiat:          "ARS",
		BuyExchange:   buy,
		SellExchange:  sell,
		SpreadPct:     spread,
		ProfitPerUnit: profit,
		DetectedAt:    at,
	}
}

func TestAnalyze_ExchangeRankingAndAllocations(t *testing.T) {
	// Monday 2026-03-16, hours 10 and 14 UTC.
	mon10 := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	mon14 := time.Date(2026, 3, 16, 14, 30, 0, 0, time.UTC)

	store := &stubOppStore{opps: []domain.Opportunity{
		opp("lemon", "binance", "BTC", 2.0, 200, mon10),
		opp("lemon", "buenbit", "BTC", 1.0, 100, mon14),
		opp("fiwind", "binance", "ETH", 3.0, 30, mon14),
	}}

	e := NewEngine(store, testLogger())
	report, err := e.Analyze(context.Background(), "ARS", mon10.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "ARS", report.Fiat)
	assert.Equal(t, 3, report.Opportunities)

	// lemon and binance each appear twice, buenbit and fiwind once. Ties
	// break alphabetically.
	require.Len(t, report.Exchanges, 4)
	assert.Equal(t, "binance", report.Exchanges[0].Exchange)
	assert.Equal(t, "lemon", report.Exchanges[1].Exchange)
	assert.Equal(t, 2, report.Exchanges[0].TotalAppearances)
	assert.Equal(t, 0, report.Exchanges[0].TimesBuy)
	assert.Equal(t, 2, report.Exchanges[0].TimesSell)
	assert.InDelta(t, 2.5, report.Exchanges[0].AvgSpreadPct, 1e-9)
	assert.InDelta(t, 3.0, report.Exchanges[0].MaxSpreadPct, 1e-9)

	lemon := report.Exchanges[1]
	assert.Equal(t, 2, lemon.TimesBuy)
	assert.Equal(t, 0, lemon.TimesSell)
	assert.InDelta(t, 1.5, lemon.AvgSpreadPct, 1e-9)
	assert.InDelta(t, 300, lemon.TotalProfit, 1e-9)

	// Allocations cover only the top three exchanges and sum to 100 within
	// that set: binance and lemon hold 2 of 5 appearances each, buenbit 1;
	// fiwind is ranked fourth and receives nothing.
	require.Len(t, report.Allocations, 3)
	var pctSum float64
	for _, a := range report.Allocations {
		pctSum += a.Percent
		assert.NotEqual(t, "fiwind", a.Exchange)
	}
	assert.InDelta(t, 100.0, pctSum, 0.01)
	assert.Equal(t, "binance", report.Allocations[0].Exchange)
	assert.InDelta(t, 40.0, report.Allocations[0].Percent, 1e-9)
	assert.Equal(t, "buenbit", report.Allocations[2].Exchange)
	assert.InDelta(t, 20.0, report.Allocations[2].Percent, 1e-9)
}

func TestAnalyze_TemporalGrouping(t *testing.T) {
	mon10 := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	mon14 := time.Date(2026, 3, 16, 14, 30, 0, 0, time.UTC)
	sat14 := time.Date(2026, 3, 21, 14, 5, 0, 0, time.UTC)

	store := &stubOppStore{opps: []domain.Opportunity{
		opp("a", "b", "BTC", 1.0, 10, mon10),
		opp("a", "b", "BTC", 2.0, 20, mon14),
		opp("a", "b", "BTC", 4.0, 40, sat14),
	}}

	e := NewEngine(store, testLogger())
	report, err := e.Analyze(context.Background(), "ARS", mon10.Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, report.Hourly, 2)
	assert.Equal(t, 10, report.Hourly[0].Hour)
	assert.Equal(t, 1, report.Hourly[0].Count)
	assert.Equal(t, 14, report.Hourly[1].Hour)
	assert.Equal(t, 2, report.Hourly[1].Count)
	assert.InDelta(t, 3.0, report.Hourly[1].AvgSpreadPct, 1e-9)
	assert.InDelta(t, 4.0, report.Hourly[1].MaxSpreadPct, 1e-9)

	require.Len(t, report.Daily, 2)
	assert.Equal(t, time.Monday, report.Daily[0].Day)
	assert.Equal(t, 2, report.Daily[0].Count)
	assert.Equal(t, time.Saturday, report.Daily[1].Day)
	assert.Equal(t, 1, report.Daily[1].Count)
}

func TestAnalyze_RouteAndCoinBreakdown(t *testing.T) {
	at := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	store := &stubOppStore{opps: []domain.Opportunity{
		opp("a", "b", "BTC", 1.0, 10, at),
		opp("a", "b", "BTC", 3.0, 30, at),
		opp("b", "a", "ETH", 2.0, 2, at),
	}}

	e := NewEngine(store, testLogger())
	report, err := e.Analyze(context.Background(), "ARS", at.Add(-time.Hour))
	require.NoError(t, err)

	require.Len(t, report.Routes, 2)
	top := report.Routes[0]
	assert.Equal(t, "a", top.BuyExchange)
	assert.Equal(t, "b", top.SellExchange)
	assert.Equal(t, 2, top.Frequency)
	assert.InDelta(t, 2.0, top.AvgSpreadPct, 1e-9)
	assert.InDelta(t, 40, top.TotalProfit, 1e-9)

	require.Len(t, report.Coins, 2)
	assert.Equal(t, "BTC", report.Coins[0].Coin)
	assert.Equal(t, 2, report.Coins[0].Count)
}

func TestAnalyze_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	store := &stubOppStore{opps: []domain.Opportunity{
		opp("c", "d", "BTC", 1.0, 10, at),
		opp("a", "b", "BTC", 1.0, 10, at),
		opp("e", "f", "ETH", 1.0, 10, at),
	}}

	e := NewEngine(store, testLogger())
	first, err := e.Analyze(context.Background(), "ARS", at.Add(-time.Hour))
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), "ARS", at.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.Exchanges, second.Exchanges)
	assert.Equal(t, first.Allocations, second.Allocations)
	assert.Equal(t, first.Routes, second.Routes)
	assert.Equal(t, first.Coins, second.Coins)
}

func TestAnalyze_EmptyWindow(t *testing.T) {
	since := time.Now().Add(-time.Hour)
	e := NewEngine(&stubOppStore{}, testLogger())

	report, err := e.Analyze(context.Background(), "ARS", since)
	require.NoError(t, err)

	// Every section comes back empty rather than erroring.
	assert.Equal(t, "ARS", report.Fiat)
	assert.Equal(t, since, report.Since)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Zero(t, report.Opportunities)
	assert.Empty(t, report.Exchanges)
	assert.Empty(t, report.Hourly)
	assert.Empty(t, report.Daily)
	assert.Empty(t, report.Routes)
	assert.Empty(t, report.Coins)

	var pctSum float64
	for _, a := range report.Allocations {
		pctSum += a.Percent
	}
	assert.Zero(t, pctSum)
}

func TestAnalyze_StoreError(t *testing.T) {
	e := NewEngine(&stubOppStore{err: errors.New("connection refused")}, testLogger())
	_, err := e.Analyze(context.Background(), "ARS", time.Now().Add(-time.Hour))
	require.Error(t, err)
}

func TestImpliedFees(t *testing.T) {
	fp := func(v float64) *float64 { return &v }
	snap := domain.MarketSnapshot{
		Coin: "BTC", Fiat: "ARS",
		Quotes: map[string]domain.ExchangeQuote{
			"full":    {Exchange: "full", Ask: fp(100), TotalAsk: fp(101), Bid: fp(100), TotalBid: fp(99)},
			"buyonly": {Exchange: "buyonly", Ask: fp(200), TotalAsk: fp(201)},
			"nofees":  {Exchange: "nofees", Ask: fp(100), Bid: fp(99)},
		},
	}

	fees := ImpliedFees(snap)
	require.Len(t, fees, 2)

	// Sorted by exchange name.
	assert.Equal(t, "buyonly", fees[0].Exchange)
	require.NotNil(t, fees[0].BuyFeePct)
	assert.InDelta(t, 0.5, *fees[0].BuyFeePct, 1e-9)
	assert.Nil(t, fees[0].SellFeePct)
	assert.Nil(t, fees[0].RoundTripPct)

	full := fees[1]
	require.NotNil(t, full.BuyFeePct)
	require.NotNil(t, full.SellFeePct)
	require.NotNil(t, full.RoundTripPct)
	assert.InDelta(t, 1.0, *full.BuyFeePct, 1e-9)
	assert.InDelta(t, 1.0, *full.SellFeePct, 1e-9)
	assert.InDelta(t, 2.0, *full.RoundTripPct, 1e-9)
}
