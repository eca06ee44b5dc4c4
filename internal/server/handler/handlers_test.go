package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbmon/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOppStore struct {
	opps       []domain.Opportunity
	err        error
	lastFilter domain.OpportunityFilter
}

func (s *fakeOppStore) Save(context.Context, domain.Opportunity) error        { return nil }
func (s *fakeOppStore) SaveBatch(context.Context, []domain.Opportunity) error { return nil }
func (s *fakeOppStore) List(_ context.Context, filter domain.OpportunityFilter) ([]domain.Opportunity, error) {
	s.lastFilter = filter
	return s.opps, s.err
}
func (s *fakeOppStore) ListSince(context.Context, string, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeOppStore) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}
func (s *fakeOppStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *fakeOppStore) Count(context.Context) (int64, error)                   { return 0, nil }

type fakeCache struct {
	top    map[string]domain.Opportunity
	quotes map[string]map[string]domain.ExchangeQuote
}

func (c *fakeCache) SetQuote(context.Context, domain.Pair, domain.ExchangeQuote) error { return nil }
func (c *fakeCache) GetQuote(_ context.Context, pair domain.Pair, exchange string) (domain.ExchangeQuote, error) {
	quote, ok := c.quotes[pair.String()][exchange]
	if !ok {
		return domain.ExchangeQuote{}, domain.ErrNotFound
	}
	return quote, nil
}
func (c *fakeCache) GetQuotes(_ context.Context, pair domain.Pair) (map[string]domain.ExchangeQuote, error) {
	return c.quotes[pair.String()], nil
}
func (c *fakeCache) SetTopOpportunity(context.Context, domain.Pair, domain.Opportunity, time.Duration) error {
	return nil
}
func (c *fakeCache) GetTopOpportunity(_ context.Context, pair domain.Pair) (domain.Opportunity, error) {
	opp, ok := c.top[pair.String()]
	if !ok {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	return opp, nil
}

type fakeEngine struct {
	report domain.Report
	err    error
}

func (e *fakeEngine) Analyze(context.Context, string, time.Time) (domain.Report, error) {
	return e.report, e.err
}

func TestListRecent(t *testing.T) {
	store := &fakeOppStore{opps: []domain.Opportunity{
		{ID: "1", Coin: "BTC", Fiat: "ARS", SpreadPct: 2.0},
	}}
	h := NewOpportunityHandler(store, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities/recent?coin=btc&fiat=ars&hours=6&limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListRecent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count         int                  `json:"count"`
		Opportunities []domain.Opportunity `json:"opportunities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "1", body.Opportunities[0].ID)

	// Query params are normalized and applied.
	assert.Equal(t, "BTC", store.lastFilter.Coin)
	assert.Equal(t, "ARS", store.lastFilter.Fiat)
	assert.Equal(t, 10, store.lastFilter.Limit)
	require.NotNil(t, store.lastFilter.Since)
	assert.WithinDuration(t, time.Now().UTC().Add(-6*time.Hour), *store.lastFilter.Since, time.Minute)
}

func TestListRecent_StoreUnavailable(t *testing.T) {
	h := NewOpportunityHandler(nil, nil, testLogger())
	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/recent", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRecent_StoreError(t *testing.T) {
	h := NewOpportunityHandler(&fakeOppStore{err: errors.New("down")}, nil, testLogger())
	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/recent", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTop(t *testing.T) {
	cache := &fakeCache{top: map[string]domain.Opportunity{
		"BTC/ARS": {ID: "t", BuyExchange: "lemon", SellExchange: "binance", SpreadPct: 3.0},
	}}
	h := NewOpportunityHandler(nil, cache, testLogger())

	rec := httptest.NewRecorder()
	h.Top(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/top?coin=BTC&fiat=ARS", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var opp domain.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opp))
	assert.Equal(t, "lemon", opp.BuyExchange)
}

func TestTop_MissingPairParams(t *testing.T) {
	h := NewOpportunityHandler(nil, &fakeCache{}, testLogger())
	rec := httptest.NewRecorder()
	h.Top(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/top?coin=BTC", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTop_NotFound(t *testing.T) {
	h := NewOpportunityHandler(nil, &fakeCache{}, testLogger())
	rec := httptest.NewRecorder()
	h.Top(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities/top?coin=BTC&fiat=ARS", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuotes(t *testing.T) {
	ask := 100.0
	cache := &fakeCache{quotes: map[string]map[string]domain.ExchangeQuote{
		"BTC/ARS": {"lemon": {Exchange: "lemon", Ask: &ask}},
	}}
	h := NewOpportunityHandler(nil, cache, testLogger())

	rec := httptest.NewRecorder()
	h.Quotes(rec, httptest.NewRequest(http.MethodGet, "/api/quotes?coin=BTC&fiat=ARS", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Pair  string `json:"pair"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BTC/ARS", body.Pair)
	assert.Equal(t, 1, body.Count)
}

func TestQuotes_SingleExchange(t *testing.T) {
	ask := 100.0
	cache := &fakeCache{quotes: map[string]map[string]domain.ExchangeQuote{
		"BTC/ARS": {"lemon": {Exchange: "lemon", Ask: &ask}},
	}}
	h := NewOpportunityHandler(nil, cache, testLogger())

	rec := httptest.NewRecorder()
	h.Quotes(rec, httptest.NewRequest(http.MethodGet, "/api/quotes?coin=BTC&fiat=ARS&exchange=LEMON", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var quote domain.ExchangeQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "lemon", quote.Exchange)
	require.NotNil(t, quote.Ask)
	assert.Equal(t, 100.0, *quote.Ask)
}

func TestQuotes_UnknownExchange(t *testing.T) {
	h := NewOpportunityHandler(nil, &fakeCache{}, testLogger())
	rec := httptest.NewRecorder()
	h.Quotes(rec, httptest.NewRequest(http.MethodGet, "/api/quotes?coin=BTC&fiat=ARS&exchange=letsbit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport(t *testing.T) {
	engine := &fakeEngine{report: domain.Report{Fiat: "ARS", Opportunities: 12}}
	h := NewReportHandler(engine, testLogger())

	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/report?fiat=ars&days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "ARS", report.Fiat)
	assert.Equal(t, 12, report.Opportunities)
}

func TestGetReport_Validation(t *testing.T) {
	h := NewReportHandler(&fakeEngine{}, testLogger())

	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/report", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/report?fiat=ARS&days=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReport_EmptyWindow(t *testing.T) {
	// An empty window yields an empty report, not an error status.
	h := NewReportHandler(&fakeEngine{report: domain.Report{Fiat: "ARS"}}, testLogger())
	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/report?fiat=ARS", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Zero(t, report.Opportunities)
	assert.Empty(t, report.Allocations)
}

func TestGetReport_EngineError(t *testing.T) {
	h := NewReportHandler(&fakeEngine{err: errors.New("db down")}, testLogger())
	rec := httptest.NewRecorder()
	h.GetReport(rec, httptest.NewRequest(http.MethodGet, "/api/report?fiat=ARS", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
