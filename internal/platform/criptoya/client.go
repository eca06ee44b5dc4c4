// Package criptoya is the REST client for the CriptoYa public API, which
// aggregates crypto/fiat quotes across regional exchanges.
package criptoya

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"arbmon/internal/domain"
)

// Client is the REST client for the CriptoYa API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// now is swappable so tests can pin observation timestamps.
	now func() time.Time
}

// NewClient creates a new CriptoYa API client.
//
// baseURL is the API root, e.g. "https://criptoya.com/api".
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(slog.String("component", "criptoya")),
		now:    time.Now,
	}
}

// FetchQuotes fetches every exchange's quote for a pair at the given volume.
//
// The endpoint is GET {base}/{coin}/{fiat}/{volume} and returns a JSON
// object keyed by exchange name. Individual entries that fail to decode or
// carry no price are dropped with a warning; the snapshot keeps the rest.
// A network failure, non-2xx status, or undecodable payload returns a
// *domain.FetchError so the caller can back off and retry.
func (c *Client) FetchQuotes(ctx context.Context, pair domain.Pair, volume float64) (domain.MarketSnapshot, error) {
	path := fmt.Sprintf("/%s/%s/%s",
		url.PathEscape(strings.ToLower(pair.Coin)),
		url.PathEscape(strings.ToLower(pair.Fiat)),
		strconv.FormatFloat(volume, 'f', -1, 64))

	start := c.now()
	body, err := c.doGet(ctx, path)
	rt := c.now().Sub(start)
	if err != nil {
		return domain.MarketSnapshot{}, &domain.FetchError{Pair: pair, Err: err}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.MarketSnapshot{}, &domain.FetchError{
			Pair: pair,
			Err:  fmt.Errorf("decode payload: %w", err),
		}
	}

	observedAt := start.UTC()
	snap := domain.MarketSnapshot{
		Coin:       pair.Coin,
		Fiat:       pair.Fiat,
		Volume:     volume,
		CapturedAt: observedAt,
		Quotes:     make(map[string]domain.ExchangeQuote, len(raw)),
	}

	for exchange, entry := range raw {
		var q apiQuote
		if err := json.Unmarshal(entry, &q); err != nil {
			merr := &domain.MalformedResponseError{Exchange: exchange, Err: err}
			c.logger.Warn("dropping exchange entry",
				slog.String("pair", pair.String()),
				slog.String("error", merr.Error()))
			continue
		}
		if q.empty() {
			continue
		}
		snap.Quotes[exchange] = q.toDomain(exchange, observedAt, rt)
	}

	c.logger.Debug("fetched quotes",
		slog.String("pair", pair.String()),
		slog.Int("exchanges", len(snap.Quotes)),
		slog.Duration("response_time", rt))

	return snap, nil
}

// doGet sends an unauthenticated GET request to the CriptoYa API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
