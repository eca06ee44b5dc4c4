package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arbmon/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. The latest
// quote per exchange for a pair lives in a hash at "quotes:{coin}:{fiat}"
// keyed by exchange name; the best opportunity of the latest cycle lives at
// "topopp:{coin}:{fiat}" with a TTL.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quotesKey(pair domain.Pair) string {
	return "quotes:" + pair.Coin + ":" + pair.Fiat
}

func topOppKey(pair domain.Pair) string {
	return "topopp:" + pair.Coin + ":" + pair.Fiat
}

// cachedQuote is the JSON shape stored per exchange.
type cachedQuote struct {
	Exchange   string    `json:"exchange"`
	Ask        *float64  `json:"ask,omitempty"`
	Bid        *float64  `json:"bid,omitempty"`
	TotalAsk   *float64  `json:"total_ask,omitempty"`
	TotalBid   *float64  `json:"total_bid,omitempty"`
	APITime    *int64    `json:"api_time,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

func toCached(q domain.ExchangeQuote) cachedQuote {
	return cachedQuote{
		Exchange:   q.Exchange,
		Ask:        q.Ask,
		Bid:        q.Bid,
		TotalAsk:   q.TotalAsk,
		TotalBid:   q.TotalBid,
		APITime:    q.APITime,
		ObservedAt: q.ObservedAt,
	}
}

func (c cachedQuote) toDomain() domain.ExchangeQuote {
	return domain.ExchangeQuote{
		Exchange:   c.Exchange,
		Ask:        c.Ask,
		Bid:        c.Bid,
		TotalAsk:   c.TotalAsk,
		TotalBid:   c.TotalBid,
		APITime:    c.APITime,
		ObservedAt: c.ObservedAt,
	}
}

// SetQuote stores the latest quote for one exchange.
func (qc *QuoteCache) SetQuote(ctx context.Context, pair domain.Pair, quote domain.ExchangeQuote) error {
	data, err := json.Marshal(toCached(quote))
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", quote.Exchange, err)
	}
	if err := qc.rdb.HSet(ctx, quotesKey(pair), quote.Exchange, data).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s %s: %w", pair, quote.Exchange, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for one exchange. It returns
// domain.ErrNotFound when the exchange has no cached quote.
func (qc *QuoteCache) GetQuote(ctx context.Context, pair domain.Pair, exchange string) (domain.ExchangeQuote, error) {
	data, err := qc.rdb.HGet(ctx, quotesKey(pair), exchange).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ExchangeQuote{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("redis: get quote %s %s: %w", pair, exchange, err)
	}

	var cached cachedQuote
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("redis: decode quote %s %s: %w", pair, exchange, err)
	}
	return cached.toDomain(), nil
}

// GetQuotes retrieves all cached quotes for a pair. Entries that fail to
// decode are skipped.
func (qc *QuoteCache) GetQuotes(ctx context.Context, pair domain.Pair) (map[string]domain.ExchangeQuote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quotesKey(pair)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", pair, err)
	}

	out := make(map[string]domain.ExchangeQuote, len(vals))
	for exchange, raw := range vals {
		var cached cachedQuote
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			continue
		}
		out[exchange] = cached.toDomain()
	}
	return out, nil
}

// SetTopOpportunity stores the best opportunity of the latest cycle with an
// expiry so stale detections age out.
func (qc *QuoteCache) SetTopOpportunity(ctx context.Context, pair domain.Pair, opp domain.Opportunity, ttl time.Duration) error {
	data, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("redis: marshal top opportunity %s: %w", pair, err)
	}
	if err := qc.rdb.Set(ctx, topOppKey(pair), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set top opportunity %s: %w", pair, err)
	}
	return nil
}

// GetTopOpportunity retrieves the cached best opportunity for a pair. It
// returns domain.ErrNotFound when none is cached or it has expired.
func (qc *QuoteCache) GetTopOpportunity(ctx context.Context, pair domain.Pair) (domain.Opportunity, error) {
	data, err := qc.rdb.Get(ctx, topOppKey(pair)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("redis: get top opportunity %s: %w", pair, err)
	}

	var opp domain.Opportunity
	if err := json.Unmarshal(data, &opp); err != nil {
		return domain.Opportunity{}, fmt.Errorf("redis: decode top opportunity %s: %w", pair, err)
	}
	return opp, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
