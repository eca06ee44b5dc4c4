package domain

import (
	"context"
	"time"
)

// QuoteCache provides fast access to the latest effective prices per
// exchange for a (coin, fiat) pair.
type QuoteCache interface {
	SetQuote(ctx context.Context, pair Pair, quote ExchangeQuote) error
	GetQuote(ctx context.Context, pair Pair, exchange string) (ExchangeQuote, error)
	GetQuotes(ctx context.Context, pair Pair) (map[string]ExchangeQuote, error)
	// SetTopOpportunity stores the best opportunity of the latest cycle for
	// a pair, with an expiry so stale detections age out.
	SetTopOpportunity(ctx context.Context, pair Pair, opp Opportunity, ttl time.Duration) error
	GetTopOpportunity(ctx context.Context, pair Pair) (Opportunity, error)
}

// SignalBus provides pub/sub fan-out of monitor events (quote updates,
// detections) to the API server and any other subscriber.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads. The subscription closes
	// when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
