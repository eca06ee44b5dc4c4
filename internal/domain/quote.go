// Package domain defines the core types shared by every layer: market
// snapshots, exchange quotes, detected opportunities, and the storage,
// cache, and blob interfaces the infrastructure packages implement.
package domain

import (
	"fmt"
	"time"
)

// Pair identifies one monitored (coin, fiat) market.
type Pair struct {
	Coin string
	Fiat string
}

func (p Pair) String() string { return p.Coin + "/" + p.Fiat }

// ExchangeQuote is one exchange's two-sided price for a pair at a moment in
// time. Ask/Bid are raw prices; TotalAsk/TotalBid include the exchange's
// trading fees and are authoritative when present. Pointer fields are nil
// when the upstream payload omitted them.
type ExchangeQuote struct {
	Exchange string
	Ask      *float64
	Bid      *float64
	TotalAsk *float64
	TotalBid *float64
	// APITime is the upstream-reported quote timestamp (unix seconds).
	APITime *int64
	// ObservedAt is when we received the quote.
	ObservedAt   time.Time
	ResponseTime time.Duration
}

// EffectiveBuy returns the price paid to buy on this exchange: the
// fee-inclusive TotalAsk when present, otherwise the raw Ask. ok is false
// when neither side is quoted.
func (q ExchangeQuote) EffectiveBuy() (float64, bool) {
	if q.TotalAsk != nil {
		return *q.TotalAsk, true
	}
	if q.Ask != nil {
		return *q.Ask, true
	}
	return 0, false
}

// EffectiveSell returns the price received selling on this exchange: the
// fee-inclusive TotalBid when present, otherwise the raw Bid.
func (q ExchangeQuote) EffectiveSell() (float64, bool) {
	if q.TotalBid != nil {
		return *q.TotalBid, true
	}
	if q.Bid != nil {
		return *q.Bid, true
	}
	return 0, false
}

// HasFeeData reports whether the quote carries at least one fee-inclusive
// price.
func (q ExchangeQuote) HasFeeData() bool {
	return q.TotalAsk != nil || q.TotalBid != nil
}

// MarketSnapshot is one complete observation of a pair across every
// exchange that answered, keyed by exchange name.
type MarketSnapshot struct {
	Coin       string
	Fiat       string
	Volume     float64
	CapturedAt time.Time
	Quotes     map[string]ExchangeQuote
}

// Pair returns the snapshot's market identity.
func (s MarketSnapshot) Pair() Pair { return Pair{Coin: s.Coin, Fiat: s.Fiat} }

func (s MarketSnapshot) String() string {
	return fmt.Sprintf("%s/%s vol=%g exchanges=%d", s.Coin, s.Fiat, s.Volume, len(s.Quotes))
}
