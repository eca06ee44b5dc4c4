package criptoya

import (
	"time"

	"arbmon/internal/domain"
)

// apiQuote is one exchange's entry in a CriptoYa quote payload. All fields
// are optional; totalAsk/totalBid include the exchange's trading fees.
type apiQuote struct {
	Ask      *float64 `json:"ask"`
	TotalAsk *float64 `json:"totalAsk"`
	Bid      *float64 `json:"bid"`
	TotalBid *float64 `json:"totalBid"`
	Time     *int64   `json:"time"`
}

func (q apiQuote) toDomain(exchange string, observedAt time.Time, rt time.Duration) domain.ExchangeQuote {
	return domain.ExchangeQuote{
		Exchange:     exchange,
		Ask:          q.Ask,
		Bid:          q.Bid,
		TotalAsk:     q.TotalAsk,
		TotalBid:     q.TotalBid,
		APITime:      q.Time,
		ObservedAt:   observedAt,
		ResponseTime: rt,
	}
}

// empty reports whether the entry carries no price at all. Some exchanges
// appear in the payload with every field zeroed when they are down.
func (q apiQuote) empty() bool {
	return q.Ask == nil && q.TotalAsk == nil && q.Bid == nil && q.TotalBid == nil
}
