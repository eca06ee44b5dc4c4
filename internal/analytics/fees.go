package analytics

import (
	"sort"

	"arbmon/internal/domain"
)

// FeeEstimate is an exchange's implied commission, derived from the gap
// between raw and fee-inclusive prices in a snapshot.
type FeeEstimate struct {
	Exchange string `json:"exchange"`
	// BuyFeePct is (totalAsk - ask) / ask * 100.
	BuyFeePct *float64 `json:"buy_fee_pct,omitempty"`
	// SellFeePct is (bid - totalBid) / bid * 100.
	SellFeePct *float64 `json:"sell_fee_pct,omitempty"`
	// RoundTripPct is the combined cost of a buy-here-sell-here cycle. Nil
	// when either side is unknown.
	RoundTripPct *float64 `json:"round_trip_pct,omitempty"`
}

// ImpliedFees derives per-exchange fee estimates from one snapshot.
// Exchanges publishing no fee-inclusive prices are omitted. Results are
// sorted by exchange name.
func ImpliedFees(snap domain.MarketSnapshot) []FeeEstimate {
	var out []FeeEstimate
	for name, q := range snap.Quotes {
		est := FeeEstimate{Exchange: name}

		if q.Ask != nil && q.TotalAsk != nil && *q.Ask > 0 {
			fee := (*q.TotalAsk - *q.Ask) / *q.Ask * 100
			est.BuyFeePct = &fee
		}
		if q.Bid != nil && q.TotalBid != nil && *q.Bid > 0 {
			fee := (*q.Bid - *q.TotalBid) / *q.Bid * 100
			est.SellFeePct = &fee
		}
		if est.BuyFeePct == nil && est.SellFeePct == nil {
			continue
		}
		if est.BuyFeePct != nil && est.SellFeePct != nil {
			rt := *est.BuyFeePct + *est.SellFeePct
			est.RoundTripPct = &rt
		}
		out = append(out, est)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}
