// Package detector turns a multi-exchange market snapshot into a ranked
// list of cross-exchange arbitrage opportunities.
package detector

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"arbmon/internal/domain"
)

// Config controls how quotes are filtered before pairing.
type Config struct {
	// MinSpreadPct is the minimum spread percentage an opportunity must
	// clear to be reported.
	MinSpreadPct float64
	// RequireFeeData excludes quotes that expose no fee-inclusive price
	// (TotalAsk/TotalBid) instead of falling back to raw Ask/Bid. Exchanges
	// without published fees then need a manual commission lookup rather
	// than appearing with understated costs.
	RequireFeeData bool
}

// side is one exchange's usable price on one side of the book.
type side struct {
	exchange string
	price    float64
}

// Detect computes every profitable ordered (buy, sell) exchange pair in the
// snapshot whose spread clears cfg.MinSpreadPct.
//
// An exchange participates on the buy side when it exposes an effective ask
// (TotalAsk, else Ask) and on the sell side when it exposes an effective
// bid (TotalBid, else Bid); an exchange missing both sides is excluded
// entirely. Pairs with a non-positive buy price are discarded. The result
// is sorted by spread descending, then profit-per-unit descending, then buy
// and sell exchange ascending, so repeated calls on the same snapshot yield
// identical output. Fewer than two usable exchanges yields nil, not an
// error.
func Detect(snap domain.MarketSnapshot, cfg Config) []domain.Opportunity {
	buys, sells := usableSides(snap, cfg.RequireFeeData)
	if len(buys) == 0 || len(sells) == 0 {
		return nil
	}

	var opps []domain.Opportunity
	for _, b := range buys {
		if b.price <= 0 {
			continue
		}
		for _, s := range sells {
			if s.exchange == b.exchange {
				continue
			}
			spread := (s.price - b.price) / b.price * 100
			if spread < cfg.MinSpreadPct {
				continue
			}
			opps = append(opps, domain.Opportunity{
				ID:            uuid.Must(uuid.NewRandom()).String(),
				Coin:          snap.Coin,
				Fiat:          snap.Fiat,
				BuyExchange:   b.exchange,
				SellExchange:  s.exchange,
				BuyPrice:      b.price,
				SellPrice:     s.price,
				SpreadPct:     spread,
				ProfitPerUnit: s.price - b.price,
				DetectedAt:    detectedAt(snap),
			})
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].SpreadPct != opps[j].SpreadPct {
			return opps[i].SpreadPct > opps[j].SpreadPct
		}
		if opps[i].ProfitPerUnit != opps[j].ProfitPerUnit {
			return opps[i].ProfitPerUnit > opps[j].ProfitPerUnit
		}
		if opps[i].BuyExchange != opps[j].BuyExchange {
			return opps[i].BuyExchange < opps[j].BuyExchange
		}
		return opps[i].SellExchange < opps[j].SellExchange
	})
	return opps
}

// BestOnly is an O(n) fast path that pairs the global minimum effective ask
// with the global maximum effective bid. It is an approximation of
// Detect(...)[0]: when the cheapest-ask venue also holds the highest bid,
// the second-best venue on the relevant side is substituted, which can
// differ from the true all-pairs optimum in rare inverted books. It returns
// nil when no pair clears cfg.MinSpreadPct.
func BestOnly(snap domain.MarketSnapshot, cfg Config) *domain.Opportunity {
	buys, sells := usableSides(snap, cfg.RequireFeeData)

	var best *domain.Opportunity
	consider := func(b, s side) {
		if b.exchange == s.exchange || b.price <= 0 {
			return
		}
		spread := (s.price - b.price) / b.price * 100
		if spread < cfg.MinSpreadPct {
			return
		}
		if best != nil && spread <= best.SpreadPct {
			return
		}
		best = &domain.Opportunity{
			ID:            uuid.Must(uuid.NewRandom()).String(),
			Coin:          snap.Coin,
			Fiat:          snap.Fiat,
			BuyExchange:   b.exchange,
			SellExchange:  s.exchange,
			BuyPrice:      b.price,
			SellPrice:     s.price,
			SpreadPct:     spread,
			ProfitPerUnit: s.price - b.price,
			DetectedAt:    detectedAt(snap),
		}
	}

	minAsks := lowest2(buys)
	maxBids := highest2(sells)
	for _, b := range minAsks {
		for _, s := range maxBids {
			consider(b, s)
		}
	}
	return best
}

// usableSides splits the snapshot's quotes into buy-side and sell-side
// candidates, sorted by exchange name for deterministic pairing order.
func usableSides(snap domain.MarketSnapshot, requireFees bool) (buys, sells []side) {
	for name, q := range snap.Quotes {
		if requireFees && !q.HasFeeData() {
			continue
		}
		if p, ok := q.EffectiveBuy(); ok {
			buys = append(buys, side{exchange: name, price: p})
		}
		if p, ok := q.EffectiveSell(); ok {
			sells = append(sells, side{exchange: name, price: p})
		}
	}
	sort.Slice(buys, func(i, j int) bool { return buys[i].exchange < buys[j].exchange })
	sort.Slice(sells, func(i, j int) bool { return sells[i].exchange < sells[j].exchange })
	return buys, sells
}

// lowest2 returns up to two sides with the lowest prices, ties broken by
// exchange name.
func lowest2(sides []side) []side {
	out := append([]side(nil), sides...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].price != out[j].price {
			return out[i].price < out[j].price
		}
		return out[i].exchange < out[j].exchange
	})
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

// highest2 returns up to two sides with the highest prices, ties broken by
// exchange name.
func highest2(sides []side) []side {
	out := append([]side(nil), sides...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].price != out[j].price {
			return out[i].price > out[j].price
		}
		return out[i].exchange < out[j].exchange
	})
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

func detectedAt(snap domain.MarketSnapshot) time.Time {
	if !snap.CapturedAt.IsZero() {
		return snap.CapturedAt
	}
	return time.Now().UTC()
}
