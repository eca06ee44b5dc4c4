// Package analytics builds temporal reports from persisted opportunity
// history: exchange rankings, capital allocation suggestions, hourly and
// day-of-week patterns, and route/coin breakdowns.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"arbmon/internal/domain"
)

// Engine computes reports over the opportunity store.
type Engine struct {
	opps   domain.OpportunityStore
	logger *slog.Logger

	// now is swappable for deterministic report timestamps in tests.
	now func() time.Time
}

// NewEngine creates a report engine over the given store.
func NewEngine(opps domain.OpportunityStore, logger *slog.Logger) *Engine {
	return &Engine{
		opps:   opps,
		logger: logger.With(slog.String("component", "analytics")),
		now:    time.Now,
	}
}

// Analyze builds the full report for a fiat over the window starting at
// since. An empty window is not an error: every section comes back empty
// and the allocation set sums to zero. All report slices are
// deterministically ordered so the same history always yields the same
// report.
func (e *Engine) Analyze(ctx context.Context, fiat string, since time.Time) (domain.Report, error) {
	opps, err := e.opps.ListSince(ctx, fiat, since)
	if err != nil {
		return domain.Report{}, fmt.Errorf("analytics: load window: %w", err)
	}

	report := domain.Report{
		Fiat:          fiat,
		Since:         since,
		GeneratedAt:   e.now().UTC(),
		Opportunities: len(opps),
		Exchanges:     exchangeStats(opps),
		Hourly:        hourlyStats(opps),
		Daily:         dailyStats(opps),
		Routes:        routeStats(opps),
		Coins:         coinStats(opps),
	}
	report.Allocations = allocations(report.Exchanges)

	e.logger.Info("report generated",
		slog.String("fiat", fiat),
		slog.Int("opportunities", report.Opportunities),
		slog.Int("exchanges", len(report.Exchanges)))

	return report, nil
}

// exchangeStats ranks exchanges by total appearances across both legs.
// Spread and profit aggregates count each appearance, so an opportunity
// contributes to both its buy and sell exchange.
func exchangeStats(opps []domain.Opportunity) []domain.ExchangeStat {
	type acc struct {
		buy, sell   int
		spreadSum   float64
		spreadMax   float64
		profitTotal float64
	}
	byExchange := make(map[string]*acc)
	touch := func(name string) *acc {
		a, ok := byExchange[name]
		if !ok {
			a = &acc{}
			byExchange[name] = a
		}
		return a
	}

	for _, o := range opps {
		b := touch(o.BuyExchange)
		b.buy++
		b.spreadSum += o.SpreadPct
		b.profitTotal += o.ProfitPerUnit
		if o.SpreadPct > b.spreadMax {
			b.spreadMax = o.SpreadPct
		}

		s := touch(o.SellExchange)
		s.sell++
		s.spreadSum += o.SpreadPct
		s.profitTotal += o.ProfitPerUnit
		if o.SpreadPct > s.spreadMax {
			s.spreadMax = o.SpreadPct
		}
	}

	stats := make([]domain.ExchangeStat, 0, len(byExchange))
	for name, a := range byExchange {
		total := a.buy + a.sell
		stats = append(stats, domain.ExchangeStat{
			Exchange:         name,
			TimesBuy:         a.buy,
			TimesSell:        a.sell,
			TotalAppearances: total,
			AvgSpreadPct:     a.spreadSum / float64(total),
			MaxSpreadPct:     a.spreadMax,
			TotalProfit:      a.profitTotal,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalAppearances != stats[j].TotalAppearances {
			return stats[i].TotalAppearances > stats[j].TotalAppearances
		}
		return stats[i].Exchange < stats[j].Exchange
	})
	return stats
}

// allocationTopN caps the fund-allocation recommendation to the leading
// exchanges; weights are normalized within that set only.
const allocationTopN = 3

// allocations converts the top-N exchanges' appearance counts into capital
// weightings that sum to 100 percent, in ranking order. Exchanges outside
// the top N receive no allocation.
func allocations(stats []domain.ExchangeStat) []domain.Allocation {
	if len(stats) > allocationTopN {
		stats = stats[:allocationTopN]
	}

	var total float64
	for _, s := range stats {
		total += float64(s.TotalAppearances)
	}
	if total == 0 {
		return nil
	}

	out := make([]domain.Allocation, 0, len(stats))
	for _, s := range stats {
		score := float64(s.TotalAppearances)
		out = append(out, domain.Allocation{
			Exchange: s.Exchange,
			Score:    score,
			Percent:  score / total * 100,
		})
	}
	return out
}

func hourlyStats(opps []domain.Opportunity) []domain.HourlyStat {
	type acc struct {
		count     int
		spreadSum float64
		spreadMax float64
	}
	byHour := make(map[int]*acc)
	for _, o := range opps {
		h := o.DetectedAt.UTC().Hour()
		a, ok := byHour[h]
		if !ok {
			a = &acc{}
			byHour[h] = a
		}
		a.count++
		a.spreadSum += o.SpreadPct
		if o.SpreadPct > a.spreadMax {
			a.spreadMax = o.SpreadPct
		}
	}

	stats := make([]domain.HourlyStat, 0, len(byHour))
	for h, a := range byHour {
		stats = append(stats, domain.HourlyStat{
			Hour:         h,
			Count:        a.count,
			AvgSpreadPct: a.spreadSum / float64(a.count),
			MaxSpreadPct: a.spreadMax,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Hour < stats[j].Hour })
	return stats
}

func dailyStats(opps []domain.Opportunity) []domain.DailyStat {
	type acc struct {
		count     int
		spreadSum float64
		spreadMax float64
	}
	byDay := make(map[time.Weekday]*acc)
	for _, o := range opps {
		d := o.DetectedAt.UTC().Weekday()
		a, ok := byDay[d]
		if !ok {
			a = &acc{}
			byDay[d] = a
		}
		a.count++
		a.spreadSum += o.SpreadPct
		if o.SpreadPct > a.spreadMax {
			a.spreadMax = o.SpreadPct
		}
	}

	stats := make([]domain.DailyStat, 0, len(byDay))
	for d, a := range byDay {
		stats = append(stats, domain.DailyStat{
			Day:          d,
			Count:        a.count,
			AvgSpreadPct: a.spreadSum / float64(a.count),
			MaxSpreadPct: a.spreadMax,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Day < stats[j].Day })
	return stats
}

func routeStats(opps []domain.Opportunity) []domain.RouteStat {
	type key struct{ buy, sell, coin string }
	type acc struct {
		count       int
		spreadSum   float64
		profitTotal float64
	}
	byRoute := make(map[key]*acc)
	for _, o := range opps {
		k := key{o.BuyExchange, o.SellExchange, o.Coin}
		a, ok := byRoute[k]
		if !ok {
			a = &acc{}
			byRoute[k] = a
		}
		a.count++
		a.spreadSum += o.SpreadPct
		a.profitTotal += o.ProfitPerUnit
	}

	stats := make([]domain.RouteStat, 0, len(byRoute))
	for k, a := range byRoute {
		stats = append(stats, domain.RouteStat{
			BuyExchange:  k.buy,
			SellExchange: k.sell,
			Coin:         k.coin,
			Frequency:    a.count,
			AvgSpreadPct: a.spreadSum / float64(a.count),
			TotalProfit:  a.profitTotal,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		if stats[i].BuyExchange != stats[j].BuyExchange {
			return stats[i].BuyExchange < stats[j].BuyExchange
		}
		if stats[i].SellExchange != stats[j].SellExchange {
			return stats[i].SellExchange < stats[j].SellExchange
		}
		return stats[i].Coin < stats[j].Coin
	})
	return stats
}

func coinStats(opps []domain.Opportunity) []domain.CoinStat {
	type acc struct {
		count       int
		spreadSum   float64
		spreadMax   float64
		profitTotal float64
	}
	byCoin := make(map[string]*acc)
	for _, o := range opps {
		a, ok := byCoin[o.Coin]
		if !ok {
			a = &acc{}
			byCoin[o.Coin] = a
		}
		a.count++
		a.spreadSum += o.SpreadPct
		a.profitTotal += o.ProfitPerUnit
		if o.SpreadPct > a.spreadMax {
			a.spreadMax = o.SpreadPct
		}
	}

	stats := make([]domain.CoinStat, 0, len(byCoin))
	for coin, a := range byCoin {
		stats = append(stats, domain.CoinStat{
			Coin:         coin,
			Count:        a.count,
			AvgSpreadPct: a.spreadSum / float64(a.count),
			MaxSpreadPct: a.spreadMax,
			TotalProfit:  a.profitTotal,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Coin < stats[j].Coin
	})
	return stats
}
