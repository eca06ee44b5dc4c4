package domain

import "time"

// ExchangeStat aggregates one exchange's participation in detected
// opportunities over a window, counted separately for the buy and sell
// legs.
type ExchangeStat struct {
	Exchange         string  `json:"exchange"`
	TimesBuy         int     `json:"times_buy"`
	TimesSell        int     `json:"times_sell"`
	TotalAppearances int     `json:"total_appearances"`
	AvgSpreadPct     float64 `json:"avg_spread_pct"`
	MaxSpreadPct     float64 `json:"max_spread_pct"`
	TotalProfit      float64 `json:"total_profit"`
}

// Allocation is a suggested capital weighting for one exchange, derived
// from its appearance score. Percents across a report sum to 100.
type Allocation struct {
	Exchange string  `json:"exchange"`
	Score    float64 `json:"score"`
	Percent  float64 `json:"percent"`
}

// HourlyStat aggregates opportunities by hour of day (0-23).
type HourlyStat struct {
	Hour         int     `json:"hour"`
	Count        int     `json:"count"`
	AvgSpreadPct float64 `json:"avg_spread_pct"`
	MaxSpreadPct float64 `json:"max_spread_pct"`
}

// DailyStat aggregates opportunities by day of week.
type DailyStat struct {
	Day          time.Weekday `json:"day"`
	Count        int          `json:"count"`
	AvgSpreadPct float64      `json:"avg_spread_pct"`
	MaxSpreadPct float64      `json:"max_spread_pct"`
}

// RouteStat aggregates one directed (buy, sell) exchange route.
type RouteStat struct {
	BuyExchange  string  `json:"buy_exchange"`
	SellExchange string  `json:"sell_exchange"`
	Coin         string  `json:"coin"`
	Frequency    int     `json:"frequency"`
	AvgSpreadPct float64 `json:"avg_spread_pct"`
	TotalProfit  float64 `json:"total_profit"`
}

// CoinStat aggregates opportunities per coin.
type CoinStat struct {
	Coin         string  `json:"coin"`
	Count        int     `json:"count"`
	AvgSpreadPct float64 `json:"avg_spread_pct"`
	MaxSpreadPct float64 `json:"max_spread_pct"`
	TotalProfit  float64 `json:"total_profit"`
}

// Report is the full temporal analysis for one fiat over a window.
type Report struct {
	Fiat          string         `json:"fiat"`
	Since         time.Time      `json:"since"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Opportunities int            `json:"opportunities"`
	Exchanges     []ExchangeStat `json:"exchanges"`
	Allocations   []Allocation   `json:"allocations"`
	Hourly        []HourlyStat   `json:"hourly"`
	Daily         []DailyStat    `json:"daily"`
	Routes        []RouteStat    `json:"routes"`
	Coins         []CoinStat     `json:"coins"`
}
