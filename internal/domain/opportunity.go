package domain

import "time"

// Opportunity is a detected cross-exchange arbitrage: buy on BuyExchange at
// BuyPrice, sell on SellExchange at SellPrice. Prices are effective
// (fee-inclusive where the exchange publishes fees).
type Opportunity struct {
	// ID is a random UUID assigned at detection time.
	ID string `json:"id"`
	// SnapshotID links the opportunity to the snapshot it was derived from.
	// Zero until persisted in detailed granularity.
	SnapshotID    int64     `json:"snapshot_id,omitempty"`
	Coin          string    `json:"coin"`
	Fiat          string    `json:"fiat"`
	BuyExchange   string    `json:"buy_exchange"`
	SellExchange  string    `json:"sell_exchange"`
	BuyPrice      float64   `json:"buy_price"`
	SellPrice     float64   `json:"sell_price"`
	SpreadPct     float64   `json:"spread_pct"`
	ProfitPerUnit float64   `json:"profit_per_unit"`
	DetectedAt    time.Time `json:"detected_at"`
}

// Route is the (buy, sell) exchange pair of an opportunity.
func (o Opportunity) Route() string { return o.BuyExchange + " -> " + o.SellExchange }
