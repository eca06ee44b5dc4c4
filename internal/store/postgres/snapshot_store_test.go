package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"arbmon/internal/domain"
)

func fp(v float64) *float64 { return &v }

func TestSnapshotHash_DeterministicAcrossMapOrder(t *testing.T) {
	a := domain.MarketSnapshot{Quotes: map[string]domain.ExchangeQuote{
		"binance": {Exchange: "binance", Ask: fp(100), Bid: fp(99), TotalAsk: fp(101), TotalBid: fp(98)},
		"lemon":   {Exchange: "lemon", Ask: fp(102), Bid: fp(100)},
	}}
	b := domain.MarketSnapshot{Quotes: map[string]domain.ExchangeQuote{
		"lemon":   {Exchange: "lemon", Ask: fp(102), Bid: fp(100)},
		"binance": {Exchange: "binance", Ask: fp(100), Bid: fp(99), TotalAsk: fp(101), TotalBid: fp(98)},
	}}

	assert.Equal(t, snapshotHash(a), snapshotHash(b))
}

func TestSnapshotHash_SensitiveToPrices(t *testing.T) {
	base := domain.MarketSnapshot{Quotes: map[string]domain.ExchangeQuote{
		"binance": {Exchange: "binance", Ask: fp(100)},
	}}
	changed := domain.MarketSnapshot{Quotes: map[string]domain.ExchangeQuote{
		"binance": {Exchange: "binance", Ask: fp(100.01)},
	}}
	missing := domain.MarketSnapshot{Quotes: map[string]domain.ExchangeQuote{
		"binance": {Exchange: "binance"},
	}}

	assert.NotEqual(t, snapshotHash(base), snapshotHash(changed))
	assert.NotEqual(t, snapshotHash(base), snapshotHash(missing))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5433/arbmon?sslmode=require", DSN(ClientConfig{
		Host: "db", Port: 5433, Database: "arbmon", User: "u", Password: "p", SSLMode: "require",
	}))

	// Defaults fill in port and sslmode.
	assert.Equal(t, "postgres://u:p@localhost:5432/arbmon?sslmode=disable", DSN(ClientConfig{
		Host: "localhost", Database: "arbmon", User: "u", Password: "p",
	}))

	// An explicit DSN wins.
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}
