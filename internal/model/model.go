// Package model defines the core domain types shared across the trade engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides recorded in the audit log.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Wallet is the simulated cash account. This is a single-tenant design:
// there is at most one live wallet, created lazily at the baseline and
// mutated only by trade settlement.
type Wallet struct {
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	InitialBalance decimal.Decimal `json:"initialBalance" db:"initial_balance"`
	TotalDeposited decimal.Decimal `json:"totalDeposited" db:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn" db:"total_withdrawn"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// Position is a holding record for one instrument, keyed by stock name.
// A record is created on the first buy and soft-retained after the
// quantity returns to zero so RealizedPL history survives the close.
type Position struct {
	StockName string `json:"stockName" db:"stock_name"`
	Symbol    string `json:"symbol" db:"symbol"`
	Quantity  int64  `json:"quantity" db:"quantity"`

	// Cost basis of the currently held shares. Reduced proportionally on
	// sells; not cumulative historical spend.
	TotalCost   decimal.Decimal `json:"totalCost" db:"total_cost"`
	AverageCost decimal.Decimal `json:"averageCost" db:"average_cost"`

	// Snapshot of the last trade price, not a live quote.
	CurrentPrice decimal.Decimal `json:"currentPrice" db:"current_price"`

	// Derived fields, recomputed by the ledger after every mutation.
	MarketValue         decimal.Decimal `json:"marketValue" db:"market_value"`
	UnrealizedPL        decimal.Decimal `json:"unrealizedPL" db:"unrealized_pl"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealizedPLPercent" db:"unrealized_pl_percent"`

	// Cumulative P/L banked from completed sales. Persists at quantity 0.
	RealizedPL decimal.Decimal `json:"realizedPL" db:"realized_pl"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Open reports whether the position currently holds shares.
func (p *Position) Open() bool {
	return p.Quantity > 0
}

// TradeRecord is an immutable record of an executed buy or sell.
// Once written, these are never modified or deleted outside a full reset.
type TradeRecord struct {
	ID         string          `json:"id" db:"id"`
	StockName  string          `json:"stockName" db:"stock_name"`
	Side       string          `json:"side" db:"side"`
	Quantity   int64           `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`          // cost for buys, proceeds for sells
	RealizedPL decimal.Decimal `json:"realizedPL" db:"realized_pl"` // zero for buys
	ExecutedAt time.Time       `json:"executedAt" db:"executed_at"`
}

// WatchlistEntry is a symbol the user is monitoring, with the price
// snapshot captured when it was added. Independent of positions.
type WatchlistEntry struct {
	Symbol    string          `json:"symbol" db:"symbol"`
	StockName string          `json:"stockName" db:"stock_name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Change    decimal.Decimal `json:"change" db:"change"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// Quote is a price snapshot from the market-data gateway. This is display
// data passed through from the upstream provider, not ledger money, so it
// keeps the provider's float encoding.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Candle is one OHLCV bar returned by the historical-data gateway.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}
