// Package ledger implements the settlement math for the simulated trading
// account: weighted-average cost basis on buys, realized P/L on sells, and
// the derived valuation fields.
//
// Functions here are pure state transitions over model values. They assume
// inputs were already validated (positive quantity and price, sanitized
// stock name) and either apply fully or return an error leaving every
// argument untouched. Persistence and serialization live elsewhere.
//
// Cost basis uses the weighted-average method, not FIFO/LIFO lot tracking:
// each buy blends its price into the existing average proportional to
// quantity, and each sell realizes P/L against that average.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/model"
)

var (
	// ErrInsufficientFunds is returned when a buy exceeds the wallet balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrPositionNotFound is returned when a sell references an instrument
	// that was never bought.
	ErrPositionNotFound = errors.New("ledger: position not found")
)

// DefaultInitialBalance is the cash baseline a fresh wallet starts with.
var DefaultInitialBalance = decimal.NewFromInt(25000)

var hundred = decimal.NewFromInt(100)

// NewWallet creates a wallet at the given baseline. The baseline also seeds
// TotalDeposited so deposit accounting starts consistent.
func NewWallet(initial decimal.Decimal) *model.Wallet {
	return &model.Wallet{
		Balance:        initial,
		InitialBalance: initial,
		TotalDeposited: initial,
		TotalWithdrawn: decimal.Zero,
		UpdatedAt:      time.Now().UTC(),
	}
}

// NewPosition creates an empty position record for an instrument's first buy.
func NewPosition(stockName, symbol string) *model.Position {
	now := time.Now().UTC()
	return &model.Position{
		StockName: stockName,
		Symbol:    symbol,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Buy settles a purchase of quantity shares at price into the wallet and
// position. On ErrInsufficientFunds neither record is modified.
func Buy(w *model.Wallet, p *model.Position, quantity int64, price decimal.Decimal) error {
	cost := price.Mul(decimal.NewFromInt(quantity))
	if w.Balance.LessThan(cost) {
		return ErrInsufficientFunds
	}

	w.Balance = w.Balance.Sub(cost)
	w.UpdatedAt = time.Now().UTC()

	newQuantity := p.Quantity + quantity
	newTotalCost := p.TotalCost.Add(cost)

	p.Quantity = newQuantity
	p.TotalCost = newTotalCost
	p.AverageCost = newTotalCost.Div(decimal.NewFromInt(newQuantity))
	p.CurrentPrice = price

	Recalculate(p)
	return nil
}

// Sell settles a sale of quantity shares at price, returning the P/L
// realized by this sale. The cost basis released is quantity times the
// existing average cost, not the sale price. On ErrInsufficientShares
// neither record is modified.
//
// When the sale closes the position (quantity reaches zero), TotalCost and
// AverageCost are zeroed but the record itself is kept by callers so the
// cumulative RealizedPL survives.
func Sell(w *model.Wallet, p *model.Position, quantity int64, price decimal.Decimal) (decimal.Decimal, error) {
	if p.Quantity < quantity {
		return decimal.Zero, ErrInsufficientShares
	}

	proceeds := price.Mul(decimal.NewFromInt(quantity))
	costBasis := p.AverageCost.Mul(decimal.NewFromInt(quantity))
	realized := proceeds.Sub(costBasis)

	w.Balance = w.Balance.Add(proceeds)
	w.UpdatedAt = time.Now().UTC()

	p.Quantity -= quantity
	p.TotalCost = p.TotalCost.Sub(costBasis)
	p.CurrentPrice = price
	p.RealizedPL = p.RealizedPL.Add(realized)

	if p.Quantity == 0 {
		p.TotalCost = decimal.Zero
		p.AverageCost = decimal.Zero
	}

	Recalculate(p)
	return realized, nil
}

// Recalculate refreshes the derived valuation fields from the position's
// quantity, cost basis, and price snapshot.
func Recalculate(p *model.Position) {
	p.MarketValue = p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))

	if p.Quantity > 0 {
		p.UnrealizedPL = p.MarketValue.Sub(p.TotalCost)
		if p.TotalCost.IsPositive() {
			p.UnrealizedPLPercent = p.UnrealizedPL.Div(p.TotalCost).Mul(hundred)
		} else {
			p.UnrealizedPLPercent = decimal.Zero
		}
	} else {
		p.UnrealizedPL = decimal.Zero
		p.UnrealizedPLPercent = decimal.Zero
	}

	p.UpdatedAt = time.Now().UTC()
}

// Summary aggregates open holdings plus the realized P/L banked across all
// records, including closed ones.
type Summary struct {
	TotalInvested            decimal.Decimal `json:"totalInvested"`
	TotalMarketValue         decimal.Decimal `json:"totalMarketValue"`
	TotalUnrealizedPL        decimal.Decimal `json:"totalUnrealizedPL"`
	TotalUnrealizedPLPercent decimal.Decimal `json:"totalUnrealizedPLPercent"`
	TotalRealizedPL          decimal.Decimal `json:"totalRealizedPL"`
}

// Summarize computes portfolio totals over every position record. Open
// positions contribute cost and market value; realized P/L sums over all
// records so closed positions keep counting.
func Summarize(positions []model.Position) Summary {
	var s Summary
	for i := range positions {
		p := &positions[i]
		s.TotalRealizedPL = s.TotalRealizedPL.Add(p.RealizedPL)
		if !p.Open() {
			continue
		}
		s.TotalInvested = s.TotalInvested.Add(p.TotalCost)
		s.TotalMarketValue = s.TotalMarketValue.Add(p.MarketValue)
		s.TotalUnrealizedPL = s.TotalUnrealizedPL.Add(p.UnrealizedPL)
	}
	if s.TotalInvested.IsPositive() {
		s.TotalUnrealizedPLPercent = s.TotalUnrealizedPL.Div(s.TotalInvested).Mul(hundred)
	}
	return s
}
