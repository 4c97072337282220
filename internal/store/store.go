// Package store defines the persistence interface for the trade engine.
// Implementations include PostgreSQL (source of truth) and in-memory
// (testing and development).
package store

import (
	"context"

	"github.com/stockplay/trade-engine/internal/model"
)

// Store is the persistence interface. Two logical collections matter for
// settlement: the singleton wallet row and the positions table keyed by
// stock name (soft-retained after close). The trades table is an
// append-only audit log written in the same transaction as each fill.
type Store interface {
	// --- Wallet ---

	// GetWallet returns the wallet, creating it at the configured baseline
	// on first access.
	GetWallet(ctx context.Context) (*model.Wallet, error)

	// --- Positions ---

	// GetPosition retrieves a position by stock name. Returns
	// ledger.ErrPositionNotFound when no record exists.
	GetPosition(ctx context.Context, stockName string) (*model.Position, error)

	// ListPositions returns every position record, including closed ones.
	ListPositions(ctx context.Context) ([]model.Position, error)

	// --- Settlement ---

	// ApplyTrade persists the post-settlement wallet and position states
	// plus the trade record as one atomic unit: either all three writes
	// commit or none do.
	ApplyTrade(ctx context.Context, wallet *model.Wallet, position *model.Position, record *model.TradeRecord) error

	// ListTrades returns the most recent trade records, newest first.
	ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)

	// Reset deletes all positions, trades, and the wallet, then installs
	// the given fresh wallet. Destructive and irreversible.
	Reset(ctx context.Context, wallet *model.Wallet) error

	// --- Watchlist ---

	// ListWatchlist returns all watchlist entries in insertion order.
	ListWatchlist(ctx context.Context) ([]model.WatchlistEntry, error)

	// AddWatchlistEntry inserts an entry; returns false without error when
	// the symbol is already present (idempotent add).
	AddWatchlistEntry(ctx context.Context, entry *model.WatchlistEntry) (bool, error)

	// RemoveWatchlistEntry deletes by symbol; returns false when absent.
	RemoveWatchlistEntry(ctx context.Context, sym string) (bool, error)

	// HasWatchlistEntry reports whether a symbol or stock name is watched.
	HasWatchlistEntry(ctx context.Context, nameOrSymbol string) (bool, error)
}
