package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/ledger"
	"github.com/stockplay/trade-engine/internal/model"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	initial   decimal.Decimal
	wallet    *model.Wallet
	positions map[string]*model.Position
	trades    []model.TradeRecord
	watchlist []model.WatchlistEntry
}

// NewMemoryStore creates an in-memory store whose wallet initializes at the
// given baseline.
func NewMemoryStore(initial decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		initial:   initial,
		positions: make(map[string]*model.Position),
	}
}

func (s *MemoryStore) GetWallet(_ context.Context) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil {
		s.wallet = ledger.NewWallet(s.initial)
	}
	w := *s.wallet
	return &w, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, stockName string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[stockName]
	if !ok {
		return nil, ledger.ErrPositionNotFound
	}
	// Return a copy to avoid external mutation.
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		positions = append(positions, *p)
	}
	return positions, nil
}

func (s *MemoryStore) ApplyTrade(_ context.Context, wallet *model.Wallet, position *model.Position, record *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := *wallet
	p := *position
	s.wallet = &w
	s.positions[position.StockName] = &p
	s.trades = append(s.trades, *record)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, limit int) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.TradeRecord, 0, limit)
	for i := len(s.trades) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, s.trades[i])
	}
	return records, nil
}

func (s *MemoryStore) Reset(_ context.Context, wallet *model.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := *wallet
	s.wallet = &w
	s.positions = make(map[string]*model.Position)
	s.trades = nil
	return nil
}

func (s *MemoryStore) ListWatchlist(_ context.Context) ([]model.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.WatchlistEntry, len(s.watchlist))
	copy(entries, s.watchlist)
	return entries, nil
}

func (s *MemoryStore) AddWatchlistEntry(_ context.Context, entry *model.WatchlistEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.watchlist {
		if s.watchlist[i].Symbol == entry.Symbol {
			return false, nil
		}
	}
	s.watchlist = append(s.watchlist, *entry)
	return true, nil
}

func (s *MemoryStore) RemoveWatchlistEntry(_ context.Context, sym string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.watchlist {
		if s.watchlist[i].Symbol == sym {
			s.watchlist = append(s.watchlist[:i], s.watchlist[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) HasWatchlistEntry(_ context.Context, nameOrSymbol string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.watchlist {
		if s.watchlist[i].Symbol == nameOrSymbol || s.watchlist[i].StockName == nameOrSymbol {
			return true, nil
		}
	}
	return false, nil
}
