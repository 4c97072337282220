// Package trade provides the HTTP handlers and settlement logic for the
// simulated trading account: buys and sells applied atomically across the
// wallet and position ledger, plus the portfolio query surface.
//
// All monetary values use shopspring/decimal, never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/ledger"
	"github.com/stockplay/trade-engine/internal/metrics"
	"github.com/stockplay/trade-engine/internal/model"
	"github.com/stockplay/trade-engine/internal/store"
	"github.com/stockplay/trade-engine/internal/symbol"
)

// Service handles settlement operations. A mutex serializes every
// read-modify-write cycle (single-instance): the wallet is touched by every
// trade, so per-symbol locking would not reduce contention. For horizontal
// scaling, replace with database-level locking or optimistic concurrency.
type Service struct {
	store   store.Store
	initial decimal.Decimal
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for fill broadcasts
}

// NewService creates a new settlement service. Pass nil for hub if
// WebSocket broadcasting is not needed.
func NewService(st store.Store, initial decimal.Decimal, hub *WSHub) *Service {
	return &Service{
		store:   st,
		initial: initial,
		wsHub:   hub,
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for buy and sell.
type TradeRequest struct {
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	StockName string          `json:"stockName"`
	Symbol    string          `json:"symbol,omitempty"`
}

// HoldingView is the position representation served at the API boundary.
// The canonical fields mirror model.Position; the legacy aliases (Average,
// Total, price, MarketV, change) exist only here, for clients of the old
// API and are never stored.
type HoldingView struct {
	StockName           string          `json:"stockName"`
	Symbol              string          `json:"symbol,omitempty"`
	Quantity            int64           `json:"quantity"`
	AverageCost         decimal.Decimal `json:"averageCost"`
	TotalCost           decimal.Decimal `json:"totalCost"`
	CurrentPrice        decimal.Decimal `json:"currentPrice"`
	MarketValue         decimal.Decimal `json:"marketValue"`
	UnrealizedPL        decimal.Decimal `json:"unrealizedPL"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealizedPLPercent"`
	RealizedPL          decimal.Decimal `json:"realizedPL"`

	// Legacy aliases.
	Average decimal.Decimal `json:"Average"`
	Total   decimal.Decimal `json:"Total"`
	Price   decimal.Decimal `json:"price"`
	MarketV decimal.Decimal `json:"MarketV"`
	Change  decimal.Decimal `json:"change"`
}

// NewHoldingView maps a position to its API representation.
func NewHoldingView(p *model.Position) HoldingView {
	return HoldingView{
		StockName:           p.StockName,
		Symbol:              p.Symbol,
		Quantity:            p.Quantity,
		AverageCost:         p.AverageCost,
		TotalCost:           p.TotalCost,
		CurrentPrice:        p.CurrentPrice,
		MarketValue:         p.MarketValue,
		UnrealizedPL:        p.UnrealizedPL,
		UnrealizedPLPercent: p.UnrealizedPLPercent,
		RealizedPL:          p.RealizedPL,
		Average:             p.AverageCost,
		Total:               p.TotalCost,
		Price:               p.CurrentPrice,
		MarketV:             p.MarketValue,
		Change:              p.UnrealizedPL,
	}
}

// SellResponse is the JSON body returned from a successful sell.
type SellResponse struct {
	Success    bool            `json:"success"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	StockName  string          `json:"stockName"`
	RealizedPL decimal.Decimal `json:"realizedPL"`
}

// BalanceResponse is the wallet view, with the legacy Money alias.
type BalanceResponse struct {
	Money          decimal.Decimal `json:"Money"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

// PortfolioResponse bundles open holdings with aggregate totals.
type PortfolioResponse struct {
	Holdings []HoldingView  `json:"holdings"`
	Summary  ledger.Summary `json:"summary"`
}

// --- HTTP Handlers ---

// Buy handles POST /api/v1/trade/buy.
// Settles a purchase atomically against the wallet and position ledger.
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	ctx := r.Context()

	// Serialize the read-modify-write cycle.
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, err := s.store.GetWallet(ctx)
	if err != nil {
		slog.Error("buy: wallet load failed", "err", err)
		metrics.TradeRejections.WithLabelValues("transaction_failed").Inc()
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	position, err := s.store.GetPosition(ctx, req.StockName)
	if errors.Is(err, ledger.ErrPositionNotFound) {
		position = ledger.NewPosition(req.StockName, req.Symbol)
	} else if err != nil {
		slog.Error("buy: position load failed", "stock", req.StockName, "err", err)
		metrics.TradeRejections.WithLabelValues("transaction_failed").Inc()
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	if err := ledger.Buy(wallet, position, req.Quantity, req.Price); err != nil {
		metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
		writeError(w, "Insufficient funds", http.StatusBadRequest)
		return
	}

	record := &model.TradeRecord{
		ID:         uuid.New().String(),
		StockName:  req.StockName,
		Side:       model.SideBuy,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Amount:     req.Price.Mul(decimal.NewFromInt(req.Quantity)),
		RealizedPL: decimal.Zero,
		ExecutedAt: time.Now().UTC(),
	}

	if err := s.store.ApplyTrade(ctx, wallet, position, record); err != nil {
		slog.Error("buy: settlement failed", "stock", req.StockName, "err", err)
		metrics.TradeRejections.WithLabelValues("transaction_failed").Inc()
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	s.recordFill(record, wallet, decimal.Zero)

	slog.Info("trade settled",
		"trade_id", record.ID,
		"side", "buy",
		"stock", req.StockName,
		"qty", req.Quantity,
		"price", req.Price.String(),
		"balance", wallet.Balance.String(),
	)
	metrics.TradeLatency.WithLabelValues("buy").Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, NewHoldingView(position))
}

// Sell handles POST /api/v1/trade/sell.
// Realizes P/L against the existing average cost and credits the wallet.
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	position, err := s.store.GetPosition(ctx, req.StockName)
	if errors.Is(err, ledger.ErrPositionNotFound) {
		metrics.TradeRejections.WithLabelValues("position_not_found").Inc()
		writeError(w, "Stock not found in portfolio", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("sell: position load failed", "stock", req.StockName, "err", err)
		metrics.TradeRejections.WithLabelValues("transaction_failed").Inc()
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	wallet, err := s.store.GetWallet(ctx)
	if err != nil {
		slog.Error("sell: wallet load failed", "err", err)
		metrics.TradeRejections.WithLabelValues("transaction_failed").Inc()
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	realized, err := ledger.Sell(wallet, position, req.Quantity, req.Price)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("insufficient_shares").Inc()
		writeError(w, "Insufficient shares", http.StatusBadRequest)
		return
	}

	record := &model.TradeRecord{
		ID:         uuid.New().String(),
		StockName:  req.StockName,
		Side:       model.SideSell,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Amount:     req.Price.Mul(decimal.NewFromInt(req.Quantity)),
		RealizedPL: realized,
		ExecutedAt: time.Now().UTC(),
	}

	if err := s.store.ApplyTrade(ctx, wallet, position, record); err != nil {
		slog.Error("sell: settlement failed", "stock", req.StockName, "err", err)
		metrics.TradeRejections.WithLabelValues("transaction_failed").Inc()
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	s.recordFill(record, wallet, realized)

	slog.Info("trade settled",
		"trade_id", record.ID,
		"side", "sell",
		"stock", req.StockName,
		"qty", req.Quantity,
		"price", req.Price.String(),
		"realized_pl", realized.String(),
		"balance", wallet.Balance.String(),
	)
	metrics.TradeLatency.WithLabelValues("sell").Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, SellResponse{
		Success:    true,
		Quantity:   req.Quantity,
		Price:      req.Price,
		StockName:  req.StockName,
		RealizedPL: realized,
	})
}

// GetBalance handles GET /api/v1/wallet.
// Lazily initializes the wallet at the baseline on first access.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.store.GetWallet(r.Context())
	if err != nil {
		slog.Error("wallet load failed", "err", err)
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Money:          wallet.Balance,
		Balance:        wallet.Balance,
		InitialBalance: wallet.InitialBalance,
	})
}

// GetPortfolio handles GET /api/v1/portfolio.
// Holdings include only open positions; totalRealizedPL sums every record
// so closed positions keep counting.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositions(r.Context())
	if err != nil {
		slog.Error("portfolio load failed", "err", err)
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	holdings := make([]HoldingView, 0, len(positions))
	for i := range positions {
		if positions[i].Open() {
			holdings = append(holdings, NewHoldingView(&positions[i]))
		}
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].StockName < holdings[j].StockName
	})

	writeJSON(w, http.StatusOK, PortfolioResponse{
		Holdings: holdings,
		Summary:  ledger.Summarize(positions),
	})
}

// GetHolding handles GET /api/v1/portfolio/{stockName}.
// Returns a list with zero or one element, matching the legacy contract.
func (s *Service) GetHolding(w http.ResponseWriter, r *http.Request) {
	stockName := chi.URLParam(r, "stockName")

	holdings := []HoldingView{}
	position, err := s.store.GetPosition(r.Context(), stockName)
	if err == nil {
		holdings = append(holdings, NewHoldingView(position))
	} else if !errors.Is(err, ledger.ErrPositionNotFound) {
		slog.Error("holding load failed", "stock", stockName, "err", err)
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, holdings)
}

// ListTrades handles GET /api/v1/trades.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	records, err := s.store.ListTrades(r.Context(), limit)
	if err != nil {
		slog.Error("trade history load failed", "err", err)
		writeError(w, "Transaction failed", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.TradeRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": records,
		"count":  len(records),
	})
}

// Reset handles POST /api/v1/reset.
// Deletes every position and trade record and recreates the wallet at the
// baseline. Destructive; intended for tests and demos.
func (s *Service) Reset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := ledger.NewWallet(s.initial)
	if err := s.store.Reset(r.Context(), wallet); err != nil {
		slog.Error("reset failed", "err", err)
		writeError(w, "Reset failed", http.StatusInternalServerError)
		return
	}

	slog.Info("portfolio and wallet reset", "balance", wallet.Balance.String())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Portfolio reset successfully",
		"balance": wallet.Balance,
	})
}

// decodeTradeRequest parses and validates a buy/sell body. The engine
// assumes these invariants downstream: positive integer quantity, positive
// price, sanitized non-empty stock name.
func (s *Service) decodeTradeRequest(w http.ResponseWriter, r *http.Request) (TradeRequest, bool) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}

	if req.Quantity <= 0 {
		writeError(w, "Invalid quantity. Must be a positive integer.", http.StatusBadRequest)
		return req, false
	}
	if !req.Price.IsPositive() {
		writeError(w, "Invalid price. Must be a positive number.", http.StatusBadRequest)
		return req, false
	}

	name, err := symbol.SanitizeName(req.StockName)
	if err != nil {
		writeError(w, "Invalid stock name.", http.StatusBadRequest)
		return req, false
	}
	req.StockName = name

	if req.Symbol != "" {
		if ticker, err := symbol.ParseTicker(req.Symbol); err == nil {
			req.Symbol = ticker
		} else {
			req.Symbol = ""
		}
	}

	return req, true
}

// recordFill updates counters and notifies WebSocket clients after commit.
func (s *Service) recordFill(record *model.TradeRecord, wallet *model.Wallet, realized decimal.Decimal) {
	side := strings.ToLower(record.Side)
	metrics.TradesTotal.WithLabelValues(side).Inc()
	metrics.TradeVolume.WithLabelValues(record.StockName, side).Add(float64(record.Quantity))

	if s.wsHub == nil {
		return
	}
	msg := WSMessage{
		Type:      "trade_executed",
		StockName: record.StockName,
		Side:      record.Side,
		Quantity:  record.Quantity,
		Price:     record.Price.String(),
		Balance:   wallet.Balance.String(),
	}
	if record.Side == model.SideSell {
		msg.RealizedPL = realized.String()
	}
	s.wsHub.Broadcast(msg)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
