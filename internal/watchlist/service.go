// Package watchlist manages the user's saved-symbol list: add, remove,
// list, and the star toggle probe used by the UI to render favorites.
package watchlist

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/model"
	"github.com/stockplay/trade-engine/internal/store"
	"github.com/stockplay/trade-engine/internal/symbol"
)

// Service handles watchlist HTTP endpoints.
type Service struct {
	store store.Store
}

// NewService creates a watchlist service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// AddRequest is the JSON body for adding a watchlist entry. Price and
// change are snapshots taken by the client at add time.
type AddRequest struct {
	Symbol    string          `json:"symbol"`
	StockName string          `json:"stockName"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"`
}

// List handles GET /api/v1/watchlist.
func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListWatchlist(r.Context())
	if err != nil {
		slog.Error("watchlist load failed", "err", err)
		writeError(w, "Failed to load watchlist", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Add handles POST /api/v1/watchlist.
// Adding a symbol that is already watched succeeds without duplicating it.
func (s *Service) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ticker, err := symbol.ParseTicker(req.Symbol)
	if err != nil {
		writeError(w, "Invalid symbol.", http.StatusBadRequest)
		return
	}
	name, err := symbol.SanitizeName(req.StockName)
	if err != nil {
		// Fall back to the ticker when no display name was sent.
		name = ticker
	}

	entry := &model.WatchlistEntry{
		Symbol:    ticker,
		StockName: name,
		Price:     req.Price,
		Change:    req.Change,
		CreatedAt: time.Now().UTC(),
	}

	inserted, err := s.store.AddWatchlistEntry(r.Context(), entry)
	if err != nil {
		slog.Error("watchlist add failed", "symbol", ticker, "err", err)
		writeError(w, "Failed to add to watchlist", http.StatusInternalServerError)
		return
	}
	if !inserted {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Already in watchlist",
			"item":    entry,
		})
		return
	}

	slog.Info("watchlist entry added", "symbol", ticker)
	writeJSON(w, http.StatusCreated, entry)
}

// Remove handles DELETE /api/v1/watchlist/{symbol}.
func (s *Service) Remove(w http.ResponseWriter, r *http.Request) {
	ticker, err := symbol.ParseTicker(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, "Invalid symbol.", http.StatusBadRequest)
		return
	}

	removed, err := s.store.RemoveWatchlistEntry(r.Context(), ticker)
	if err != nil {
		slog.Error("watchlist remove failed", "symbol", ticker, "err", err)
		writeError(w, "Failed to remove from watchlist", http.StatusInternalServerError)
		return
	}
	if !removed {
		writeError(w, "Not in watchlist", http.StatusNotFound)
		return
	}

	slog.Info("watchlist entry removed", "symbol", ticker)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"symbol":  ticker,
	})
}

// RemoveLegacy handles POST /api/removefav with the symbol in the body,
// as older frontend builds send it.
func (s *Service) RemoveLegacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ticker, err := symbol.ParseTicker(req.Symbol)
	if err != nil {
		writeError(w, "Invalid symbol.", http.StatusBadRequest)
		return
	}

	removed, err := s.store.RemoveWatchlistEntry(r.Context(), ticker)
	if err != nil {
		slog.Error("watchlist remove failed", "symbol", ticker, "err", err)
		writeError(w, "Failed to remove from watchlist", http.StatusInternalServerError)
		return
	}
	if !removed {
		writeError(w, "Not in watchlist", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"symbol":  ticker,
	})
}

// StarRequest is the JSON body for the star probe.
type StarRequest struct {
	Symbol    string `json:"symbol"`
	StockName string `json:"stockName"`
}

// Star handles POST /api/v1/watchlist/star.
// Reports whether the given symbol or stock name is currently watched, so
// the UI can render the star filled or hollow.
func (s *Service) Star(w http.ResponseWriter, r *http.Request) {
	var req StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	key := req.Symbol
	if key != "" {
		// Entries are stored with normalized tickers.
		if ticker, err := symbol.ParseTicker(key); err == nil {
			key = ticker
		}
	} else {
		key = req.StockName
	}
	if key == "" {
		writeError(w, "Invalid symbol.", http.StatusBadRequest)
		return
	}

	starred, err := s.store.HasWatchlistEntry(r.Context(), key)
	if err != nil {
		slog.Error("watchlist probe failed", "key", key, "err", err)
		writeError(w, "Failed to check watchlist", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"starstate": starred})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
