package watchlist_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/ledger"
	"github.com/stockplay/trade-engine/internal/model"
	"github.com/stockplay/trade-engine/internal/store"
	"github.com/stockplay/trade-engine/internal/watchlist"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	ms := store.NewMemoryStore(ledger.DefaultInitialBalance)
	svc := watchlist.NewService(ms)

	r := chi.NewRouter()
	r.Get("/api/v1/watchlist", svc.List)
	r.Post("/api/v1/watchlist", svc.Add)
	r.Delete("/api/v1/watchlist/{symbol}", svc.Remove)
	r.Post("/api/v1/watchlist/star", svc.Star)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAddAndList(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/watchlist", watchlist.AddRequest{
		Symbol:    "aapl",
		StockName: "Apple Inc",
		Price:     decimal.NewFromFloat(189.5),
		Change:    decimal.NewFromFloat(1.2),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var entry model.WatchlistEntry
	json.Unmarshal(w.Body.Bytes(), &entry)
	if entry.Symbol != "AAPL" {
		t.Errorf("symbol should be upcased, got %q", entry.Symbol)
	}

	w = doJSON(t, router, "GET", "/api/v1/watchlist", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []model.WatchlistEntry
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].Symbol != "AAPL" {
		t.Errorf("expected one AAPL entry, got %+v", entries)
	}
}

func TestAdd_Idempotent(t *testing.T) {
	router := newTestRouter(t)

	req := watchlist.AddRequest{Symbol: "TSLA", StockName: "Tesla Inc"}
	doJSON(t, router, "POST", "/api/v1/watchlist", req)

	w := doJSON(t, router, "POST", "/api/v1/watchlist", req)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate add should return 200, got %d", w.Code)
	}
	var resp struct {
		Message string `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Message != "Already in watchlist" {
		t.Errorf("expected duplicate message, got %q", resp.Message)
	}

	w = doJSON(t, router, "GET", "/api/v1/watchlist", nil)
	var entries []model.WatchlistEntry
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 1 {
		t.Errorf("expected a single entry, got %d", len(entries))
	}
}

func TestAdd_InvalidSymbol(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, "POST", "/api/v1/watchlist", watchlist.AddRequest{Symbol: "123456789"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid symbol, got %d", w.Code)
	}
}

func TestRemove(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/watchlist", watchlist.AddRequest{Symbol: "AAPL", StockName: "Apple Inc"})

	w := doJSON(t, router, "DELETE", "/api/v1/watchlist/AAPL", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Second delete finds nothing.
	w = doJSON(t, router, "DELETE", "/api/v1/watchlist/AAPL", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for absent symbol, got %d", w.Code)
	}
}

func TestStar(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, "POST", "/api/v1/watchlist", watchlist.AddRequest{Symbol: "AAPL", StockName: "Apple Inc"})

	cases := []struct {
		name string
		req  watchlist.StarRequest
		want bool
	}{
		{"by symbol", watchlist.StarRequest{Symbol: "AAPL"}, true},
		{"by stock name", watchlist.StarRequest{StockName: "Apple Inc"}, true},
		{"unknown", watchlist.StarRequest{Symbol: "MSFT"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, "POST", "/api/v1/watchlist/star", tc.req)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			var resp map[string]bool
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["starstate"] != tc.want {
				t.Errorf("expected starstate=%v, got %v", tc.want, resp["starstate"])
			}
		})
	}
}
