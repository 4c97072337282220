package marketdata_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockplay/trade-engine/internal/marketdata"
	"github.com/stockplay/trade-engine/internal/model"
)

// newUpstream fakes the provider with canned responses per path.
func newUpstream(t *testing.T, responses map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			t.Errorf("request to %s missing token", r.URL.Path)
		}
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
}

func TestGetQuote(t *testing.T) {
	upstream := newUpstream(t, map[string]interface{}{
		"/quote": map[string]interface{}{
			"c": 189.5, "d": 1.2, "dp": 0.64,
			"h": 190.1, "l": 187.3, "o": 188.0, "pc": 188.3,
			"t": 1724800000,
		},
	})
	defer upstream.Close()

	c := marketdata.NewClient("test-key", marketdata.WithBaseURL(upstream.URL))

	quote, err := c.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %q", quote.Symbol)
	}
	if quote.CurrentPrice != 189.5 {
		t.Errorf("expected price 189.5, got %v", quote.CurrentPrice)
	}
	if quote.PreviousClose != 188.3 {
		t.Errorf("expected previous close 188.3, got %v", quote.PreviousClose)
	}
}

func TestGetQuote_StringNumbers(t *testing.T) {
	// Some provider fields arrive as strings; the client must cope.
	upstream := newUpstream(t, map[string]interface{}{
		"/quote": map[string]interface{}{
			"c": "189.5", "d": "N/A", "dp": 0.64,
		},
	})
	defer upstream.Close()

	c := marketdata.NewClient("test-key", marketdata.WithBaseURL(upstream.URL))

	quote, err := c.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.CurrentPrice != 189.5 {
		t.Errorf("string price should parse, got %v", quote.CurrentPrice)
	}
	if quote.Change != 0 {
		t.Errorf("N/A should decode to zero, got %v", quote.Change)
	}
}

func TestSearch(t *testing.T) {
	upstream := newUpstream(t, map[string]interface{}{
		"/search": map[string]interface{}{
			"count": 1,
			"result": []map[string]string{
				{"description": "APPLE INC", "displaySymbol": "AAPL", "symbol": "AAPL", "type": "Common Stock"},
			},
		},
	})
	defer upstream.Close()

	c := marketdata.NewClient("test-key", marketdata.WithBaseURL(upstream.URL))

	resp, err := c.Search(context.Background(), "apple")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Count != 1 || len(resp.Result) != 1 {
		t.Fatalf("unexpected search response: %+v", resp)
	}
	if resp.Result[0].Symbol != "AAPL" {
		t.Errorf("expected AAPL, got %q", resp.Result[0].Symbol)
	}
}

func TestGetPeers(t *testing.T) {
	upstream := newUpstream(t, map[string]interface{}{
		"/stock/peers": []string{"AAPL", "MSFT", "GOOGL"},
	})
	defer upstream.Close()

	c := marketdata.NewClient("test-key", marketdata.WithBaseURL(upstream.URL))

	peers, err := c.GetPeers(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetPeers failed: %v", err)
	}
	if len(peers) != 3 {
		t.Errorf("expected 3 peers, got %d", len(peers))
	}
}

func TestUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"API limit reached"}`))
	}))
	defer upstream.Close()

	c := marketdata.NewClient("test-key", marketdata.WithBaseURL(upstream.URL))

	_, err := c.GetQuote(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error from upstream 429")
	}
	var apiErr *marketdata.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", apiErr.StatusCode)
	}
}

// fixedSource returns a canned quote and counts calls.
type fixedSource struct {
	quote *model.Quote
	calls int
}

func (f *fixedSource) GetQuote(ctx context.Context, sym string) (*model.Quote, error) {
	f.calls++
	if f.quote == nil {
		return nil, errors.New("no quote")
	}
	q := *f.quote
	q.Symbol = sym
	return &q, nil
}

func TestHandlers_Quote(t *testing.T) {
	src := &fixedSource{quote: &model.Quote{CurrentPrice: 100.5}}
	h := marketdata.NewHandlers(nil, src, nil)

	req := httptest.NewRequest("GET", "/api/v1/quote?symbol=AAPL", nil)
	w := httptest.NewRecorder()
	h.Quote(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var quote model.Quote
	json.Unmarshal(w.Body.Bytes(), &quote)
	if quote.CurrentPrice != 100.5 {
		t.Errorf("expected price 100.5, got %v", quote.CurrentPrice)
	}
}

func TestHandlers_QuoteInvalidSymbol(t *testing.T) {
	h := marketdata.NewHandlers(nil, &fixedSource{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/quote?symbol=not-a-ticker!", nil)
	w := httptest.NewRecorder()
	h.Quote(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid symbol, got %d", w.Code)
	}
}

func TestHandlers_Unconfigured(t *testing.T) {
	h := marketdata.NewHandlers(nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/v1/quote?symbol=AAPL", nil)
	w := httptest.NewRecorder()
	h.Quote(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when provider missing, got %d", w.Code)
	}
}

func TestHandlers_SearchRequiresQuery(t *testing.T) {
	c := marketdata.NewClient("test-key")
	h := marketdata.NewHandlers(c, c, nil)

	req := httptest.NewRequest("GET", "/api/v1/stocks", nil)
	w := httptest.NewRecorder()
	h.Search(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing query, got %d", w.Code)
	}
}
