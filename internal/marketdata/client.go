// Package marketdata is the gateway to upstream market-data providers:
// symbol search, quotes, company profiles, news, and sentiment from
// Finnhub, plus historical aggregates from Polygon. Quotes can be served
// through a Redis read-through cache.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockplay/trade-engine/internal/model"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://finnhub.io/api/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second, below Finnhub's free-tier cap
)

// Client is a rate-limited Finnhub API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an upstream provider error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("finnhub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("finnhub API request", "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// SearchResult is one symbol match from the search endpoint.
type SearchResult struct {
	Description   string `json:"description"`
	DisplaySymbol string `json:"displaySymbol"`
	Symbol        string `json:"symbol"`
	Type          string `json:"type"`
}

// SearchResponse wraps symbol search matches.
type SearchResponse struct {
	Count  int            `json:"count"`
	Result []SearchResult `json:"result"`
}

// Search looks up symbols matching the query string.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)

	var resp SearchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// quoteResponse is the raw provider shape; some fields arrive as strings.
type quoteResponse struct {
	CurrentPrice  flexFloat64 `json:"c"`
	Change        flexFloat64 `json:"d"`
	PercentChange flexFloat64 `json:"dp"`
	High          flexFloat64 `json:"h"`
	Low           flexFloat64 `json:"l"`
	Open          flexFloat64 `json:"o"`
	PreviousClose flexFloat64 `json:"pc"`
	Timestamp     int64       `json:"t"`
}

// GetQuote retrieves the latest price snapshot for a symbol.
func (c *Client) GetQuote(ctx context.Context, sym string) (*model.Quote, error) {
	params := url.Values{}
	params.Set("symbol", sym)

	var raw quoteResponse
	if err := c.get(ctx, "/quote", params, &raw); err != nil {
		return nil, err
	}

	return &model.Quote{
		Symbol:        sym,
		CurrentPrice:  float64(raw.CurrentPrice),
		Change:        float64(raw.Change),
		PercentChange: float64(raw.PercentChange),
		High:          float64(raw.High),
		Low:           float64(raw.Low),
		Open:          float64(raw.Open),
		PreviousClose: float64(raw.PreviousClose),
		Timestamp:     raw.Timestamp,
	}, nil
}

// CompanyProfile is the provider's company summary.
type CompanyProfile struct {
	Country              string      `json:"country"`
	Currency             string      `json:"currency"`
	Exchange             string      `json:"exchange"`
	IPO                  string      `json:"ipo"`
	MarketCapitalization flexFloat64 `json:"marketCapitalization"`
	Name                 string      `json:"name"`
	Phone                string      `json:"phone"`
	SharesOutstanding    flexFloat64 `json:"shareOutstanding"`
	Ticker               string      `json:"ticker"`
	WebURL               string      `json:"weburl"`
	Logo                 string      `json:"logo"`
	Industry             string      `json:"finnhubIndustry"`
}

// GetCompanyProfile retrieves the company profile for a symbol.
func (c *Client) GetCompanyProfile(ctx context.Context, sym string) (*CompanyProfile, error) {
	params := url.Values{}
	params.Set("symbol", sym)

	var profile CompanyProfile
	if err := c.get(ctx, "/stock/profile2", params, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetPeers retrieves symbols in the same industry.
func (c *Client) GetPeers(ctx context.Context, sym string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", sym)

	var peers []string
	if err := c.get(ctx, "/stock/peers", params, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// NewsArticle is one company news item.
type NewsArticle struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// GetCompanyNews retrieves news for a symbol over the trailing week.
func (c *Client) GetCompanyNews(ctx context.Context, sym string) ([]NewsArticle, error) {
	now := time.Now()
	params := url.Values{}
	params.Set("symbol", sym)
	params.Set("from", now.AddDate(0, 0, -7).Format("2006-01-02"))
	params.Set("to", now.Format("2006-01-02"))

	var articles []NewsArticle
	if err := c.get(ctx, "/company-news", params, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// GetMarketNews retrieves general market headlines.
func (c *Client) GetMarketNews(ctx context.Context) ([]NewsArticle, error) {
	params := url.Values{}
	params.Set("category", "general")

	var articles []NewsArticle
	if err := c.get(ctx, "/news", params, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// SentimentEntry is one month of insider sentiment.
type SentimentEntry struct {
	Symbol string      `json:"symbol"`
	Year   int         `json:"year"`
	Month  int         `json:"month"`
	Change flexFloat64 `json:"change"`
	MSPR   flexFloat64 `json:"mspr"`
}

// SentimentResponse wraps insider sentiment data.
type SentimentResponse struct {
	Data   []SentimentEntry `json:"data"`
	Symbol string           `json:"symbol"`
}

// GetInsiderSentiment retrieves insider sentiment for a symbol.
func (c *Client) GetInsiderSentiment(ctx context.Context, sym string) (*SentimentResponse, error) {
	params := url.Values{}
	params.Set("symbol", sym)

	var resp SentimentResponse
	if err := c.get(ctx, "/stock/insider-sentiment", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecommendationTrend is one month of analyst recommendations.
type RecommendationTrend struct {
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Period     string `json:"period"`
	Sell       int    `json:"sell"`
	StrongBuy  int    `json:"strongBuy"`
	StrongSell int    `json:"strongSell"`
	Symbol     string `json:"symbol"`
}

// GetRecommendationTrends retrieves analyst recommendation history.
func (c *Client) GetRecommendationTrends(ctx context.Context, sym string) ([]RecommendationTrend, error) {
	params := url.Values{}
	params.Set("symbol", sym)

	var trends []RecommendationTrend
	if err := c.get(ctx, "/stock/recommendation", params, &trends); err != nil {
		return nil, err
	}
	return trends, nil
}

// EarningsReport is one quarterly earnings surprise.
type EarningsReport struct {
	Actual   flexFloat64 `json:"actual"`
	Estimate flexFloat64 `json:"estimate"`
	Period   string      `json:"period"`
	Quarter  int         `json:"quarter"`
	Surprise flexFloat64 `json:"surprise"`
	Symbol   string      `json:"symbol"`
	Year     int         `json:"year"`
}

// GetEarnings retrieves quarterly earnings surprises.
func (c *Client) GetEarnings(ctx context.Context, sym string) ([]EarningsReport, error) {
	params := url.Values{}
	params.Set("symbol", sym)

	var reports []EarningsReport
	if err := c.get(ctx, "/stock/earnings", params, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}
