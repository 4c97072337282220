package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/stockplay/trade-engine/internal/model"
)

// ChartSeries is the closing-price series consumed by the UI line chart.
type ChartSeries struct {
	TValues []int64   `json:"tValues"`
	CValues []float64 `json:"cValues"`
}

// AggsClient retrieves daily aggregate bars from Polygon.
type AggsClient struct {
	client *polygon.Client
}

// NewAggsClient creates a Polygon aggregates client.
func NewAggsClient(apiKey string) *AggsClient {
	return &AggsClient{client: polygon.New(apiKey)}
}

// listDailyAggs pulls one bar per trading day over [from, to].
func (a *AggsClient) listDailyAggs(ctx context.Context, ticker string, from, to time.Time) ([]models.Agg, error) {
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(50000)

	iter := a.client.ListAggs(ctx, params)

	var aggs []models.Agg
	for iter.Next() {
		aggs = append(aggs, iter.Item())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return aggs, nil
}

// GetChartSeries returns closing prices over the trailing six months in the
// parallel-array shape the chart component expects.
func (a *AggsClient) GetChartSeries(ctx context.Context, ticker string) (*ChartSeries, error) {
	now := time.Now()
	aggs, err := a.listDailyAggs(ctx, ticker, now.AddDate(0, -6, 0), now)
	if err != nil {
		return nil, err
	}

	series := &ChartSeries{
		TValues: make([]int64, 0, len(aggs)),
		CValues: make([]float64, 0, len(aggs)),
	}
	for _, agg := range aggs {
		series.TValues = append(series.TValues, time.Time(agg.Timestamp).UnixMilli())
		series.CValues = append(series.CValues, agg.Close)
	}
	return series, nil
}

// GetHistoricalData returns two years of daily OHLCV bars.
func (a *AggsClient) GetHistoricalData(ctx context.Context, ticker string) ([]model.Candle, error) {
	now := time.Now()
	aggs, err := a.listDailyAggs(ctx, ticker, now.AddDate(-2, 0, 0), now)
	if err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(aggs))
	for _, agg := range aggs {
		candles = append(candles, model.Candle{
			Timestamp: time.Time(agg.Timestamp).UnixMilli(),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
		})
	}
	return candles, nil
}
