package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// Klines fetches up to limit bars for the configured category and interval,
// ordered oldest first with the current (still forming) bar last.
func (c *Client) Klines(ctx context.Context, symbol string, limit int) ([]types.OHLCV, error) {
	if symbol == "" {
		return nil, fmt.Errorf("bybit: klines: symbol is required")
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": c.interval,
		"limit":    limit,
	}

	var result struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	err := retry(ctx, func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return fmt.Errorf("bybit: klines %s: %w", symbol, err)
		}
		return decodeResult("klines", resp, &result)
	})
	if err != nil {
		return nil, err
	}

	// The API returns newest first: [startTime, open, high, low, close,
	// volume, turnover]. Reverse while parsing so callers get oldest first.
	bars := make([]types.OHLCV, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		item := result.List[i]
		if len(item) < 7 {
			continue
		}
		bars = append(bars, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("bybit: klines %s: empty response", symbol)
	}
	return bars, nil
}

// Ticker fetches the latest quote for a symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	if symbol == "" {
		return nil, fmt.Errorf("bybit: ticker: symbol is required")
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var result struct {
		Category string `json:"category"`
		List     []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	}
	err := retry(ctx, func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return fmt.Errorf("bybit: ticker %s: %w", symbol, err)
		}
		return decodeResult("ticker", resp, &result)
	})
	if err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("bybit: ticker %s: no data", symbol)
	}

	entry := result.List[0]
	return &types.Ticker{
		Symbol:    entry.Symbol,
		Price:     parseFloat64(entry.LastPrice),
		Volume:    parseFloat64(entry.Volume24h),
		Timestamp: time.Now().UTC(),
	}, nil
}

func parseFloat64(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
