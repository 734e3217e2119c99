package eastmoney

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
)

// klineResponse is the push2his kline envelope. Each kline is a CSV row.
type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// DailyBars returns up to limit forward-adjusted daily candles, oldest
// first.
func (c *Client) DailyBars(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	url := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s&klt=101&fqt=1&lmt=%d&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56,f57",
		c.pushBaseURL, SecID(symbol), limit,
	)

	var parsed klineResponse
	if err := c.fetchJSON(ctx, url, &parsed); err != nil {
		return nil, fmt.Errorf("eastmoney kline %s: %w", symbol, err)
	}
	if parsed.Data == nil || len(parsed.Data.Klines) == 0 {
		return nil, fmt.Errorf("eastmoney kline: no bars for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	candles := make([]contracts.Candle, 0, len(parsed.Data.Klines))
	for _, line := range parsed.Data.Klines {
		// date,open,close,high,low,volume,amount
		parts := strings.Split(line, ",")
		if len(parts) < 7 {
			continue
		}
		date, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			continue
		}
		candles = append(candles, contracts.Candle{
			Date:   date,
			Open:   parseFloat(parts[1]),
			Close:  parseFloat(parts[2]),
			High:   parseFloat(parts[3]),
			Low:    parseFloat(parts[4]),
			Volume: parseFloat(parts[5]) * 100, // volume is in lots
			Amount: parseFloat(parts[6]),
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(candles),
	}).Debug("Fetched daily bars")
	return candles, nil
}

// FundFlow returns recent daily main-capital flow points, oldest first.
func (c *Client) FundFlow(ctx context.Context, symbol string, limit int) ([]contracts.FlowPoint, error) {
	url := fmt.Sprintf(
		"%s/api/qt/stock/fflow/daykline/get?secid=%s&lmt=%d&fields1=f1,f2,f3,f7&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61,f62,f63,f64,f65",
		c.pushBaseURL, SecID(symbol), limit,
	)

	var parsed klineResponse
	if err := c.fetchJSON(ctx, url, &parsed); err != nil {
		return nil, fmt.Errorf("eastmoney fflow %s: %w", symbol, err)
	}
	if parsed.Data == nil || len(parsed.Data.Klines) == 0 {
		return nil, fmt.Errorf("eastmoney fflow: no data for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	points := make([]contracts.FlowPoint, 0, len(parsed.Data.Klines))
	for _, line := range parsed.Data.Klines {
		// date,main_net,small_net,mid_net,big_net,huge_net,main_net_pct,...
		parts := strings.Split(line, ",")
		if len(parts) < 7 {
			continue
		}
		date, err := time.Parse("2006-01-02", parts[0])
		if err != nil {
			continue
		}
		points = append(points, contracts.FlowPoint{
			Date:         date,
			NetInflow:    parseFloat(parts[1]),
			NetInflowPct: parseFloat(parts[6]),
		})
	}
	return points, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
