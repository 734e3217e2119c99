package tushare

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
)

// Quote returns the latest quote and valuation fields for a symbol.
// Tushare has no tick endpoint on the basic plan, so the latest
// daily_basic row stands in for the quote.
func (c *Client) Quote(ctx context.Context, symbol string) (*contracts.MarketSnapshot, error) {
	tsCode := TsCode(symbol)

	rows, err := c.call(ctx, "daily_basic",
		map[string]interface{}{"ts_code": tsCode},
		"ts_code,trade_date,close,turnover_rate,volume_ratio,pe_ttm,pb")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tushare daily_basic: no data for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}
	row := rows[0] // newest first

	snap := &contracts.MarketSnapshot{
		Symbol:       symbol,
		Price:        rowFloat(row, "close"),
		TurnoverRate: rowFloat(row, "turnover_rate"),
		VolumeRatio:  rowFloat(row, "volume_ratio"),
		PETTM:        rowFloat(row, "pe_ttm"),
		PB:           rowFloat(row, "pb"),
		FetchedAt:    time.Now(),
	}

	// Name and industry come from stock_basic; a miss here is not fatal.
	basics, err := c.call(ctx, "stock_basic",
		map[string]interface{}{"ts_code": tsCode},
		"ts_code,name,industry")
	if err == nil && len(basics) > 0 {
		snap.Name = rowString(basics[0], "name")
		snap.Industry = rowString(basics[0], "industry")
	}

	return snap, nil
}

// DailyBars returns up to limit daily candles, oldest first.
func (c *Client) DailyBars(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	rows, err := c.call(ctx, "daily",
		map[string]interface{}{"ts_code": TsCode(symbol), "limit": limit},
		"ts_code,trade_date,open,high,low,close,vol,amount")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tushare daily: no bars for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	// Tushare returns newest first; reverse to oldest first.
	candles := make([]contracts.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		date, err := time.Parse("20060102", rowString(row, "trade_date"))
		if err != nil {
			continue
		}
		candles = append(candles, contracts.Candle{
			Date:   date,
			Open:   rowFloat(row, "open"),
			High:   rowFloat(row, "high"),
			Low:    rowFloat(row, "low"),
			Close:  rowFloat(row, "close"),
			Volume: rowFloat(row, "vol") * 100,       // vol is in lots
			Amount: rowFloat(row, "amount") * 1000,   // amount is in thousand CNY
		})
	}
	return candles, nil
}

// FundFlow returns recent daily capital flow points, oldest first.
func (c *Client) FundFlow(ctx context.Context, symbol string, limit int) ([]contracts.FlowPoint, error) {
	rows, err := c.call(ctx, "moneyflow",
		map[string]interface{}{"ts_code": TsCode(symbol), "limit": limit},
		"ts_code,trade_date,net_mf_amount,net_mf_vol")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tushare moneyflow: no data for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	points := make([]contracts.FlowPoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		date, err := time.Parse("20060102", rowString(row, "trade_date"))
		if err != nil {
			continue
		}
		points = append(points, contracts.FlowPoint{
			Date:      date,
			NetInflow: rowFloat(row, "net_mf_amount") * 10000, // in 万元
		})
	}
	return points, nil
}

// News returns up to limit recent announcements from anns_d, newest first.
func (c *Client) News(ctx context.Context, symbol string, limit int) ([]contracts.NewsItem, error) {
	rows, err := c.call(ctx, "anns_d",
		map[string]interface{}{"ts_code": TsCode(symbol), "limit": limit},
		"ts_code,ann_date,title")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tushare anns_d: no data for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	items := make([]contracts.NewsItem, 0, len(rows))
	for _, row := range rows { // newest first
		date, err := time.Parse("20060102", rowString(row, "ann_date"))
		if err != nil {
			continue
		}
		items = append(items, contracts.NewsItem{
			Date:   date,
			Title:  rowString(row, "title"),
			Source: "tushare",
		})
	}
	return items, nil
}
