package eastmoney

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
)

// quoteResponse is the push2 stock/get envelope. Prices and ratios come
// back scaled by 100.
type quoteResponse struct {
	Data *struct {
		Price        float64 `json:"f43"`  // latest price x100
		Code         string  `json:"f57"`  // symbol
		Name         string  `json:"f58"`  // name
		VolumeRatio  float64 `json:"f50"`  // x100
		PETTM        float64 `json:"f164"` // x100
		PB           float64 `json:"f167"` // x100
		TurnoverRate float64 `json:"f168"` // x100
		ChangePct    float64 `json:"f170"` // x100
		Industry     string  `json:"f127"`
	} `json:"data"`
}

// Quote returns the latest quote fields for a symbol.
// ⭐ SSOT: Eastmoney realtime quote calls happen only here
func (c *Client) Quote(ctx context.Context, symbol string) (*contracts.MarketSnapshot, error) {
	url := fmt.Sprintf(
		"%s/api/qt/stock/get?secid=%s&fields=f43,f50,f57,f58,f127,f164,f167,f168,f170",
		c.pushBaseURL, SecID(symbol),
	)

	var parsed quoteResponse
	if err := c.fetchJSON(ctx, url, &parsed); err != nil {
		return nil, fmt.Errorf("eastmoney quote %s: %w", symbol, err)
	}
	if parsed.Data == nil {
		return nil, fmt.Errorf("eastmoney quote: no data for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	d := parsed.Data
	snap := &contracts.MarketSnapshot{
		Symbol:       symbol,
		Name:         d.Name,
		Industry:     d.Industry,
		Price:        d.Price / 100,
		ChangePct:    d.ChangePct / 100,
		VolumeRatio:  d.VolumeRatio / 100,
		TurnoverRate: d.TurnoverRate / 100,
		PETTM:        d.PETTM / 100,
		PB:           d.PB / 100,
		FetchedAt:    time.Now(),
	}

	return snap, nil
}
