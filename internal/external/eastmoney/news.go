package eastmoney

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
)

// annResponse is the np-anotice announcement envelope.
type annResponse struct {
	Data *struct {
		List []struct {
			Title      string `json:"title"`
			NoticeDate string `json:"notice_date"`
			Columns    []struct {
				ColumnName string `json:"column_name"`
			} `json:"columns"`
		} `json:"list"`
	} `json:"data"`
}

// News returns up to limit recent company announcements, newest first.
func (c *Client) News(ctx context.Context, symbol string, limit int) ([]contracts.NewsItem, error) {
	url := fmt.Sprintf(
		"%s/api/security/ann?sr=-1&page_size=%d&page_index=1&ann_type=A&stock_list=%s",
		c.noticeBaseURL, limit, symbol,
	)

	var parsed annResponse
	if err := c.fetchJSON(ctx, url, &parsed); err != nil {
		return nil, fmt.Errorf("eastmoney news %s: %w", symbol, err)
	}
	if parsed.Data == nil {
		return nil, fmt.Errorf("eastmoney news: no data for %s: %w", symbol, contracts.ErrSourceUnavailable)
	}

	items := make([]contracts.NewsItem, 0, len(parsed.Data.List))
	for _, ann := range parsed.Data.List {
		date, err := time.Parse("2006-01-02 15:04:05", ann.NoticeDate)
		if err != nil {
			continue
		}
		source := ""
		if len(ann.Columns) > 0 {
			source = ann.Columns[0].ColumnName
		}
		items = append(items, contracts.NewsItem{
			Date:   date,
			Title:  ann.Title,
			Source: source,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(items),
	}).Debug("Eastmoney announcements fetched")
	return items, nil
}
