package eastmoney

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/quantumalpha/backend/internal/contracts"
)

// Profile scrapes the symbol's quote page for name and industry. Used as
// a fallback when the JSON quote omits them.
func (c *Client) Profile(ctx context.Context, symbol string) (*contracts.CompanyProfile, error) {
	prefix := "sz"
	if strings.HasPrefix(symbol, "6") {
		prefix = "sh"
	}
	url := fmt.Sprintf("%s/%s%s.html", c.baseURL, prefix, symbol)

	resp, err := c.httpClient.GetWithHeaders(ctx, url, browserHeaders)
	if err != nil {
		return nil, fmt.Errorf("eastmoney profile %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney profile %s: unexpected status code: %d", symbol, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("eastmoney profile %s: parse HTML failed: %w", symbol, err)
	}

	profile := &contracts.CompanyProfile{Symbol: symbol}

	// Page title reads "名称(代码) 股票价格_行情_走势图—东方财富网".
	if title := doc.Find("title").First().Text(); title != "" {
		if idx := strings.Index(title, "("); idx > 0 {
			profile.Name = strings.TrimSpace(title[:idx])
		}
	}

	// Industry sits in the sidebar's board-link list.
	doc.Find("a[href*='/center/boardlist']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			profile.Industry = text
			return false
		}
		return true
	})

	if profile.Name == "" {
		return nil, fmt.Errorf("eastmoney profile %s: name not found in page", symbol)
	}
	return profile, nil
}
