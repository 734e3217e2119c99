package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
)

// Client handles communication with Eastmoney's free quote endpoints.
// ⭐ SSOT: Eastmoney calls happen only in this client
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	baseURL       string // quote.eastmoney.com, HTML pages
	pushBaseURL   string // push2/push2his JSON endpoints
	noticeBaseURL string // np-anotice announcement JSON endpoint
}

// NewClient creates a new Eastmoney client
func NewClient(httpClient *httputil.Client, cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient:    httpClient,
		logger:        log,
		baseURL:       cfg.Eastmoney.BaseURL,
		pushBaseURL:   cfg.Eastmoney.PushBaseURL,
		noticeBaseURL: cfg.Eastmoney.NoticeBaseURL,
	}
}

// Name identifies this provider in merge decisions.
func (c *Client) Name() string {
	return "eastmoney"
}

// SecID converts a bare A-share symbol to Eastmoney's market-prefixed id.
// Shanghai listings get prefix 1, everything else 0.
func SecID(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "1." + symbol
	}
	return "0." + symbol
}

var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	"Referer":    "https://quote.eastmoney.com/",
}

// fetchJSON fetches and decodes a push2 endpoint into dest.
func (c *Client) fetchJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := c.httpClient.GetWithHeaders(ctx, url, browserHeaders)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body failed: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parse response failed: %w", err)
	}
	return nil
}
