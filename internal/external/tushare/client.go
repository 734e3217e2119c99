package tushare

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

// Client handles communication with the Tushare Pro API.
// ⭐ SSOT: Tushare API calls happen only in this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	token      string
}

// NewClient creates a new Tushare client
func NewClient(httpClient *httputil.Client, cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Tushare.BaseURL,
		token:      cfg.Tushare.Token,
	}
}

// Name identifies this provider in merge decisions.
func (c *Client) Name() string {
	return "tushare"
}

// apiRequest is the Tushare Pro request envelope.
type apiRequest struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields"`
}

// apiResponse is the Tushare Pro response envelope. Rows come back as a
// column-name list plus positional item arrays.
type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string        `json:"fields"`
		Items  [][]interface{} `json:"items"`
	} `json:"data"`
}

// call executes one Tushare API and returns rows keyed by field name.
func (c *Client) call(ctx context.Context, apiName string, params map[string]interface{}, fields string) ([]map[string]interface{}, error) {
	req := apiRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL, req)
	if err != nil {
		return nil, fmt.Errorf("tushare %s request failed: %w", apiName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tushare %s: unexpected status code: %d", apiName, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tushare %s: read response body failed: %w", apiName, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("tushare %s: parse response failed: %w", apiName, err)
	}
	if parsed.Code != 0 {
		return nil, fmt.Errorf("tushare %s: api error %d: %s", apiName, parsed.Code, parsed.Msg)
	}

	rows := make([]map[string]interface{}, 0, len(parsed.Data.Items))
	for _, item := range parsed.Data.Items {
		row := make(map[string]interface{}, len(parsed.Data.Fields))
		for i, f := range parsed.Data.Fields {
			if i < len(item) {
				row[f] = item[i]
			}
		}
		rows = append(rows, row)
	}

	c.logger.WithFields(map[string]interface{}{
		"api":   apiName,
		"count": len(rows),
	}).Debug("Tushare call completed")
	return rows, nil
}

// TsCode converts a bare A-share symbol to Tushare's suffixed form.
// 600519 → 600519.SH, 000001 → 000001.SZ.
func TsCode(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	if strings.HasPrefix(symbol, "6") {
		return symbol + ".SH"
	}
	if strings.HasPrefix(symbol, "4") || strings.HasPrefix(symbol, "8") {
		return symbol + ".BJ"
	}
	return symbol + ".SZ"
}

// rowString reads a string field from a row.
func rowString(row map[string]interface{}, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

// rowFloat reads a numeric field from a row. Tushare nulls come through as
// nil and read as zero.
func rowFloat(row map[string]interface{}, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
