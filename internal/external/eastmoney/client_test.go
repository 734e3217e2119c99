package eastmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Eastmoney.BaseURL = srv.URL
	cfg.Eastmoney.PushBaseURL = srv.URL
	cfg.Eastmoney.NoticeBaseURL = srv.URL

	hc := httputil.New(cfg, logger.NewNop()).DisableRetry()
	return NewClient(hc, cfg, logger.NewNop())
}

func TestSecID(t *testing.T) {
	assert.Equal(t, "1.600519", SecID("600519"))
	assert.Equal(t, "0.000001", SecID("000001"))
	assert.Equal(t, "0.300750", SecID("300750"))
}

func TestQuoteUnscalesFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"f43":150000,"f50":120,"f57":"600519","f58":"贵州茅台","f127":"白酒","f164":2860,"f167":810,"f168":35,"f170":152}}`)
	})

	snap, err := client.Quote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", snap.Name)
	assert.Equal(t, "白酒", snap.Industry)
	assert.InDelta(t, 1500.0, snap.Price, 1e-9)
	assert.InDelta(t, 28.6, snap.PETTM, 1e-9)
	assert.InDelta(t, 1.2, snap.VolumeRatio, 1e-9)
	assert.InDelta(t, 1.52, snap.ChangePct, 1e-9)
}

func TestQuoteNullDataIsSourceUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	})

	_, err := client.Quote(context.Background(), "600519")
	require.Error(t, err)
}

func TestDailyBarsParsesKlines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"code":"600519","name":"贵州茅台","klines":[
			"2025-01-02,1480.0,1490.0,1495.0,1470.0,25000,3700000000",
			"2025-01-03,1490.0,1500.0,1510.0,1480.0,30000,4500000000"
		]}}`)
	})

	bars, err := client.DailyBars(context.Background(), "600519", 120)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.Equal(t, 1490.0, bars[0].Close)
	assert.Equal(t, 1510.0, bars[1].High)
	assert.Equal(t, 2500000.0, bars[0].Volume) // lots converted to shares
}

func TestFundFlowParsesMainNet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"code":"600519","name":"贵州茅台","klines":[
			"2025-01-02,12000000,-1000000,2000000,5000000,7000000,3.5",
			"2025-01-03,-8000000,500000,-1500000,-3000000,-5000000,-2.1"
		]}}`)
	})

	points, err := client.FundFlow(context.Background(), "600519", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 12000000.0, points[0].NetInflow)
	assert.InDelta(t, 3.5, points[0].NetInflowPct, 1e-9)
	assert.Equal(t, -8000000.0, points[1].NetInflow)
}

func TestProfileScrapesNameAndIndustry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "sh600519.html")
		fmt.Fprint(w, `<html><head><title>贵州茅台(600519) 股票价格_行情_走势图—东方财富网</title></head>
			<body><a href="/center/boardlist.html#boards-BK0477">白酒</a></body></html>`)
	})

	profile, err := client.Profile(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", profile.Name)
	assert.Equal(t, "白酒", profile.Industry)
}

func TestNewsParsesAnnouncements(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "stock_list=600519")
		fmt.Fprint(w, `{"data":{"list":[
			{"title":"关于回购公司股份的公告","notice_date":"2026-08-28 00:00:00","columns":[{"column_name":"回购"}]},
			{"title":"2026年半年度报告","notice_date":"2026-08-20 00:00:00","columns":[]}
		]}}`)
	})

	items, err := client.News(context.Background(), "600519", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "关于回购公司股份的公告", items[0].Title)
	assert.Equal(t, "回购", items[0].Source)
	assert.Equal(t, 28, items[0].Date.Day())
	assert.Empty(t, items[1].Source)
}
