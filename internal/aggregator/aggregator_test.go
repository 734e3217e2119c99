package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// fakeProvider scripts per-section outcomes for tests.
type fakeProvider struct {
	name     string
	omitName bool
	quoteErr error
	barsErr  error
	flowErr  error
	newsErr  error
	delay    time.Duration
}

func (f *fakeProvider) Name() string { return f.name }

// wait simulates a slow upstream, honoring the per-source timeout.
func (f *fakeProvider) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (*contracts.MarketSnapshot, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	name := "stock-" + symbol
	if f.omitName {
		name = ""
	}
	return &contracts.MarketSnapshot{
		Symbol: symbol, Name: name, Industry: "白酒", Price: 10, PETTM: 15, PB: 1.5,
	}, nil
}

func (f *fakeProvider) DailyBars(ctx context.Context, symbol string, limit int) ([]contracts.Candle, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.barsErr != nil {
		return nil, f.barsErr
	}
	bars := make([]contracts.Candle, 60)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = contracts.Candle{Date: base.AddDate(0, 0, i), Close: 10, Volume: 1000}
	}
	return bars, nil
}

func (f *fakeProvider) FundFlow(ctx context.Context, symbol string, limit int) ([]contracts.FlowPoint, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.flowErr != nil {
		return nil, f.flowErr
	}
	return []contracts.FlowPoint{{Date: time.Now(), NetInflow: 1e6}}, nil
}

func (f *fakeProvider) News(ctx context.Context, symbol string, limit int) ([]contracts.NewsItem, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.newsErr != nil {
		return nil, f.newsErr
	}
	return []contracts.NewsItem{{Date: time.Now(), Title: "公告-" + symbol}}, nil
}

// profileFake layers a profile page on top of fakeProvider.
type profileFake struct {
	fakeProvider
	profileErr error
	hits       int
}

func (f *profileFake) Profile(ctx context.Context, symbol string) (*contracts.CompanyProfile, error) {
	f.hits++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &contracts.CompanyProfile{Symbol: symbol, Name: "页面-" + symbol, Industry: "白酒"}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scan.PerSourceTimeout = 200 * time.Millisecond
	cfg.Scan.Workers = 4
	return cfg
}

func TestFetchMergesAllSections(t *testing.T) {
	p := &fakeProvider{name: "primary"}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.True(t, snap.Availability.Complete())
	assert.Equal(t, "primary", snap.Sources["quote"])
	assert.Equal(t, "primary", snap.Sources["history"])
	assert.Equal(t, 60, len(snap.History))
}

func TestFetchFallsBackToSecondProvider(t *testing.T) {
	down := &fakeProvider{name: "paid", quoteErr: errors.New("upstream down"),
		barsErr: errors.New("upstream down"), flowErr: errors.New("upstream down")}
	free := &fakeProvider{name: "free"}
	agg := New([]contracts.MarketDataProvider{down, free}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"000001"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "free", snaps[0].Sources["quote"])
	assert.True(t, snaps[0].Availability.Complete())
}

func TestFetchPartialSectionFlagsAvailability(t *testing.T) {
	p := &fakeProvider{name: "primary", flowErr: errors.New("flow endpoint down")}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.True(t, snap.Availability.Quote)
	assert.True(t, snap.Availability.History)
	assert.False(t, snap.Availability.Flow, "failed section must flag off, not fail the symbol")
	assert.False(t, snap.Availability.Complete())
}

func TestFetchAllSourcesDownReturnsDomainError(t *testing.T) {
	down := &fakeProvider{name: "only", quoteErr: errors.New("down"),
		barsErr: errors.New("down"), flowErr: errors.New("down")}
	agg := New([]contracts.MarketDataProvider{down}, nil, testConfig(), logger.NewNop())

	_, err := agg.Fetch(context.Background(), []string{"600519"})
	require.Error(t, err)
	assert.Equal(t, contracts.KindSourceUnavailable, contracts.KindOf(err))
}

func TestFetchPerSourceTimeoutTriggersFallback(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: time.Second}
	fast := &fakeProvider{name: "fast"}
	agg := New([]contracts.MarketDataProvider{slow, fast}, nil, testConfig(), logger.NewNop())

	start := time.Now()
	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "fast", snaps[0].Sources["quote"])
	assert.Less(t, time.Since(start), time.Second, "slow provider must be cut at the per-source timeout")
}

func TestFetchMultipleSymbolsIsolatesFailures(t *testing.T) {
	p := &fakeProvider{name: "primary"}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"600519", "000001", "300750"})
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
}

func TestFetchSectionsFanOutConcurrently(t *testing.T) {
	p := &fakeProvider{name: "primary", delay: 80 * time.Millisecond}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	start := time.Now()
	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Availability.Complete())
	// Four sections at 80ms each must overlap, not add up.
	assert.Less(t, time.Since(start), 240*time.Millisecond)
}

func TestFetchNewsSectionFlagsAvailability(t *testing.T) {
	p := &fakeProvider{name: "primary"}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Availability.News)
	assert.Equal(t, "primary", snaps[0].Sources["news"])
	require.Len(t, snaps[0].News, 1)

	down := &fakeProvider{name: "primary", newsErr: errors.New("notice endpoint down")}
	agg = New([]contracts.MarketDataProvider{down}, nil, testConfig(), logger.NewNop())

	snaps, err = agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Availability.News)
	assert.True(t, snaps[0].Availability.Complete(), "news is enrichment, not a core section")
}

func TestFetchProfileFillsMissingName(t *testing.T) {
	p := &profileFake{fakeProvider: fakeProvider{name: "primary", omitName: true}}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "页面-600519", snaps[0].Name)
	assert.Equal(t, "白酒", snaps[0].Industry)
	assert.Equal(t, "primary", snaps[0].Sources["profile"])
	assert.Equal(t, 1, p.hits)
}

func TestFetchProfileSkippedWhenQuoteHasName(t *testing.T) {
	p := &profileFake{fakeProvider: fakeProvider{name: "primary"}}
	agg := New([]contracts.MarketDataProvider{p}, nil, testConfig(), logger.NewNop())

	snaps, err := agg.Fetch(context.Background(), []string{"600519"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 0, p.hits, "profile page is a fallback, not a default")
}
