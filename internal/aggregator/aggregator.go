package aggregator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/internal/metrics"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// Window sizes handed to providers.
const (
	historyBars = 120
	flowDays    = 30
	newsItems   = 10
)

// Aggregator assembles one MarketSnapshot per symbol from the configured
// providers. Providers are tried in priority order per section; a failed
// section flags availability off instead of failing the symbol.
// ⭐ SSOT: snapshot assembly happens only here
type Aggregator struct {
	providers []contracts.MarketDataProvider
	archive   *ArchiveRepository // optional warm local source
	logger    *logger.Logger

	perSourceTimeout time.Duration
	workers          int
}

// New creates an aggregator over providers in priority order.
func New(providers []contracts.MarketDataProvider, archive *ArchiveRepository, cfg *config.Config, log *logger.Logger) *Aggregator {
	workers := cfg.Scan.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Aggregator{
		providers:        providers,
		archive:          archive,
		logger:           log,
		perSourceTimeout: cfg.Scan.PerSourceTimeout,
		workers:          workers,
	}
}

// Fetch assembles snapshots for all symbols inside the deadline carried by
// ctx. Symbols whose every section failed are dropped; partial symbols are
// returned with availability flags off.
func (a *Aggregator) Fetch(ctx context.Context, symbols []string) ([]contracts.MarketSnapshot, error) {
	results := make([]*contracts.MarketSnapshot, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			snap := a.fetchSymbol(gctx, symbol)
			if snap != nil {
				results[i] = snap
			}
			// A dead symbol never kills the cycle.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]contracts.MarketSnapshot, 0, len(symbols))
	for _, snap := range results {
		if snap != nil {
			out = append(out, *snap)
		}
	}

	if len(out) == 0 && len(symbols) > 0 {
		return nil, contracts.NewDomainError(contracts.KindSourceUnavailable, contracts.ErrSourceUnavailable)
	}

	a.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"fetched":   len(out),
	}).Info("Snapshot fetch completed")
	return out, nil
}

// fetchSymbol assembles one snapshot. The four sections fan out in
// parallel so one dead provider never serializes the others. Returns nil
// only when every core section failed on every provider.
func (a *Aggregator) fetchSymbol(ctx context.Context, symbol string) *contracts.MarketSnapshot {
	snap := &contracts.MarketSnapshot{
		Symbol:    symbol,
		Sources:   make(map[string]string),
		FetchedAt: time.Now(),
	}

	var wg sync.WaitGroup
	var (
		quote *contracts.MarketSnapshot
		bars  []contracts.Candle
		flow  []contracts.FlowPoint
		news  []contracts.NewsItem

		quoteProv, barsProv, flowProv, newsProv string
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		quote, quoteProv = a.fetchQuote(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		bars, barsProv = a.fetchHistory(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		flow, flowProv = a.fetchFlow(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		news, newsProv = a.fetchNews(ctx, symbol)
	}()
	wg.Wait()

	// Quote carries price, ratios and valuation in one section.
	if quote != nil {
		snap.Name = quote.Name
		snap.Industry = quote.Industry
		snap.Price = quote.Price
		snap.ChangePct = quote.ChangePct
		snap.TurnoverRate = quote.TurnoverRate
		snap.VolumeRatio = quote.VolumeRatio
		snap.PETTM = quote.PETTM
		snap.PB = quote.PB
		snap.Availability.Quote = true
		snap.Availability.Valuation = quote.PETTM != 0 || quote.PB != 0
		snap.Sources["quote"] = quoteProv
	}

	if len(bars) > 0 {
		snap.History = bars
		snap.Availability.History = true
		snap.Sources["history"] = barsProv
	}

	if len(flow) > 0 {
		snap.Flow = flow
		snap.Availability.Flow = true
		snap.Sources["flow"] = flowProv
	}

	if len(news) > 0 {
		snap.News = news
		snap.Availability.News = true
		snap.Sources["news"] = newsProv
	}

	if !snap.Availability.Quote && !snap.Availability.History && !snap.Availability.Flow {
		a.logger.WithField("symbol", symbol).Warn("All sources failed for symbol")
		return nil
	}

	// Some quote payloads omit name and industry. Scrape them from a
	// provider's profile page before the snapshot is frozen.
	if snap.Availability.Quote && (snap.Name == "" || snap.Industry == "") {
		a.fillProfile(ctx, snap)
	}
	return snap
}

// fillProfile recovers missing name/industry from the first provider that
// offers a profile page.
func (a *Aggregator) fillProfile(ctx context.Context, snap *contracts.MarketSnapshot) {
	for _, p := range a.providers {
		pp, ok := p.(contracts.ProfileProvider)
		if !ok {
			continue
		}
		sctx, cancel := context.WithTimeout(ctx, a.perSourceTimeout)
		profile, err := pp.Profile(sctx, snap.Symbol)
		cancel()
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"symbol":   snap.Symbol,
				"provider": p.Name(),
				"error":    err.Error(),
			}).Warn("Profile fetch failed")
			metrics.ProviderFailures.WithLabelValues(p.Name(), "profile").Inc()
			continue
		}
		if snap.Name == "" {
			snap.Name = profile.Name
		}
		if snap.Industry == "" {
			snap.Industry = profile.Industry
		}
		snap.Sources["profile"] = p.Name()
		return
	}
}

func (a *Aggregator) fetchQuote(ctx context.Context, symbol string) (*contracts.MarketSnapshot, string) {
	for _, p := range a.providers {
		sctx, cancel := context.WithTimeout(ctx, a.perSourceTimeout)
		quote, err := p.Quote(sctx, symbol)
		cancel()
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"provider": p.Name(),
				"error":    err.Error(),
			}).Warn("Quote fetch failed")
			metrics.ProviderFailures.WithLabelValues(p.Name(), "quote").Inc()
			continue
		}
		return quote, p.Name()
	}
	return nil, ""
}

func (a *Aggregator) fetchHistory(ctx context.Context, symbol string) ([]contracts.Candle, string) {
	// Archive first: a warm hit skips the network round-trip.
	if a.archive != nil {
		if bars, err := a.archive.LoadBars(ctx, symbol, historyBars); err == nil && len(bars) >= historyBars/2 {
			return bars, "archive"
		}
	}

	for _, p := range a.providers {
		sctx, cancel := context.WithTimeout(ctx, a.perSourceTimeout)
		bars, err := p.DailyBars(sctx, symbol, historyBars)
		cancel()
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"provider": p.Name(),
				"error":    err.Error(),
			}).Warn("History fetch failed")
			metrics.ProviderFailures.WithLabelValues(p.Name(), "history").Inc()
			continue
		}
		if a.archive != nil {
			if err := a.archive.UpsertBars(ctx, symbol, bars); err != nil {
				a.logger.WithError(err).Warn("Archive bar upsert failed")
			}
		}
		return bars, p.Name()
	}
	return nil, ""
}

func (a *Aggregator) fetchFlow(ctx context.Context, symbol string) ([]contracts.FlowPoint, string) {
	for _, p := range a.providers {
		sctx, cancel := context.WithTimeout(ctx, a.perSourceTimeout)
		flow, err := p.FundFlow(sctx, symbol, flowDays)
		cancel()
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"provider": p.Name(),
				"error":    err.Error(),
			}).Warn("Flow fetch failed")
			metrics.ProviderFailures.WithLabelValues(p.Name(), "flow").Inc()
			continue
		}
		if a.archive != nil {
			if err := a.archive.UpsertFlow(ctx, symbol, flow); err != nil {
				a.logger.WithError(err).Warn("Archive flow upsert failed")
			}
		}
		return flow, p.Name()
	}
	return nil, ""
}

func (a *Aggregator) fetchNews(ctx context.Context, symbol string) ([]contracts.NewsItem, string) {
	for _, p := range a.providers {
		sctx, cancel := context.WithTimeout(ctx, a.perSourceTimeout)
		news, err := p.News(sctx, symbol, newsItems)
		cancel()
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"provider": p.Name(),
				"error":    err.Error(),
			}).Warn("News fetch failed")
			metrics.ProviderFailures.WithLabelValues(p.Name(), "news").Inc()
			continue
		}
		return news, p.Name()
	}
	return nil, ""
}
