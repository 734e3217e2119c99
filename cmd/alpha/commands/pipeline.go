package commands

import (
	"fmt"

	"github.com/quantumalpha/backend/internal/aggregator"
	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/internal/engine"
	"github.com/quantumalpha/backend/internal/external/eastmoney"
	"github.com/quantumalpha/backend/internal/external/tushare"
	"github.com/quantumalpha/backend/internal/notify"
	"github.com/quantumalpha/backend/internal/position"
	"github.com/quantumalpha/backend/internal/reasoning"
	"github.com/quantumalpha/backend/internal/scheduler"
	"github.com/quantumalpha/backend/internal/scoring"
	"github.com/quantumalpha/backend/internal/signal"
	"github.com/quantumalpha/backend/internal/store"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/database"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
	"github.com/quantumalpha/backend/pkg/redis"
)

// pipeline holds every wired component one command needs.
// ⭐ SSOT: dependency wiring happens only in buildPipeline
type pipeline struct {
	cfg     *config.Config
	log     *logger.Logger
	redis   *redis.Client
	db      *database.DB // nil when the archive is disabled
	store   *store.Store
	factory *reasoning.Factory
	engine  *engine.Engine
}

// buildPipeline loads config and wires the full engine stack.
func buildPipeline() (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient)
	limiter := redis.NewRateLimiter(redisClient)

	var db *database.DB
	var archive *aggregator.ArchiveRepository
	if cfg.Database.Enabled {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		archive = aggregator.NewArchiveRepository(db, log)
		log.Info("Market data archive enabled")
	}

	providers, err := buildProviders(cfg, log, limiter)
	if err != nil {
		return nil, err
	}

	factory, err := reasoning.NewFactory(
		httputil.New(cfg, log).WithRateLimiter(limiter, "llm", redis.LimitLLM),
		cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build reasoning factory: %w", err)
	}

	st := store.New(cache, cfg, log)

	var notifier contracts.NotificationService
	if hook := notify.New(httputil.New(cfg, log), cfg, log); hook != nil {
		notifier = hook
	}

	eng := engine.New(
		aggregator.New(providers, archive, cfg, log),
		signal.NewEngine(cfg, log),
		scoring.New(cfg, log),
		position.New(cfg, log),
		reasoning.NewOrchestrator(factory, cfg, log),
		st,
		cache,
		notifier,
		cfg,
		log,
	)

	return &pipeline{
		cfg:     cfg,
		log:     log,
		redis:   redisClient,
		db:      db,
		store:   st,
		factory: factory,
		engine:  eng,
	}, nil
}

// buildProviders creates the data source clients in priority order.
func buildProviders(cfg *config.Config, log *logger.Logger, limiter *redis.RateLimiter) ([]contracts.MarketDataProvider, error) {
	byName := make(map[string]contracts.MarketDataProvider)

	emHTTP := httputil.New(cfg, log).
		WithLocalRateLimit(float64(cfg.Eastmoney.RatePerSec), cfg.Eastmoney.RatePerSec).
		WithRateLimiter(limiter, "eastmoney", redis.LimitEastmoney)
	byName["eastmoney"] = eastmoney.NewClient(emHTTP, cfg, log)

	if cfg.Tushare.Configured() {
		tsHTTP := httputil.New(cfg, log).
			WithRateLimiter(limiter, "tushare", redis.LimitTushare)
		byName["tushare"] = tushare.NewClient(tsHTTP, cfg, log)
	} else {
		log.Info("Tushare token not set, running on free sources only")
	}

	var providers []contracts.MarketDataProvider
	for _, name := range cfg.ProviderPriority {
		p, ok := byName[name]
		if !ok {
			log.WithField("provider", name).Warn("Configured provider unavailable, skipping")
			continue
		}
		providers = append(providers, p)
		delete(byName, name)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable data providers in priority list %v", cfg.ProviderPriority)
	}
	return providers, nil
}

// newScheduler builds the trading-day scheduler over the engine.
func (p *pipeline) newScheduler() *scheduler.Scheduler {
	cal := scheduler.NewMarketCalendar(p.cfg, p.log)
	return scheduler.New(p.engine, cal, p.cfg, p.log)
}

// Close releases held connections.
func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
	if err := p.redis.Close(); err != nil {
		p.log.WithError(err).Warn("Redis close failed")
	}
}
