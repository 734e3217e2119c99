package engine

import (
	"context"
	"time"

	"github.com/quantumalpha/backend/internal/aggregator"
	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/internal/metrics"
	"github.com/quantumalpha/backend/internal/position"
	"github.com/quantumalpha/backend/internal/reasoning"
	"github.com/quantumalpha/backend/internal/scoring"
	"github.com/quantumalpha/backend/internal/signal"
	"github.com/quantumalpha/backend/internal/store"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
	"github.com/quantumalpha/backend/pkg/redis"
)

// Mode selects how much reasoning a scan runs.
type Mode string

const (
	// ModeFull runs AI reasoning over the top candidates.
	ModeFull Mode = "full"
	// ModeQuick skips the AI path and uses the rule engine throughout.
	ModeQuick Mode = "quick"
)

// notifyTimeout bounds the fire-and-forget webhook delivery.
const notifyTimeout = 10 * time.Second

// Engine drives one full pass of the pipeline:
// aggregate → signals → score → rank → size → reason → publish.
// ⭐ SSOT: pipeline sequencing lives only here
type Engine struct {
	aggregator *aggregator.Aggregator
	signals    *signal.Engine
	scorer     *scoring.Scorer
	sizer      *position.Sizer
	orch       *reasoning.Orchestrator
	store      *store.Store
	cache      *redis.Cache
	notifier   contracts.NotificationService // optional
	logger     *logger.Logger

	universe       []string
	globalDeadline time.Duration
}

// New wires the pipeline. notifier may be nil.
func New(
	agg *aggregator.Aggregator,
	signals *signal.Engine,
	scorer *scoring.Scorer,
	sizer *position.Sizer,
	orch *reasoning.Orchestrator,
	st *store.Store,
	cache *redis.Cache,
	notifier contracts.NotificationService,
	cfg *config.Config,
	log *logger.Logger,
) *Engine {
	return &Engine{
		aggregator:     agg,
		signals:        signals,
		scorer:         scorer,
		sizer:          sizer,
		orch:           orch,
		store:          st,
		cache:          cache,
		notifier:       notifier,
		logger:         log,
		universe:       cfg.Scan.Universe,
		globalDeadline: cfg.Scan.GlobalDeadline,
	}
}

// Scan runs one pass over the universe and publishes the ranked result.
// An empty universe falls back to the configured one. A total source
// failure marks the store stale and returns an empty result with the
// cause so callers still get a well-formed payload.
func (e *Engine) Scan(ctx context.Context, universe []string, mode Mode) (*contracts.RankedResult, error) {
	result, err := e.run(ctx, universe, mode)
	if err != nil {
		return result, err
	}
	e.publish(ctx, result, mode == ModeFull)
	return result, nil
}

// Preprocess is the scheduler's pre-market pass: a full scan with AI
// reasoning over the configured universe.
func (e *Engine) Preprocess(ctx context.Context, rc contracts.RunContext) error {
	_, err := e.Scan(ctx, nil, ModeFull)
	return err
}

// Refresh is the intraday pass: rescore on fresh quotes and flow, but keep
// the morning's AI narratives for symbols that still rank.
func (e *Engine) Refresh(ctx context.Context, rc contracts.RunContext) error {
	prev, hasPrev := e.store.Get()

	result, err := e.run(ctx, nil, ModeQuick)
	if err != nil {
		return err
	}
	if hasPrev && !prev.Stale {
		carryNarratives(result, prev)
	}
	e.publish(ctx, result, false)
	return nil
}

// run executes the pipeline without publishing.
func (e *Engine) run(ctx context.Context, universe []string, mode Mode) (*contracts.RankedResult, error) {
	if len(universe) == 0 {
		universe = e.universe
	}
	ctx, cancel := context.WithTimeout(ctx, e.globalDeadline)
	defer cancel()
	started := time.Now()

	snaps, err := e.aggregator.Fetch(ctx, universe)
	if err != nil {
		cause := contracts.KindOf(err)
		e.store.MarkStale(cause)
		e.logger.WithFields(map[string]interface{}{
			"cause": cause,
			"error": err.Error(),
		}).Error("Scan aborted, every source failed")
		return &contracts.RankedResult{
			GeneratedAt: time.Now(),
			Stale:       true,
			Cause:       cause,
		}, err
	}

	inputs := make([]scoring.Input, 0, len(snaps))
	bySymbol := make(map[string]scoring.Input, len(snaps))
	for i := range snaps {
		snap := &snaps[i]
		set := e.signals.Compute(snap)
		in := scoring.Input{Snapshot: snap, Signals: set}
		inputs = append(inputs, in)
		bySymbol[snap.Symbol] = in
	}

	ranked := scoring.Rank(e.scorer.Score(inputs))

	recs := make([]contracts.Recommendation, len(ranked))
	cands := make([]reasoning.Candidate, 0, len(ranked))
	for i, sc := range ranked {
		in := bySymbol[sc.Symbol]
		rec := &recs[i]
		rec.Symbol = sc.Symbol
		rec.Name = in.Snapshot.Name
		rec.Signal = e.scorer.Classify(sc.Score)
		rec.Score = sc.Score
		rec.BuyPrice = in.Snapshot.Price
		e.sizer.Build(rec, position.Volatility20(in.Snapshot.History))

		cands = append(cands, reasoning.Candidate{
			Snapshot: in.Snapshot,
			Signals:  in.Signals,
			Score:    sc,
			Rec:      rec,
		})
	}

	degraded := false
	k := e.orch.TopK()
	if k > len(cands) {
		k = len(cands)
	}
	if mode == ModeQuick {
		e.orch.ApplyRules(cands)
	} else {
		degraded = e.orch.Enrich(ctx, cands[:k])
		e.orch.ApplyRules(cands[k:])
	}

	metrics.ScanDuration.WithLabelValues(string(mode)).Observe(time.Since(started).Seconds())
	metrics.ScanCandidates.Set(float64(len(recs)))
	if degraded {
		metrics.DegradedCycles.Inc()
	}
	e.logger.WithFields(map[string]interface{}{
		"universe":   len(universe),
		"scored":     len(recs),
		"mode":       string(mode),
		"degraded":   degraded,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("Scan completed")

	return &contracts.RankedResult{
		Candidates:  recs,
		GeneratedAt: time.Now(),
		Degraded:    degraded,
	}, nil
}

// publish stores the result and, for full cycles, notifies the webhooks.
func (e *Engine) publish(ctx context.Context, result *contracts.RankedResult, notify bool) {
	e.store.Publish(ctx, result)

	if notify && e.notifier != nil {
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := e.notifier.NotifyResult(nctx, result); err != nil {
				e.logger.WithField("error", err.Error()).Warn("Result notification failed")
			}
		}()
	}
}

// carryNarratives copies AI output from the previous result onto the new
// one for symbols present in both, so an intraday re-rank never downgrades
// a candidate's reasoning to rule templates.
func carryNarratives(result, prev *contracts.RankedResult) {
	prevBySymbol := make(map[string]*contracts.Recommendation, len(prev.Candidates))
	for i := range prev.Candidates {
		prevBySymbol[prev.Candidates[i].Symbol] = &prev.Candidates[i]
	}
	for i := range result.Candidates {
		rec := &result.Candidates[i]
		old, ok := prevBySymbol[rec.Symbol]
		if !ok || old.Degraded {
			continue
		}
		rec.Narrative = old.Narrative
		rec.Reasons = old.Reasons
		rec.RiskFactors = old.RiskFactors
		rec.HoldPeriod = old.HoldPeriod
		rec.EntryTiming = old.EntryTiming
		rec.Confidence = old.Confidence
		rec.Degraded = false
	}
	result.Degraded = prev.Degraded
}
