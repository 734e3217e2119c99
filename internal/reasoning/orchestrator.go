package reasoning

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// maxConcurrent bounds in-flight completions per cycle.
const maxConcurrent = 4

// Orchestrator runs the reasoning phase over the cycle's top candidates.
// ⭐ SSOT: AI fan-out and fallback policy live only here
type Orchestrator struct {
	factory      *Factory
	rules        *RuleEngine
	logger       *logger.Logger
	timeout      time.Duration
	retryTimeout time.Duration
	topK         int
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(factory *Factory, cfg *config.Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		factory:      factory,
		rules:        NewRuleEngine(),
		logger:       log,
		timeout:      cfg.LLM.Timeout,
		retryTimeout: cfg.LLM.RetryTimeout,
		topK:         cfg.LLM.TopK,
	}
}

// TopK returns how many candidates get AI reasoning per cycle.
func (o *Orchestrator) TopK() int {
	return o.topK
}

// ApplyRules fills candidates from the rule engine directly, skipping the
// AI path. Used for candidates outside the top K and for quick scans.
func (o *Orchestrator) ApplyRules(candidates []Candidate) {
	for _, c := range candidates {
		o.rules.applyFallback(c)
	}
}

// Enrich runs reasoning over the candidates in place and reports whether
// any candidate fell back to the rule engine. The active backend is read
// once here; a provider switch mid-cycle waits for the next cycle.
func (o *Orchestrator) Enrich(ctx context.Context, candidates []Candidate) bool {
	backend := o.factory.Backend()

	// Pure rule-engine cycles skip the network entirely.
	if backend.Name() == ProviderRuleEngine {
		for _, c := range candidates {
			o.rules.applyFallback(c)
		}
		return true
	}

	degraded := false
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	results := make([]bool, len(candidates))
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			results[i] = o.enrichOne(gctx, backend, c)
			// One candidate's failure never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	for _, fellBack := range results {
		if fellBack {
			degraded = true
		}
	}
	return degraded
}

// enrichOne runs one candidate: first attempt at the full timeout, one
// retry at the shortened timeout, then the rule engine. Reports whether
// the fallback was used.
func (o *Orchestrator) enrichOne(ctx context.Context, backend Backend, c Candidate) bool {
	req := Request{
		System:      systemPrompt,
		User:        buildPrompt(c),
		Temperature: 0.4,
		MaxTokens:   1024,
	}

	for attempt, budget := range []time.Duration{o.timeout, o.retryTimeout} {
		// The phase deadline may already be closer than the budget;
		// WithTimeout keeps whichever is sooner.
		actx, cancel := context.WithTimeout(ctx, budget)
		resp, err := backend.Complete(actx, req)
		cancel()

		if err == nil {
			if assessment, perr := parseAssessment(resp.Content); perr == nil {
				assessment.apply(c.Rec)
				o.logger.WithFields(map[string]interface{}{
					"symbol":  c.Snapshot.Symbol,
					"backend": backend.Name(),
					"tokens":  resp.TotalTokens,
				}).Debug("Reasoning completed")
				return false
			} else {
				err = perr
			}
		}

		o.logger.WithFields(map[string]interface{}{
			"symbol":  c.Snapshot.Symbol,
			"backend": backend.Name(),
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Reasoning attempt failed")

		if ctx.Err() != nil {
			break // phase deadline gone, fall back now
		}
	}

	o.rules.applyFallback(c)
	o.logger.WithField("symbol", c.Snapshot.Symbol).Info("Candidate fell back to rule engine")
	return true
}
