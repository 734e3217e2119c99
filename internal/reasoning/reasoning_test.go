package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
)

func testCandidate() Candidate {
	return Candidate{
		Snapshot: &contracts.MarketSnapshot{
			Symbol: "600519", Name: "贵州茅台", Industry: "白酒",
			Price: 1500, Availability: contracts.Availability{Quote: true, History: true, Flow: true, Valuation: true},
		},
		Signals: &contracts.SignalSet{
			Symbol: "600519",
			Signals: map[string]contracts.Signal{
				contracts.SigMAAlignment: {Direction: contracts.Bullish, Strength: 0.7, Confidence: 0.8},
				contracts.SigMACD:        {Direction: contracts.Bullish, Strength: 1.0, Confidence: 0.7},
				contracts.SigFlow:        {Direction: contracts.Bullish, Strength: 1.0, Confidence: 0.7},
			},
			Tags: []contracts.PatternTag{{Name: contracts.TagBreakout, Bullish: true, Strength: 0.8}},
		},
		Score: contracts.CompositeScore{Symbol: "600519", Score: 85, Rank: 1,
			Breakdown: map[string]float64{contracts.DimTechnical: 0.9}},
		Rec: &contracts.Recommendation{
			Symbol: "600519", Name: "贵州茅台", Signal: contracts.SignalBuy,
			BuyPrice: 1500, SellPrice: 1620, StopLossPrice: 1410, Score: 85,
		},
	}
}

func TestRuleEngineNonEmptyAndDeterministic(t *testing.T) {
	r := NewRuleEngine()
	c := testCandidate()

	first := r.Assess(c)
	second := r.Assess(c)

	assert.NotEmpty(t, first.Reasons)
	assert.NotEmpty(t, first.RiskFactors)
	assert.NotEmpty(t, first.Narrative)

	fj, _ := json.Marshal(first)
	sj, _ := json.Marshal(second)
	assert.Equal(t, string(fj), string(sj), "identical input must produce identical output")
}

func TestRuleEngineFallbackMarksDegraded(t *testing.T) {
	r := NewRuleEngine()
	c := testCandidate()

	r.applyFallback(c)

	assert.True(t, c.Rec.Degraded)
	assert.NotEmpty(t, c.Rec.Reasons)
	assert.NotEmpty(t, c.Rec.Narrative)
	assert.Greater(t, c.Rec.Confidence, 0.0)
}

func TestRuleEnginePartialDataRisk(t *testing.T) {
	r := NewRuleEngine()
	c := testCandidate()
	c.Score.Partial = true

	a := r.Assess(c)
	assert.Contains(t, a.RiskFactors, "部分数据源缺失，评分基于不完整数据")
}

func TestParseAssessmentToleratesFences(t *testing.T) {
	content := "```json\n{\"narrative\":\"看多\",\"reasons\":[\"r1\"],\"risk_factors\":[\"f1\"],\"hold_period\":\"5日\",\"entry_timing\":\"开盘\",\"confidence\":0.8}\n```"

	a, err := parseAssessment(content)
	require.NoError(t, err)
	assert.Equal(t, "看多", a.Narrative)
	assert.Equal(t, []string{"r1"}, a.Reasons)
	assert.Equal(t, 0.8, a.Confidence)
}

func TestParseAssessmentRejectsGarbage(t *testing.T) {
	_, err := parseAssessment("no json here at all")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrReasoningError))

	_, err = parseAssessment("{broken json")
	require.Error(t, err)
}

func TestParseAssessmentClampsConfidence(t *testing.T) {
	a, err := parseAssessment(`{"narrative":"x","reasons":["r"],"confidence":1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Confidence)
}

// fakeBackend scripts completion outcomes.
type fakeBackend struct {
	calls    int32
	failures int32 // fail this many calls before succeeding
	content  string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, contracts.ErrReasoningError
	}
	return &Response{Content: f.content, Model: "fake-1"}, nil
}

func testOrchestrator(backend Backend) *Orchestrator {
	cfg := &config.Config{}
	cfg.LLM.Timeout = 200 * time.Millisecond
	cfg.LLM.RetryTimeout = 100 * time.Millisecond
	cfg.LLM.TopK = 5

	f := &Factory{
		backends: map[string]Backend{"fake": backend, ProviderRuleEngine: NewRuleEngine()},
		active:   "fake",
		logger:   logger.NewNop(),
	}
	return NewOrchestrator(f, cfg, logger.NewNop())
}

func TestEnrichSuccessPath(t *testing.T) {
	backend := &fakeBackend{
		content: `{"narrative":"强势","reasons":["突破"],"risk_factors":["系统性风险"],"hold_period":"5日","entry_timing":"回踩","confidence":0.9}`,
	}
	o := testOrchestrator(backend)
	c := testCandidate()

	degraded := o.Enrich(context.Background(), []Candidate{c})

	assert.False(t, degraded)
	assert.False(t, c.Rec.Degraded)
	assert.Equal(t, "强势", c.Rec.Narrative)
	assert.Equal(t, 0.9, c.Rec.Confidence)
	assert.Equal(t, int32(1), backend.calls)
}

func TestEnrichRetriesOnceThenFallsBack(t *testing.T) {
	backend := &fakeBackend{failures: 10} // never succeeds
	o := testOrchestrator(backend)
	c := testCandidate()

	degraded := o.Enrich(context.Background(), []Candidate{c})

	assert.True(t, degraded)
	assert.True(t, c.Rec.Degraded)
	assert.NotEmpty(t, c.Rec.Reasons, "fallback output must keep the schema populated")
	assert.Equal(t, int32(2), backend.calls, "exactly one retry before the fallback")
}

func TestEnrichRetrySucceeds(t *testing.T) {
	backend := &fakeBackend{
		failures: 1,
		content:  `{"narrative":"ok","reasons":["r"],"confidence":0.7}`,
	}
	o := testOrchestrator(backend)
	c := testCandidate()

	degraded := o.Enrich(context.Background(), []Candidate{c})

	assert.False(t, degraded)
	assert.Equal(t, int32(2), backend.calls)
	assert.Equal(t, "ok", c.Rec.Narrative)
}

func TestEnrichRuleEngineProviderSkipsNetwork(t *testing.T) {
	backend := &fakeBackend{}
	o := testOrchestrator(backend)
	require.NoError(t, o.factory.SwitchProvider(ProviderRuleEngine))

	c := testCandidate()
	degraded := o.Enrich(context.Background(), []Candidate{c})

	assert.True(t, degraded)
	assert.True(t, c.Rec.Degraded)
	assert.Equal(t, int32(0), backend.calls)
}

func TestFactorySwitchProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Provider = "openai" // no key: falls back to rules
	f, err := NewFactory(httputil.New(cfg, logger.NewNop()), cfg, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, ProviderRuleEngine, f.Active())
	assert.Error(t, f.SwitchProvider("openai"), "keyless provider must not be registered")
	assert.Error(t, f.SwitchProvider("nope"))
	assert.NoError(t, f.SwitchProvider(ProviderRuleEngine))
	assert.Contains(t, f.Available(), ProviderRuleEngine)
}

func TestFactoryRegistersKeyedProviders(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Provider = "qwen"
	cfg.LLM.QwenAPIKey = "k"
	cfg.LLM.QwenBaseURL = "https://example.invalid/v1"
	cfg.LLM.QwenModel = "qwen-plus"

	f, err := NewFactory(httputil.New(cfg, logger.NewNop()), cfg, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ProviderQwen, f.Active())
	assert.Equal(t, ProviderQwen, f.Backend().Name())
}
