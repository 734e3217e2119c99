package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

func testScorer(normalization string) *Scorer {
	cfg := &config.Config{}
	cfg.Scan.WeightTechnical = 0.30
	cfg.Scan.WeightPattern = 0.15
	cfg.Scan.WeightFlow = 0.25
	cfg.Scan.WeightValuation = 0.15
	cfg.Scan.WeightSentiment = 0.15
	cfg.Scan.Normalization = normalization
	cfg.Scan.BuyThreshold = 80
	cfg.Scan.HoldThreshold = 60
	return New(cfg, logger.NewNop())
}

func bullishInput(symbol string, netInflow float64) Input {
	return Input{
		Snapshot: &contracts.MarketSnapshot{
			Symbol:       symbol,
			PETTM:        15, PB: 1.5,
			VolumeRatio:  2.0, TurnoverRate: 5,
			Flow:         []contracts.FlowPoint{{NetInflow: netInflow}},
			Availability: contracts.Availability{Quote: true, History: true, Flow: true, Valuation: true},
		},
		Signals: &contracts.SignalSet{
			Symbol: symbol,
			Signals: map[string]contracts.Signal{
				contracts.SigMAAlignment: {Direction: contracts.Bullish, Strength: 0.7, Confidence: 0.8},
				contracts.SigMACD:        {Direction: contracts.Bullish, Strength: 1.0, Confidence: 0.7},
				contracts.SigKDJ:         {Direction: contracts.Bullish, Strength: 1.0, Confidence: 0.6},
				contracts.SigFlow:        {Direction: contracts.Bullish, Strength: 1.0, Confidence: 0.7},
			},
			Tags: []contracts.PatternTag{{Name: contracts.TagBreakout, Bullish: true, Strength: 0.8}},
		},
	}
}

func bearishInput(symbol string) Input {
	return Input{
		Snapshot: &contracts.MarketSnapshot{
			Symbol:       symbol,
			PETTM:        -5, PB: 12,
			VolumeRatio:  0.4, TurnoverRate: 25,
			Flow:         []contracts.FlowPoint{{NetInflow: -5e6}},
			Availability: contracts.Availability{Quote: true, History: true, Flow: true, Valuation: true},
		},
		Signals: &contracts.SignalSet{
			Symbol: symbol,
			Signals: map[string]contracts.Signal{
				contracts.SigMAAlignment: {Direction: contracts.Bearish, Strength: 0.7, Confidence: 0.8},
				contracts.SigMACD:        {Direction: contracts.Bearish, Strength: 0.8, Confidence: 0.7},
				contracts.SigFlow:        {Direction: contracts.Bearish, Strength: 1.0, Confidence: 0.7},
			},
			Tags: []contracts.PatternTag{{Name: contracts.TagEveningStar, Bullish: false, Strength: 0.75}},
		},
	}
}

func TestScoreRangeAndOrdering(t *testing.T) {
	s := testScorer("minmax")
	scores := s.Score([]Input{bullishInput("600519", 1e7), bearishInput("000002")})
	require.Len(t, scores, 2)

	for _, sc := range scores {
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, 100.0)
	}
	assert.Greater(t, scores[0].Score, scores[1].Score,
		"bullish symbol must outscore bearish symbol")
}

func TestScorePartialFlag(t *testing.T) {
	in := bullishInput("600519", 1e7)
	in.Snapshot.Availability.Flow = false

	scores := testScorer("minmax").Score([]Input{in, bearishInput("000002")})
	require.Len(t, scores, 2)
	assert.True(t, scores[0].Partial, "missing source section must flag the score partial")
	assert.False(t, scores[1].Partial)
}

func TestClassifyThresholds(t *testing.T) {
	s := testScorer("minmax")
	assert.Equal(t, contracts.SignalBuy, s.Classify(85))
	assert.Equal(t, contracts.SignalBuy, s.Classify(80))
	assert.Equal(t, contracts.SignalHold, s.Classify(65))
	assert.Equal(t, contracts.SignalHold, s.Classify(60))
	assert.Equal(t, contracts.SignalAvoid, s.Classify(40))
}

func TestRankDeterministicTieBreaks(t *testing.T) {
	scores := []contracts.CompositeScore{
		{Symbol: "300750", Score: 70, NetInflow: 1e6},
		{Symbol: "000001", Score: 70, NetInflow: 5e6},
		{Symbol: "600519", Score: 70, NetInflow: 5e6},
		{Symbol: "002594", Score: 90, NetInflow: 0},
	}

	ranked := Rank(scores)
	require.Len(t, ranked, 4)
	assert.Equal(t, "002594", ranked[0].Symbol) // highest score first
	assert.Equal(t, "000001", ranked[1].Symbol) // tie: inflow desc, then symbol asc
	assert.Equal(t, "600519", ranked[2].Symbol)
	assert.Equal(t, "300750", ranked[3].Symbol)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}

	// identical inputs rank identically across runs
	again := Rank(scores)
	for i := range ranked {
		assert.Equal(t, ranked[i].Symbol, again[i].Symbol)
	}
}

func TestMinmaxConstantColumn(t *testing.T) {
	out := minmax([]float64{3, 3, 3})
	for _, v := range out {
		assert.Equal(t, 0.5, v)
	}
}

func TestPercentileRank(t *testing.T) {
	out := percentileRank([]float64{10, 20, 30})
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.5, out[1])
	assert.Equal(t, 1.0, out[2])
}

func TestPercentileNormalizationMonotonic(t *testing.T) {
	s := testScorer("percentile")
	scores := s.Score([]Input{bullishInput("600519", 1e7), bearishInput("000002")})
	assert.Greater(t, scores[0].Score, scores[1].Score)
}

func TestNewsTiltShiftsSentiment(t *testing.T) {
	base := &contracts.MarketSnapshot{
		VolumeRatio: 2.0, TurnoverRate: 5,
		Availability: contracts.Availability{Quote: true},
	}
	neutral := sentimentDimension(base)

	bullish := *base
	bullish.News = []contracts.NewsItem{
		{Title: "关于回购公司股份的公告"},
		{Title: "2026年半年度业绩预增公告"},
	}
	bullish.Availability.News = true
	assert.Greater(t, sentimentDimension(&bullish), neutral)

	bearish := *base
	bearish.News = []contracts.NewsItem{
		{Title: "控股股东减持计划公告"},
		{Title: "关于收到行政处罚决定书的公告"},
	}
	bearish.Availability.News = true
	assert.Less(t, sentimentDimension(&bearish), neutral)
}

func TestNewsTiltIgnoredWithoutAvailability(t *testing.T) {
	snap := &contracts.MarketSnapshot{
		VolumeRatio: 2.0, TurnoverRate: 5,
		News:         []contracts.NewsItem{{Title: "关于回购公司股份的公告"}},
		Availability: contracts.Availability{Quote: true},
	}
	bare := *snap
	bare.News = nil
	assert.Equal(t, sentimentDimension(&bare), sentimentDimension(snap))
}

func TestNewsTiltCapped(t *testing.T) {
	items := make([]contracts.NewsItem, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, contracts.NewsItem{Title: "股东减持进展公告"})
	}
	assert.Equal(t, -1.0, newsTilt(items))
}
