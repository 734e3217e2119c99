package scoring

import (
	"math"
	"strings"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// Weights is the per-dimension weight vector. Values must sum to 1.
type Weights struct {
	Technical float64
	Pattern   float64
	Flow      float64
	Valuation float64
	Sentiment float64
}

// Scorer fuses signal sets into composite 0~100 scores across a scanned
// universe.
// ⭐ SSOT: score fusion happens only here
type Scorer struct {
	weights       Weights
	normalization string // "minmax" or "percentile"
	buyThreshold  float64
	holdThreshold float64
	logger        *logger.Logger
}

// New creates a scorer from config.
func New(cfg *config.Config, log *logger.Logger) *Scorer {
	return &Scorer{
		weights: Weights{
			Technical: cfg.Scan.WeightTechnical,
			Pattern:   cfg.Scan.WeightPattern,
			Flow:      cfg.Scan.WeightFlow,
			Valuation: cfg.Scan.WeightValuation,
			Sentiment: cfg.Scan.WeightSentiment,
		},
		normalization: cfg.Scan.Normalization,
		buyThreshold:  cfg.Scan.BuyThreshold,
		holdThreshold: cfg.Scan.HoldThreshold,
		logger:        log,
	}
}

// Input pairs a snapshot with its computed signals.
type Input struct {
	Snapshot *contracts.MarketSnapshot
	Signals  *contracts.SignalSet
}

// Score fuses each input into a composite score list. Normalization
// runs across the whole universe, so scores are relative to this scan.
func (s *Scorer) Score(inputs []Input) []contracts.CompositeScore {
	if len(inputs) == 0 {
		return nil
	}

	// Raw per-dimension readings first.
	raw := make([]map[string]float64, len(inputs))
	for i, in := range inputs {
		raw[i] = map[string]float64{
			contracts.DimTechnical: technicalDimension(in.Signals),
			contracts.DimPattern:   patternDimension(in.Signals),
			contracts.DimFlow:      flowDimension(in.Signals),
			contracts.DimValuation: valuationDimension(in.Snapshot),
			contracts.DimSentiment: sentimentDimension(in.Snapshot),
		}
	}

	// Normalize each dimension across the universe.
	for _, dim := range []string{
		contracts.DimTechnical, contracts.DimPattern, contracts.DimFlow,
		contracts.DimValuation, contracts.DimSentiment,
	} {
		col := make([]float64, len(raw))
		for i := range raw {
			col[i] = raw[i][dim]
		}
		norm := s.normalize(col)
		for i := range raw {
			raw[i][dim] = norm[i]
		}
	}

	scores := make([]contracts.CompositeScore, len(inputs))
	for i, in := range inputs {
		b := raw[i]
		fused := b[contracts.DimTechnical]*s.weights.Technical +
			b[contracts.DimPattern]*s.weights.Pattern +
			b[contracts.DimFlow]*s.weights.Flow +
			b[contracts.DimValuation]*s.weights.Valuation +
			b[contracts.DimSentiment]*s.weights.Sentiment

		score := clamp(fused*100, 0, 100)

		var netInflow float64
		if p, ok := in.Snapshot.LatestFlow(); ok {
			netInflow = p.NetInflow
		}

		scores[i] = contracts.CompositeScore{
			Symbol:    in.Snapshot.Symbol,
			Score:     score,
			Breakdown: b,
			Partial:   !in.Snapshot.Availability.Complete(),
			NetInflow: netInflow,
		}
	}

	return scores
}

// Classify maps a composite score to the trade signal.
func (s *Scorer) Classify(score float64) contracts.TradeSignal {
	switch {
	case score >= s.buyThreshold:
		return contracts.SignalBuy
	case score >= s.holdThreshold:
		return contracts.SignalHold
	default:
		return contracts.SignalAvoid
	}
}

// normalize maps a column to [0,1] by the configured method.
func (s *Scorer) normalize(col []float64) []float64 {
	if s.normalization == "percentile" {
		return percentileRank(col)
	}
	return minmax(col)
}

// minmax rescales to [0,1]; a constant column reads 0.5 everywhere.
func minmax(col []float64) []float64 {
	lo, hi := col[0], col[0]
	for _, v := range col {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(col))
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range col {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// percentileRank maps each value to its fraction of values not above it.
func percentileRank(col []float64) []float64 {
	n := len(col)
	out := make([]float64, n)
	if n == 1 {
		out[0] = 0.5
		return out
	}
	for i, v := range col {
		below := 0
		for j, w := range col {
			if j != i && w <= v {
				below++
			}
		}
		out[i] = float64(below) / float64(n-1)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Dimension readers. Each returns a raw reading; scale does not matter
// because normalization is relative to the universe.

func technicalDimension(set *contracts.SignalSet) float64 {
	total := 0.0
	for _, name := range []string{contracts.SigMAAlignment, contracts.SigMACD, contracts.SigKDJ, contracts.SigRSI} {
		if sig, ok := set.Get(name); ok {
			total += float64(sig.Direction) * sig.Strength * sig.Confidence
		}
	}
	return total
}

func patternDimension(set *contracts.SignalSet) float64 {
	total := 0.0
	for _, t := range set.Tags {
		if t.Bullish {
			total += t.Strength
		} else {
			total -= t.Strength
		}
	}
	return total
}

func flowDimension(set *contracts.SignalSet) float64 {
	if sig, ok := set.Get(contracts.SigFlow); ok {
		return float64(sig.Direction) * sig.Strength
	}
	return 0
}

// valuationDimension prefers cheap but profitable: positive bounded PE and
// modest PB read high, loss-makers read low.
func valuationDimension(snap *contracts.MarketSnapshot) float64 {
	if !snap.Availability.Valuation {
		return 0
	}
	score := 0.0
	switch {
	case snap.PETTM <= 0:
		score -= 1 // loss-making
	case snap.PETTM < 20:
		score += 1
	case snap.PETTM < 40:
		score += 0.5
	case snap.PETTM > 80:
		score -= 0.5
	}
	switch {
	case snap.PB > 0 && snap.PB < 2:
		score += 0.5
	case snap.PB > 10:
		score -= 0.5
	}
	return score
}

// Announcement keywords that tilt sentiment. Matched against headline
// text, newest items first.
var (
	bullishNews = []string{"预增", "增持", "回购", "中标", "分红", "战略合作"}
	bearishNews = []string{"预亏", "减持", "诉讼", "处罚", "立案", "质押", "问询函"}
)

// sentimentDimension reads crowd interest off turnover and the volume
// ratio, penalizing overheated churn. Recent announcements tilt the
// score when the news section was fetched.
func sentimentDimension(snap *contracts.MarketSnapshot) float64 {
	if !snap.Availability.Quote {
		return 0
	}
	score := 0.0
	if sigv := snap.VolumeRatio; sigv > 0 {
		switch {
		case sigv >= 1 && sigv <= 3:
			score += sigv - 1 // healthy pickup
		case sigv > 3:
			score += 2 - (sigv-3)*0.3 // overheated
		}
	}
	switch {
	case snap.TurnoverRate > 1 && snap.TurnoverRate < 10:
		score += 0.5
	case snap.TurnoverRate >= 20:
		score -= 0.5
	}
	if snap.Availability.News {
		score += newsTilt(snap.News)
	}
	return score
}

// newsTilt scores announcement headlines by keyword. Bearish hits weigh
// more than bullish ones, and the total is capped at one point either way.
func newsTilt(items []contracts.NewsItem) float64 {
	tilt := 0.0
	for _, item := range items {
		for _, kw := range bullishNews {
			if strings.Contains(item.Title, kw) {
				tilt += 0.3
				break
			}
		}
		for _, kw := range bearishNews {
			if strings.Contains(item.Title, kw) {
				tilt -= 0.4
				break
			}
		}
	}
	return math.Max(-1, math.Min(1, tilt))
}
