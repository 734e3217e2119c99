package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/internal/position"
	"github.com/quantumalpha/backend/internal/reasoning"
	"github.com/quantumalpha/backend/pkg/redis"
)

// diveWeights fuses the six diagnosis axes into the overall score.
var diveWeights = map[string]float64{
	contracts.DiveTechnical:  0.25,
	contracts.DiveMomentum:   0.20,
	contracts.DiveFlow:       0.20,
	contracts.DiveValuation:  0.15,
	contracts.DiveVolatility: 0.10,
	contracts.DiveSentiment:  0.10,
}

// Diagnose runs a single-symbol deep dive: six scored dimensions, a sized
// recommendation and, when withReasoning is set, an AI assessment. Full
// diagnoses are cached; quick ones are cheap enough to recompute.
func (e *Engine) Diagnose(ctx context.Context, symbol string, withReasoning bool) (*contracts.DeepDiveResult, error) {
	cacheKey := redis.DiagnosisKey(symbol)
	if withReasoning && e.cache != nil {
		var cached contracts.DeepDiveResult
		if found, _ := e.cache.Get(ctx, cacheKey, &cached); found {
			return &cached, nil
		}
	}

	snaps, err := e.aggregator.Fetch(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, contracts.DomainErrorf(contracts.KindSourceUnavailable,
			"no data for %s from any source", symbol)
	}

	snap := &snaps[0]
	set := e.signals.Compute(snap)
	vol := position.Volatility20(snap.History)

	dims := []contracts.DimensionScore{
		diveTechnical(set),
		diveMomentum(snap, set),
		diveFlow(snap, set),
		diveValuation(snap),
		diveVolatility(snap, vol),
		diveSentiment(snap),
	}

	overall := 0.0
	breakdown := make(map[string]float64, len(dims))
	for _, d := range dims {
		overall += d.Score * diveWeights[d.Name]
		breakdown[d.Name] = d.Score
	}
	overall = clamp01x100(overall)

	rec := contracts.Recommendation{
		Symbol:   snap.Symbol,
		Name:     snap.Name,
		Signal:   e.scorer.Classify(overall),
		Score:    overall,
		BuyPrice: snap.Price,
	}
	e.sizer.Build(&rec, vol)

	latest, _ := snap.LatestFlow()
	cand := reasoning.Candidate{
		Snapshot: snap,
		Signals:  set,
		Score: contracts.CompositeScore{
			Symbol:    snap.Symbol,
			Score:     overall,
			Breakdown: breakdown,
			Rank:      1,
			Partial:   !snap.Availability.Complete(),
			NetInflow: latest.NetInflow,
		},
		Rec: &rec,
	}
	if withReasoning {
		e.orch.Enrich(ctx, []reasoning.Candidate{cand})
	} else {
		e.orch.ApplyRules([]reasoning.Candidate{cand})
	}

	result := &contracts.DeepDiveResult{
		Symbol:         snap.Symbol,
		Name:           snap.Name,
		Dimensions:     dims,
		OverallScore:   overall,
		Recommendation: rec,
		GeneratedAt:    time.Now(),
	}

	if withReasoning && e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, result, redis.TTLDiagnosis); err != nil {
			e.logger.WithField("error", err.Error()).Debug("Diagnosis cache write failed")
		}
	}
	return result, nil
}

func diveTechnical(set *contracts.SignalSet) contracts.DimensionScore {
	score := 50.0
	for _, name := range []string{
		contracts.SigMAAlignment, contracts.SigMACD, contracts.SigKDJ, contracts.SigRSI,
	} {
		if sig, ok := set.Get(name); ok {
			score += float64(sig.Direction) * sig.Strength * 12.5
		}
	}
	score = clamp01x100(score)

	comment := "技术面中性，暂无明确方向"
	switch {
	case len(set.Insufficient) > 0:
		comment = "历史数据不足，技术指标未计算"
		score = 50
	case score >= 70:
		comment = "技术指标多头共振，趋势向好"
	case score <= 30:
		comment = "技术指标偏弱，趋势承压"
	}
	return contracts.DimensionScore{Name: contracts.DiveTechnical, Score: score, Comment: comment}
}

func diveMomentum(snap *contracts.MarketSnapshot, set *contracts.SignalSet) contracts.DimensionScore {
	score := 50.0
	score += snap.ChangePct * 2

	if sig, ok := set.Get(contracts.SigMACD); ok {
		score += float64(sig.Direction) * sig.Strength * 15
	}
	if sig, ok := set.Get(contracts.SigRSI); ok {
		score += (sig.Value - 50) * 0.4
	}
	score = clamp01x100(score)

	comment := "短期动能平稳"
	switch {
	case score >= 70:
		comment = "上涨动能充足，短期走势强劲"
	case score <= 30:
		comment = "动能转弱，短期走势疲软"
	}
	return contracts.DimensionScore{Name: contracts.DiveMomentum, Score: score, Comment: comment}
}

func diveFlow(snap *contracts.MarketSnapshot, set *contracts.SignalSet) contracts.DimensionScore {
	if !snap.Availability.Flow {
		return contracts.DimensionScore{
			Name: contracts.DiveFlow, Score: 50, Comment: "资金流向数据缺失",
		}
	}
	score := 50.0
	if sig, ok := set.Get(contracts.SigFlow); ok {
		score += float64(sig.Direction) * sig.Strength * 40
	}
	score = clamp01x100(score)

	comment := "主力资金进出均衡"
	switch {
	case score >= 80:
		comment = "主力资金异常净流入，资金面强势"
	case score >= 60:
		comment = "主力资金温和净流入"
	case score <= 20:
		comment = "主力资金异常净流出，资金面承压"
	case score <= 40:
		comment = "主力资金净流出"
	}
	return contracts.DimensionScore{Name: contracts.DiveFlow, Score: score, Comment: comment}
}

func diveValuation(snap *contracts.MarketSnapshot) contracts.DimensionScore {
	if !snap.Availability.Valuation {
		return contracts.DimensionScore{
			Name: contracts.DiveValuation, Score: 50, Comment: "估值数据缺失",
		}
	}
	score := 50.0
	comment := "估值处于合理区间"
	switch {
	case snap.PETTM <= 0:
		score -= 25
		comment = "公司亏损，PE为负，估值风险高"
	case snap.PETTM < 20:
		score += 25
		comment = fmt.Sprintf("PE %.1f 处于低位，安全边际较高", snap.PETTM)
	case snap.PETTM < 40:
		score += 10
	case snap.PETTM > 80:
		score -= 15
		comment = fmt.Sprintf("PE %.1f 明显偏高，注意估值回归", snap.PETTM)
	}
	switch {
	case snap.PB > 0 && snap.PB < 2:
		score += 10
	case snap.PB > 10:
		score -= 10
	}
	score = clamp01x100(score)
	return contracts.DimensionScore{Name: contracts.DiveValuation, Score: score, Comment: comment}
}

func diveVolatility(snap *contracts.MarketSnapshot, vol float64) contracts.DimensionScore {
	if !snap.HasHistory(21) {
		return contracts.DimensionScore{
			Name: contracts.DiveVolatility, Score: 50, Comment: "历史数据不足，波动率未计算",
		}
	}
	// Daily close-to-close stddev; 2% reads neutral, 5%+ reads risky.
	score := clamp01x100(100 - vol*2500)

	comment := "波动率温和"
	switch {
	case score <= 30:
		comment = fmt.Sprintf("日波动率 %.1f%% 偏高，注意仓位控制", vol*100)
	case score >= 75:
		comment = "波动率低，走势平稳"
	}
	return contracts.DimensionScore{Name: contracts.DiveVolatility, Score: score, Comment: comment}
}

func diveSentiment(snap *contracts.MarketSnapshot) contracts.DimensionScore {
	if !snap.Availability.Quote {
		return contracts.DimensionScore{
			Name: contracts.DiveSentiment, Score: 50, Comment: "行情数据缺失",
		}
	}
	score := 50.0
	switch vr := snap.VolumeRatio; {
	case vr >= 1 && vr <= 3:
		score += (vr - 1) * 15
	case vr > 3:
		score += 30 - (vr-3)*10
	}
	switch {
	case snap.TurnoverRate > 1 && snap.TurnoverRate < 10:
		score += 10
	case snap.TurnoverRate >= 20:
		score -= 10
	}
	score = clamp01x100(score)

	comment := "市场关注度一般"
	switch {
	case score >= 70:
		comment = "量比与换手温和放大，人气回升"
	case score <= 30:
		comment = "成交低迷或过度炒作，情绪面不佳"
	}
	return contracts.DimensionScore{Name: contracts.DiveSentiment, Score: score, Comment: comment}
}

func clamp01x100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
