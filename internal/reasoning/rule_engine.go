package reasoning

import (
	"context"
	"fmt"

	"github.com/quantumalpha/backend/internal/contracts"
)

// RuleEngine is the deterministic fallback: fixed templates over the
// discrete signal and pattern state. Identical input produces
// byte-identical output, so a degraded cycle is reproducible.
type RuleEngine struct{}

// NewRuleEngine creates the rule engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

func (r *RuleEngine) Name() string { return ProviderRuleEngine }

// Complete exists to satisfy Backend; the orchestrator routes rule-engine
// cycles through Assess instead of a prompt round-trip.
func (r *RuleEngine) Complete(ctx context.Context, req Request) (*Response, error) {
	return nil, fmt.Errorf("rule engine has no completion endpoint: %w", contracts.ErrReasoningError)
}

// signalReasons maps discrete signal states to fixed reason strings, in a
// fixed evaluation order.
var patternReasons = map[string]string{
	contracts.TagMorningStar:        "出现早晨之星形态，底部反转信号明确",
	contracts.TagBullishEngulfing:   "阳线吞没前日阴线，多头强势反击",
	contracts.TagBullishHarami:      "大阴线后出现孕线，下跌动能衰竭",
	contracts.TagBreakout:           "放量突破近20日高点，上行空间打开",
	contracts.TagConsecutiveAdvance: "连续阳线收高，多头趋势延续",
	contracts.TagVolumeSurge:        "量比显著放大，市场关注度提升",
	contracts.TagBottomReversal:     "底部反转形态确认",
}

var patternRisks = map[string]string{
	contracts.TagEveningStar:        "出现黄昏之星形态，注意顶部反转风险",
	contracts.TagBearishEngulfing:   "阴线吞没前日阳线，空头占优",
	contracts.TagConsecutiveDecline: "连续阴线收低，下跌趋势未止",
}

// Assess produces the fallback assessment. Deterministic over the
// candidate's discrete state.
func (r *RuleEngine) Assess(c Candidate) *aiAssessment {
	a := &aiAssessment{}

	// Signal-derived reasons in fixed order.
	if sig, ok := c.Signals.Get(contracts.SigMAAlignment); ok && sig.Direction == contracts.Bullish {
		a.Reasons = append(a.Reasons, "均线多头排列，趋势向上")
	}
	if sig, ok := c.Signals.Get(contracts.SigMACD); ok {
		if sig.Direction == contracts.Bullish && sig.Strength >= 0.8 {
			a.Reasons = append(a.Reasons, "MACD金叉，动能转强")
		} else if sig.Direction == contracts.Bearish && sig.Strength >= 0.8 {
			a.RiskFactors = append(a.RiskFactors, "MACD死叉，短期动能转弱")
		}
	}
	if sig, ok := c.Signals.Get(contracts.SigKDJ); ok {
		if sig.Direction == contracts.Bullish && sig.Strength >= 1.0 {
			a.Reasons = append(a.Reasons, "KDJ低位金叉，高胜率入场信号")
		} else if sig.Direction == contracts.Bearish && sig.Strength >= 1.0 {
			a.RiskFactors = append(a.RiskFactors, "KDJ高位死叉，警惕回调")
		}
	}
	if sig, ok := c.Signals.Get(contracts.SigFlow); ok {
		if sig.Direction == contracts.Bullish && sig.Strength >= 1.0 {
			a.Reasons = append(a.Reasons, "主力资金异常净流入，资金面强势")
		} else if sig.Direction == contracts.Bullish {
			a.Reasons = append(a.Reasons, "主力资金净流入")
		} else if sig.Direction == contracts.Bearish && sig.Strength >= 1.0 {
			a.RiskFactors = append(a.RiskFactors, "主力资金异常净流出，注意风险")
		}
	}

	// Pattern tags in the engine's emitted order.
	for _, t := range c.Signals.Tags {
		if reason, ok := patternReasons[t.Name]; ok {
			a.Reasons = append(a.Reasons, reason)
		}
		if risk, ok := patternRisks[t.Name]; ok {
			a.RiskFactors = append(a.RiskFactors, risk)
		}
	}

	// Data gaps are always worth naming.
	if c.Score.Partial {
		a.RiskFactors = append(a.RiskFactors, "部分数据源缺失，评分基于不完整数据")
	}

	// Never return an empty assessment.
	if len(a.Reasons) == 0 {
		a.Reasons = append(a.Reasons,
			fmt.Sprintf("综合评分%.0f分，无明确单项驱动信号", c.Score.Score))
	}
	if len(a.RiskFactors) == 0 {
		a.RiskFactors = append(a.RiskFactors, "市场系统性风险")
	}

	switch c.Rec.Signal {
	case contracts.SignalBuy:
		a.Narrative = fmt.Sprintf("%s 综合评分%.0f，多项信号共振，符合买入条件。",
			c.Snapshot.Name, c.Score.Score)
		a.HoldPeriod = "5-10个交易日"
		a.EntryTiming = "开盘后观察30分钟，回踩不破买入价分批建仓"
	case contracts.SignalHold:
		a.Narrative = fmt.Sprintf("%s 综合评分%.0f，信号中性，建议持有观察。",
			c.Snapshot.Name, c.Score.Score)
		a.HoldPeriod = "观察1-3个交易日"
		a.EntryTiming = "暂不加仓"
	default:
		a.Narrative = fmt.Sprintf("%s 综合评分%.0f，信号偏弱，建议回避。",
			c.Snapshot.Name, c.Score.Score)
		a.HoldPeriod = "-"
		a.EntryTiming = "-"
	}

	// Confidence tracks the score linearly, capped below AI output.
	a.Confidence = c.Score.Score / 100 * 0.75

	return a
}

// applyFallback writes the rule-engine assessment onto the recommendation
// and marks it degraded.
func (r *RuleEngine) applyFallback(c Candidate) {
	a := r.Assess(c)
	a.apply(c.Rec)
	c.Rec.Degraded = true
}
