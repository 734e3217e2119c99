package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quantumalpha/backend/internal/contracts"
)

// systemPrompt pins the output contract for every AI backend.
const systemPrompt = `You are an A-share trading analyst. Given a stock's market data,
computed signals and composite score, produce a trading assessment.
Respond with a single JSON object, no markdown fences, with exactly these keys:
{"narrative": str, "reasons": [str], "risk_factors": [str],
 "hold_period": str, "entry_timing": str, "confidence": float between 0 and 1}
Write reasons and risk factors in Chinese, each a single sentence.`

// Candidate bundles everything the reasoning step knows about one symbol.
type Candidate struct {
	Snapshot *contracts.MarketSnapshot
	Signals  *contracts.SignalSet
	Score    contracts.CompositeScore
	Rec      *contracts.Recommendation
}

// buildPrompt formats the candidate context into the user message.
func buildPrompt(c Candidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Stock: %s %s (industry: %s)\n", c.Snapshot.Symbol, c.Snapshot.Name, c.Snapshot.Industry)
	fmt.Fprintf(&b, "Price: %.2f  change: %+.2f%%  turnover: %.2f%%  volume ratio: %.2f\n",
		c.Snapshot.Price, c.Snapshot.ChangePct, c.Snapshot.TurnoverRate, c.Snapshot.VolumeRatio)
	if c.Snapshot.Availability.Valuation {
		fmt.Fprintf(&b, "Valuation: PE-TTM %.1f  PB %.2f\n", c.Snapshot.PETTM, c.Snapshot.PB)
	}
	fmt.Fprintf(&b, "Composite score: %.1f (rank %d)", c.Score.Score, c.Score.Rank)
	if c.Score.Partial {
		b.WriteString(" [partial data]")
	}
	b.WriteString("\nBreakdown:")
	for _, dim := range []string{
		contracts.DimTechnical, contracts.DimPattern, contracts.DimFlow,
		contracts.DimValuation, contracts.DimSentiment,
	} {
		fmt.Fprintf(&b, " %s=%.2f", dim, c.Score.Breakdown[dim])
	}
	b.WriteString("\nSignals:\n")
	for name, sig := range c.Signals.Signals {
		fmt.Fprintf(&b, "- %s: direction=%d strength=%.2f value=%.2f\n",
			name, sig.Direction, sig.Strength, sig.Value)
	}
	if len(c.Signals.Tags) > 0 {
		b.WriteString("Patterns:")
		for _, t := range c.Signals.Tags {
			side := "bearish"
			if t.Bullish {
				side = "bullish"
			}
			fmt.Fprintf(&b, " %s(%s,%.2f)", t.Name, side, t.Strength)
		}
		b.WriteString("\n")
	}
	if p, ok := c.Snapshot.LatestFlow(); ok {
		fmt.Fprintf(&b, "Latest main-capital net inflow: %.0f CNY\n", p.NetInflow)
	}
	fmt.Fprintf(&b, "Proposed action: %s  buy %.2f  sell %.2f  stop %.2f\n",
		c.Rec.Signal, c.Rec.BuyPrice, c.Rec.SellPrice, c.Rec.StopLossPrice)

	return b.String()
}

// aiAssessment is the JSON contract the backends are asked to return.
type aiAssessment struct {
	Narrative   string   `json:"narrative"`
	Reasons     []string `json:"reasons"`
	RiskFactors []string `json:"risk_factors"`
	HoldPeriod  string   `json:"hold_period"`
	EntryTiming string   `json:"entry_timing"`
	Confidence  float64  `json:"confidence"`
}

// parseAssessment extracts the JSON object from a completion, tolerating
// markdown fences and prose around it.
func parseAssessment(content string) (*aiAssessment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion: %w", contracts.ErrReasoningError)
	}

	var a aiAssessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("malformed assessment JSON: %w", contracts.ErrReasoningError)
	}
	if a.Narrative == "" && len(a.Reasons) == 0 {
		return nil, fmt.Errorf("empty assessment: %w", contracts.ErrReasoningError)
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return &a, nil
}

// apply copies an assessment onto the recommendation.
func (a *aiAssessment) apply(rec *contracts.Recommendation) {
	rec.Narrative = a.Narrative
	rec.Reasons = a.Reasons
	rec.RiskFactors = append(rec.RiskFactors, a.RiskFactors...)
	rec.HoldPeriod = a.HoldPeriod
	rec.EntryTiming = a.EntryTiming
	rec.Confidence = a.Confidence
	rec.Degraded = false
}
