package contracts

import "time"

// Scoring dimensions.
const (
	DimTechnical = "technical"
	DimPattern   = "pattern"
	DimFlow      = "flow"
	DimValuation = "valuation"
	DimSentiment = "sentiment"
)

// CompositeScore is the fused 0~100 score for one symbol.
type CompositeScore struct {
	Symbol    string             `json:"symbol"`
	Score     float64            `json:"score"` // 0 ~ 100
	Breakdown map[string]float64 `json:"breakdown"`
	Rank      int                `json:"rank"` // 1-based, set by the ranker

	// Partial marks a score computed with at least one source section
	// missing for this symbol.
	Partial bool `json:"partial"`

	// NetInflow carries the latest flow reading for deterministic
	// tie-breaking in the ranker.
	NetInflow float64 `json:"net_inflow"`
}

// RankedResult is the unit published to the recommendation store after a
// completed cycle.
type RankedResult struct {
	Candidates  []Recommendation `json:"candidates"`
	GeneratedAt time.Time        `json:"generated_at"`
	Degraded    bool             `json:"degraded"` // rule-engine fallback was used
	Stale       bool             `json:"stale"`    // set by the store on read
	Cause       string           `json:"cause,omitempty"`
}

// TopN returns the first n candidates.
func (r *RankedResult) TopN(n int) []Recommendation {
	if n > len(r.Candidates) {
		n = len(r.Candidates)
	}
	return r.Candidates[:n]
}

// DimensionScore is one axis of a deep-dive diagnosis.
type DimensionScore struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"` // 0 ~ 100
	Comment string  `json:"comment"`
}

// Deep-dive dimensions.
const (
	DiveTechnical  = "technical"
	DiveMomentum   = "momentum"
	DiveFlow       = "capital_flow"
	DiveValuation  = "valuation"
	DiveVolatility = "volatility"
	DiveSentiment  = "sentiment"
)

// DeepDiveResult is the output of a single-symbol diagnosis.
type DeepDiveResult struct {
	Symbol         string           `json:"symbol"`
	Name           string           `json:"name"`
	Dimensions     []DimensionScore `json:"dimensions"`
	OverallScore   float64          `json:"overall_score"`
	Recommendation Recommendation   `json:"recommendation"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
