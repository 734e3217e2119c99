package contracts

import "fmt"

// TradeSignal is the final call on a symbol.
type TradeSignal string

const (
	SignalBuy   TradeSignal = "buy"
	SignalHold  TradeSignal = "hold"
	SignalAvoid TradeSignal = "avoid"
)

// PositionStrategy describes how to build the position.
type PositionStrategy struct {
	InitialPct   float64 `json:"initial_pct"` // % of capital for the first entry
	AddCondition string  `json:"add_condition"`
	MaxPct       float64 `json:"max_pct"` // hard cap, % of capital
}

// Recommendation is one actionable candidate produced by a cycle.
type Recommendation struct {
	Symbol string      `json:"symbol"`
	Name   string      `json:"name"`
	Signal TradeSignal `json:"signal"`
	Score  float64     `json:"score"`

	BuyPrice      float64 `json:"buy_price"`
	SellPrice     float64 `json:"sell_price"`
	StopLossPrice float64 `json:"stop_loss_price"`

	Position PositionStrategy `json:"position"`
	Shares   int              `json:"shares"` // board-lot rounded

	HoldPeriod  string `json:"hold_period"`
	EntryTiming string `json:"entry_timing"`

	Reasons     []string `json:"reasons"`
	RiskFactors []string `json:"risk_factors"`
	Narrative   string   `json:"narrative"`
	Confidence  float64  `json:"confidence"` // 0.0 ~ 1.0

	// Degraded marks output produced by the rule-engine fallback rather
	// than an AI backend.
	Degraded bool `json:"degraded"`
}

// ValidatePrices checks the buy-signal price ordering invariant.
func (r *Recommendation) ValidatePrices() error {
	if r.Signal != SignalBuy {
		return nil
	}
	if !(r.StopLossPrice < r.BuyPrice && r.BuyPrice <= r.SellPrice) {
		return fmt.Errorf("invalid price band: stop=%.2f buy=%.2f sell=%.2f",
			r.StopLossPrice, r.BuyPrice, r.SellPrice)
	}
	if r.Position.InitialPct > r.Position.MaxPct || r.Position.MaxPct > 100 {
		return fmt.Errorf("invalid position strategy: initial=%.1f max=%.1f",
			r.Position.InitialPct, r.Position.MaxPct)
	}
	return nil
}

// RiskProfile selects the risk parameter set.
type RiskProfile string

const (
	RiskAggressive   RiskProfile = "aggressive"
	RiskBalanced     RiskProfile = "balanced"
	RiskConservative RiskProfile = "conservative"
)

// RiskParams are the sizing parameters behind a profile.
type RiskParams struct {
	MaxPositionPct float64 // hard cap on one position, % of capital
	InitialPct     float64 // first entry, % of capital
	StopLossBand   float64 // stop distance as a fraction of buy price
}

// riskTable holds the parameter set per profile.
var riskTable = map[RiskProfile]RiskParams{
	RiskAggressive:   {MaxPositionPct: 30, InitialPct: 20, StopLossBand: 0.08},
	RiskBalanced:     {MaxPositionPct: 20, InitialPct: 10, StopLossBand: 0.06},
	RiskConservative: {MaxPositionPct: 10, InitialPct: 5, StopLossBand: 0.04},
}

// Params returns the parameter set for the profile, defaulting to balanced.
func (p RiskProfile) Params() RiskParams {
	if params, ok := riskTable[p]; ok {
		return params
	}
	return riskTable[RiskBalanced]
}

// Valid reports whether the profile is a known value.
func (p RiskProfile) Valid() bool {
	_, ok := riskTable[p]
	return ok
}
