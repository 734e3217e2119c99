package contracts

import "time"

// Direction of a signal.
type Direction int

const (
	Bearish Direction = -1
	Neutral Direction = 0
	Bullish Direction = 1
)

// Signal is one computed indicator reading.
type Signal struct {
	Value      float64   `json:"value"`
	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`   // 0.0 ~ 1.0
	Confidence float64   `json:"confidence"` // 0.0 ~ 1.0
}

// Signal names produced by the engine.
const (
	SigMAAlignment = "ma_alignment"
	SigMACD        = "macd"
	SigKDJ         = "kdj"
	SigRSI         = "rsi"
	SigVolumeRatio = "volume_ratio"
	SigFlow        = "flow"
)

// PatternTag is a discrete candlestick / price-action pattern hit.
type PatternTag struct {
	Name     string  `json:"name"`
	Bullish  bool    `json:"bullish"`
	Strength float64 `json:"strength"` // 0.0 ~ 1.0
}

// Pattern tag names.
const (
	TagBreakout           = "breakout"
	TagBottomReversal     = "bottom_reversal"
	TagMorningStar        = "morning_star"
	TagBullishEngulfing   = "bullish_engulfing"
	TagVolumeSurge        = "volume_surge"
	TagConsecutiveAdvance = "consecutive_advance"
	TagEveningStar        = "evening_star"
	TagBearishEngulfing   = "bearish_engulfing"
	TagBullishHarami      = "bullish_harami"
	TagConsecutiveDecline = "consecutive_decline"
)

// SignalSet holds every signal computed for one symbol in one cycle.
// ⭐ SSOT: signal engine → scorer/reasoning handoff
type SignalSet struct {
	Symbol  string            `json:"symbol"`
	Signals map[string]Signal `json:"signals"`
	Tags    []PatternTag      `json:"tags"`

	// Insufficient lists signals skipped because the history window was
	// too short. Skipped, not zero.
	Insufficient []string  `json:"insufficient,omitempty"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Get returns a signal by name.
func (s *SignalSet) Get(name string) (Signal, bool) {
	sig, ok := s.Signals[name]
	return sig, ok
}

// HasTag reports whether a pattern tag was hit.
func (s *SignalSet) HasTag(name string) bool {
	for _, t := range s.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// BullishTagCount returns the number of bullish pattern hits.
func (s *SignalSet) BullishTagCount() int {
	n := 0
	for _, t := range s.Tags {
		if t.Bullish {
			n++
		}
	}
	return n
}
