package signal

import (
	talib "github.com/markcheno/go-talib"

	"github.com/quantumalpha/backend/internal/contracts"
)

// Indicator windows.
const (
	maShort  = 5
	maMid    = 10
	maLong   = 20
	maTrend  = 60
	macdFast = 12
	macdSlow = 26
	macdSig  = 9
	kdjN     = 9
	kdjM     = 3
	rsiN     = 14

	// minTechnicalBars is the history needed for the full indicator set.
	minTechnicalBars = macdSlow + macdSig
)

// technicalState is the raw indicator readout behind the scored signals.
type technicalState struct {
	ma5, ma10, ma20, ma60 float64
	bullishAlignment      bool
	bearishAlignment      bool

	macd, macdSignal, macdHist float64
	macdAboveZero              bool
	macdGoldenCross            bool
	macdDeathCross             bool

	k, d, j       float64
	kdjGolden     bool
	kdjDeath      bool
	kdjOverbought bool
	kdjOversold   bool

	rsi float64
}

// computeTechnical runs the talib indicator set over the snapshot history.
// Callers must check HasHistory(minTechnicalBars) first.
func computeTechnical(snap *contracts.MarketSnapshot) technicalState {
	closes := snap.Closes()
	highs := make([]float64, len(snap.History))
	lows := make([]float64, len(snap.History))
	for i, c := range snap.History {
		highs[i] = c.High
		lows[i] = c.Low
	}
	last := len(closes) - 1

	var st technicalState

	ma5 := talib.Ma(closes, maShort, talib.SMA)
	ma10 := talib.Ma(closes, maMid, talib.SMA)
	ma20 := talib.Ma(closes, maLong, talib.SMA)
	st.ma5, st.ma10, st.ma20 = ma5[last], ma10[last], ma20[last]
	if len(closes) >= maTrend {
		st.ma60 = talib.Ma(closes, maTrend, talib.SMA)[last]
	}

	price := closes[last]
	st.bullishAlignment = price > st.ma5 && st.ma5 > st.ma10 && st.ma10 > st.ma20
	st.bearishAlignment = price < st.ma5 && st.ma5 < st.ma10 && st.ma10 < st.ma20

	macd, sig, hist := talib.Macd(closes, macdFast, macdSlow, macdSig)
	st.macd, st.macdSignal, st.macdHist = macd[last], sig[last], hist[last]
	st.macdAboveZero = st.macd > 0
	st.macdGoldenCross = macd[last] > sig[last] && macd[last-1] <= sig[last-1]
	st.macdDeathCross = macd[last] < sig[last] && macd[last-1] >= sig[last-1]

	k, d := talib.Stoch(highs, lows, closes, kdjN, kdjM, talib.SMA, kdjM, talib.SMA)
	st.k, st.d = k[last], d[last]
	st.j = 3*st.k - 2*st.d
	st.kdjGolden = k[last] > d[last] && k[last-1] <= d[last-1]
	st.kdjDeath = k[last] < d[last] && k[last-1] >= d[last-1]
	st.kdjOverbought = st.j > 90
	st.kdjOversold = st.j < 10

	st.rsi = talib.Rsi(closes, rsiN)[last]

	return st
}

// technicalSignals turns the indicator readout into scored signals,
// mirroring the resonance scoring of the detector: MACD, KDJ and the MA
// alignment each vote, crosses weigh more than levels.
func technicalSignals(st technicalState) map[string]contracts.Signal {
	signals := make(map[string]contracts.Signal)

	// MA alignment
	switch {
	case st.bullishAlignment:
		signals[contracts.SigMAAlignment] = contracts.Signal{
			Value: 1, Direction: contracts.Bullish, Strength: 0.7, Confidence: 0.8,
		}
	case st.bearishAlignment:
		signals[contracts.SigMAAlignment] = contracts.Signal{
			Value: -1, Direction: contracts.Bearish, Strength: 0.7, Confidence: 0.8,
		}
	default:
		signals[contracts.SigMAAlignment] = contracts.Signal{Direction: contracts.Neutral, Confidence: 0.5}
	}

	// MACD
	macdSig := contracts.Signal{Value: st.macdHist, Direction: contracts.Neutral, Confidence: 0.7}
	switch {
	case st.macdGoldenCross:
		macdSig.Direction = contracts.Bullish
		macdSig.Strength = 0.8
		if st.macdAboveZero {
			macdSig.Strength = 1.0 // cross above the zero axis
		}
	case st.macdDeathCross:
		macdSig.Direction = contracts.Bearish
		macdSig.Strength = 0.8
	case st.macdAboveZero && st.macdHist > 0:
		macdSig.Direction = contracts.Bullish
		macdSig.Strength = 0.4
	case !st.macdAboveZero && st.macdHist < 0:
		macdSig.Direction = contracts.Bearish
		macdSig.Strength = 0.4
	}
	signals[contracts.SigMACD] = macdSig

	// KDJ. A low-J golden cross is the higher-odds entry.
	kdjSig := contracts.Signal{Value: st.j, Direction: contracts.Neutral, Confidence: 0.6}
	switch {
	case st.kdjGolden && st.j < 50:
		kdjSig.Direction = contracts.Bullish
		kdjSig.Strength = 1.0
	case st.kdjGolden:
		kdjSig.Direction = contracts.Bullish
		kdjSig.Strength = 0.6
	case st.kdjDeath && st.j > 50:
		kdjSig.Direction = contracts.Bearish
		kdjSig.Strength = 1.0
	case st.kdjDeath:
		kdjSig.Direction = contracts.Bearish
		kdjSig.Strength = 0.6
	case st.kdjOversold:
		kdjSig.Direction = contracts.Bullish
		kdjSig.Strength = 0.4
	case st.kdjOverbought:
		kdjSig.Direction = contracts.Bearish
		kdjSig.Strength = 0.4
	}
	signals[contracts.SigKDJ] = kdjSig

	// RSI
	rsiSig := contracts.Signal{Value: st.rsi, Direction: contracts.Neutral, Confidence: 0.6}
	switch {
	case st.rsi < 30:
		rsiSig.Direction = contracts.Bullish
		rsiSig.Strength = 0.6
	case st.rsi > 70:
		rsiSig.Direction = contracts.Bearish
		rsiSig.Strength = 0.6
	}
	signals[contracts.SigRSI] = rsiSig

	return signals
}
