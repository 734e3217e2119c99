package signal

import (
	"math"

	"github.com/quantumalpha/backend/internal/contracts"
)

// Candle body helpers over a history slice, oldest first.

func bodySize(c contracts.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func isYang(c contracts.Candle) bool {
	return c.Close > c.Open
}

func isYin(c contracts.Candle) bool {
	return c.Close < c.Open
}

func avgBodySize(h []contracts.Candle, lookback int) float64 {
	if len(h) < lookback {
		lookback = len(h)
	}
	if lookback == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range h[len(h)-lookback:] {
		sum += bodySize(c)
	}
	return sum / float64(lookback)
}

// scanPatterns checks every supported pattern at the last bar and returns
// the hits, strongest first ordering left to the caller.
func scanPatterns(snap *contracts.MarketSnapshot, volumeSurgeRatio float64) []contracts.PatternTag {
	h := snap.History
	var tags []contracts.PatternTag

	if tag, ok := morningStar(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := eveningStar(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := bullishEngulfing(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := bearishEngulfing(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := bullishHarami(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := consecutiveAdvance(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := consecutiveDecline(h); ok {
		tags = append(tags, tag)
	}
	if tag, ok := breakout(h); ok {
		tags = append(tags, tag)
	}
	if snap.VolumeRatio > volumeSurgeRatio {
		tags = append(tags, contracts.PatternTag{
			Name:     contracts.TagVolumeSurge,
			Bullish:  snap.ChangePct >= 0,
			Strength: math.Min(snap.VolumeRatio/5, 1),
		})
	}

	// A bullish reversal star or engulfing at the last bar doubles as the
	// bottom-reversal tag.
	for _, t := range tags {
		if t.Name == contracts.TagMorningStar || t.Name == contracts.TagBullishEngulfing {
			tags = append(tags, contracts.PatternTag{
				Name: contracts.TagBottomReversal, Bullish: true, Strength: t.Strength,
			})
			break
		}
	}

	return tags
}

// morningStar: long yin, gapped-down star, yang closing into the first
// body's upper half.
func morningStar(h []contracts.Candle) (contracts.PatternTag, bool) {
	if len(h) < 3 {
		return contracts.PatternTag{}, false
	}
	d1, d2, d3 := h[len(h)-3], h[len(h)-2], h[len(h)-1]
	avg := avgBodySize(h, 10)

	if !isYin(d1) || bodySize(d1) < avg*0.8 {
		return contracts.PatternTag{}, false
	}
	if bodySize(d2) > avg*0.3 || d2.High > d1.Close {
		return contracts.PatternTag{}, false
	}
	if !isYang(d3) || d3.Close <= (d1.Open+d1.Close)/2 {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{Name: contracts.TagMorningStar, Bullish: true, Strength: 0.75}, true
}

// eveningStar is the mirrored top reversal.
func eveningStar(h []contracts.Candle) (contracts.PatternTag, bool) {
	if len(h) < 3 {
		return contracts.PatternTag{}, false
	}
	d1, d2, d3 := h[len(h)-3], h[len(h)-2], h[len(h)-1]
	avg := avgBodySize(h, 10)

	if !isYang(d1) || bodySize(d1) < avg*0.8 {
		return contracts.PatternTag{}, false
	}
	if bodySize(d2) > avg*0.3 || d2.Low < d1.Close {
		return contracts.PatternTag{}, false
	}
	if !isYin(d3) || d3.Close >= (d1.Open+d1.Close)/2 {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{Name: contracts.TagEveningStar, Bullish: false, Strength: 0.75}, true
}

func bullishEngulfing(h []contracts.Candle) (contracts.PatternTag, bool) {
	if len(h) < 2 {
		return contracts.PatternTag{}, false
	}
	d1, d2 := h[len(h)-2], h[len(h)-1]

	if !isYin(d1) || !isYang(d2) {
		return contracts.PatternTag{}, false
	}
	if d2.Open >= d1.Close || d2.Close <= d1.Open {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{Name: contracts.TagBullishEngulfing, Bullish: true, Strength: 0.7}, true
}

func bearishEngulfing(h []contracts.Candle) (contracts.PatternTag, bool) {
	if len(h) < 2 {
		return contracts.PatternTag{}, false
	}
	d1, d2 := h[len(h)-2], h[len(h)-1]

	if !isYang(d1) || !isYin(d2) {
		return contracts.PatternTag{}, false
	}
	if d2.Open <= d1.Close || d2.Close >= d1.Open {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{Name: contracts.TagBearishEngulfing, Bullish: false, Strength: 0.7}, true
}

// bullishHarami: small yang held inside the prior long yin body.
func bullishHarami(h []contracts.Candle) (contracts.PatternTag, bool) {
	if len(h) < 2 {
		return contracts.PatternTag{}, false
	}
	d1, d2 := h[len(h)-2], h[len(h)-1]

	if !isYin(d1) || !isYang(d2) {
		return contracts.PatternTag{}, false
	}
	if d2.Close >= d1.Open || d2.Open <= d1.Close {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{Name: contracts.TagBullishHarami, Bullish: true, Strength: 0.6}, true
}

// consecutiveAdvance: the longest run of rising yang closes ending at the
// last bar, three or more. Strength grows with the run.
func consecutiveAdvance(h []contracts.Candle) (contracts.PatternTag, bool) {
	run := 0
	for i := len(h) - 1; i > 0; i-- {
		if !isYang(h[i]) || h[i].Close <= h[i-1].Close {
			break
		}
		run++
	}
	if run < 3 {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{
		Name:     contracts.TagConsecutiveAdvance,
		Bullish:  true,
		Strength: math.Min(0.5+float64(run)*0.05, 0.9),
	}, true
}

func consecutiveDecline(h []contracts.Candle) (contracts.PatternTag, bool) {
	run := 0
	for i := len(h) - 1; i > 0; i-- {
		if !isYin(h[i]) || h[i].Close >= h[i-1].Close {
			break
		}
		run++
	}
	if run < 3 {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{
		Name:     contracts.TagConsecutiveDecline,
		Bullish:  false,
		Strength: math.Min(0.5+float64(run)*0.05, 0.9),
	}, true
}

// breakout: last close above the prior 20-day high on above-average
// volume.
func breakout(h []contracts.Candle) (contracts.PatternTag, bool) {
	const window = 20
	if len(h) < window+1 {
		return contracts.PatternTag{}, false
	}
	last := h[len(h)-1]

	high := 0.0
	avgVol := 0.0
	prior := h[len(h)-1-window : len(h)-1]
	for _, c := range prior {
		if c.High > high {
			high = c.High
		}
		avgVol += c.Volume
	}
	avgVol /= float64(window)

	if last.Close <= high || last.Volume < avgVol*1.5 {
		return contracts.PatternTag{}, false
	}
	return contracts.PatternTag{Name: contracts.TagBreakout, Bullish: true, Strength: 0.8}, true
}
