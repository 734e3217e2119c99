package signal

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantumalpha/backend/internal/contracts"
)

// minFlowPoints is the series length needed for a meaningful z-score.
const minFlowPoints = 5

// flowSignal scores the capital-flow series. The value is the z-score of
// the latest net inflow against the series; an abnormal day (|z| above
// threshold) pushes strength to full.
func flowSignal(flow []contracts.FlowPoint, zThreshold float64) (contracts.Signal, bool) {
	if len(flow) < minFlowPoints {
		return contracts.Signal{}, false
	}

	series := make([]float64, len(flow))
	for i, p := range flow {
		series[i] = p.NetInflow
	}
	latest := series[len(series)-1]

	mean, std := stat.MeanStdDev(series, nil)
	var z float64
	if std > 0 {
		z = (latest - mean) / std
	}

	sig := contracts.Signal{Value: z, Direction: contracts.Neutral, Confidence: 0.7}
	switch {
	case latest > 0:
		sig.Direction = contracts.Bullish
	case latest < 0:
		sig.Direction = contracts.Bearish
	}

	abs := math.Abs(z)
	switch {
	case abs >= zThreshold:
		sig.Strength = 1.0 // abnormal flow day
	case abs >= zThreshold/2:
		sig.Strength = 0.6
	default:
		sig.Strength = 0.3
	}

	return sig, true
}
