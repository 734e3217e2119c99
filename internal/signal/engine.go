package signal

import (
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// volumeSurgeRatio is the volume-ratio cutoff for the surge tag.
const volumeSurgeRatio = 2.0

// Engine computes the per-symbol signal set. Pure: no I/O, safe for
// concurrent use.
type Engine struct {
	logger         *logger.Logger
	flowZThreshold float64
}

// NewEngine creates a signal engine
func NewEngine(cfg *config.Config, log *logger.Logger) *Engine {
	return &Engine{
		logger:         log,
		flowZThreshold: cfg.Scan.FlowZScoreThreshold,
	}
}

// Compute derives every signal for one snapshot. Signals whose history
// window is too short land in Insufficient instead of reading as zero.
func (e *Engine) Compute(snap *contracts.MarketSnapshot) *contracts.SignalSet {
	set := &contracts.SignalSet{
		Symbol:     snap.Symbol,
		Signals:    make(map[string]contracts.Signal),
		ComputedAt: time.Now(),
	}

	if snap.HasHistory(minTechnicalBars) {
		st := computeTechnical(snap)
		for name, sig := range technicalSignals(st) {
			set.Signals[name] = sig
		}
		set.Tags = scanPatterns(snap, volumeSurgeRatio)
	} else {
		set.Insufficient = append(set.Insufficient,
			contracts.SigMAAlignment, contracts.SigMACD, contracts.SigKDJ, contracts.SigRSI)
	}

	if snap.Availability.Quote && snap.VolumeRatio > 0 {
		dir := contracts.Neutral
		strength := 0.3
		if snap.VolumeRatio >= volumeSurgeRatio {
			dir = contracts.Bullish
			if snap.ChangePct < 0 {
				dir = contracts.Bearish
			}
			strength = 0.7
		} else if snap.VolumeRatio < 0.5 {
			strength = 0.2 // drying up
		}
		set.Signals[contracts.SigVolumeRatio] = contracts.Signal{
			Value: snap.VolumeRatio, Direction: dir, Strength: strength, Confidence: 0.6,
		}
	} else {
		set.Insufficient = append(set.Insufficient, contracts.SigVolumeRatio)
	}

	if sig, ok := flowSignal(snap.Flow, e.flowZThreshold); ok {
		set.Signals[contracts.SigFlow] = sig
	} else {
		set.Insufficient = append(set.Insufficient, contracts.SigFlow)
	}

	e.logger.WithFields(map[string]interface{}{
		"symbol":       snap.Symbol,
		"signals":      len(set.Signals),
		"tags":         len(set.Tags),
		"insufficient": len(set.Insufficient),
	}).Debug("Signals computed")
	return set
}
