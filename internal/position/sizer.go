package position

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// BoardLot is the A-share minimum trading unit.
const BoardLot = 100

// Sizer derives price bands and lot-rounded share counts.
// ⭐ SSOT: sizing math lives only here
type Sizer struct {
	profile contracts.RiskProfile
	capital float64
	logger  *logger.Logger
}

// New creates a sizer from config.
func New(cfg *config.Config, log *logger.Logger) *Sizer {
	return &Sizer{
		profile: contracts.RiskProfile(cfg.Risk.Profile),
		capital: cfg.Risk.AvailableCapital,
		logger:  log,
	}
}

// Bands holds the derived price levels.
type Bands struct {
	Buy  float64
	Sell float64
	Stop float64
}

// PriceBands derives buy/sell/stop levels around the current price. Band
// width scales with 20-day volatility so choppy names get wider stops.
// The invariant stop < buy <= sell always holds for positive prices.
func (s *Sizer) PriceBands(price float64, volatility20 float64) Bands {
	if price <= 0 {
		return Bands{}
	}

	params := s.profile.Params()

	// Scale the profile's stop band by realized volatility: calm names
	// tighten, wild names widen, capped at 2x.
	scale := 1.0
	if volatility20 > 0 {
		scale = clampF(volatility20/0.02, 0.5, 2.0)
	}
	stopBand := params.StopLossBand * scale

	bands := Bands{
		Buy:  round2(price),
		Sell: round2(price * (1 + stopBand*2)), // 2:1 reward-to-risk target
		Stop: round2(price * (1 - stopBand)),
	}

	// Rounding must not break the ordering.
	if bands.Stop >= bands.Buy {
		bands.Stop = round2(bands.Buy - 0.01)
	}
	if bands.Sell < bands.Buy {
		bands.Sell = bands.Buy
	}
	return bands
}

// Shares computes the lot-rounded initial position:
// floor(floor(capital*initialPct/buy) / lot) * lot, capped so that
// shares*buy never exceeds capital*maxPct. Non-positive inputs size to
// zero without error.
func (s *Sizer) Shares(capital, buyPrice, initialPct, maxPct float64) int {
	if capital <= 0 || buyPrice <= 0 || initialPct <= 0 {
		return 0
	}

	budget := capital * initialPct / 100
	shares := int(math.Floor(budget/buyPrice)/BoardLot) * BoardLot

	// Enforce the hard cap in whole lots.
	maxSpend := capital * maxPct / 100
	for shares > 0 && float64(shares)*buyPrice > maxSpend {
		shares -= BoardLot
	}
	if shares < 0 {
		shares = 0
	}
	return shares
}

// Build fills the sizing fields of a recommendation in place. Capital too
// small for one board lot zeroes the shares and notes the risk.
func (s *Sizer) Build(rec *contracts.Recommendation, volatility20 float64) {
	if rec.BuyPrice <= 0 {
		return
	}
	params := s.profile.Params()
	bands := s.PriceBands(rec.BuyPrice, volatility20)

	rec.BuyPrice = bands.Buy
	rec.SellPrice = bands.Sell
	rec.StopLossPrice = bands.Stop
	rec.Position = contracts.PositionStrategy{
		InitialPct:   params.InitialPct,
		MaxPct:       params.MaxPositionPct,
		AddCondition: "add on a pullback holding above the stop with shrinking volume",
	}
	rec.Shares = s.Shares(s.capital, bands.Buy, params.InitialPct, params.MaxPositionPct)

	if rec.Shares == 0 && rec.Signal == contracts.SignalBuy {
		rec.RiskFactors = append(rec.RiskFactors,
			"available capital below one board lot at the entry price")
	}
}

// Capital returns the configured available capital.
func (s *Sizer) Capital() float64 {
	return s.capital
}

// Volatility20 computes the annualized-free 20-day close-to-close return
// volatility. Returns 0 under 21 bars.
func Volatility20(history []contracts.Candle) float64 {
	const window = 20
	if len(history) < window+1 {
		return 0
	}
	recent := history[len(history)-window-1:]
	returns := make([]float64, 0, window)
	for i := 1; i < len(recent); i++ {
		if recent[i-1].Close == 0 {
			continue
		}
		returns = append(returns, recent[i].Close/recent[i-1].Close-1)
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
