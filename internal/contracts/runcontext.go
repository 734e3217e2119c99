package contracts

import "time"

// Phase is the scheduler state for one trading date.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhasePreprocessing     Phase = "preprocessing"
	PhaseWaitingMarketOpen Phase = "waiting_market_open"
	PhaseIntradayRefresh   Phase = "intraday_refresh"
	PhaseDone              Phase = "done"
	PhaseDegraded          Phase = "degraded"
)

// RunContext describes the cycle currently in flight. Owned by the
// scheduler; everything downstream treats it as read-only.
type RunContext struct {
	SessionDate time.Time `json:"session_date"`
	Phase       Phase     `json:"phase"`
	Deadline    time.Time `json:"deadline"`
	Degraded    bool      `json:"degraded"`
	StartedAt   time.Time `json:"started_at"`
}

// Remaining returns the time left until the phase deadline.
func (rc *RunContext) Remaining(now time.Time) time.Duration {
	return rc.Deadline.Sub(now)
}

// Expired reports whether the phase deadline has passed.
func (rc *RunContext) Expired(now time.Time) bool {
	return !rc.Deadline.IsZero() && now.After(rc.Deadline)
}
