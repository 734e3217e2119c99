package scheduler

import (
	"time"

	"github.com/scmhub/calendar"

	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// MarketCalendar answers trading-session questions for the configured
// exchange, backed by scmhub/calendar with a weekday/session-time
// fallback when the MIC is unknown.
type MarketCalendar struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

// A-share continuous sessions (fallback path).
var sessions = []struct{ openH, openM, closeH, closeM int }{
	{9, 30, 11, 30},
	{13, 0, 15, 0},
}

// NewMarketCalendar loads the calendar for the configured MIC.
func NewMarketCalendar(cfg *config.Config, log *logger.Logger) *MarketCalendar {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.WithField("timezone", cfg.Scheduler.Timezone).
			Warn("Unknown market timezone, using UTC")
		loc = time.UTC
	}

	cal := calendar.GetCalendar(cfg.Scheduler.MarketMIC)
	if cal == nil {
		log.WithField("mic", cfg.Scheduler.MarketMIC).
			Warn("Unknown market MIC, using weekday/session fallback")
		return &MarketCalendar{fallback: true, loc: loc}
	}
	return &MarketCalendar{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether t falls on a trading day.
func (c *MarketCalendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// IsSessionOpen reports whether the continuous session is trading at t.
func (c *MarketCalendar) IsSessionOpen(t time.Time) bool {
	t = t.In(c.loc)
	if !c.fallback {
		return c.cal.IsOpen(t)
	}

	if !c.IsTradingDay(t) {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	for _, s := range sessions {
		if mins >= s.openH*60+s.openM && mins < s.closeH*60+s.closeM {
			return true
		}
	}
	return false
}

// NextOpen returns the next session open at or after t.
func (c *MarketCalendar) NextOpen(t time.Time) time.Time {
	t = t.In(c.loc)

	for day := 0; day < 14; day++ {
		d := t.AddDate(0, 0, day)
		if !c.IsTradingDay(d) {
			continue
		}
		for _, s := range sessions {
			open := time.Date(d.Year(), d.Month(), d.Day(), s.openH, s.openM, 0, 0, c.loc)
			if !open.Before(t) {
				return open
			}
		}
	}
	return time.Time{}
}

// ClosedForDay reports whether today's final session has ended at t.
func (c *MarketCalendar) ClosedForDay(t time.Time) bool {
	t = t.In(c.loc)
	if !c.IsTradingDay(t) {
		return true
	}
	last := sessions[len(sessions)-1]
	closeAt := time.Date(t.Year(), t.Month(), t.Day(), last.closeH, last.closeM, 0, 0, c.loc)
	return !t.Before(closeAt)
}

// Location returns the exchange timezone.
func (c *MarketCalendar) Location() *time.Location {
	return c.loc
}
