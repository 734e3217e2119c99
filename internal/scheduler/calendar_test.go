package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

func fallbackCalendar(t *testing.T) *MarketCalendar {
	t.Helper()
	cfg := &config.Config{}
	cfg.Scheduler.MarketMIC = "none"
	cfg.Scheduler.Timezone = "Asia/Shanghai"
	cal := NewMarketCalendar(cfg, logger.NewNop())
	require.True(t, cal.fallback)
	return cal
}

func shTime(t *testing.T, day time.Time, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, loc)
}

func TestMarketCalendar_Sessions(t *testing.T) {
	cal := fallbackCalendar(t)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"before auction", shTime(t, monday, 9, 0), false},
		{"morning open", shTime(t, monday, 9, 30), true},
		{"late morning", shTime(t, monday, 11, 29), true},
		{"lunch break", shTime(t, monday, 12, 0), false},
		{"afternoon open", shTime(t, monday, 13, 0), true},
		{"before close", shTime(t, monday, 14, 59), true},
		{"after close", shTime(t, monday, 15, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, cal.IsSessionOpen(tt.at))
		})
	}
}

func TestMarketCalendar_WeekendClosed(t *testing.T) {
	cal := fallbackCalendar(t)
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	assert.False(t, cal.IsTradingDay(saturday))
	assert.False(t, cal.IsSessionOpen(shTime(t, saturday, 10, 0)))
	assert.True(t, cal.ClosedForDay(shTime(t, saturday, 10, 0)))
}

func TestMarketCalendar_ClosedForDay(t *testing.T) {
	cal := fallbackCalendar(t)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.False(t, cal.ClosedForDay(shTime(t, monday, 14, 0)))
	assert.True(t, cal.ClosedForDay(shTime(t, monday, 15, 0)))
}

func TestMarketCalendar_NextOpen(t *testing.T) {
	cal := fallbackCalendar(t)

	// Friday after close rolls to Monday morning.
	friday := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	next := cal.NextOpen(shTime(t, friday, 16, 0))
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())

	// Mid-lunch rolls to the afternoon session the same day.
	next = cal.NextOpen(shTime(t, friday, 12, 0))
	assert.Equal(t, friday.Day(), next.Day())
	assert.Equal(t, 13, next.Hour())
}

func TestMarketCalendar_XSHGLibraryBacked(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scheduler.MarketMIC = "xshg"
	cfg.Scheduler.Timezone = "Asia/Shanghai"
	cal := NewMarketCalendar(cfg, logger.NewNop())

	assert.False(t, cal.fallback)
	assert.Equal(t, "Asia/Shanghai", cal.Location().String())
}
