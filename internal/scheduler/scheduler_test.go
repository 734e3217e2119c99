package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

type fakeCalendar struct {
	tradingDay bool
	open       bool
	closed     bool
}

func (c *fakeCalendar) IsTradingDay(time.Time) bool   { return c.tradingDay }
func (c *fakeCalendar) IsSessionOpen(time.Time) bool  { return c.open }
func (c *fakeCalendar) ClosedForDay(time.Time) bool   { return c.closed }
func (c *fakeCalendar) NextOpen(t time.Time) time.Time {
	return t.Add(time.Hour)
}
func (c *fakeCalendar) Location() *time.Location { return time.UTC }

type fakeRunner struct {
	preprocessFn  func(ctx context.Context, rc contracts.RunContext) error
	preprocessRun atomic.Int32
	refreshRun    atomic.Int32
}

func (r *fakeRunner) Preprocess(ctx context.Context, rc contracts.RunContext) error {
	r.preprocessRun.Add(1)
	if r.preprocessFn != nil {
		return r.preprocessFn(ctx, rc)
	}
	return nil
}

func (r *fakeRunner) Refresh(context.Context, contracts.RunContext) error {
	r.refreshRun.Add(1)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scheduler.PremarketCron = "0 0 9 * * 1-5"
	cfg.Scheduler.PreprocessDeadline = 50 * time.Millisecond
	cfg.Scheduler.RefreshInterval = 30 * time.Millisecond
	cfg.Scheduler.PollInterval = 10 * time.Millisecond
	return cfg
}

func newTestScheduler(runner *fakeRunner, cal *fakeCalendar) *Scheduler {
	return New(runner, cal, testConfig(), logger.NewNop())
}

// waitPhase drives the state machine manually until the phase matches or
// the budget runs out.
func waitPhase(t *testing.T, s *Scheduler, want contracts.Phase) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.tick(context.Background(), time.Now())
		if s.State().Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase never reached %s, stuck at %s", want, s.State().Phase)
}

func TestScheduler_FullCycle(t *testing.T) {
	runner := &fakeRunner{}
	cal := &fakeCalendar{tradingDay: true}
	s := newTestScheduler(runner, cal)
	ctx := context.Background()

	now := time.Now()
	s.start(ctx, now)
	require.Equal(t, contracts.PhasePreprocessing, s.State().Phase)
	require.Equal(t, sessionDate(now, time.UTC), s.State().SessionDate)

	waitPhase(t, s, contracts.PhaseWaitingMarketOpen)
	assert.False(t, s.State().Degraded)
	assert.Equal(t, int32(1), runner.preprocessRun.Load())

	cal.open = true
	waitPhase(t, s, contracts.PhaseIntradayRefresh)

	cal.open = false
	cal.closed = true
	waitPhase(t, s, contracts.PhaseDone)

	// Next calendar date resets the machine to idle.
	s.tick(ctx, now.AddDate(0, 0, 1))
	assert.Equal(t, contracts.PhaseIdle, s.State().Phase)
}

func TestScheduler_DeadlineForcesTransition(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{
		preprocessFn: func(ctx context.Context, _ contracts.RunContext) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-block:
				return nil
			}
		},
	}
	defer close(block)

	cal := &fakeCalendar{tradingDay: true}
	s := newTestScheduler(runner, cal)
	ctx := context.Background()

	now := time.Now()
	s.start(ctx, now)
	deadline := s.State().Deadline

	// One tick past the deadline must force the transition immediately,
	// without waiting for the runner to unblock.
	s.tick(ctx, deadline.Add(time.Millisecond))

	st := s.State()
	assert.Equal(t, contracts.PhaseWaitingMarketOpen, st.Phase)
	assert.True(t, st.Degraded)

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, contracts.PhasePreprocessing, hist[0].Phase)
	assert.Equal(t, contracts.ErrDeadlineExceeded.Error(), hist[0].Err)
}

func TestScheduler_DeadlineHitInsideRunner(t *testing.T) {
	runner := &fakeRunner{
		preprocessFn: func(ctx context.Context, _ contracts.RunContext) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	cal := &fakeCalendar{tradingDay: true}
	s := newTestScheduler(runner, cal)
	ctx := context.Background()

	s.start(ctx, time.Now())

	// The context deadline cancels the runner; once its error lands the
	// cycle continues degraded instead of dying.
	waitPhase(t, s, contracts.PhaseWaitingMarketOpen)
	assert.True(t, s.State().Degraded)
}

func TestScheduler_FailureBeforeDeadlineDegrades(t *testing.T) {
	runner := &fakeRunner{
		preprocessFn: func(context.Context, contracts.RunContext) error {
			return errors.New("upstream down")
		},
	}
	cal := &fakeCalendar{tradingDay: true}
	s := newTestScheduler(runner, cal)

	s.start(context.Background(), time.Now())
	waitPhase(t, s, contracts.PhaseDegraded)

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "upstream down", hist[0].Err)
}

func TestScheduler_RejectsOverlappingStart(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	runner := &fakeRunner{
		preprocessFn: func(ctx context.Context, _ contracts.RunContext) error {
			close(started)
			<-block
			return nil
		},
	}
	defer close(block)

	cal := &fakeCalendar{tradingDay: true}
	s := newTestScheduler(runner, cal)
	ctx := context.Background()

	now := time.Now()
	s.start(ctx, now)

	// Wait for the first run to be in flight before starting again.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first preprocessing run never started")
	}

	s.start(ctx, now.Add(time.Millisecond))

	// Leave room for a wrongly accepted second run to surface.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runner.preprocessRun.Load())
}

func TestScheduler_SkipsNonTradingDay(t *testing.T) {
	runner := &fakeRunner{}
	cal := &fakeCalendar{tradingDay: false}
	s := newTestScheduler(runner, cal)

	s.start(context.Background(), time.Now())

	assert.Equal(t, contracts.PhaseIdle, s.State().Phase)
	assert.Equal(t, int32(0), runner.preprocessRun.Load())
}

func TestScheduler_RefreshCadence(t *testing.T) {
	runner := &fakeRunner{}
	cal := &fakeCalendar{tradingDay: true, open: true}
	s := newTestScheduler(runner, cal)
	ctx := context.Background()

	now := time.Now()
	s.start(ctx, now)
	waitPhase(t, s, contracts.PhaseIntradayRefresh)

	waitRefreshCount(t, s, ctx, runner, 1)
	first := runner.refreshRun.Load()

	// Within the refresh interval no second pass starts.
	for i := 0; i < 3; i++ {
		s.tick(ctx, lastRefresh(s).Add(time.Millisecond))
	}
	assert.Equal(t, first, runner.refreshRun.Load())

	// Past the interval the next pass is launched.
	waitRefreshCount(t, s, ctx, runner, first+1)
}

func lastRefresh(s *Scheduler) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

func waitRefreshCount(t *testing.T, s *Scheduler, ctx context.Context, runner *fakeRunner, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.tick(ctx, lastRefresh(s).Add(time.Hour))
		if runner.refreshRun.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("refresh count never reached %d, at %d", want, runner.refreshRun.Load())
}

func TestScheduler_TriggerCoalesces(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeCalendar{tradingDay: true})

	// Repeated triggers while one is pending never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Trigger()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked")
	}
	assert.Len(t, s.trigger, 1)
}
