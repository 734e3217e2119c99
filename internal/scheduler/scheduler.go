package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
)

// Calendar is what the scheduler needs from the trading calendar.
type Calendar interface {
	contracts.TradingCalendar
	ClosedForDay(t time.Time) bool
	Location() *time.Location
}

// CycleRunner executes the pipeline phases. Implemented by the engine.
type CycleRunner interface {
	// Preprocess runs the full pre-market pass: fetch, score, reason.
	Preprocess(ctx context.Context, rc contracts.RunContext) error
	// Refresh runs the lightweight intraday re-rank.
	Refresh(ctx context.Context, rc contracts.RunContext) error
}

// RunRecord is one completed phase, kept for the status endpoint.
type RunRecord struct {
	Phase      contracts.Phase `json:"phase"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Err        string          `json:"error,omitempty"`
}

const historyLimit = 50

// Scheduler drives the two-phase trading-day state machine:
// Idle → Preprocessing → WaitingMarketOpen → IntradayRefresh → Done,
// with Degraded reachable from Preprocessing. One cycle per trading date;
// the state machine rejects overlapping starts.
// ⭐ SSOT: phase transitions happen only inside tick/start
type Scheduler struct {
	runner   CycleRunner
	calendar Calendar
	logger   *logger.Logger
	cron     *cron.Cron

	premarketSpec      string
	preprocessDeadline time.Duration
	refreshInterval    time.Duration
	pollInterval       time.Duration

	mu          sync.Mutex
	rc          contracts.RunContext
	history     []RunRecord
	trigger     chan struct{}
	preprocess  *phaseRun
	lastRefresh time.Time
	refreshing  bool
}

// phaseRun tracks an in-flight preprocessing pass.
type phaseRun struct {
	cancel context.CancelFunc
	done   chan error
	start  time.Time
}

// New creates the scheduler.
func New(runner CycleRunner, cal Calendar, cfg *config.Config, log *logger.Logger) *Scheduler {
	return &Scheduler{
		runner:             runner,
		calendar:           cal,
		logger:             log,
		cron:               cron.New(cron.WithSeconds(), cron.WithLocation(cal.Location())),
		premarketSpec:      cfg.Scheduler.PremarketCron,
		preprocessDeadline: cfg.Scheduler.PreprocessDeadline,
		refreshInterval:    cfg.Scheduler.RefreshInterval,
		pollInterval:       cfg.Scheduler.PollInterval,
		rc:                 contracts.RunContext{Phase: contracts.PhaseIdle},
		trigger:            make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled, polling the state machine and firing
// the pre-market cron.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.premarketSpec, s.Trigger); err != nil {
		return fmt.Errorf("invalid premarket cron %q: %w", s.premarketSpec, err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	s.logger.WithFields(map[string]interface{}{
		"cron": s.premarketSpec,
		"poll": s.pollInterval,
	}).Info("Scheduler started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.abortPreprocess()
			return ctx.Err()
		case <-s.trigger:
			s.start(ctx, time.Now())
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// Trigger requests a pre-market pass. Safe from any goroutine; coalesces
// with a pending trigger.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// State returns a copy of the current run context.
func (s *Scheduler) State() contracts.RunContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rc
}

// History returns recent phase records, newest last.
func (s *Scheduler) History() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, len(s.history))
	copy(out, s.history)
	return out
}

// start begins preprocessing for the session date, unless a cycle for
// this date is already past Idle.
func (s *Scheduler) start(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := sessionDate(now, s.calendar.Location())

	if !s.calendar.IsTradingDay(now) {
		s.logger.Info("Not a trading day, skipping pre-market pass")
		return
	}
	if s.rc.Phase != contracts.PhaseIdle && s.rc.SessionDate.Equal(today) {
		s.logger.WithField("phase", string(s.rc.Phase)).
			Warn("Cycle already running for this session date, ignoring trigger")
		return
	}

	s.rc = contracts.RunContext{
		SessionDate: today,
		Phase:       contracts.PhasePreprocessing,
		Deadline:    now.Add(s.preprocessDeadline),
		StartedAt:   now,
	}

	pctx, cancel := context.WithDeadline(ctx, s.rc.Deadline)
	run := &phaseRun{cancel: cancel, done: make(chan error, 1), start: now}
	s.preprocess = run
	rc := s.rc

	go func() {
		run.done <- s.runner.Preprocess(pctx, rc)
	}()

	s.logger.WithFields(map[string]interface{}{
		"session_date": today.Format("2006-01-02"),
		"deadline":     rc.Deadline,
	}).Info("Preprocessing started")
}

// tick advances the state machine. Called every poll interval, so a blown
// deadline forces its transition within one interval.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.rc.Phase {
	case contracts.PhasePreprocessing:
		s.tickPreprocessing(now)
	case contracts.PhaseWaitingMarketOpen:
		if s.calendar.IsSessionOpen(now) {
			s.rc.Phase = contracts.PhaseIntradayRefresh
			s.lastRefresh = time.Time{}
			s.logger.Info("Market open, intraday refresh active")
		} else if s.calendar.ClosedForDay(now) {
			s.finishDay(now)
		}
	case contracts.PhaseIntradayRefresh:
		if s.calendar.ClosedForDay(now) {
			s.finishDay(now)
			return
		}
		if s.calendar.IsSessionOpen(now) && !s.refreshing &&
			(s.lastRefresh.IsZero() || now.Sub(s.lastRefresh) >= s.refreshInterval) {
			s.startRefresh(ctx, now)
		}
	case contracts.PhaseDone, contracts.PhaseDegraded:
		// Reset once the calendar rolls to the next session date.
		if !sessionDate(now, s.calendar.Location()).Equal(s.rc.SessionDate) {
			s.rc = contracts.RunContext{Phase: contracts.PhaseIdle}
		}
	}
}

// tickPreprocessing resolves a finished or expired preprocessing pass.
// Caller holds the lock.
func (s *Scheduler) tickPreprocessing(now time.Time) {
	run := s.preprocess
	if run == nil {
		s.rc.Phase = contracts.PhaseDegraded
		return
	}

	select {
	case err := <-run.done:
		run.cancel()
		s.preprocess = nil
		s.record(contracts.PhasePreprocessing, run.start, now, err)

		if err != nil {
			if s.rc.Expired(now) {
				// Deadline fired inside the pass: salvage what we
				// have and keep the day going, flagged degraded.
				s.rc.Degraded = true
				s.rc.Phase = contracts.PhaseWaitingMarketOpen
				s.logger.Warn("Preprocessing hit its deadline, continuing degraded")
				return
			}
			s.rc.Phase = contracts.PhaseDegraded
			s.logger.WithField("error", err.Error()).Error("Preprocessing failed")
			return
		}
		s.rc.Phase = contracts.PhaseWaitingMarketOpen
		s.logger.Info("Preprocessing completed")

	default:
		if s.rc.Expired(now) {
			// Forced transition: cancel the pass, move on now rather
			// than waiting for it to notice.
			run.cancel()
			s.preprocess = nil
			s.record(contracts.PhasePreprocessing, run.start, now, contracts.ErrDeadlineExceeded)
			s.rc.Degraded = true
			s.rc.Phase = contracts.PhaseWaitingMarketOpen
			s.logger.Warn("Preprocessing deadline exceeded, forcing transition")
		}
	}
}

// startRefresh launches one intraday refresh. Caller holds the lock.
func (s *Scheduler) startRefresh(ctx context.Context, now time.Time) {
	s.refreshing = true
	s.lastRefresh = now
	rc := s.rc

	go func() {
		rctx, cancel := context.WithTimeout(ctx, s.refreshInterval)
		err := s.runner.Refresh(rctx, rc)
		cancel()

		s.mu.Lock()
		s.refreshing = false
		s.record(contracts.PhaseIntradayRefresh, now, time.Now(), err)
		s.mu.Unlock()

		if err != nil {
			s.logger.WithField("error", err.Error()).Warn("Intraday refresh failed")
		}
	}()
}

// finishDay closes out the session. Caller holds the lock.
func (s *Scheduler) finishDay(now time.Time) {
	s.rc.Phase = contracts.PhaseDone
	s.logger.WithFields(map[string]interface{}{
		"session_date": s.rc.SessionDate.Format("2006-01-02"),
		"closed_at":    now,
	}).Info("Session closed, cycle done")
}

// abortPreprocess cancels any in-flight pass during shutdown.
func (s *Scheduler) abortPreprocess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preprocess != nil {
		s.preprocess.cancel()
		s.preprocess = nil
	}
}

// record appends a phase record, capped. Caller holds the lock.
func (s *Scheduler) record(phase contracts.Phase, start, end time.Time, err error) {
	rec := RunRecord{Phase: phase, StartedAt: start, FinishedAt: end}
	if err != nil {
		rec.Err = err.Error()
	}
	s.history = append(s.history, rec)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// sessionDate truncates to the exchange-local calendar date.
func sessionDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
