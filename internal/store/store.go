package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/logger"
	"github.com/quantumalpha/backend/pkg/redis"
)

// staleAfter marks how old a result may be before reads flag it stale.
const staleAfter = 6 * time.Hour

// Store holds the latest completed cycle. Single writer (the engine),
// many readers; replacement is atomic so readers never observe a half
// result.
// ⭐ SSOT: the recommendation snapshot lives only here
type Store struct {
	current atomic.Pointer[contracts.RankedResult]
	cache   *redis.Cache // optional out-of-process mirror
	ttl     time.Duration
	logger  *logger.Logger

	subscribers []chan *contracts.RankedResult
}

// New creates the store. cache may be nil.
func New(cache *redis.Cache, cfg *config.Config, log *logger.Logger) *Store {
	return &Store{
		cache:  cache,
		ttl:    cfg.Scan.ResultTTL,
		logger: log,
	}
}

// Publish atomically replaces the current result and mirrors it to redis.
// Mirror failures are logged, never propagated.
func (s *Store) Publish(ctx context.Context, result *contracts.RankedResult) {
	s.current.Store(result)

	if s.cache != nil {
		if err := s.cache.Set(ctx, redis.ScanResultKey(), result, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Result mirror write failed")
		}
	}

	for _, ch := range s.subscribers {
		select {
		case ch <- result:
		default: // slow subscriber drops the update, never blocks publish
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"candidates": len(result.Candidates),
		"degraded":   result.Degraded,
	}).Info("Result published")
}

// Get returns the latest result. A missing or aged result comes back with
// the stale marker set; the last-good timestamp rides on GeneratedAt.
func (s *Store) Get() (*contracts.RankedResult, bool) {
	result := s.current.Load()
	if result == nil {
		return nil, false
	}

	if time.Since(result.GeneratedAt) > staleAfter {
		// Copy so the stored value stays immutable.
		stale := *result
		stale.Stale = true
		if stale.Cause == "" {
			stale.Cause = "result outlived its freshness window"
		}
		return &stale, true
	}
	return result, true
}

// MarkStale flags the current result stale with a cause, keeping the
// last-good candidates readable.
func (s *Store) MarkStale(cause string) {
	result := s.current.Load()
	if result == nil {
		return
	}
	stale := *result
	stale.Stale = true
	stale.Cause = cause
	s.current.Store(&stale)
}

// Subscribe returns a channel receiving every published result. Must be
// called during startup, before the first Publish. Buffered so a publish
// never blocks.
func (s *Store) Subscribe() <-chan *contracts.RankedResult {
	ch := make(chan *contracts.RankedResult, 4)
	s.subscribers = append(s.subscribers, ch)
	return ch
}
