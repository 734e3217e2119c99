package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a sliding-window rate limiter backed by Redis, so
// that concurrent scan workers across processes share one quota per upstream
// data source. When Redis is disabled every call is allowed; callers are
// expected to layer a local limiter in that case.
type RateLimiter struct {
	client *Client
	script *redis.Script
}

// slidingWindowScript removes expired entries, counts the window, and admits
// the request atomically.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, now .. '-' .. math.random())
    redis.call('PEXPIRE', key, window)
    return 1
end
return 0
`)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{
		client: client,
		script: slidingWindowScript,
	}
}

// LimitConfig describes a per-source request quota.
type LimitConfig struct {
	Requests int
	Window   time.Duration
}

// Per-source quotas. Tushare enforces per-minute credits server side;
// Eastmoney has no published limit but bans aggressive scrapers.
var (
	LimitTushare   = LimitConfig{Requests: 180, Window: time.Minute}
	LimitEastmoney = LimitConfig{Requests: 10, Window: time.Second}
	LimitLLM       = LimitConfig{Requests: 30, Window: time.Minute}
)

// Allow reports whether a request under the given key is within quota.
func (rl *RateLimiter) Allow(ctx context.Context, key string, cfg LimitConfig) (bool, error) {
	if !rl.client.Enabled() {
		return true, nil
	}

	now := time.Now().UnixMilli()
	res, err := rl.script.Run(ctx, rl.client.rdb,
		[]string{fmt.Sprintf("alpha:ratelimit:%s", key)},
		now, cfg.Window.Milliseconds(), cfg.Requests,
	).Int()
	if err != nil {
		// Fail open: a broken limiter must not stop the scan.
		return true, nil
	}

	return res == 1, nil
}

// Wait blocks until a request under the given key is admitted or the context
// is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context, key string, cfg LimitConfig) error {
	for {
		ok, err := rl.Allow(ctx, key, cfg)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
