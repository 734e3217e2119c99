package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides JSON caching on top of the Redis client. All operations are
// no-ops when Redis is disabled, so callers never need to branch on it.
type Cache struct {
	client *Client
}

// NewCache creates a new cache instance
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// Cache TTLs per data class.
const (
	TTLSnapshot  = 1 * time.Minute  // intraday market snapshots
	TTLDaily     = 12 * time.Hour   // daily bars, fundamentals
	TTLScan      = 4 * time.Hour    // latest ranked scan result
	TTLDiagnosis = 30 * time.Minute // per-symbol deep dive
)

// Set stores a value with the given TTL, JSON encoded.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.rdb.Set(ctx, key, data, ttl).Err()
}

// Get retrieves a value and unmarshals it into dest. Returns (false, nil) on
// a cache miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Delete removes a key
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.rdb.Del(ctx, key).Err()
}

// Key helpers. Keys are namespaced under "alpha:".

// SnapshotKey is the cache key for a symbol's market snapshot.
func SnapshotKey(symbol string) string {
	return fmt.Sprintf("alpha:snapshot:%s", symbol)
}

// DailyBarsKey is the cache key for a symbol's daily bar history.
func DailyBarsKey(symbol string) string {
	return fmt.Sprintf("alpha:daily:%s", symbol)
}

// ScanResultKey is the cache key for the latest ranked scan result.
func ScanResultKey() string {
	return "alpha:scan:latest"
}

// DiagnosisKey is the cache key for a symbol's deep dive result.
func DiagnosisKey(symbol string) string {
	return fmt.Sprintf("alpha:diagnosis:%s", symbol)
}
