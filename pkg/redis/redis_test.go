package redis

import (
	"context"
	"testing"
	"time"
)

func disabledClient() *Client {
	return &Client{enabled: false}
}

func TestDisabledClientIsNoOp(t *testing.T) {
	c := disabledClient()

	if c.Enabled() {
		t.Error("expected disabled client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on disabled client: %v", err)
	}
}

func TestCacheDisabledDegradesGracefully(t *testing.T) {
	cache := NewCache(disabledClient())
	ctx := context.Background()

	if err := cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Errorf("Set on disabled cache: %v", err)
	}

	var dest map[string]int
	found, err := cache.Get(ctx, "k", &dest)
	if err != nil {
		t.Errorf("Get on disabled cache: %v", err)
	}
	if found {
		t.Error("disabled cache must always miss")
	}

	if err := cache.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete on disabled cache: %v", err)
	}
}

func TestRateLimiterDisabledAlwaysAllows(t *testing.T) {
	rl := NewRateLimiter(disabledClient())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		ok, err := rl.Allow(ctx, "tushare", LimitTushare)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatal("disabled limiter must allow everything")
		}
	}
}

func TestRateLimiterWaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(disabledClient())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "eastmoney", LimitEastmoney); err != nil {
		t.Errorf("Wait with disabled limiter should return immediately: %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := SnapshotKey("600519"); got != "alpha:snapshot:600519" {
		t.Errorf("SnapshotKey = %q", got)
	}
	if got := DiagnosisKey("000001"); got != "alpha:diagnosis:000001" {
		t.Errorf("DiagnosisKey = %q", got)
	}
	if got := ScanResultKey(); got != "alpha:scan:latest" {
		t.Errorf("ScanResultKey = %q", got)
	}
}
