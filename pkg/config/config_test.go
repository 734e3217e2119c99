package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8086" {
		t.Errorf("Expected Port to be 8086, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Risk.Profile != "balanced" {
		t.Errorf("Expected Risk.Profile to be balanced, got %s", cfg.Risk.Profile)
	}

	if cfg.Scan.BuyThreshold != 80 {
		t.Errorf("Expected BuyThreshold to be 80, got %.0f", cfg.Scan.BuyThreshold)
	}

	if len(cfg.ProviderPriority) != 2 || cfg.ProviderPriority[0] != "tushare" {
		t.Errorf("Expected default provider priority [tushare eastmoney], got %v", cfg.ProviderPriority)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("ENV", "production")
	os.Setenv("RISK_PROFILE", "aggressive")
	os.Setenv("SCAN_UNIVERSE", "600519.SH, 000001.SZ")
	os.Setenv("LLM_TIMEOUT", "30s")

	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("RISK_PROFILE")
		os.Unsetenv("SCAN_UNIVERSE")
		os.Unsetenv("LLM_TIMEOUT")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Risk.Profile != "aggressive" {
		t.Errorf("Expected Risk.Profile to be aggressive, got %s", cfg.Risk.Profile)
	}

	if len(cfg.Scan.Universe) != 2 || cfg.Scan.Universe[1] != "000001.SZ" {
		t.Errorf("Expected universe [600519.SH 000001.SZ], got %v", cfg.Scan.Universe)
	}

	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("Expected LLM timeout 30s, got %v", cfg.LLM.Timeout)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	os.Setenv("ENV", "invalid")
	defer os.Unsetenv("ENV")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateInvalidRiskProfile(t *testing.T) {
	os.Setenv("RISK_PROFILE", "reckless")
	defer os.Unsetenv("RISK_PROFILE")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when RISK_PROFILE is invalid, got nil")
	}
}

func TestValidateWeightsMustSumToOne(t *testing.T) {
	os.Setenv("WEIGHT_TECHNICAL", "0.90")
	defer os.Unsetenv("WEIGHT_TECHNICAL")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when weights do not sum to 1.0, got nil")
	}
}

func TestValidateThresholdOrdering(t *testing.T) {
	os.Setenv("BUY_THRESHOLD", "50")
	os.Setenv("HOLD_THRESHOLD", "60")

	defer func() {
		os.Unsetenv("BUY_THRESHOLD")
		os.Unsetenv("HOLD_THRESHOLD")
	}()

	_, err := Load()
	if err == nil {
		t.Error("Expected error when BUY_THRESHOLD <= HOLD_THRESHOLD, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "2h")
	defer os.Unsetenv("TEST_DURATION")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	expected := 2 * time.Hour

	if duration != expected {
		t.Errorf("Expected duration to be %v, got %v", expected, duration)
	}
}

func TestGetEnvAsList(t *testing.T) {
	os.Setenv("TEST_LIST", "a, b ,c")
	defer os.Unsetenv("TEST_LIST")

	value := getEnvAsList("TEST_LIST", "")
	if len(value) != 3 || value[1] != "b" {
		t.Errorf("Expected [a b c], got %v", value)
	}
}
