package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/quantumalpha/backend/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"garbage", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewReturnsLogger(t *testing.T) {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "json",
	}

	log := New(cfg)
	if log == nil {
		t.Fatal("New() returned nil")
	}

	// Chained loggers must be distinct instances
	child := log.WithField("module", "test")
	if child == log {
		t.Error("WithField should return a new logger instance")
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	log := NewNop()
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")
	log.WithError(nil).Info("with nil error")
	log.WithFields(map[string]interface{}{"a": 1, "b": "x"}).Debugf("formatted %d", 42)
}
