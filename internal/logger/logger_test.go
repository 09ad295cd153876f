package logger

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"warning", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"", zap.InfoLevel},
		{"verbose", zap.InfoLevel},
	}

	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNew_WithFile(t *testing.T) {
	log := New("debug", filepath.Join(t.TempDir(), "app.log"))
	if log == nil {
		t.Fatal("expected logger, got nil")
	}
	if !log.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level to be enabled")
	}
	log.Info("hello", zap.String("k", "v"))
}
