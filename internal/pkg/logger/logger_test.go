package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		log := New("info", format)
		if log == nil || log.Logger == nil {
			t.Fatalf("New(info, %s) returned nil logger", format)
		}
	}
}

func TestWithContext(t *testing.T) {
	log := New("error", "text")

	// Without a request ID the same logger is returned.
	if got := log.WithContext(context.Background()); got != log {
		t.Error("expected identical logger for bare context")
	}

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	if got := log.WithContext(ctx); got == log {
		t.Error("expected derived logger when request ID present")
	}
}

func TestWithComponent(t *testing.T) {
	log := New("error", "text")
	derived := log.WithComponent("pipeline")
	if derived == nil || derived == log {
		t.Error("expected a derived logger")
	}
}
