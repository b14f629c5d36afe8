package types

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	stored := slog.New(slog.NewJSONHandler(&buf, nil))
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	if got := LoggerFromContext(WithLogger(context.Background(), stored), fallback); got != stored {
		t.Error("expected stored logger")
	}
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger")
	}
	if got := LoggerFromContext(context.Background(), nil); got == nil {
		t.Error("expected slog.Default() when no fallback")
	}
}
