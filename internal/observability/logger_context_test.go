package observability

import (
	"context"
	"log/slog"
	"os"
	"testing"
)

func TestLoggerRoundTrip(t *testing.T) {
	lg := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := ContextWithLogger(context.Background(), lg)
	if got := LoggerFromContext(ctx); got != lg {
		t.Fatalf("expected stored logger back")
	}
}

func TestLoggerFromContext_Fallbacks(t *testing.T) {
	if got := LoggerFromContext(nil); got == nil { //nolint:staticcheck // nil ctx on purpose
		t.Fatal("nil context should fall back to default logger")
	}
	if got := LoggerFromContext(context.Background()); got == nil {
		t.Fatal("empty context should fall back to default logger")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	// empty request id is not stored
	ctx = ContextWithRequestID(context.Background(), "")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
