package logger_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/logger"
)

func TestWithContext_FromContext_RoundTrip(t *testing.T) {
	t.Parallel()

	l := mustTestLogger(t)
	ctx := logger.WithContext(context.Background(), l)

	if got := logger.FromContext(ctx); got != l {
		t.Errorf("FromContext returned %v, want the stored logger", got)
	}
}

func TestFromContext_FallbackIsSingleton(t *testing.T) {
	t.Parallel()

	a := logger.FromContext(context.Background())
	b := logger.FromContext(context.Background())

	if a == nil || b == nil {
		t.Fatal("expected non-nil fallback logger")
	}
	if a != b {
		t.Error("FromContext returned different fallback instances")
	}

	a.Warn("fallback usable", logger.String("key", "value"))
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg logger.Config
	cfg.SetDefaults()

	if cfg.Level != logger.DefaultLevel {
		t.Errorf("Level = %q, want %q", cfg.Level, logger.DefaultLevel)
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
		t.Errorf("OutputPaths = %v, want [stderr]", cfg.OutputPaths)
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "debug", Format: "console"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := l.With(logger.String("stage", "discovery"))
	if child == l {
		t.Error("With() should return a new logger instance")
	}
}

func mustTestLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "warn"})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}

	return l
}
