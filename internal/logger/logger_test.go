package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", env, err)
		}
		if l == nil {
			t.Fatalf("NewLogger(%q) returned nil", env)
		}
	}

	if _, err := NewLogger("staging"); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}

	if _, err := NewLogger("local", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewExample()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("expected fallback for empty context")
	}
	if FromContext(context.Background()) == nil {
		t.Error("expected nop logger for empty context")
	}

	stored := zap.NewNop().Named("req")
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContext(ctx); got != stored {
		t.Error("FromContext did not return stored logger")
	}
	if got := FromContextOr(ctx, fallback); got != stored {
		t.Error("FromContextOr did not prefer stored logger")
	}
}

func TestWithFields(t *testing.T) {
	if ctx := WithFields(context.Background(), zap.String("k", "v")); ctx != context.Background() {
		t.Error("WithFields without a stored logger should return ctx unchanged")
	}

	base := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), base)
	if got := FromContext(WithFields(ctx)); got != base {
		t.Error("WithFields with no fields should keep the stored logger")
	}
	if got := FromContext(WithFields(ctx, zap.String("key_id", "abc"))); got == base {
		t.Error("WithFields should store a derived logger")
	}
}
