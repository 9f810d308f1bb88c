package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", env, err)
		}
		if l == nil {
			t.Fatalf("%s: nil logger", env)
		}
	}
	if _, err := NewLogger("staging"); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("missing logger must fall back to nop")
	}

	core, logs := observer.New(zap.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("op", "commit"))
	FromContext(ctx).Info("done")

	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["op"] != "commit" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestComponent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Component(zap.New(core), "ingest").Info("x")
	if logs.All()[0].LoggerName != "ingest" {
		t.Errorf("name = %q", logs.All()[0].LoggerName)
	}
	if Component(nil, "x") == nil {
		t.Error("nil parent must yield a nop logger")
	}
}
