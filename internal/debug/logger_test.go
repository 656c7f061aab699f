package debug

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogWritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Init(context.TODO(), zap.New(core))
	SetEnabled(false)
	t.Cleanup(func() { Init(context.TODO(), zap.NewNop()) })

	LogConnection("client opened", map[string]interface{}{"hosts": 2})
	Warn(CategoryTunnel, "host key not verified", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Message != "client opened" || first.Level != zapcore.DebugLevel {
		t.Errorf("unexpected first entry: %+v", first.Entry)
	}
	ctx := first.ContextMap()
	if ctx["category"] != CategoryConnection {
		t.Errorf("category = %v", ctx["category"])
	}
	if ctx["hosts"] != int64(2) {
		t.Errorf("hosts = %v (%T)", ctx["hosts"], ctx["hosts"])
	}

	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("second entry level = %s, want warn", entries[1].Level)
	}
}

func TestLogRespectsZapLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Init(context.TODO(), zap.New(core))
	t.Cleanup(func() { Init(context.TODO(), zap.NewNop()) })

	LogQuery("find", nil)
	if logs.Len() != 0 {
		t.Errorf("debug entry should be filtered at info level, got %d", logs.Len())
	}
}

func TestSetEnabled(t *testing.T) {
	SetEnabled(true)
	if !IsEnabled() {
		t.Error("expected enabled")
	}
	SetEnabled(false)
	if IsEnabled() {
		t.Error("expected disabled")
	}
}

func TestSetLoggerKeepsNilLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	LogDocument("document replaced", nil)
	if logs.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", logs.Len())
	}
}
