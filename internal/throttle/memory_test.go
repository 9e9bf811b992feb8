package throttle

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

// eviction timers can outlive a test, so these loggers must not write through t
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryAllowsOncePerWindow(t *testing.T) {
	m := NewMemory(50*time.Millisecond, discardLogger())
	ctx := context.Background()
	key := Key("c1", "u1")

	if !m.Allow(ctx, key) {
		t.Fatal("first event should pass")
	}
	if m.Allow(ctx, key) {
		t.Error("second event inside the window should be dropped")
	}
	if !m.Allow(ctx, Key("c1", "u2")) {
		t.Error("other keys are independent")
	}

	time.Sleep(60 * time.Millisecond)
	if !m.Allow(ctx, key) {
		t.Error("event after the window should pass")
	}
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory(time.Minute, discardLogger())
	ctx := context.Background()
	key := Key("c1", "u1")

	m.Allow(ctx, key)
	m.Reset(ctx, key)
	if !m.Allow(ctx, key) {
		t.Error("event after reset should pass")
	}
	m.Reset(ctx, "unknown")
	if m.Len() != 1 {
		t.Errorf("tracked keys = %d, want 1", m.Len())
	}
}

func TestMemoryZeroWindowDisables(t *testing.T) {
	m := NewMemory(0, discardLogger())
	for i := 0; i < 5; i++ {
		if !m.Allow(context.Background(), "k") {
			t.Fatal("zero window should never throttle")
		}
	}
	if m.Len() != 0 {
		t.Error("zero window should track nothing")
	}
}

func TestMemoryEvictsIdleKeys(t *testing.T) {
	m := NewMemory(10*time.Millisecond, discardLogger())
	m.Allow(context.Background(), "k")

	deadline := time.Now().Add(time.Second)
	for m.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Len() != 0 {
		t.Error("idle key was not evicted")
	}
}

func TestNoop(t *testing.T) {
	var l Limiter = Noop{}
	l.Reset(context.Background(), "k")
	if !l.Allow(context.Background(), "k") {
		t.Error("Noop should allow")
	}
}
