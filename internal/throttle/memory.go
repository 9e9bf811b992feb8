package throttle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter *rate.Limiter
	timer   *time.Timer
}

// Memory allows one event per key per window. Idle keys are dropped once
// their window has passed.
type Memory struct {
	window time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	logger *slog.Logger
}

func NewMemory(window time.Duration, logger *slog.Logger) *Memory {
	return &Memory{
		window:  window,
		entries: make(map[string]*entry),
		logger:  logger.With(slog.String("component", "typing_throttle")),
	}
}

func (m *Memory) Allow(_ context.Context, key string) bool {
	if m.window <= 0 {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(m.window), 1)}
		m.entries[key] = e
	}

	// push the cleanup out so a key lives while it is in use
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(2*m.window, func() {
		m.evict(key, e)
	})

	return e.limiter.Allow()
}

func (m *Memory) evict(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[key] == e {
		delete(m.entries, key)
		m.logger.Debug("Evicted idle throttle key", slog.String("key", key))
	}
}

func (m *Memory) Reset(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.timer.Stop()
		delete(m.entries, key)
	}
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
