// Package statetest provides in-memory sinks for exercising the registry and
// everything that fans out through it without opening sockets.
package statetest

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/00vDragos/RealTime-Chat/pkg/state"
)

var ErrSinkFailed = errors.New("statetest: sink failed")

// Sink records every frame it accepts.
type Sink struct {
	id uuid.UUID

	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
	reason error
}

func NewSink() *Sink {
	return &Sink{id: uuid.New()}
}

// NewFailingSink returns a sink whose every Send fails.
func NewFailingSink() *Sink {
	s := NewSink()
	s.fail = true
	return s
}

// NewConnection returns a registry entry backed by a fresh recording sink.
func NewConnection(userID string) (*state.Connection, *Sink) {
	sink := NewSink()
	return state.NewConnection(userID, "127.0.0.1", sink), sink
}

func (s *Sink) ID() uuid.UUID { return s.id }

func (s *Sink) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || s.closed {
		return ErrSinkFailed
	}
	s.frames = append(s.frames, payload)
	return nil
}

func (s *Sink) Close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.reason = err
	}
}

// SetFailing toggles whether subsequent sends fail.
func (s *Sink) SetFailing(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Events decodes every recorded frame as a JSON object.
func (s *Sink) Events() []map[string]any {
	var out []map[string]any
	for _, f := range s.Frames() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// EventsOf returns the decoded frames whose "event" field equals name.
func (s *Sink) EventsOf(name string) []map[string]any {
	var out []map[string]any
	for _, e := range s.Events() {
		if e["event"] == name {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until at least n frames have arrived or the timeout passes.
func (s *Sink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		got := len(s.frames)
		s.mu.Unlock()
		if got >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
