package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockStateWriter records cache writes.
type MockStateWriter struct {
	mu     sync.Mutex
	writes map[string][]byte
	err    error
}

func (m *MockStateWriter) Set(_ context.Context, entityID string, stateJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.writes == nil {
		m.writes = make(map[string][]byte)
	}
	m.writes[entityID] = stateJSON
	return nil
}

func (m *MockStateWriter) get(entityID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[entityID]
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMirrorWrites(t *testing.T) {
	w := &MockStateWriter{}
	m := NewMirror(w, 4, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	if !m.Enqueue("light.a", map[string]any{"state": "ON", "brightness": 42}) {
		t.Fatal("Enqueue() rejected")
	}
	waitUntil(t, func() bool { return m.Written() == 1 })

	var got map[string]any
	if err := json.Unmarshal(w.get("light.a"), &got); err != nil {
		t.Fatal(err)
	}
	if got["state"] != "ON" || got["brightness"] != 42.0 {
		t.Errorf("cached = %v", got)
	}
}

func TestMirrorDropsWhenFull(t *testing.T) {
	m := NewMirror(&MockStateWriter{}, 1, nopLogger{})

	// Not running, so the second state has nowhere to go.
	if !m.Enqueue("light.a", map[string]any{}) {
		t.Fatal("first Enqueue() rejected")
	}
	if m.Enqueue("light.b", map[string]any{}) {
		t.Error("second Enqueue() accepted on a full buffer")
	}
	if m.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", m.Dropped())
	}
}

func TestMirrorWriteError(t *testing.T) {
	w := &MockStateWriter{err: errors.New("connection refused")}
	m := NewMirror(w, 0, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Enqueue("light.a", map[string]any{"state": "OFF"})
	m.Enqueue("light.b", map[string]any{"state": "OFF"})
	waitUntil(t, func() bool { return len(m.queue) == 0 })
	time.Sleep(20 * time.Millisecond)
	if m.Written() != 0 {
		t.Errorf("Written() = %d after failing writes", m.Written())
	}
}
