package redis

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"
)

const (
	defaultMirrorBuffer = 256
	mirrorWriteTimeout  = 2 * time.Second
)

// StateWriter is the part of StateCache the mirror writes through.
type StateWriter interface {
	Set(ctx context.Context, entityID string, stateJSON []byte) error
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

type mirrored struct {
	entityID string
	state    map[string]any
}

// Mirror copies entity states into the cache from its own goroutine, so
// registry listeners never wait on Redis. When the buffer is full the
// newest state is dropped; the next change for that entity repairs it.
type Mirror struct {
	cache   StateWriter
	logger  Logger
	queue   chan mirrored
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewMirror creates a mirror with room for buffer pending states.
func NewMirror(cache StateWriter, buffer int, logger Logger) *Mirror {
	if buffer <= 0 {
		buffer = defaultMirrorBuffer
	}
	return &Mirror{cache: cache, logger: logger, queue: make(chan mirrored, buffer)}
}

// Enqueue queues a full attribute map for entityID. It never blocks and
// reports whether the state was accepted.
func (m *Mirror) Enqueue(entityID string, state map[string]any) bool {
	select {
	case m.queue <- mirrored{entityID: entityID, state: state}:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Run writes queued states until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-m.queue:
			m.write(ctx, item)
		}
	}
}

func (m *Mirror) write(ctx context.Context, item mirrored) {
	payload, err := json.Marshal(item.state)
	if err != nil {
		m.logger.Warn("encoding entity state for cache", "entity_id", item.entityID, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()
	if err := m.cache.Set(writeCtx, item.entityID, payload); err != nil {
		m.logger.Warn("caching entity state", "entity_id", item.entityID, "error", err)
		return
	}
	m.written.Add(1)
}

// Dropped returns how many states were discarded because the buffer was full.
func (m *Mirror) Dropped() uint64 { return m.dropped.Load() }

// Written returns how many states reached the cache.
func (m *Mirror) Written() uint64 { return m.written.Load() }
