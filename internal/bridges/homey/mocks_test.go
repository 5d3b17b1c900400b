package homey

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

// MockRegistry implements Registry in memory.
type MockRegistry struct {
	mu          sync.Mutex
	entities    map[string]*entity.Entity
	updates     []mockUpdate
	registered  []entity.Registration
	registerErr map[string]error
	lookupErr   error
	listeners   []entity.StateListener
}

type mockUpdate struct {
	ID      string
	Changes entity.Attributes
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		entities:    make(map[string]*entity.Entity),
		registerErr: make(map[string]error),
	}
}

// Add seeds an entity.
func (m *MockRegistry) Add(e entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Attributes == nil {
		e.Attributes = entity.Attributes{}
	}
	m.entities[e.ID] = e.DeepCopy()
}

func (m *MockRegistry) LookupByID(_ context.Context, id string) (*entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	e, ok := m.entities[id]
	if !ok {
		return nil, entity.ErrEntityNotFound
	}
	return e.DeepCopy(), nil
}

func (m *MockRegistry) ListByAdapter(_ context.Context, adapterID string) ([]entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Entity
	for _, e := range m.entities {
		if e.AdapterID == adapterID {
			out = append(out, *e.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRegistry) RegisterAvailable(_ context.Context, reg entity.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registerErr[reg.ID]; err != nil {
		return err
	}
	m.registered = append(m.registered, reg)
	attrs := entity.Attributes{}
	if existing, ok := m.entities[reg.ID]; ok {
		attrs = existing.Attributes
	}
	m.entities[reg.ID] = &entity.Entity{
		ID:           reg.ID,
		AdapterID:    reg.AdapterID,
		Name:         reg.Name,
		Domain:       reg.Domain,
		Capabilities: reg.Capabilities,
		Attributes:   attrs,
	}
	return nil
}

func (m *MockRegistry) UpdateAttributes(_ context.Context, id string, changes entity.Attributes) error {
	m.mu.Lock()
	e, ok := m.entities[id]
	if !ok {
		m.mu.Unlock()
		return entity.ErrEntityNotFound
	}
	m.updates = append(m.updates, mockUpdate{ID: id, Changes: maps.Clone(changes)})
	maps.Copy(e.Attributes, changes)
	change := entity.StateChange{
		EntityID:  id,
		AdapterID: e.AdapterID,
		Domain:    e.Domain,
		Changes:   maps.Clone(changes),
		State:     maps.Clone(e.Attributes),
		Timestamp: time.Now(),
	}
	listeners := append([]entity.StateListener{}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
	return nil
}

func (m *MockRegistry) AddListener(fn entity.StateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *MockRegistry) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

func (m *MockRegistry) GetUpdates() []mockUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockUpdate(nil), m.updates...)
}

func (m *MockRegistry) GetRegistered() []entity.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.Registration(nil), m.registered...)
}

func (m *MockRegistry) Attributes(id string) entity.Attributes {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[id]; ok {
		return maps.Clone(e.Attributes)
	}
	return nil
}

// MockNotifier implements NotificationSink.
type MockNotifier struct {
	mu     sync.Mutex
	raised []mockNotification
}

type mockNotification struct {
	Critical bool
	Title    string
	Detail   string
	Action   *notify.Action
}

func (m *MockNotifier) Raise(critical bool, title, detail string, action *notify.Action) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raised = append(m.raised, mockNotification{Critical: critical, Title: title, Detail: detail, Action: action})
	return "n-" + title
}

func (m *MockNotifier) GetRaised() []mockNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockNotification(nil), m.raised...)
}

// MockMQTTClient implements MQTTClient and HealthPublisher.
type MockMQTTClient struct {
	mu        sync.Mutex
	connected bool
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *MockMQTTClient) GetPublished(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if topic == "" || p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to the handler subscribed to pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + pattern)
	}
	return handler(topic, payload)
}

var errConnClosed = errors.New("connection closed")

// fakeConn is an in-memory hub connection. Frames pushed with deliver are
// returned by ReadMessage; drop simulates the hub going away.
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
	writeCh chan []byte

	// stalled, when set, makes WriteMessage block until Close. It is
	// signalled once per blocked write.
	stalled chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
		writeCh: make(chan []byte, 16),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.inbound:
		return f, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(frame []byte) error {
	if c.stalled != nil {
		c.stalled <- struct{}{}
		<-c.closed
		return errConnClosed
	}
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, append([]byte(nil), frame...))
	c.mu.Unlock()
	select {
	case c.writeCh <- frame:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(frame string) { c.inbound <- []byte(frame) }

func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) getWritten() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

// waitWrite returns the next written frame.
func (c *fakeConn) waitWrite(t *testing.T) string {
	t.Helper()
	select {
	case f := <-c.writeCh:
		return string(f)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a written frame")
		return ""
	}
}

// fakeDialer hands out connections from a queue. With an empty queue each
// dial fails.
type fakeDialer struct {
	mu        sync.Mutex
	queue     []*fakeConn
	dials     int
	endpoints []Endpoint
}

func (d *fakeDialer) push(c *fakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, c)
}

func (d *fakeDialer) Dial(_ context.Context, ep Endpoint) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.endpoints = append(d.endpoints, ep)
	if len(d.queue) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.queue[0]
	d.queue = d.queue[1:]
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
