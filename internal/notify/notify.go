// Package notify holds the notifications adapters raise for the user,
// such as "Cannot connect to Homey." with its Reconnect action.
//
// Notifications are kept in memory, logged, pushed to listeners (the API
// event stream) and, when a publisher is set, published on MQTT.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxNotifications bounds the stored list; the oldest are evicted first.
const maxNotifications = 100

// Action is the button attached to a notification.
type Action struct {
	Label  string
	Invoke func()
}

// Notification is the stored, serializable form.
type Notification struct {
	ID        string    `json:"id"`
	Critical  bool      `json:"critical"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher is the subset of the MQTT client used for publishing.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type entry struct {
	n      Notification
	invoke func()
}

// Center stores notifications. It is safe for concurrent use.
type Center struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string

	logger    Logger
	publisher Publisher
	topic     func(id string) string

	listenersMu sync.RWMutex
	listeners   []func(Notification)

	now func() time.Time
}

// NewCenter creates an empty Center.
func NewCenter(logger Logger) *Center {
	return &Center{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher publishes every raised notification on topic(id).
func (c *Center) SetPublisher(p Publisher, topic func(id string) string) {
	c.mu.Lock()
	c.publisher = p
	c.topic = topic
	c.mu.Unlock()
}

// AddListener registers fn for newly raised notifications.
func (c *Center) AddListener(fn func(Notification)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// Raise stores a notification and returns its id. action may be nil.
func (c *Center) Raise(critical bool, title, detail string, action *Action) string {
	n := Notification{
		ID:        uuid.NewString(),
		Critical:  critical,
		Title:     title,
		Detail:    detail,
		CreatedAt: c.now(),
	}
	e := &entry{n: n}
	if action != nil {
		e.n.Action = action.Label
		e.invoke = action.Invoke
		n.Action = action.Label
	}

	c.mu.Lock()
	c.entries[n.ID] = e
	c.order = append(c.order, n.ID)
	for len(c.order) > maxNotifications {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	publisher, topic := c.publisher, c.topic
	c.mu.Unlock()

	if critical {
		c.logger.Error("notification raised", "id", n.ID, "title", title, "detail", detail)
	} else {
		c.logger.Info("notification raised", "id", n.ID, "title", title, "detail", detail)
	}

	if publisher != nil && topic != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			err = publisher.Publish(topic(n.ID), payload, 1, false)
		}
		if err != nil {
			c.logger.Warn("publishing notification failed", "id", n.ID, "error", err)
		}
	}

	c.listenersMu.RLock()
	listeners := append([]func(Notification){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(n)
	}

	return n.ID
}

// List returns stored notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].n)
	}
	return out
}

// Invoke runs the notification's action and dismisses it.
func (c *Center) Invoke(id string) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.invoke == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoAction, id)
	}
	c.removeLocked(id)
	c.mu.Unlock()

	c.logger.Info("notification action invoked", "id", id, "action", e.n.Action)
	e.invoke()
	return nil
}

// Dismiss removes a notification without running its action.
func (c *Center) Dismiss(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.removeLocked(id)
	return nil
}

func (c *Center) removeLocked(id string) {
	delete(c.entries, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
