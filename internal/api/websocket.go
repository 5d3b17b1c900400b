package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/logging"
)

// Stream message types.
const (
	msgSubscribe    = "subscribe"
	msgUnsubscribe  = "unsubscribe"
	msgPing         = "ping"
	msgPong         = "pong"
	msgSubscribed   = "subscribed"
	msgUnsubscribed = "unsubscribed"
	msgEvent        = "event"
	msgError        = "error"
)

const (
	// clientBufferSize is the per-client outbound queue length.
	clientBufferSize = 256

	defaultPingInterval   = 30
	defaultPongTimeout    = 10
	defaultMaxMessageSize = 8192
)

// streamRequest is a message from a client.
type streamRequest struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Adapters []string `json:"adapters,omitempty"`
	Entities []string `json:"entities,omitempty"`
}

// streamMessage is a message to a client.
type streamMessage struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Event    *Event   `json:"event,omitempty"`
	Error    string   `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API has no browser-facing origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventStream fans registry, adapter and notification events out to
// WebSocket clients according to each client's Filter.
type EventStream struct {
	logger    *logging.Logger
	readLimit int64
	pingEvery time.Duration
	pongWait  time.Duration

	// snapshot returns the current entity states matching a filter. It is
	// sent to clients subscribing to entity.state_changed.
	snapshot func(Filter) []Event

	mu      sync.RWMutex
	clients map[*streamClient]struct{}

	dropped atomic.Uint64
}

// NewEventStream creates a stream. Zero config values take defaults; a nil
// snapshot disables the initial state on subscribe.
func NewEventStream(cfg config.WebSocketConfig, logger *logging.Logger, snapshot func(Filter) []Event) *EventStream {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	return &EventStream{
		logger:    logger,
		readLimit: int64(cfg.MaxMessageSize),
		pingEvery: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:  time.Duration(cfg.PongTimeout) * time.Second,
		snapshot:  snapshot,
		clients:   make(map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (s *EventStream) Run(ctx context.Context) {
	<-ctx.Done()

	s.mu.Lock()
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
		delete(s.clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Publish delivers ev to every client whose filter matches. A client with a
// full queue misses the event.
func (s *EventStream) Publish(ev Event) {
	data, err := json.Marshal(streamMessage{Type: msgEvent, Event: &ev})
	if err != nil {
		s.logger.Error("failed to encode stream event", "channel", ev.Channel, "error", err)
		return
	}

	s.mu.RLock()
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if !c.matches(ev) {
			continue
		}
		if !c.deliver(data) {
			s.dropped.Add(1)
			s.logger.Debug("stream client queue full, event dropped", "channel", ev.Channel, "entity_id", ev.EntityID)
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *EventStream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped returns how many events were not queued because a client was
// too slow.
func (s *EventStream) Dropped() uint64 { return s.dropped.Load() }

func (s *EventStream) add(c *streamClient) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Debug("stream client connected", "clients", n)
}

func (s *EventStream) remove(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	c.close()
	s.logger.Debug("stream client disconnected", "clients", n)
}

// serve runs a client on an upgraded connection until it goes away.
func (s *EventStream) serve(conn *websocket.Conn) {
	c := newStreamClient(s, conn)
	s.add(c)
	go c.writeLoop()
	c.readLoop()
}

// handleWebSocket upgrades the request and attaches it to the event
// stream. Clients receive nothing until they subscribe.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	go s.events.serve(conn)
}

// streamClient is one connected subscriber. out is never closed; done
// signals the writer to stop. Only writeLoop closes conn.
type streamClient struct {
	stream *EventStream
	conn   *websocket.Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	filter Filter
}

func newStreamClient(s *EventStream, conn *websocket.Conn) *streamClient {
	return &streamClient{
		stream: s,
		conn:   conn,
		out:    make(chan []byte, clientBufferSize),
		done:   make(chan struct{}),
		filter: newFilter(),
	}
}

func (c *streamClient) matches(ev Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Match(ev)
}

// deliver queues data without blocking and reports whether it was queued.
func (c *streamClient) deliver(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// close stops the writer, which says goodbye and closes the socket.
func (c *streamClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *streamClient) readLoop() {
	defer c.stream.remove(c)

	deadline := c.stream.pingEvery + c.stream.pongWait
	c.conn.SetReadLimit(c.stream.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // reset on every read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.stream.logger.Warn("stream read error", "error", err)
			}
			return
		}
		// Clients that never answer protocol pings stay alive by talking.
		c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck // read errors end the loop
		c.handle(data)
	}
}

func (c *streamClient) writeLoop() {
	ticker := time.NewTicker(c.stream.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // ends readLoop as well
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // peer may already be gone
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(c.stream.pongWait)) //nolint:errcheck // checked by the write
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.stream.pongWait)) //nolint:errcheck // checked by the write
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *streamClient) handle(data []byte) {
	var req streamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(streamMessage{Type: msgError, Error: "invalid JSON message"})
		return
	}

	switch req.Type {
	case msgSubscribe:
		c.subscribe(req)
	case msgUnsubscribe:
		c.unsubscribe(req)
	case msgPing:
		c.reply(streamMessage{Type: msgPong, ID: req.ID})
	default:
		c.reply(streamMessage{Type: msgError, ID: req.ID, Error: "unknown message type: " + req.Type})
	}
}

// subscribe adds channels and, when given, replaces the adapter and entity
// filters. The reply and any snapshot are queued before live events that
// match the new filter.
func (c *streamClient) subscribe(req streamRequest) {
	if len(req.Channels) == 0 {
		c.reply(streamMessage{Type: msgError, ID: req.ID, Error: "no channels given"})
		return
	}
	for _, ch := range req.Channels {
		if !slices.Contains(knownChannels, ch) {
			c.reply(streamMessage{Type: msgError, ID: req.ID, Error: "unknown channel: " + ch})
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range req.Channels {
		c.filter.Channels[ch] = struct{}{}
	}
	if req.Adapters != nil {
		c.filter.Adapters = toSet(req.Adapters)
	}
	if req.Entities != nil {
		c.filter.Entities = toSet(req.Entities)
	}
	c.reply(streamMessage{Type: msgSubscribed, ID: req.ID, Channels: c.filter.channelList()})

	if c.stream.snapshot == nil || !slices.Contains(req.Channels, EventEntityStateChanged) {
		return
	}
	for _, ev := range c.stream.snapshot(c.filter) {
		data, err := json.Marshal(streamMessage{Type: msgEvent, Event: &ev})
		if err != nil {
			continue
		}
		if !c.deliver(data) {
			c.stream.dropped.Add(1)
		}
	}
}

func (c *streamClient) unsubscribe(req streamRequest) {
	c.mu.Lock()
	for _, ch := range req.Channels {
		delete(c.filter.Channels, ch)
	}
	remaining := c.filter.channelList()
	c.mu.Unlock()

	c.reply(streamMessage{Type: msgUnsubscribed, ID: req.ID, Channels: remaining})
}

func (c *streamClient) reply(msg streamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.deliver(data)
}
