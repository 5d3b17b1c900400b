package homey

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// defaultHandshakeTimeout bounds the WebSocket upgrade.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultWriteTimeout bounds a single frame write.
	defaultWriteTimeout = 10 * time.Second
)

// Endpoint is where and how to reach one hub.
type Endpoint struct {
	Address string
	Token   string
}

// URL returns the WebSocket URL for the endpoint.
func (e Endpoint) URL() string {
	return "ws://" + e.Address
}

// Conn is an open connection to a hub. ReadMessage returns text frames
// only. ReadMessage may be called concurrently with WriteMessage and Close.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(frame []byte) error
	Close() error
}

// Dialer opens connections to a hub.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// WebSocketDialer dials hubs with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Dial opens ws://<address>, sending the token as a bearer token when set.
func (d WebSocketDialer) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	write := d.WriteTimeout
	if write <= 0 {
		write = defaultWriteTimeout
	}

	header := http.Header{}
	if ep.Token != "" {
		header.Set("Authorization", "Bearer "+ep.Token)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}
	ws, resp, err := dialer.DialContext(ctx, ep.URL(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake response body carries nothing we need
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", ep.URL(), err)
	}
	return &wsConn{ws: ws, writeTimeout: write}, nil
}

// wsConn adapts *websocket.Conn to Conn.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	// gorilla allows one concurrent writer; Close writes a control frame.
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		//nolint:errcheck // best-effort close handshake, peer may already be gone
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
