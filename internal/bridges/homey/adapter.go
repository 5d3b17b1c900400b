package homey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

const (
	// DefaultMailboxSize is the number of host requests that may wait for
	// the worker.
	DefaultMailboxSize = 64

	// DefaultStopTimeout is how long Stop waits for the worker before the
	// socket is closed underneath it.
	DefaultStopTimeout = 5 * time.Second
)

// Options configures an Adapter.
type Options struct {
	// ID tags every entity this adapter registers.
	ID string

	// Address is host or host:port of the hub.
	Address string

	// Token is sent as a bearer token when non-empty.
	Token string

	Registry EntityRegistry
	Notifier NotificationSink

	// Dialer defaults to WebSocketDialer.
	Dialer Dialer

	// Logger defaults to a no-op logger.
	Logger Logger

	// Metrics may be nil.
	Metrics *Metrics

	ReconnectInterval time.Duration
	MailboxSize       int
	StopTimeout       time.Duration
}

// AdapterStats holds runtime counters.
type AdapterStats struct {
	FramesReceived    uint64    `json:"frames_received"`
	FramesDropped     uint64    `json:"frames_dropped"`
	CommandsSent      uint64    `json:"commands_sent"`
	CommandsDropped   uint64    `json:"commands_dropped"`
	ReconnectAttempts uint64    `json:"reconnect_attempts"`
	RetriesExhausted  uint64    `json:"retries_exhausted"`
	LastActivity      time.Time `json:"last_activity,omitzero"`
	ConnectedSince    time.Time `json:"connected_since,omitzero"`
}

type requestKind int

const (
	reqConnect requestKind = iota
	reqDisconnect
	reqCommand
)

type request struct {
	kind requestKind
	cmd  OutboundCommand
}

// socketEvent is sent by a connection's reader goroutine.
type socketEvent struct {
	gen   uint64
	frame []byte
	err   error
}

// dialResult is sent by the dial goroutine.
type dialResult struct {
	gen  uint64
	conn Conn
	err  error
}

// Adapter maintains the connection to one hub.
//
// All connection state is owned by a single worker goroutine started by
// Start. Exported methods are safe for concurrent use.
type Adapter struct {
	id       string
	endpoint Endpoint
	registry EntityRegistry
	notifier NotificationSink
	dialer   Dialer
	logger   Logger
	metrics  *Metrics
	router   *router

	interval    time.Duration
	stopTimeout time.Duration

	mailbox  chan request
	done     chan struct{}
	finished chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	state atomic.Int32

	onStateChange   func(id string, state ConnectionState)
	onStateChangeMu sync.RWMutex

	// liveConn mirrors the worker's connection so Stop can close it if the
	// worker does not exit in time.
	liveConn   Conn
	liveConnMu sync.Mutex

	framesReceived    atomic.Uint64
	framesDropped     atomic.Uint64
	commandsSent      atomic.Uint64
	commandsDropped   atomic.Uint64
	reconnectAttempts atomic.Uint64
	retriesExhausted  atomic.Uint64
	lastActivity      atomic.Int64
	connectedSince    atomic.Int64
}

// NewAdapter creates an adapter. Call Start to run it and Connect to open
// the connection.
func NewAdapter(opts Options) *Adapter {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	a := &Adapter{
		id:          opts.ID,
		endpoint:    Endpoint{Address: opts.Address, Token: opts.Token},
		registry:    opts.Registry,
		notifier:    opts.Notifier,
		dialer:      opts.Dialer,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		interval:    opts.ReconnectInterval,
		stopTimeout: opts.StopTimeout,
		mailbox:     make(chan request, opts.MailboxSize),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
	}
	a.router = newRouter(a.id, a.registry, a.notifier, a.logger)
	a.metrics.setState(a.id, StateDisconnected)
	return a
}

// ID returns the adapter id.
func (a *Adapter) ID() string { return a.id }

// Address returns the hub address.
func (a *Adapter) Address() string { return a.endpoint.Address }

// State returns the current connection state.
func (a *Adapter) State() ConnectionState {
	return ConnectionState(a.state.Load())
}

// SetOnStateChange registers fn to be called on every state change. fn
// runs on the worker goroutine and must not block.
func (a *Adapter) SetOnStateChange(fn func(id string, state ConnectionState)) {
	a.onStateChangeMu.Lock()
	a.onStateChange = fn
	a.onStateChangeMu.Unlock()
}

// Stats returns a snapshot of the adapter counters.
func (a *Adapter) Stats() AdapterStats {
	s := AdapterStats{
		FramesReceived:    a.framesReceived.Load(),
		FramesDropped:     a.framesDropped.Load(),
		CommandsSent:      a.commandsSent.Load(),
		CommandsDropped:   a.commandsDropped.Load(),
		ReconnectAttempts: a.reconnectAttempts.Load(),
		RetriesExhausted:  a.retriesExhausted.Load(),
	}
	if ns := a.lastActivity.Load(); ns != 0 {
		s.LastActivity = time.Unix(0, ns)
	}
	if ns := a.connectedSince.Load(); ns != 0 {
		s.ConnectedSince = time.Unix(0, ns)
	}
	return s
}

// Start runs the worker until ctx is cancelled or Stop is called. Calling
// Start more than once has no effect.
func (a *Adapter) Start(ctx context.Context) {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	go a.run(ctx)
}

// Stop shuts the worker down. If the worker has not exited after the stop
// timeout the socket is closed and Stop returns anyway.
func (a *Adapter) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		if !a.started.Load() {
			return
		}

		timer := time.NewTimer(a.stopTimeout)
		defer timer.Stop()

		select {
		case <-a.finished:
		case <-timer.C:
			a.logger.Warn("adapter did not stop in time, closing connection", "adapter", a.id)
			a.liveConnMu.Lock()
			if a.liveConn != nil {
				a.liveConn.Close() //nolint:errcheck // forced shutdown
			}
			a.liveConnMu.Unlock()
		}
	})
}

// Connect asks the adapter to open the connection. It is a no-op while
// connecting or connected.
func (a *Adapter) Connect() error {
	return a.enqueue(request{kind: reqConnect})
}

// Disconnect closes the connection and suppresses automatic reconnects
// until the next Connect.
func (a *Adapter) Disconnect() error {
	return a.enqueue(request{kind: reqDisconnect})
}

// SendCommand queues cmd for transmission. Unsupported commands are
// dropped by the worker.
func (a *Adapter) SendCommand(cmd OutboundCommand) error {
	return a.enqueue(request{kind: reqCommand, cmd: cmd})
}

func (a *Adapter) enqueue(req request) error {
	select {
	case <-a.done:
		return ErrAdapterStopped
	default:
	}
	select {
	case a.mailbox <- req:
		return nil
	default:
		return ErrMailboxFull
	}
}

// worker holds the state owned by the run goroutine.
type worker struct {
	a   *Adapter
	ctx context.Context

	rec   connState
	conn  Conn
	gen   uint64
	timer *time.Timer

	cancelDial context.CancelFunc

	events chan socketEvent
	dials  chan dialResult
}

func (a *Adapter) run(ctx context.Context) {
	defer close(a.finished)

	w := &worker{
		a:      a,
		ctx:    ctx,
		timer:  time.NewTimer(a.interval),
		events: make(chan socketEvent),
		dials:  make(chan dialResult),
	}
	w.timer.Stop()
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return

		case req := <-a.mailbox:
			w.handleRequest(ctx, req)

		case res := <-w.dials:
			w.handleDial(res)

		case ev := <-w.events:
			w.handleSocket(ctx, ev)

		case <-w.timer.C:
			w.step(evTimerFired)
		}
	}
}

func (w *worker) handleRequest(ctx context.Context, req request) {
	switch req.kind {
	case reqConnect:
		w.step(evConnect)
	case reqDisconnect:
		w.step(evDisconnect)
	case reqCommand:
		w.sendCommand(ctx, req.cmd)
	}
}

func (w *worker) handleDial(res dialResult) {
	if res.gen != w.gen {
		if res.conn != nil {
			res.conn.Close() //nolint:errcheck // superseded connection
		}
		return
	}
	w.cancelDial = nil

	if res.err != nil {
		w.a.logger.Warn("failed to connect to hub", "adapter", w.a.id, "address", w.a.endpoint.Address, "error", res.err)
		w.step(evSocketError)
		return
	}

	w.conn = res.conn
	w.a.setLiveConn(res.conn)
	go w.read(res.conn, w.gen)

	w.a.logger.Debug("socket open, waiting for hub", "adapter", w.a.id)
	w.step(evSocketOpened)
}

func (w *worker) handleSocket(ctx context.Context, ev socketEvent) {
	if ev.gen != w.gen {
		return
	}

	if ev.err != nil {
		if w.rec.UserDisconnect {
			w.a.logger.Debug("socket closed", "adapter", w.a.id)
		} else {
			w.a.logger.Warn("connection to hub lost", "adapter", w.a.id, "error", ev.err)
		}
		w.step(evSocketClosed)
		return
	}

	w.a.framesReceived.Add(1)
	w.a.lastActivity.Store(time.Now().UnixNano())
	w.a.metrics.frameReceived(w.a.id)

	out, err := w.a.router.handle(ctx, ev.frame)
	if err != nil {
		w.a.framesDropped.Add(1)
		w.a.metrics.frameDropped(w.a.id, dropMalformed)
		w.a.logger.Warn("dropping malformed frame", "adapter", w.a.id, "error", err)
		return
	}
	if out.Connected {
		w.step(evConnectedAck)
	}
	if out.Reply != nil {
		w.send(out.Reply)
	}
}

func (w *worker) sendCommand(ctx context.Context, cmd OutboundCommand) {
	frame, ok := EncodeFrame(cmd)
	if !ok {
		w.a.commandsDropped.Add(1)
		w.a.metrics.commandDropped(w.a.id, dropUnsupported)
		w.a.logger.Debug("ignoring unsupported command",
			"adapter", w.a.id, "entity_id", cmd.EntityID, "domain", cmd.Domain, "command", cmd.Kind)
		return
	}
	// The requested state is recorded even when the frame cannot be sent.
	if attrs := optimisticAttributes(cmd); attrs != nil && w.a.registry != nil {
		if err := w.a.registry.UpdateAttributes(ctx, cmd.EntityID, attrs); err != nil {
			w.a.logger.Warn("failed to record requested state", "entity_id", cmd.EntityID, "error", err)
		}
	}

	if w.conn == nil {
		w.a.commandsDropped.Add(1)
		w.a.metrics.commandDropped(w.a.id, dropNotConnected)
		w.a.logger.Warn("dropping command, not connected", "adapter", w.a.id, "entity_id", cmd.EntityID, "command", cmd.Kind)
		return
	}

	if w.send(frame) {
		w.a.commandsSent.Add(1)
		w.a.metrics.commandSent(w.a.id)
	}
}

// send writes one frame. It reports whether the frame was written.
func (w *worker) send(frame []byte) bool {
	if w.conn == nil {
		w.a.logger.Warn("dropping frame, socket not open", "adapter", w.a.id)
		return false
	}
	if err := w.conn.WriteMessage(frame); err != nil {
		w.a.logger.Warn("failed to send frame", "adapter", w.a.id, "error", err)
		w.step(evSocketError)
		return false
	}
	return true
}

// read forwards frames from conn until it fails. The final event carries
// the error.
func (w *worker) read(conn Conn, gen uint64) {
	for {
		frame, err := conn.ReadMessage()
		select {
		case w.events <- socketEvent{gen: gen, frame: frame, err: err}:
		case <-w.a.finished:
			return
		}
		if err != nil {
			return
		}
	}
}

// step runs one transition and executes its effects.
func (w *worker) step(ev connEvent) {
	prev := w.rec
	next, effects := transition(w.rec, ev)
	w.rec = next

	for _, eff := range effects {
		switch eff {
		case effOpen:
			w.open()
		case effClose:
			w.closeConn()
		case effArmTimer:
			w.timer.Reset(w.a.interval)
		case effStopTimer:
			w.timer.Stop()
		case effNotifyExhausted:
			w.notifyExhausted()
		}
	}

	if ev == evTimerFired && next.Tries > prev.Tries {
		w.a.reconnectAttempts.Add(1)
		w.a.metrics.reconnectAttempt(w.a.id)
		w.a.logger.Info("reconnecting to hub", "adapter", w.a.id, "attempt", next.Tries)
	}

	if next.State != prev.State {
		w.a.setState(next.State)
	}
}

func (w *worker) open() {
	w.abortDial()
	w.gen++
	gen := w.gen

	ctx, cancel := context.WithCancel(w.ctx)
	w.cancelDial = cancel

	go func() {
		conn, err := w.a.dialer.Dial(ctx, w.a.endpoint)
		if err == nil && ctx.Err() != nil {
			conn.Close() //nolint:errcheck // dial was cancelled
			conn, err = nil, ctx.Err()
		}
		select {
		case w.dials <- dialResult{gen: gen, conn: conn, err: err}:
		case <-w.a.finished:
			if conn != nil {
				conn.Close() //nolint:errcheck // worker gone
			}
		}
	}()
}

func (w *worker) abortDial() {
	if w.cancelDial != nil {
		w.cancelDial()
		w.cancelDial = nil
	}
}

// closeConn closes the current connection. Events from it are stale after
// the generation bump.
func (w *worker) closeConn() {
	w.abortDial()
	w.gen++
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		w.a.logger.Debug("error closing socket", "adapter", w.a.id, "error", err)
	}
	w.conn = nil
	w.a.setLiveConn(nil)
}

func (w *worker) notifyExhausted() {
	w.a.retriesExhausted.Add(1)
	w.a.metrics.retryExhausted(w.a.id)
	w.a.logger.Error("cannot connect to hub, giving up",
		"adapter", w.a.id, "address", w.a.endpoint.Address, "tries", maxReconnectTries)

	if w.a.notifier == nil {
		return
	}
	a := w.a
	a.notifier.Raise(true, "Cannot connect to Homey.",
		fmt.Sprintf("Retried %d times connecting to %s", maxReconnectTries, a.endpoint.Address),
		&notify.Action{
			Label: "Reconnect",
			Invoke: func() {
				if err := a.Connect(); err != nil && !errors.Is(err, ErrAdapterStopped) {
					a.logger.Warn("reconnect request failed", "adapter", a.id, "error", err)
				}
			},
		})
}

func (w *worker) shutdown() {
	w.timer.Stop()
	w.abortDial()
	if w.conn != nil {
		w.conn.Close() //nolint:errcheck // shutting down
		w.conn = nil
	}
	w.a.setLiveConn(nil)
	w.rec = connState{State: StateDisconnected, UserDisconnect: true}
	w.a.setState(StateDisconnected)
}

func (a *Adapter) setLiveConn(c Conn) {
	a.liveConnMu.Lock()
	a.liveConn = c
	a.liveConnMu.Unlock()
}

func (a *Adapter) setState(s ConnectionState) {
	prev := ConnectionState(a.state.Swap(int32(s)))
	if prev == s {
		return
	}

	switch s {
	case StateConnected:
		a.connectedSince.Store(time.Now().UnixNano())
	case StateDisconnected:
		a.connectedSince.Store(0)
	}
	a.metrics.setState(a.id, s)
	a.logger.Info("connection state changed", "adapter", a.id, "from", prev.String(), "to", s.String())

	a.onStateChangeMu.RLock()
	fn := a.onStateChange
	a.onStateChangeMu.RUnlock()
	if fn != nil {
		fn(a.id, s)
	}
}
