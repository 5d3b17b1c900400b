package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-homey/internal/bridges/homey"
	"github.com/nerrad567/gray-logic-homey/internal/entity"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-homey/internal/notify"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Logger        *logging.Logger
	Registry      *entity.Registry
	Bridge        *homey.Bridge
	Notifications *notify.Center

	// Gatherer backs GET /metrics. Nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Registerer receives the HTTP request counter. Nil skips it.
	Registerer prometheus.Registerer

	Version string
}

// Server is the HTTP API server for the Homey bridge.
//
// It owns the HTTP listener, the routes and the WebSocket event stream.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	logger        *logging.Logger
	registry      *entity.Registry
	bridge        *homey.Bridge
	notifications *notify.Center
	gatherer      prometheus.Gatherer
	requests      *prometheus.CounterVec
	version       string
	startTime     time.Time

	server   *http.Server
	listener net.Listener
	events   *EventStream
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("homey bridge is required")
	}
	if deps.Notifications == nil {
		return nil, fmt.Errorf("notification center is required")
	}

	s := &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		registry:      deps.Registry,
		bridge:        deps.Bridge,
		notifications: deps.Notifications,
		gatherer:      deps.Gatherer,
		version:       deps.Version,
		startTime:     time.Now(),
	}
	s.events = NewEventStream(deps.WS, deps.Logger, s.entitySnapshot)
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if deps.Registerer != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"})
		deps.Registerer.MustRegister(s.requests)
	}

	s.subscribeEvents()
	return s, nil
}

// subscribeEvents relays registry, adapter and notification events to the
// event stream.
func (s *Server) subscribeEvents() {
	s.registry.AddListener(func(change entity.StateChange) {
		s.events.Publish(entityStateEvent(change))
	})
	s.bridge.AddStateListener(func(id string, state homey.ConnectionState) {
		s.events.Publish(adapterStateEvent(id, state))
	})
	s.notifications.AddListener(func(n notify.Notification) {
		s.events.Publish(notificationEvent(n))
	})
}

// entitySnapshot returns the current state of every entity f selects.
func (s *Server) entitySnapshot(f Filter) []Event {
	var out []Event
	for _, e := range s.registry.List(context.Background()) {
		ev := entitySnapshotEvent(e)
		if f.Match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so a port conflict is reported here;
// requests are then served in a background goroutine until Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.events.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
