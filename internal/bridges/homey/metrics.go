package homey

import "github.com/prometheus/client_golang/prometheus"

// Reasons used on the dropped counters.
const (
	dropMalformed    = "malformed"
	dropNotConnected = "not_connected"
	dropUnsupported  = "unsupported"
)

// Metrics holds the Prometheus collectors shared by all adapters. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	commandsSent      *prometheus.CounterVec
	commandsDropped   *prometheus.CounterVec
	reconnectAttempts *prometheus.CounterVec
	retriesExhausted  *prometheus.CounterVec
	connectionState   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Name:      "frames_received_total",
			Help:      "Text frames received from the hub.",
		}, []string{"adapter"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped, by reason.",
		}, []string{"adapter", "reason"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Name:      "commands_sent_total",
			Help:      "Command frames written to the hub.",
		}, []string{"adapter"}),
		commandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Name:      "commands_dropped_total",
			Help:      "Commands not sent, by reason.",
		}, []string{"adapter", "reason"}),
		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts.",
		}, []string{"adapter"}),
		retriesExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homey",
			Name:      "retries_exhausted_total",
			Help:      "Times the reconnect budget ran out.",
		}, []string{"adapter"}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "homey",
			Name:      "connection_state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 connected.",
		}, []string{"adapter"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.framesReceived,
			m.framesDropped,
			m.commandsSent,
			m.commandsDropped,
			m.reconnectAttempts,
			m.retriesExhausted,
			m.connectionState,
		)
	}
	return m
}

func (m *Metrics) frameReceived(adapter string) {
	if m != nil {
		m.framesReceived.WithLabelValues(adapter).Inc()
	}
}

func (m *Metrics) frameDropped(adapter, reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(adapter, reason).Inc()
	}
}

func (m *Metrics) commandSent(adapter string) {
	if m != nil {
		m.commandsSent.WithLabelValues(adapter).Inc()
	}
}

func (m *Metrics) commandDropped(adapter, reason string) {
	if m != nil {
		m.commandsDropped.WithLabelValues(adapter, reason).Inc()
	}
}

func (m *Metrics) reconnectAttempt(adapter string) {
	if m != nil {
		m.reconnectAttempts.WithLabelValues(adapter).Inc()
	}
}

func (m *Metrics) retryExhausted(adapter string) {
	if m != nil {
		m.retriesExhausted.WithLabelValues(adapter).Inc()
	}
}

func (m *Metrics) setState(adapter string, s ConnectionState) {
	if m != nil {
		m.connectionState.WithLabelValues(adapter).Set(float64(s))
	}
}
