package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "homey-bridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker listens on the test address.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 500*time.Millisecond)
	if err != nil {
		t.Skip("MQTT broker not available at 127.0.0.1:1883")
	}
	conn.Close() //nolint:errcheck // Probe only
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.HomeyState("light.kitchen"), "graylogic/state/homey/light.kitchen"},
		{"command", topics.HomeyCommand("light.kitchen"), "graylogic/command/homey/light.kitchen"},
		{"health", topics.HomeyHealth(), "graylogic/health/homey"},
		{"notification", topics.HomeyNotification("abc"), "graylogic/notify/homey/abc"},
		{"system status", topics.SystemStatus(), "graylogic/system/status"},
		{"all commands", topics.AllHomeyCommands(), "graylogic/command/homey/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestEntityIDFromCommandTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"graylogic/command/homey/light.kitchen", "light.kitchen", true},
		{"graylogic/command/homey/", "", false},
		{"graylogic/command/knx/light.kitchen", "", false},
		{"graylogic/command/homey/a/b", "", false},
		{"graylogic/state/homey/light.kitchen", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := Topics{}.EntityIDFromCommandTopic(tt.topic)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var p statusPayload
	if err := json.Unmarshal(buildStatusPayload("bridge-1", "offline", "graceful_shutdown"), &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Status != "offline" || p.ClientID != "bridge-1" || p.Reason != "graceful_shutdown" || p.Bridge != "homey" {
		t.Errorf("unexpected payload %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339", p.Timestamp)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "homey-bridge-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect settings = %v/%v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}
}

func TestNotConnectedErrors(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("a", nil, 3, false), ErrInvalidQoS},
		{"publish disconnected", c.Publish("a", []byte("x"), 1, false), ErrNotConnected},
		{"publish oversized", c.Publish("a", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"subscribe nil handler", c.Subscribe("a", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("a", 1, noop), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestCloseNil(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	t.Run("error is logged", func(t *testing.T) {
		h := c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })
		h(nil, fakeMessage{topic: "t", payload: []byte("x")})

		logger.mu.Lock()
		defer logger.mu.Unlock()
		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want 1 entry", logger.warns)
		}
	})

	t.Run("panic is recovered", func(t *testing.T) {
		h := c.wrapHandler(func(string, []byte) error { panic("boom") })
		h(nil, fakeMessage{topic: "t"})

		logger.mu.Lock()
		defer logger.mu.Unlock()
		if len(logger.errors) != 1 {
			t.Errorf("errors = %v, want 1 entry", logger.errors)
		}
	})

	t.Run("payload reaches handler", func(t *testing.T) {
		var gotTopic string
		var gotPayload []byte
		h := c.wrapHandler(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, payload
			return nil
		})
		h(nil, fakeMessage{topic: "graylogic/command/homey/x", payload: []byte(`{"command":"ON"}`)})

		if gotTopic != "graylogic/command/homey/x" || string(gotPayload) != `{"command":"ON"}` {
			t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
		}
	})
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	received := make(chan []byte, 1)
	topic := Topics{}.HomeyCommand("test.roundtrip")
	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topic, []byte(`{"command":"TOGGLE"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"command":"TOGGLE"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}
