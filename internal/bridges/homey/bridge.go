package homey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homey/internal/infrastructure/mqtt"
)

// stateQoS is used for retained entity state.
const stateQoS = 1

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Registry is the entity registry as seen by the bridge. *entity.Registry
// implements it.
type Registry interface {
	EntityRegistry
	AddListener(fn entity.StateListener)
	Count() int
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	BridgeID string
	Version  string

	// Hubs lists the configured hubs; disabled entries are skipped.
	Hubs []config.HubConfig

	HealthInterval time.Duration

	Registry Registry
	Notifier NotificationSink

	// MQTT is optional. Without it the bridge neither publishes state nor
	// accepts MQTT commands.
	MQTT MQTTClient

	Metrics *Metrics
	Dialer  Dialer
	Logger  Logger

	// AdapterLogger returns the logger for one adapter. Defaults to Logger.
	AdapterLogger func(adapterID string) Logger

	ReconnectInterval time.Duration
}

// Bridge hosts one Adapter per enabled hub and connects them to MQTT.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	id       string
	registry Registry
	mqtt     MQTTClient
	health   *HealthReporter
	logger   Logger

	order    []string
	adapters map[string]*Adapter

	stateListeners   []func(id string, state ConnectionState)
	stateListenersMu sync.RWMutex

	started  bool
	startMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
}

// NewBridge creates a bridge with one adapter per enabled hub. Call Start
// to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Registry == nil {
		return nil, errors.New("homey: registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	adapterLogger := opts.AdapterLogger
	if adapterLogger == nil {
		adapterLogger = func(string) Logger { return logger }
	}

	b := &Bridge{
		id:       opts.BridgeID,
		registry: opts.Registry,
		mqtt:     opts.MQTT,
		logger:   logger,
		adapters: make(map[string]*Adapter),
		done:     make(chan struct{}),
	}

	for _, hub := range opts.Hubs {
		if !hub.IsEnabled() {
			logger.Info("hub disabled, skipping", "adapter", hub.ID)
			continue
		}
		if _, dup := b.adapters[hub.ID]; dup {
			return nil, fmt.Errorf("homey: duplicate hub id %q", hub.ID)
		}
		a := NewAdapter(Options{
			ID:                hub.ID,
			Address:           hub.Address,
			Token:             hub.Token,
			Registry:          opts.Registry,
			Notifier:          opts.Notifier,
			Dialer:            opts.Dialer,
			Logger:            adapterLogger(hub.ID),
			Metrics:           opts.Metrics,
			ReconnectInterval: opts.ReconnectInterval,
		})
		a.SetOnStateChange(b.handleAdapterState)
		b.adapters[hub.ID] = a
		b.order = append(b.order, hub.ID)
	}

	var publisher HealthPublisher
	if opts.MQTT != nil {
		publisher = opts.MQTT
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: publisher,
		Adapters:  b.AdapterHealth,
	})
	b.health.SetLogger(logger)
	b.health.SetEntityCount(opts.Registry.Count())

	return b, nil
}

// Start subscribes to MQTT commands, starts health reporting, and starts
// and connects every adapter.
func (b *Bridge) Start(ctx context.Context) error {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.started {
		return nil
	}
	b.started = true

	b.registry.AddListener(b.publishState)

	if b.mqtt != nil {
		if err := b.health.PublishStarting(); err != nil {
			b.logger.Warn("failed to publish starting status", "error", err)
		}
		topic := mqtt.Topics{}.AllHomeyCommands()
		if err := b.mqtt.Subscribe(topic, 1, b.handleCommandMessage); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logger.Info("subscribed to commands", "topic", topic)
	}

	b.health.Start(ctx)

	for _, id := range b.order {
		a := b.adapters[id]
		a.Start(ctx)
		if err := a.Connect(); err != nil {
			b.logger.Warn("failed to request connect", "adapter", id, "error", err)
		}
	}

	b.logger.Info("bridge started", "bridge_id", b.id, "adapters", len(b.order), "entities", b.registry.Count())
	return nil
}

// Stop stops every adapter in parallel, then health reporting.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		var wg sync.WaitGroup
		for _, a := range b.adapters {
			wg.Add(1)
			go func(a *Adapter) {
				defer wg.Done()
				a.Stop()
			}(a)
		}
		wg.Wait()

		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

// Adapter returns the adapter with the given id.
func (b *Bridge) Adapter(id string) (*Adapter, error) {
	a, ok := b.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, id)
	}
	return a, nil
}

// Adapters returns every adapter in configuration order.
func (b *Bridge) Adapters() []*Adapter {
	out := make([]*Adapter, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.adapters[id])
	}
	return out
}

// AdapterHealth describes every adapter for health reporting.
func (b *Bridge) AdapterHealth() []AdapterHealth {
	out := make([]AdapterHealth, 0, len(b.order))
	for _, a := range b.Adapters() {
		out = append(out, AdapterHealth{
			ID:      a.ID(),
			Address: a.Address(),
			State:   a.State().String(),
			Stats:   a.Stats(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Health returns the bridge's health reporter.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// AddStateListener registers fn for adapter connection state changes. fn
// runs on the adapter's worker and must not block.
func (b *Bridge) AddStateListener(fn func(id string, state ConnectionState)) {
	b.stateListenersMu.Lock()
	b.stateListeners = append(b.stateListeners, fn)
	b.stateListenersMu.Unlock()
}

// SendCommand routes req to the adapter owning entityID.
func (b *Bridge) SendCommand(ctx context.Context, entityID string, req CommandRequest) error {
	kind := ParseCommandKind(req.Command)
	if kind == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidCommand)
	}

	e, err := b.registry.LookupByID(ctx, entityID)
	if err != nil {
		return err
	}
	a, err := b.Adapter(e.AdapterID)
	if err != nil {
		return err
	}

	return a.SendCommand(OutboundCommand{
		Domain:    e.Domain,
		EntityID:  e.ID,
		Kind:      kind,
		Parameter: req.Parameter,
	})
}

func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	entityID, ok := mqtt.Topics{}.EntityIDFromCommandTopic(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrInvalidCommand, topic)
	}

	var req CommandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	if err := b.SendCommand(context.Background(), entityID, req); err != nil {
		b.logger.Warn("command rejected", "entity_id", entityID, "command", req.Command, "error", err)
		return err
	}
	b.logger.Debug("command queued", "entity_id", entityID, "command", req.Command)
	return nil
}

// publishState publishes retained state for entities owned by this
// bridge's adapters.
func (b *Bridge) publishState(change entity.StateChange) {
	if _, ours := b.adapters[change.AdapterID]; !ours {
		return
	}
	b.health.SetEntityCount(b.registry.Count())

	if b.mqtt == nil || !b.mqtt.IsConnected() {
		return
	}
	select {
	case <-b.done:
		return
	default:
	}

	payload, err := json.Marshal(StateUpdate{
		EntityID:  change.EntityID,
		AdapterID: change.AdapterID,
		Domain:    string(change.Domain),
		State:     change.State,
		Timestamp: change.Timestamp,
	})
	if err != nil {
		b.logger.Error("failed to encode state", "entity_id", change.EntityID, "error", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.HomeyState(change.EntityID), payload, stateQoS, true); err != nil {
		b.logger.Warn("failed to publish state", "entity_id", change.EntityID, "error", err)
	}
}

func (b *Bridge) handleAdapterState(id string, state ConnectionState) {
	b.stateListenersMu.RLock()
	listeners := append([]func(string, ConnectionState){}, b.stateListeners...)
	b.stateListenersMu.RUnlock()

	for _, fn := range listeners {
		fn(id, state)
	}

	if b.mqtt != nil && b.mqtt.IsConnected() {
		if err := b.health.PublishNow(); err != nil {
			b.logger.Warn("failed to publish health", "error", err)
		}
	}
}
