package homey

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
)

// routeOutcome tells the worker what to do after a frame was handled.
type routeOutcome struct {
	// Connected is set when the hub acknowledged the connection.
	Connected bool

	// Reply is a frame to send back, if any.
	Reply []byte
}

// router dispatches decoded frames for one adapter.
type router struct {
	adapterID string
	registry  EntityRegistry
	notifier  NotificationSink
	sync      *Synchronizer
	logger    Logger
}

func newRouter(adapterID string, registry EntityRegistry, notifier NotificationSink, logger Logger) *router {
	return &router{
		adapterID: adapterID,
		registry:  registry,
		notifier:  notifier,
		sync:      NewSynchronizer(registry),
		logger:    logger,
	}
}

// handle processes one inbound text frame. A decode error means the frame
// was dropped and nothing changed.
func (r *router) handle(ctx context.Context, frame []byte) (routeOutcome, error) {
	msg, hubErr, err := DecodeMessage(frame)
	if hubErr != "" {
		r.logger.Error("hub reported error", "error", hubErr)
	}
	if err != nil {
		return routeOutcome{}, err
	}

	switch m := msg.(type) {
	case ConnectedMessage:
		return routeOutcome{Connected: true}, nil

	case GetEntitiesRequest:
		reply, err := r.entitiesReply(ctx)
		if err != nil {
			r.logger.Error("failed to build entity list", "error", err)
			return routeOutcome{}, nil
		}
		return routeOutcome{Reply: reply}, nil

	case SendEntitiesMessage:
		r.registerAll(ctx, m)

	case StateMessage:
		if m.EntityID == "" {
			r.logger.Debug("state message without entity_id ignored")
			return routeOutcome{}, nil
		}
		if _, err := r.sync.Apply(ctx, m.EntityID, m.Delta); err != nil {
			r.logger.Warn("failed to apply state", "entity_id", m.EntityID, "error", err)
		}

	case UnknownMessage:
		r.logger.Debug("ignoring message", "type", m.Type, "command", m.Command)
	}

	return routeOutcome{}, nil
}

func (r *router) entitiesReply(ctx context.Context) ([]byte, error) {
	entities, err := r.registry.ListByAdapter(ctx, r.adapterID)
	if err != nil {
		return nil, err
	}
	reply := EntitiesReply{Type: TypeGetEntities, Devices: make([]string, 0, len(entities))}
	for _, e := range entities {
		reply.Devices = append(reply.Devices, e.ID)
	}
	return json.Marshal(reply)
}

// registerAll registers every announced entity. Failures do not stop the
// batch; they are reported in one notification at the end.
func (r *router) registerAll(ctx context.Context, m SendEntitiesMessage) {
	var failed []string
	for i := 0; i < m.Malformed; i++ {
		failed = append(failed, "(malformed)")
	}

	for _, item := range m.Entities {
		if err := r.register(ctx, item); err != nil {
			r.logger.Warn("failed to register entity", "entity_id", item.EntityID, "type", item.Type, "error", err)
			failed = append(failed, item.EntityID)
		}
	}

	total := len(m.Entities) + m.Malformed
	r.logger.Info("entities announced", "total", total, "failed", len(failed))

	if len(failed) > 0 && r.notifier != nil {
		detail := fmt.Sprintf("%d of %d entities could not be added: %s", len(failed), total, strings.Join(failed, ", "))
		r.notifier.Raise(false, "Some Homey entities could not be added.", detail, nil)
	}
}

func (r *router) register(ctx context.Context, item AvailableEntity) error {
	domain, err := entity.ParseDomain(item.Type)
	if err != nil {
		return err
	}
	return r.registry.RegisterAvailable(ctx, entity.Registration{
		ID:           item.EntityID,
		AdapterID:    r.adapterID,
		Name:         item.FriendlyName,
		Domain:       domain,
		Capabilities: entity.ParseCapabilities(item.SupportedFeatures),
	})
}
