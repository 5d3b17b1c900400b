package homey

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types sent by the hub.
const (
	TypeConnected    = "connected"
	TypeCommand      = "command"
	TypeSendEntities = "sendEntities"
	TypeSendStates   = "sendStates"
	TypeEvent        = "event"

	// TypeGetEntities is both the command name of the request and the type
	// of the reply.
	TypeGetEntities = "getEntities"
)

// envelope is the raw inbound frame. data and available_entities are
// decoded per type.
type envelope struct {
	Type              string          `json:"type"`
	Error             json.RawMessage `json:"error,omitempty"`
	Command           string          `json:"command,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	AvailableEntities json.RawMessage `json:"available_entities,omitempty"`
}

// Message is one decoded inbound frame.
type Message interface {
	messageType() string
}

// ConnectedMessage acknowledges the connection.
type ConnectedMessage struct{}

// GetEntitiesRequest asks which entities this adapter has configured.
type GetEntitiesRequest struct{}

// SendEntitiesMessage announces the entities the hub can offer.
type SendEntitiesMessage struct {
	Entities []AvailableEntity

	// Malformed counts items that could not be decoded.
	Malformed int
}

// AvailableEntity is one item of available_entities.
type AvailableEntity struct {
	EntityID          string   `json:"entity_id"`
	Type              string   `json:"type"`
	FriendlyName      string   `json:"friendly_name"`
	SupportedFeatures []string `json:"supported_features"`
}

// StateMessage carries an attribute delta for one entity, from either a
// sendStates or an event frame.
type StateMessage struct {
	EntityID string
	Delta    map[string]any
	Event    bool
}

// UnknownMessage is any frame whose type is not handled.
type UnknownMessage struct {
	Type    string
	Command string
}

func (ConnectedMessage) messageType() string    { return TypeConnected }
func (GetEntitiesRequest) messageType() string  { return TypeCommand }
func (SendEntitiesMessage) messageType() string { return TypeSendEntities }
func (UnknownMessage) messageType() string      { return "unknown" }

func (m StateMessage) messageType() string {
	if m.Event {
		return TypeEvent
	}
	return TypeSendStates
}

// DecodeMessage parses one text frame. The hub's error field is returned
// separately since it may accompany any type.
func DecodeMessage(frame []byte) (Message, string, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	errText := errorText(env.Error)

	switch env.Type {
	case TypeConnected:
		return ConnectedMessage{}, errText, nil

	case TypeCommand:
		if env.Command == TypeGetEntities {
			return GetEntitiesRequest{}, errText, nil
		}
		return UnknownMessage{Type: env.Type, Command: env.Command}, errText, nil

	case TypeSendEntities:
		msg, err := decodeAvailableEntities(env.AvailableEntities)
		return msg, errText, err

	case TypeSendStates, TypeEvent:
		msg, err := decodeState(env.Data)
		if err != nil {
			return nil, errText, err
		}
		msg.Event = env.Type == TypeEvent
		return msg, errText, nil

	default:
		return UnknownMessage{Type: env.Type, Command: env.Command}, errText, nil
	}
}

func decodeAvailableEntities(raw json.RawMessage) (SendEntitiesMessage, error) {
	var msg SendEntitiesMessage
	if len(raw) == 0 || string(raw) == "null" {
		return msg, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return msg, fmt.Errorf("%w: available_entities: %w", ErrMalformedFrame, err)
	}

	msg.Entities = make([]AvailableEntity, 0, len(items))
	for _, item := range items {
		var e AvailableEntity
		if err := json.Unmarshal(item, &e); err != nil {
			msg.Malformed++
			continue
		}
		msg.Entities = append(msg.Entities, e)
	}
	return msg, nil
}

func decodeState(raw json.RawMessage) (StateMessage, error) {
	var delta map[string]any
	if err := json.Unmarshal(raw, &delta); err != nil {
		return StateMessage{}, fmt.Errorf("%w: data: %w", ErrMalformedFrame, err)
	}
	id, _ := delta["entity_id"].(string)
	return StateMessage{EntityID: id, Delta: delta}, nil
}

// errorText renders the error field. Strings are unquoted; any other JSON
// value is returned as written.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// EntitiesReply answers a getEntities request.
type EntitiesReply struct {
	Type    string   `json:"type"`
	Devices []string `json:"devices"`
}

// CommandMessage is the outbound command frame. Field order is part of the
// wire format.
type CommandMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
	Command  string `json:"command"`
	Value    any    `json:"value"`
}

// HealthStatus is the overall state reported on the health topic.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on graylogic/health/homey.
type HealthMessage struct {
	Bridge          string          `json:"bridge"`
	Timestamp       time.Time       `json:"timestamp"`
	Status          HealthStatus    `json:"status"`
	Version         string          `json:"version"`
	UptimeSeconds   int64           `json:"uptime_seconds"`
	Adapters        []AdapterHealth `json:"adapters"`
	EntitiesManaged int             `json:"entities_managed"`
	Reason          string          `json:"reason,omitempty"`
}

// AdapterHealth describes one hub connection.
type AdapterHealth struct {
	ID      string       `json:"id"`
	Address string       `json:"address"`
	State   string       `json:"state"`
	Stats   AdapterStats `json:"stats"`
}

// StateUpdate is published retained on graylogic/state/homey/{entity_id}.
type StateUpdate struct {
	EntityID  string         `json:"entity_id"`
	AdapterID string         `json:"adapter_id"`
	Domain    string         `json:"domain"`
	State     map[string]any `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}

// CommandRequest is the payload accepted on graylogic/command/homey/{entity_id}.
type CommandRequest struct {
	Command   string `json:"command"`
	Parameter any    `json:"parameter,omitempty"`
}
