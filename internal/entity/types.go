package entity

import (
	"slices"
	"time"
)

// Domain is the kind of entity. It decides which attributes the
// synchronizer maps and which commands the encoder accepts.
type Domain string

const (
	DomainLight       Domain = "light"
	DomainBlind       Domain = "blind"
	DomainMediaPlayer Domain = "media_player"
	DomainSwitch      Domain = "switch"
	DomainClimate     Domain = "climate"
)

// AllDomains lists every supported domain.
func AllDomains() []Domain {
	return []Domain{DomainLight, DomainBlind, DomainMediaPlayer, DomainSwitch, DomainClimate}
}

// Capability is a feature flag an entity declares, as announced in a hub's
// supported_features list.
type Capability string

const (
	// Light
	CapOnOff      Capability = "ON_OFF"
	CapBrightness Capability = "BRIGHTNESS"
	CapColor      Capability = "COLOR"
	CapColorTemp  Capability = "COLORTEMP"

	// Blind
	CapOpen     Capability = "OPEN"
	CapClose    Capability = "CLOSE"
	CapStop     Capability = "STOP"
	CapPosition Capability = "POSITION"

	// Media player
	CapTurnOn      Capability = "TURN_ON"
	CapTurnOff     Capability = "TURN_OFF"
	CapPlay        Capability = "PLAY"
	CapPause       Capability = "PAUSE"
	CapNext        Capability = "NEXT"
	CapPrevious    Capability = "PREVIOUS"
	CapVolume      Capability = "VOLUME"
	CapVolumeSet   Capability = "VOLUME_SET"
	CapMute        Capability = "MUTE"
	CapSource      Capability = "SOURCE"
	CapMediaType   Capability = "MEDIA_TYPE"
	CapMediaTitle  Capability = "MEDIA_TITLE"
	CapMediaArtist Capability = "MEDIA_ARTIST"
	CapMediaImage  Capability = "MEDIA_IMAGE"

	// Climate
	CapTemperature       Capability = "TEMPERATURE"
	CapTargetTemperature Capability = "TARGET_TEMPERATURE"
	CapHVACModes         Capability = "HVAC_MODES"
)

var knownCapabilities = map[Capability]struct{}{
	CapOnOff: {}, CapBrightness: {}, CapColor: {}, CapColorTemp: {},
	CapOpen: {}, CapClose: {}, CapStop: {}, CapPosition: {},
	CapTurnOn: {}, CapTurnOff: {}, CapPlay: {}, CapPause: {}, CapNext: {}, CapPrevious: {},
	CapVolume: {}, CapVolumeSet: {}, CapMute: {}, CapSource: {},
	CapMediaType: {}, CapMediaTitle: {}, CapMediaArtist: {}, CapMediaImage: {},
	CapTemperature: {}, CapTargetTemperature: {}, CapHVACModes: {},
}

// Attribute keys written by the synchronizer.
const (
	AttrState       = "state"
	AttrBrightness  = "brightness"
	AttrColor       = "color"
	AttrVolume      = "volume"
	AttrMediaType   = "media_type"
	AttrMediaImage  = "media_image"
	AttrMediaTitle  = "media_title"
	AttrMediaArtist = "media_artist"
)

// Values of the state attribute.
const (
	StateOn      = "ON"
	StateOff     = "OFF"
	StatePlaying = "PLAYING"
	StateIdle    = "IDLE"
)

// Attributes is the current state slot of an entity.
type Attributes map[string]any

// Entity is one hub-announced device.
type Entity struct {
	ID           string       `json:"id"`
	AdapterID    string       `json:"adapter_id"`
	Name         string       `json:"name"`
	Domain       Domain       `json:"domain"`
	Capabilities []Capability `json:"capabilities"`
	Attributes   Attributes   `json:"attributes"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasCapability reports whether the entity declares c.
func (e *Entity) HasCapability(c Capability) bool {
	return slices.Contains(e.Capabilities, c)
}

// DeepCopy returns an independent copy; nested maps and slices in
// Attributes are cloned too.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Capabilities = slices.Clone(e.Capabilities)
	cpy.Attributes = deepCopyMap(e.Attributes)
	return &cpy
}

// Registration is what a hub announces about an entity.
type Registration struct {
	ID           string
	AdapterID    string
	Name         string
	Domain       Domain
	Capabilities []Capability
}

// StateChange is delivered to listeners after UpdateAttributes.
type StateChange struct {
	EntityID  string     `json:"entity_id"`
	AdapterID string     `json:"adapter_id"`
	Domain    Domain     `json:"domain"`
	Changes   Attributes `json:"changes"`
	State     Attributes `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
}

// StateListener is called synchronously after a change is committed.
// A listener must not call back into UpdateAttributes.
type StateListener func(change StateChange)

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Attributes:
		return Attributes(deepCopyMap(val))
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
