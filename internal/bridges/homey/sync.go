package homey

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
)

// Hub attribute keys found in state deltas.
const (
	deltaOnOff          = "onoff"
	deltaDim            = "dim"
	deltaAttributes     = "attributes"
	deltaRGBColor       = "rgb_color"
	deltaSpeakerPlaying = "speaker_playing"
	deltaVolumeSet      = "volume_set"
	deltaMediaType      = "media_content_type"
	deltaAlbumArt       = "album_art"
	deltaSpeakerTrack   = "speaker_track"
	deltaSpeakerArtist  = "speaker_artist"
)

// Synchronizer translates hub state deltas into entity attribute changes.
type Synchronizer struct {
	registry EntityRegistry
}

// NewSynchronizer creates a synchronizer writing to registry.
func NewSynchronizer(registry EntityRegistry) *Synchronizer {
	return &Synchronizer{registry: registry}
}

// Apply maps delta onto the entity and writes only the attributes that
// changed. It returns the written changes, nil when there were none or the
// entity is unknown.
func (s *Synchronizer) Apply(ctx context.Context, entityID string, delta map[string]any) (entity.Attributes, error) {
	e, err := s.registry.LookupByID(ctx, entityID)
	if errors.Is(err, entity.ErrEntityNotFound) || (err == nil && e == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", entityID, err)
	}

	proposed := Translate(e, delta)
	changes := entity.Attributes{}
	for k, v := range proposed {
		if cur, ok := e.Attributes[k]; ok && entity.ValuesEqual(cur, v) {
			continue
		}
		changes[k] = v
	}
	if len(changes) == 0 {
		return nil, nil
	}

	if err := s.registry.UpdateAttributes(ctx, entityID, changes); err != nil {
		return nil, fmt.Errorf("updating %s: %w", entityID, err)
	}
	return changes, nil
}

// Translate returns the attributes delta implies for e, without comparing
// against current values.
func Translate(e *entity.Entity, delta map[string]any) entity.Attributes {
	out := entity.Attributes{}

	switch e.Domain {
	case entity.DomainLight:
		translateLight(e, delta, out)
	case entity.DomainMediaPlayer:
		translateMediaPlayer(e, delta, out)
	case entity.DomainSwitch:
		if on, ok := boolKey(delta, deltaOnOff); ok {
			out[entity.AttrState] = onOff(on)
		}
	}
	return out
}

func translateLight(e *entity.Entity, delta map[string]any, out entity.Attributes) {
	if on, ok := boolKey(delta, deltaOnOff); ok {
		out[entity.AttrState] = onOff(on)
	}

	if e.HasCapability(entity.CapBrightness) {
		if v, ok := delta[deltaDim]; ok {
			if n, ok := toNumber(v); ok {
				out[entity.AttrBrightness] = percent(n)
			}
		}
	}

	if e.HasCapability(entity.CapColor) {
		if attrs, ok := delta[deltaAttributes].(map[string]any); ok {
			if c, ok := parseRGB(attrs[deltaRGBColor]); ok {
				out[entity.AttrColor] = fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
			}
		}
	}
}

func translateMediaPlayer(e *entity.Entity, delta map[string]any, out entity.Attributes) {
	if playing, ok := boolKey(delta, deltaSpeakerPlaying); ok {
		if playing {
			out[entity.AttrState] = entity.StatePlaying
		} else {
			out[entity.AttrState] = entity.StateIdle
		}
	}
	// onoff overrides speaker_playing when both are present.
	if on, ok := boolKey(delta, deltaOnOff); ok {
		out[entity.AttrState] = onOff(on)
	}

	if v, ok := delta[deltaVolumeSet]; ok {
		if n, ok := toNumber(v); ok {
			out[entity.AttrVolume] = percent(n)
		}
	}

	if e.HasCapability(entity.CapMediaType) {
		if attrs, ok := delta[deltaAttributes].(map[string]any); ok {
			if t, ok := attrs[deltaMediaType].(string); ok {
				out[entity.AttrMediaType] = t
			}
		}
	}

	if v, ok := delta[deltaAlbumArt]; ok {
		out[entity.AttrMediaImage] = v
	}
	if v, ok := delta[deltaSpeakerTrack]; ok {
		out[entity.AttrMediaTitle] = toText(v)
	}
	if v, ok := delta[deltaSpeakerArtist]; ok {
		out[entity.AttrMediaArtist] = toText(v)
	}
}

// percent converts a 0..1 fraction to a rounded percentage.
func percent(v float64) int {
	return int(math.Round(v * 100))
}

func onOff(on bool) string {
	if on {
		return entity.StateOn
	}
	return entity.StateOff
}

func boolKey(delta map[string]any, key string) (bool, bool) {
	v, ok := delta[key]
	if !ok {
		return false, false
	}
	return toBool(v)
}

// toBool accepts booleans, numbers (non-zero is true) and "true"/"false".
func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(b) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return false, false
	}
	if n, ok := toNumber(v); ok {
		return n != 0, true
	}
	return false, false
}

func toText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
