package homey

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
)

// CommandKind is a canonical command name.
type CommandKind string

const (
	CmdToggle     CommandKind = "TOGGLE"
	CmdOn         CommandKind = "ON"
	CmdOff        CommandKind = "OFF"
	CmdBrightness CommandKind = "BRIGHTNESS"
	CmdColor      CommandKind = "COLOR"
	CmdOpen       CommandKind = "OPEN"
	CmdClose      CommandKind = "CLOSE"
	CmdStop       CommandKind = "STOP"
	CmdPosition   CommandKind = "POSITION"
	CmdVolumeSet  CommandKind = "VOLUME_SET"
	CmdPlay       CommandKind = "PLAY"
	CmdPause      CommandKind = "PAUSE"
	CmdPrevious   CommandKind = "PREVIOUS"
	CmdNext       CommandKind = "NEXT"
	CmdTurnOn     CommandKind = "TURNON"
	CmdTurnOff    CommandKind = "TURNOFF"
)

// Homey capability names used as wire commands.
const (
	wireToggle         = "toggle"
	wireOnOff          = "onoff"
	wireDim            = "dim"
	wireColor          = "color"
	wireCoveringClosed = "windowcoverings_closed"
	wireCoveringTilt   = "windowcoverings_tilt_set"
	wireCoveringSet    = "windowcoverings_set"
	wireVolumeSet      = "volume_set"
	wireSpeakerPlaying = "speaker_playing"
	wireSpeakerPrev    = "speaker_prev"
	wireSpeakerNext    = "speaker_next"
)

// OutboundCommand is a canonical command for one entity.
type OutboundCommand struct {
	Domain    entity.Domain
	EntityID  string
	Kind      CommandKind
	Parameter any
}

// RGB is a color parameter.
type RGB struct {
	R, G, B int
}

// ParseCommandKind normalizes a command name.
func ParseCommandKind(s string) CommandKind {
	return CommandKind(strings.ToUpper(strings.TrimSpace(s)))
}

// Encode maps a command onto the hub's command message. It returns false
// for combinations the hub does not support and for parameters of the
// wrong shape.
func Encode(cmd OutboundCommand) (CommandMessage, bool) {
	msg := CommandMessage{Type: TypeCommand, DeviceID: cmd.EntityID}

	switch cmd.Domain {
	case entity.DomainLight:
		switch cmd.Kind {
		case CmdToggle:
			msg.Command, msg.Value = wireToggle, true
		case CmdOn:
			msg.Command, msg.Value = wireOnOff, true
		case CmdOff:
			msg.Command, msg.Value = wireOnOff, false
		case CmdBrightness:
			pct, ok := toNumber(cmd.Parameter)
			if !ok {
				return CommandMessage{}, false
			}
			msg.Command, msg.Value = wireDim, pct/100
		case CmdColor:
			c, ok := parseRGB(cmd.Parameter)
			if !ok {
				return CommandMessage{}, false
			}
			msg.Command, msg.Value = wireColor, []int{c.R, c.G, c.B}
		default:
			return CommandMessage{}, false
		}

	case entity.DomainBlind:
		switch cmd.Kind {
		case CmdOpen:
			msg.Command, msg.Value = wireCoveringClosed, "false"
		case CmdClose:
			msg.Command, msg.Value = wireCoveringClosed, "true"
		case CmdStop:
			msg.Command, msg.Value = wireCoveringTilt, 0
		case CmdPosition:
			// The hub takes the position as given.
			if cmd.Parameter == nil {
				return CommandMessage{}, false
			}
			msg.Command, msg.Value = wireCoveringSet, cmd.Parameter
		default:
			return CommandMessage{}, false
		}

	case entity.DomainMediaPlayer:
		switch cmd.Kind {
		case CmdVolumeSet:
			pct, ok := toNumber(cmd.Parameter)
			if !ok {
				return CommandMessage{}, false
			}
			msg.Command, msg.Value = wireVolumeSet, pct/100
		case CmdPlay:
			msg.Command, msg.Value = wireSpeakerPlaying, true
		case CmdStop, CmdPause:
			msg.Command, msg.Value = wireSpeakerPlaying, false
		case CmdPrevious:
			msg.Command, msg.Value = wireSpeakerPrev, true
		case CmdNext:
			msg.Command, msg.Value = wireSpeakerNext, true
		case CmdTurnOn:
			msg.Command, msg.Value = wireOnOff, true
		case CmdTurnOff:
			msg.Command, msg.Value = wireOnOff, false
		default:
			return CommandMessage{}, false
		}

	default:
		return CommandMessage{}, false
	}

	return msg, true
}

// EncodeFrame encodes cmd into a compact JSON text frame.
func EncodeFrame(cmd OutboundCommand) ([]byte, bool) {
	msg, ok := Encode(cmd)
	if !ok {
		return nil, false
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return frame, true
}

// optimisticAttributes are written to the registry before a command is
// sent. The hub does not echo media player volume changes back, so the
// requested volume is recorded up front.
func optimisticAttributes(cmd OutboundCommand) entity.Attributes {
	if cmd.Domain != entity.DomainMediaPlayer || cmd.Kind != CmdVolumeSet {
		return nil
	}
	pct, ok := toNumber(cmd.Parameter)
	if !ok {
		return nil
	}
	return entity.Attributes{entity.AttrVolume: int(math.Round(pct))}
}

// toNumber accepts the numeric shapes produced by JSON decoding and Go
// callers. NaN and infinities are rejected.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseRGB accepts RGB, a three-element numeric slice, or "#RRGGBB".
func parseRGB(v any) (RGB, bool) {
	var parts []float64
	switch c := v.(type) {
	case RGB:
		return c, validRGB(c)
	case *RGB:
		if c == nil {
			return RGB{}, false
		}
		return *c, validRGB(*c)
	case []int:
		for _, n := range c {
			parts = append(parts, float64(n))
		}
	case []float64:
		parts = c
	case []any:
		for _, elem := range c {
			n, ok := toNumber(elem)
			if !ok {
				return RGB{}, false
			}
			parts = append(parts, n)
		}
	case string:
		return parseHexColor(c)
	default:
		return RGB{}, false
	}

	if len(parts) != 3 {
		return RGB{}, false
	}
	for _, p := range parts {
		if p != math.Trunc(p) {
			return RGB{}, false
		}
	}
	rgb := RGB{R: int(parts[0]), G: int(parts[1]), B: int(parts[2])}
	return rgb, validRGB(rgb)
}

func parseHexColor(s string) (RGB, bool) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || len(hex) != 6 {
		return RGB{}, false
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: int(n >> 16 & 0xFF), G: int(n >> 8 & 0xFF), B: int(n & 0xFF)}, true
}

func validRGB(c RGB) bool {
	for _, v := range [...]int{c.R, c.G, c.B} {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}
