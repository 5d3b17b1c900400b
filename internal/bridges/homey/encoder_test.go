package homey

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-homey/internal/entity"
)

func TestEncodeFrame(t *testing.T) {
	light := func(kind CommandKind, param any) OutboundCommand {
		return OutboundCommand{Domain: entity.DomainLight, EntityID: "light.a", Kind: kind, Parameter: param}
	}
	blind := func(kind CommandKind, param any) OutboundCommand {
		return OutboundCommand{Domain: entity.DomainBlind, EntityID: "blind.a", Kind: kind, Parameter: param}
	}
	media := func(kind CommandKind, param any) OutboundCommand {
		return OutboundCommand{Domain: entity.DomainMediaPlayer, EntityID: "media.a", Kind: kind, Parameter: param}
	}

	tests := []struct {
		name string
		cmd  OutboundCommand
		want string
	}{
		{"light toggle", light(CmdToggle, nil), `{"type":"command","deviceId":"light.a","command":"toggle","value":true}`},
		{"light on", light(CmdOn, nil), `{"type":"command","deviceId":"light.a","command":"onoff","value":true}`},
		{"light off", light(CmdOff, nil), `{"type":"command","deviceId":"light.a","command":"onoff","value":false}`},
		{"light brightness", light(CmdBrightness, 42), `{"type":"command","deviceId":"light.a","command":"dim","value":0.42}`},
		{"light color", light(CmdColor, RGB{R: 255, G: 10, B: 0}), `{"type":"command","deviceId":"light.a","command":"color","value":[255,10,0]}`},
		{"light color from hex", light(CmdColor, "#00FF7f"), `{"type":"command","deviceId":"light.a","command":"color","value":[0,255,127]}`},
		{"blind open", blind(CmdOpen, nil), `{"type":"command","deviceId":"blind.a","command":"windowcoverings_closed","value":"false"}`},
		{"blind close", blind(CmdClose, nil), `{"type":"command","deviceId":"blind.a","command":"windowcoverings_closed","value":"true"}`},
		{"blind stop", blind(CmdStop, nil), `{"type":"command","deviceId":"blind.a","command":"windowcoverings_tilt_set","value":0}`},
		{"blind position", blind(CmdPosition, 0.3), `{"type":"command","deviceId":"blind.a","command":"windowcoverings_set","value":0.3}`},
		{"blind position as string", blind(CmdPosition, "0.5"), `{"type":"command","deviceId":"blind.a","command":"windowcoverings_set","value":"0.5"}`},
		{"media volume", media(CmdVolumeSet, 55), `{"type":"command","deviceId":"media.a","command":"volume_set","value":0.55}`},
		{"media play", media(CmdPlay, nil), `{"type":"command","deviceId":"media.a","command":"speaker_playing","value":true}`},
		{"media pause", media(CmdPause, nil), `{"type":"command","deviceId":"media.a","command":"speaker_playing","value":false}`},
		{"media stop", media(CmdStop, nil), `{"type":"command","deviceId":"media.a","command":"speaker_playing","value":false}`},
		{"media previous", media(CmdPrevious, nil), `{"type":"command","deviceId":"media.a","command":"speaker_prev","value":true}`},
		{"media next", media(CmdNext, nil), `{"type":"command","deviceId":"media.a","command":"speaker_next","value":true}`},
		{"media turn on", media(CmdTurnOn, nil), `{"type":"command","deviceId":"media.a","command":"onoff","value":true}`},
		{"media turn off", media(CmdTurnOff, nil), `{"type":"command","deviceId":"media.a","command":"onoff","value":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EncodeFrame(tt.cmd)
			if !ok {
				t.Fatal("EncodeFrame() not ok")
			}
			if string(got) != tt.want {
				t.Errorf("EncodeFrame() = %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	tests := []struct {
		name string
		cmd  OutboundCommand
	}{
		{"light play", OutboundCommand{Domain: entity.DomainLight, EntityID: "l", Kind: CmdPlay}},
		{"light brightness without value", OutboundCommand{Domain: entity.DomainLight, EntityID: "l", Kind: CmdBrightness}},
		{"light brightness as string", OutboundCommand{Domain: entity.DomainLight, EntityID: "l", Kind: CmdBrightness, Parameter: "50"}},
		{"light color out of range", OutboundCommand{Domain: entity.DomainLight, EntityID: "l", Kind: CmdColor, Parameter: []int{256, 0, 0}}},
		{"light color short", OutboundCommand{Domain: entity.DomainLight, EntityID: "l", Kind: CmdColor, Parameter: []any{1.0, 2.0}}},
		{"blind toggle", OutboundCommand{Domain: entity.DomainBlind, EntityID: "b", Kind: CmdToggle}},
		{"blind position without value", OutboundCommand{Domain: entity.DomainBlind, EntityID: "b", Kind: CmdPosition}},
		{"media brightness", OutboundCommand{Domain: entity.DomainMediaPlayer, EntityID: "m", Kind: CmdBrightness, Parameter: 3}},
		{"switch on", OutboundCommand{Domain: entity.DomainSwitch, EntityID: "s", Kind: CmdOn}},
		{"climate", OutboundCommand{Domain: entity.DomainClimate, EntityID: "c", Kind: CmdOn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if frame, ok := EncodeFrame(tt.cmd); ok {
				t.Errorf("EncodeFrame() = %s, want not ok", frame)
			}
		})
	}
}

func TestEncodeDecodedParameters(t *testing.T) {
	// Parameters arriving over MQTT or HTTP are JSON-decoded.
	var req CommandRequest
	if err := json.Unmarshal([]byte(`{"command":"color","parameter":[12,34,56]}`), &req); err != nil {
		t.Fatal(err)
	}

	msg, ok := Encode(OutboundCommand{Domain: entity.DomainLight, EntityID: "l", Kind: ParseCommandKind(req.Command), Parameter: req.Parameter})
	if !ok {
		t.Fatal("Encode() not ok")
	}
	if !reflect.DeepEqual(msg.Value, []int{12, 34, 56}) {
		t.Errorf("value = %v", msg.Value)
	}
}

func TestOptimisticAttributes(t *testing.T) {
	tests := []struct {
		name string
		cmd  OutboundCommand
		want entity.Attributes
	}{
		{"volume", OutboundCommand{Domain: entity.DomainMediaPlayer, Kind: CmdVolumeSet, Parameter: 55}, entity.Attributes{"volume": 55}},
		{"volume rounded", OutboundCommand{Domain: entity.DomainMediaPlayer, Kind: CmdVolumeSet, Parameter: 54.6}, entity.Attributes{"volume": 55}},
		{"other media command", OutboundCommand{Domain: entity.DomainMediaPlayer, Kind: CmdPlay}, nil},
		{"light", OutboundCommand{Domain: entity.DomainLight, Kind: CmdBrightness, Parameter: 10}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := optimisticAttributes(tt.cmd); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("optimisticAttributes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCommandKind(t *testing.T) {
	if got := ParseCommandKind(" volume_set "); got != CmdVolumeSet {
		t.Errorf("ParseCommandKind() = %q", got)
	}
}
