package homey

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		want      Message
		wantError string
		wantErr   bool
	}{
		{
			name:  "connected",
			frame: `{"type":"connected"}`,
			want:  ConnectedMessage{},
		},
		{
			name:  "get entities",
			frame: `{"type":"command","command":"getEntities"}`,
			want:  GetEntitiesRequest{},
		},
		{
			name:  "other command",
			frame: `{"type":"command","command":"reboot"}`,
			want:  UnknownMessage{Type: "command", Command: "reboot"},
		},
		{
			name:  "send states",
			frame: `{"type":"sendStates","data":{"entity_id":"light.a","onoff":true}}`,
			want:  StateMessage{EntityID: "light.a", Delta: map[string]any{"entity_id": "light.a", "onoff": true}},
		},
		{
			name:  "event",
			frame: `{"type":"event","data":{"entity_id":"light.a","dim":0.5}}`,
			want:  StateMessage{EntityID: "light.a", Delta: map[string]any{"entity_id": "light.a", "dim": 0.5}, Event: true},
		},
		{
			name:  "state without entity id",
			frame: `{"type":"sendStates","data":{"onoff":true}}`,
			want:  StateMessage{Delta: map[string]any{"onoff": true}},
		},
		{
			name:  "send entities",
			frame: `{"type":"sendEntities","available_entities":[{"entity_id":"light.a","type":"light","friendly_name":"A","supported_features":["BRIGHTNESS"]},42]}`,
			want: SendEntitiesMessage{
				Entities:  []AvailableEntity{{EntityID: "light.a", Type: "light", FriendlyName: "A", SupportedFeatures: []string{"BRIGHTNESS"}}},
				Malformed: 1,
			},
		},
		{
			name:  "send entities without list",
			frame: `{"type":"sendEntities"}`,
			want:  SendEntitiesMessage{},
		},
		{
			name:      "error with known type",
			frame:     `{"type":"connected","error":"token expired"}`,
			want:      ConnectedMessage{},
			wantError: "token expired",
		},
		{
			name:      "non string error",
			frame:     `{"type":"x","error":{"code":5}}`,
			want:      UnknownMessage{Type: "x"},
			wantError: `{"code":5}`,
		},
		{
			name:    "malformed json",
			frame:   `{"type":`,
			wantErr: true,
		},
		{
			name:    "data not an object",
			frame:   `{"type":"sendStates","data":[1,2]}`,
			wantErr: true,
		},
		{
			name:    "available entities not a list",
			frame:   `{"type":"sendEntities","available_entities":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hubErr, err := DecodeMessage([]byte(tt.frame))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedFrame) {
					t.Fatalf("error = %v, want ErrMalformedFrame", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMessage() error = %v", err)
			}
			if hubErr != tt.wantError {
				t.Errorf("hub error = %q, want %q", hubErr, tt.wantError)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeMessage() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
