package entity

import (
	"errors"
	"slices"
	"testing"
)

func TestParseDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    Domain
		wantErr bool
	}{
		{"light", DomainLight, false},
		{"LIGHT", DomainLight, false},
		{" media_player ", DomainMediaPlayer, false},
		{"blind", DomainBlind, false},
		{"switch", DomainSwitch, false},
		{"climate", DomainClimate, false},
		{"sensor", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDomain(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDomain(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDomain) {
				t.Errorf("error = %v, want ErrInvalidDomain", err)
			}
			if got != tt.want {
				t.Errorf("ParseDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCapabilities(t *testing.T) {
	got := ParseCapabilities([]string{"ON_OFF", "brightness", "COLOR", "color", "WARP_DRIVE", " media_type "})
	want := []Capability{CapOnOff, CapBrightness, CapColor, CapMediaType}
	if !slices.Equal(got, want) {
		t.Errorf("ParseCapabilities() = %v, want %v", got, want)
	}

	if got := ParseCapabilities(nil); got == nil || len(got) != 0 {
		t.Errorf("ParseCapabilities(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestValidateRegistration(t *testing.T) {
	valid := Registration{ID: "light.a", AdapterID: "hub", Domain: DomainLight}

	tests := []struct {
		name    string
		mutate  func(*Registration)
		wantErr error
	}{
		{"valid", func(*Registration) {}, nil},
		{"missing id", func(r *Registration) { r.ID = "" }, ErrInvalidEntity},
		{"missing adapter", func(r *Registration) { r.AdapterID = "" }, ErrInvalidEntity},
		{"bad domain", func(r *Registration) { r.Domain = "sensor" }, ErrInvalidDomain},
		{"unknown capability", func(r *Registration) { r.Capabilities = []Capability{"WARP"} }, ErrInvalidEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := ValidateRegistration(r)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"int and float", 42, float64(42), true},
		{"different numbers", 42, 43, false},
		{"strings", "ON", "ON", true},
		{"string and number", "42", 42, false},
		{"bools", true, true, true},
		{"bool mismatch", true, false, false},
		{"nil and nil", nil, nil, true},
		{"nil and value", nil, "ON", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValuesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("ValuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
