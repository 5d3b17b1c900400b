package entity

import (
	"fmt"
	"strings"
)

const (
	maxIDLength     = 255
	maxNameLength   = 100
	maxCapabilities = 50
)

// ParseDomain maps a hub "type" string onto a Domain, ignoring case and
// surrounding space.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllDomains() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDomain, s)
}

// ParseCapabilities converts supported_features into capabilities.
// Matching ignores case; unknown names and duplicates are dropped.
func ParseCapabilities(features []string) []Capability {
	caps := make([]Capability, 0, len(features))
	seen := make(map[Capability]bool, len(features))
	for _, f := range features {
		c := Capability(strings.ToUpper(strings.TrimSpace(f)))
		if _, ok := knownCapabilities[c]; !ok || seen[c] {
			continue
		}
		seen[c] = true
		caps = append(caps, c)
	}
	return caps
}

// ValidateRegistration checks a hub announcement before it is stored.
func ValidateRegistration(r Registration) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEntity)
	case len(r.ID) > maxIDLength:
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidEntity, maxIDLength)
	case r.AdapterID == "":
		return fmt.Errorf("%w: adapter id is required", ErrInvalidEntity)
	case len(r.Name) > maxNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEntity, maxNameLength)
	case len(r.Capabilities) > maxCapabilities:
		return fmt.Errorf("%w: more than %d capabilities", ErrInvalidEntity, maxCapabilities)
	}
	if _, err := ParseDomain(string(r.Domain)); err != nil {
		return err
	}
	for _, c := range r.Capabilities {
		if _, ok := knownCapabilities[c]; !ok {
			return fmt.Errorf("%w: unknown capability %q", ErrInvalidEntity, c)
		}
	}
	return nil
}

// ValuesEqual compares attribute values. Numbers compare by value
// regardless of their Go type, since attributes reloaded from JSON come
// back as float64.
func ValuesEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
