package constraints

import (
	"fmt"
	"strings"
)

// NetworkRequirement names the connectivity a job needs before it may run.
type NetworkRequirement string

const (
	NetworkAny  NetworkRequirement = "any"
	NetworkWiFi NetworkRequirement = "wifi"
)

// Set is the execution constraint configuration attached to a batch.
// RequireBatteryNotLow is always enforced.
type Set struct {
	Network              NetworkRequirement `json:"network"`
	RequireCharging      bool               `json:"requireCharging"`
	RequireBatteryNotLow bool               `json:"requireBatteryNotLow"`
}

// Normalize fills defaults and forces the battery requirement on.
func (s Set) Normalize() Set {
	if s.Network != NetworkWiFi {
		s.Network = NetworkAny
	}
	s.RequireBatteryNotLow = true
	return s
}

// String renders the set for tables and logs.
func (s Set) String() string {
	s = s.Normalize()
	parts := []string{"network=" + string(s.Network)}
	if s.RequireCharging {
		parts = append(parts, "charging")
	}
	parts = append(parts, "battery-not-low")
	return strings.Join(parts, ",")
}

// ParseNetwork accepts the config spellings of a network requirement.
func ParseNetwork(value string) (NetworkRequirement, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "any", "any-connection", "connected":
		return NetworkAny, nil
	case "wifi", "wifi-only", "unmetered":
		return NetworkWiFi, nil
	default:
		return NetworkAny, fmt.Errorf("unknown network requirement %q", value)
	}
}
