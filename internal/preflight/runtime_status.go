package preflight

import (
	"context"
	"fmt"
	"strings"

	"kura/internal/config"
	"kura/internal/constraints"
)

// HostProbe is the host power and network snapshot used by constraint
// gating.
type HostProbe struct {
	Power      constraints.PowerState
	Network    constraints.NetworkState
	PowerErr   error
	NetworkErr error
}

// ProbeHost reads power and network state from sysfs under root.
func ProbeHost(root string) HostProbe {
	probe := constraints.NewSysfsProbe(root)
	var out HostProbe
	out.Power, out.PowerErr = probe.Power()
	out.Network, out.NetworkErr = probe.Network()
	return out
}

// PowerDetail renders the power state for status UIs.
func (p HostProbe) PowerDetail() string {
	switch {
	case p.PowerErr != nil:
		return fmt.Sprintf("Unknown (%v)", p.PowerErr)
	case !p.Power.HasBattery:
		return "No battery (mains)"
	case p.Power.Charging():
		return fmt.Sprintf("Charging (%d%%)", p.Power.Capacity)
	case p.Power.BatteryLow():
		return fmt.Sprintf("Battery low (%d%%)", p.Power.Capacity)
	default:
		return fmt.Sprintf("On battery (%d%%)", p.Power.Capacity)
	}
}

// NetworkDetail renders the network state for status UIs.
func (p HostProbe) NetworkDetail() string {
	switch {
	case p.NetworkErr != nil:
		return fmt.Sprintf("Unknown (%v)", p.NetworkErr)
	case !p.Network.Known:
		return "Unknown"
	case !p.Network.Connected:
		return "Offline"
	case p.Network.WiFi:
		return "Wi-Fi (" + strings.Join(p.Network.Up, ", ") + ")"
	default:
		return "Connected (" + strings.Join(p.Network.Up, ", ") + ")"
	}
}

// HostStatus evaluates the configured default constraints against the
// current host. A failed result means new jobs would be held, not that
// kura is broken.
func HostStatus(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	probe := ProbeHost(cfg.Constraints.SysfsRoot)

	network, err := constraints.ParseNetwork(cfg.Constraints.Network)
	if err != nil {
		network = constraints.NetworkAny
	}
	set := constraints.Set{Network: network, RequireCharging: cfg.Constraints.RequireCharging}.Normalize()
	ok, reason := constraints.NewSysfsProbe(cfg.Constraints.SysfsRoot).Satisfied(context.Background(), set)

	gate := Result{Name: "Default constraints", Passed: ok, Detail: set.String()}
	if !ok {
		gate.Detail = set.String() + " (" + reason + ")"
	}
	return []Result{
		{Name: "Power", Passed: probe.PowerErr == nil, Detail: probe.PowerDetail()},
		{Name: "Network", Passed: probe.NetworkErr == nil && (probe.Network.Connected || !probe.Network.Known), Detail: probe.NetworkDetail()},
		gate,
	}
}
