package constraints

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultSysfsRoot is the kernel's sysfs mount point.
	DefaultSysfsRoot = "/sys"
	// LowBatteryPercent is the capacity at or below which a discharging
	// battery counts as low.
	LowBatteryPercent = 15
)

// PowerState is the host power supply as seen through sysfs.
type PowerState struct {
	HasBattery bool
	OnAC       bool
	Capacity   int
	Status     string
}

// Charging reports whether the host is on external power. Hosts without a
// battery always count as charging.
func (p PowerState) Charging() bool {
	if !p.HasBattery || p.OnAC {
		return true
	}
	return p.Status == "Charging" || p.Status == "Full"
}

// BatteryLow reports whether a discharging battery is at or below the
// low threshold.
func (p PowerState) BatteryLow() bool {
	return p.HasBattery && !p.Charging() && p.Capacity <= LowBatteryPercent
}

// NetworkState summarises interfaces that are up.
type NetworkState struct {
	Known     bool
	Connected bool
	WiFi      bool
	Up        []string
}

// SysfsProbe evaluates constraints from /sys/class/power_supply and
// /sys/class/net under Root.
type SysfsProbe struct {
	Root string
}

// NewSysfsProbe returns a probe rooted at root, or /sys when empty.
func NewSysfsProbe(root string) *SysfsProbe {
	if strings.TrimSpace(root) == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsProbe{Root: root}
}

// Satisfied implements Gate.
func (p *SysfsProbe) Satisfied(_ context.Context, set Set) (bool, string) {
	set = set.Normalize()

	power, err := p.Power()
	if err != nil {
		return false, "power state unavailable: " + err.Error()
	}
	if set.RequireCharging && !power.Charging() {
		return false, "waiting for charger"
	}
	if set.RequireBatteryNotLow && power.BatteryLow() {
		return false, "battery low (" + strconv.Itoa(power.Capacity) + "%)"
	}

	network, err := p.Network()
	if err != nil {
		return false, "network state unavailable: " + err.Error()
	}
	if !network.Known {
		if set.Network == NetworkWiFi {
			return false, "Wi-Fi state unavailable"
		}
		return true, ""
	}
	if !network.Connected {
		return false, "waiting for network"
	}
	if set.Network == NetworkWiFi && !network.WiFi {
		return false, "waiting for Wi-Fi"
	}
	return true, ""
}

// Power reads every power_supply device. A missing class directory means no
// battery.
func (p *SysfsProbe) Power() (PowerState, error) {
	var state PowerState
	base := filepath.Join(p.Root, "class", "power_supply")
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, err
	}
	for _, entry := range entries {
		dir := filepath.Join(base, entry.Name())
		switch readAttr(dir, "type") {
		case "Mains", "USB", "USB_C", "USB_PD":
			if readAttr(dir, "online") == "1" {
				state.OnAC = true
			}
		case "Battery":
			if readAttr(dir, "scope") == "Device" {
				continue
			}
			capacity, err := strconv.Atoi(readAttr(dir, "capacity"))
			if err != nil {
				continue
			}
			if !state.HasBattery || capacity < state.Capacity {
				state.Capacity = capacity
				state.Status = readAttr(dir, "status")
			}
			state.HasBattery = true
		}
	}
	return state, nil
}

// Network reads interface state. Loopback is ignored.
func (p *SysfsProbe) Network() (NetworkState, error) {
	var state NetworkState
	base := filepath.Join(p.Root, "class", "net")
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, err
	}
	state.Known = true
	for _, entry := range entries {
		name := entry.Name()
		if name == "lo" {
			continue
		}
		dir := filepath.Join(base, name)
		if readAttr(dir, "operstate") != "up" {
			continue
		}
		state.Connected = true
		state.Up = append(state.Up, name)
		if exists(filepath.Join(dir, "wireless")) || exists(filepath.Join(dir, "phy80211")) {
			state.WiFi = true
		}
	}
	return state, nil
}

func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
