// Package device defines the contract between the bidding agent and the
// charger it controls. Implementations must be safe for concurrent use; the
// agent additionally serializes its own read-decide-write sequences.
package device

import "github.com/kilianp07/evagent/core/model"

// Device is the read/write view of a flexible load.
type Device interface {
	// UrgencyRatio is in (0,1]; 1 means the device must draw full power now.
	UrgencyRatio() float64
	// RequestedChargePower is the power in kW drawn at the full charge rate.
	RequestedChargePower() float64
	PluggedIn() bool
	IsCharging() bool
	// SetCharging commands the charge power in kW.
	SetCharging(powerKW float64)
}

// Snapshotter is implemented by devices able to report a full state snapshot.
type Snapshotter interface {
	Snapshot() model.DeviceState
}

// Snapshot returns the device state, using Snapshotter when available.
func Snapshot(d Device) model.DeviceState {
	if s, ok := d.(Snapshotter); ok {
		return s.Snapshot()
	}
	return model.DeviceState{
		UrgencyRatio:         d.UrgencyRatio(),
		RequestedChargePower: d.RequestedChargePower(),
		PluggedIn:            d.PluggedIn(),
		Charging:             d.IsCharging(),
	}
}
