package model

import "time"

// DeviceState is a snapshot of the charger as seen by the agent.
type DeviceState struct {
	UrgencyRatio         float64   `json:"urgency_ratio"`          // 0 = no rush, 1 = must charge at full power now
	RequestedChargePower float64   `json:"requested_charge_power"` // kW drawn when charging at full rate
	PluggedIn            bool      `json:"plugged_in"`
	Charging             bool      `json:"charging"`
	ChargingAt           float64   `json:"charging_at"` // commanded charge power in kW
	StateOfCharge        float64   `json:"state_of_charge"`
	ArriveHome           time.Time `json:"arrive_home,omitempty"`
	ChargeBy             time.Time `json:"charge_by,omitempty"`
}
