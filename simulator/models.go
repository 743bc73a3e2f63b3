// Package simulator provides a simulated electric vehicle that the agent can
// bid for when no real charger is attached.
package simulator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel is returned by ParseModel for an unsupported vehicle.
var ErrUnknownModel = errors.New("unknown EV model")

// Model is a supported vehicle type.
type Model int

const (
	ModelLeaf Model = iota
	ModelVolt
	ModelTesla
)

// Spec holds the battery parameters of a Model.
type Spec struct {
	CapacityKWh float64
	MaxChargeKW float64
}

var specs = map[Model]Spec{
	ModelLeaf:  {CapacityKWh: 40, MaxChargeKW: 6.6},
	ModelVolt:  {CapacityKWh: 18.4, MaxChargeKW: 3.6},
	ModelTesla: {CapacityKWh: 75, MaxChargeKW: 11},
}

func (m Model) String() string {
	switch m {
	case ModelLeaf:
		return "LEAF"
	case ModelVolt:
		return "VOLT"
	case ModelTesla:
		return "TESLA"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// Spec returns the battery parameters of m.
func (m Model) Spec() Spec { return specs[m] }

// ParseModel maps a case-insensitive name to a Model.
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEAF":
		return ModelLeaf, nil
	case "VOLT":
		return ModelVolt, nil
	case "TESLA":
		return ModelTesla, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// ModelNames lists the accepted model names.
func ModelNames() []string { return []string{"LEAF", "VOLT", "TESLA"} }
