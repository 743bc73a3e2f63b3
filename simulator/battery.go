package simulator

import (
	"math"
	"time"
)

// Battery tracks the state of charge of an EV battery. It is not safe for
// concurrent use; EV serializes access.
type Battery struct {
	CapacityKWh  float64 // total capacity
	Soc          float64 // state of charge [0,1]
	ChargeRateKW float64 // maximum charging power
}

// Charge stores energy at powerKW for dt and returns the power actually
// absorbed once the rate limit and the remaining headroom are applied.
func (b *Battery) Charge(powerKW float64, dt time.Duration) float64 {
	hours := dt.Hours()
	if hours <= 0 || powerKW <= 0 || b.CapacityKWh <= 0 {
		return 0
	}
	p := math.Min(powerKW, b.ChargeRateKW)
	avail := (1 - b.Soc) * b.CapacityKWh
	needed := p * hours
	if needed > avail {
		needed = avail
		p = needed / hours
	}
	b.Soc += needed / b.CapacityKWh
	b.clamp()
	return p
}

// Full reports whether no more energy can be stored.
func (b *Battery) Full() bool { return b.Soc >= 1 }

// MissingKWh is the energy needed to reach a full battery.
func (b *Battery) MissingKWh() float64 { return (1 - b.Soc) * b.CapacityKWh }

func (b *Battery) clamp() {
	if b.Soc < 0 {
		b.Soc = 0
	}
	if b.Soc > 1 {
		b.Soc = 1
	}
}
