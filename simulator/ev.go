package simulator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/evagent/core/model"
)

// minUrgency keeps the ratio of a full or relaxed vehicle above zero.
const minUrgency = 0.01

const day = 24 * time.Hour

// ErrInvalidWindows is returned for time-of-day windows outside [0,24h) or
// with a lower bound after the upper one.
var ErrInvalidWindows = errors.New("invalid time windows")

// Windows bounds the random arrival and deadline times, as offsets from
// midnight.
type Windows struct {
	HomeLower     time.Duration
	HomeUpper     time.Duration
	ChargeByLower time.Duration
	ChargeByUpper time.Duration
}

// DefaultWindows: home between 16:00 and 19:00, charged by 07:00 to 10:00.
var DefaultWindows = Windows{
	HomeLower:     16 * time.Hour,
	HomeUpper:     19 * time.Hour,
	ChargeByLower: 7 * time.Hour,
	ChargeByUpper: 10 * time.Hour,
}

// Validate checks both windows.
func (w Windows) Validate() error {
	for _, d := range []time.Duration{w.HomeLower, w.HomeUpper, w.ChargeByLower, w.ChargeByUpper} {
		if d < 0 || d >= day {
			return fmt.Errorf("%w: %s outside a day", ErrInvalidWindows, d)
		}
	}
	if w.HomeLower > w.HomeUpper {
		return fmt.Errorf("%w: home %s after %s", ErrInvalidWindows, w.HomeLower, w.HomeUpper)
	}
	if w.ChargeByLower > w.ChargeByUpper {
		return fmt.Errorf("%w: charge-by %s after %s", ErrInvalidWindows, w.ChargeByLower, w.ChargeByUpper)
	}
	return nil
}

// EV simulates one vehicle that comes home in the evening, plugs in and
// must be charged by the next morning. It is safe for concurrent use.
type EV struct {
	mu      sync.Mutex
	model   Model
	spec    Spec
	battery *Battery
	windows Windows
	src     rand.Source

	arrive   time.Time
	chargeBy time.Time
	plugged  bool
	kw       float64
	last     time.Time
}

// NewEV creates a vehicle whose arrival is drawn on the day of now and whose
// deadline is drawn on the following day. src may be nil.
func NewEV(m Model, w Windows, now time.Time, src rand.Source) (*EV, error) {
	spec, ok := specs[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, m)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.NewPCG(uint64(now.UnixNano()), uint64(m))
	}
	ev := &EV{
		model:   m,
		spec:    spec,
		windows: w,
		src:     src,
		battery: &Battery{CapacityKWh: spec.CapacityKWh, ChargeRateKW: spec.MaxChargeKW},
		last:    now,
	}
	ev.battery.Soc = ev.drawSoc()
	ev.drawDay(midnight(now))
	ev.plugged = !now.Before(ev.arrive) && now.Before(ev.chargeBy)
	return ev, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (e *EV) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: e.src}.Rand()
}

func (e *EV) drawSoc() float64 { return e.uniform(0.2, 0.6) }

func (e *EV) drawOffset(lo, hi time.Duration) time.Duration {
	return time.Duration(e.uniform(float64(lo), float64(hi)))
}

// drawDay places the arrival on base's day and the deadline on the next.
func (e *EV) drawDay(base time.Time) {
	e.arrive = base.Add(e.drawOffset(e.windows.HomeLower, e.windows.HomeUpper))
	e.chargeBy = base.AddDate(0, 0, 1).Add(e.drawOffset(e.windows.ChargeByLower, e.windows.ChargeByUpper))
}

// Advance moves the simulation to now: energy is stored at the commanded
// power, the car plugs in at arrival and leaves at its deadline, coming back
// the next evening with a fresh state of charge.
func (e *EV) Advance(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.Before(e.last) {
		return
	}
	if e.plugged && e.kw > 0 {
		end := now
		if end.After(e.chargeBy) {
			end = e.chargeBy
		}
		e.battery.Charge(e.kw, end.Sub(e.last))
	}
	for i := 0; !now.Before(e.chargeBy) && i < 366; i++ {
		e.plugged = false
		e.kw = 0
		e.battery.Soc = e.drawSoc()
		e.drawDay(midnight(e.chargeBy))
	}
	if !e.plugged && !now.Before(e.arrive) && now.Before(e.chargeBy) {
		e.plugged = true
	}
	if e.battery.Full() {
		e.kw = 0
	}
	e.last = now
}

// UrgencyRatio is the time needed to fill the battery at full power over the
// time left until the deadline, clamped to [0.01, 1].
func (e *EV) UrgencyRatio() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.urgency()
}

func (e *EV) urgency() float64 {
	left := e.chargeBy.Sub(e.last).Hours()
	if left <= 0 {
		return 1
	}
	needed := e.battery.MissingKWh() / e.spec.MaxChargeKW
	r := needed / left
	switch {
	case r >= 1:
		return 1
	case r < minUrgency:
		return minUrgency
	}
	return r
}

// RequestedChargePower is the model's maximum charge rate, or zero when the
// battery is full.
func (e *EV) RequestedChargePower() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requested()
}

func (e *EV) requested() float64 {
	if e.battery.Full() {
		return 0
	}
	return e.spec.MaxChargeKW
}

func (e *EV) PluggedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plugged
}

func (e *EV) IsCharging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kw > 0
}

// SetCharging commands the charge power, clamped to [0, MaxChargeKW]. An
// unplugged car does not charge.
func (e *EV) SetCharging(kw float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case !e.plugged || kw <= 0 || math.IsNaN(kw):
		kw = 0
	case kw > e.spec.MaxChargeKW:
		kw = e.spec.MaxChargeKW
	}
	e.kw = kw
}

// Snapshot returns a consistent view of the vehicle.
func (e *EV) Snapshot() model.DeviceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.DeviceState{
		UrgencyRatio:         e.urgency(),
		RequestedChargePower: e.requested(),
		PluggedIn:            e.plugged,
		Charging:             e.kw > 0,
		ChargingAt:           e.kw,
		StateOfCharge:        e.battery.Soc,
		ArriveHome:           e.arrive,
		ChargeBy:             e.chargeBy,
	}
}

// Model returns the vehicle type.
func (e *EV) Model() Model { return e.model }
