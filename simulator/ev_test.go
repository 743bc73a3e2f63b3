package simulator

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evagent/core/device"
)

var _ device.Device = (*EV)(nil)
var _ device.Snapshotter = (*EV)(nil)

func noon() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

func newTestEV(t *testing.T, m Model, now time.Time) *EV {
	t.Helper()
	ev, err := NewEV(m, DefaultWindows, now, rand.NewPCG(1, 2))
	require.NoError(t, err)
	return ev
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel(" tesla ")
	require.NoError(t, err)
	assert.Equal(t, ModelTesla, m)
	assert.Equal(t, 11.0, m.Spec().MaxChargeKW)
	assert.Equal(t, "VOLT", ModelVolt.String())

	_, err = ParseModel("zoe")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestWindowsValidate(t *testing.T) {
	assert.NoError(t, DefaultWindows.Validate())
	w := DefaultWindows
	w.HomeLower = 20 * time.Hour
	assert.ErrorIs(t, w.Validate(), ErrInvalidWindows)
	w = DefaultWindows
	w.ChargeByUpper = 25 * time.Hour
	assert.ErrorIs(t, w.Validate(), ErrInvalidWindows)
	_, err := NewEV(ModelLeaf, w, noon(), nil)
	assert.Error(t, err)
}

func TestNewEVDrawsWithinWindows(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		ev, err := NewEV(ModelLeaf, DefaultWindows, noon(), rand.NewPCG(seed, seed))
		require.NoError(t, err)
		s := ev.Snapshot()
		base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		assert.False(t, s.ArriveHome.Before(base.Add(16*time.Hour)))
		assert.False(t, s.ArriveHome.After(base.Add(19*time.Hour)))
		next := base.AddDate(0, 0, 1)
		assert.False(t, s.ChargeBy.Before(next.Add(7*time.Hour)))
		assert.False(t, s.ChargeBy.After(next.Add(10*time.Hour)))
		assert.GreaterOrEqual(t, s.StateOfCharge, 0.2)
		assert.LessOrEqual(t, s.StateOfCharge, 0.6)
		assert.False(t, s.PluggedIn, "not home at noon")
	}
}

func TestEVPlugsInAndCharges(t *testing.T) {
	ev := newTestEV(t, ModelLeaf, noon())
	ev.SetCharging(6.6)
	assert.False(t, ev.IsCharging(), "unplugged car ignores charge commands")

	evening := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	ev.Advance(evening)
	require.True(t, ev.PluggedIn())
	assert.Equal(t, 6.6, ev.RequestedChargePower())

	before := ev.Snapshot().StateOfCharge
	ev.SetCharging(100)
	assert.Equal(t, 6.6, ev.Snapshot().ChargingAt)
	ev.Advance(evening.Add(time.Hour))
	after := ev.Snapshot().StateOfCharge
	assert.InDelta(t, before+6.6/40, after, 1e-9)

	ev.SetCharging(-3)
	assert.False(t, ev.IsCharging())
}

func TestEVStopsWhenFull(t *testing.T) {
	ev := newTestEV(t, ModelVolt, time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC))
	require.True(t, ev.PluggedIn())
	ev.SetCharging(3.6)
	ev.Advance(time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC))
	s := ev.Snapshot()
	assert.Equal(t, 1.0, s.StateOfCharge)
	assert.False(t, s.Charging)
	assert.Zero(t, s.RequestedChargePower)
	assert.Equal(t, minUrgency, s.UrgencyRatio)
}

func TestEVUrgencyGrowsTowardsDeadline(t *testing.T) {
	start := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	ev := newTestEV(t, ModelTesla, start)
	first := ev.UrgencyRatio()
	assert.Greater(t, first, 0.0)
	assert.LessOrEqual(t, first, 1.0)

	ev.Advance(start.Add(8 * time.Hour))
	later := ev.UrgencyRatio()
	assert.Greater(t, later, first)
	assert.LessOrEqual(t, later, 1.0)
}

func TestEVLeavesAtDeadlineAndRolls(t *testing.T) {
	ev := newTestEV(t, ModelLeaf, time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC))
	ev.SetCharging(6.6)
	deadline := ev.Snapshot().ChargeBy

	ev.Advance(deadline.Add(time.Minute))
	s := ev.Snapshot()
	assert.False(t, s.PluggedIn)
	assert.False(t, s.Charging)
	assert.True(t, s.ChargeBy.After(deadline))
	assert.Equal(t, 11, s.ArriveHome.Day())
	assert.Equal(t, 12, s.ChargeBy.Day())

	ev.Advance(s.ArriveHome.Add(time.Second))
	assert.True(t, ev.PluggedIn())
}

func TestEVAdvanceIgnoresPast(t *testing.T) {
	start := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	ev := newTestEV(t, ModelLeaf, start)
	ev.SetCharging(6.6)
	soc := ev.Snapshot().StateOfCharge
	ev.Advance(start.Add(-time.Hour))
	assert.Equal(t, soc, ev.Snapshot().StateOfCharge)
}

func TestBatteryCharge(t *testing.T) {
	b := &Battery{CapacityKWh: 10, Soc: 0.9, ChargeRateKW: 5}
	got := b.Charge(20, time.Hour)
	assert.InDelta(t, 1.0, got, 1e-9, "limited by headroom")
	assert.True(t, b.Full())
	assert.Zero(t, b.Charge(5, time.Hour))
	assert.Zero(t, b.Charge(5, 0))

	b = &Battery{CapacityKWh: 10, Soc: 0, ChargeRateKW: 5}
	assert.Equal(t, 5.0, b.Charge(20, 30*time.Minute), "limited by rate")
	assert.InDelta(t, 0.25, b.Soc, 1e-9)
	assert.InDelta(t, 7.5, b.MissingKWh(), 1e-9)
}
