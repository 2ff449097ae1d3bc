package psu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_RiseSequence(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(2.0)
	s.SetVoltage(5.0)
	require.Equal(t, 3, s.VoltSteps)

	var got []float64
	for i := 0; i < 3; i++ {
		s.Step()
		got = append(got, s.Voltage)
	}

	assert.Equal(t, []float64{2, 4, 5}, got)
	assert.Equal(t, 0, s.VoltSteps)
	assert.False(t, s.Ramping())
}

func TestStep_FallSequence(t *testing.T) {
	s := &State{Voltage: 10, VoltSlewFall: 3}
	s.SetVoltage(2)
	require.Equal(t, 3, s.VoltSteps)

	s.Step()
	assert.Equal(t, 7.0, s.Voltage)
	s.Step()
	assert.Equal(t, 4.0, s.Voltage)
	s.Step()
	assert.Equal(t, 2.0, s.Voltage)
}

func TestStep_NoopWhenIdle(t *testing.T) {
	s := &State{Voltage: 1, TargetVoltage: 3, Current: 2, TargetCurrent: 4}
	s.Step()
	assert.Equal(t, 1.0, s.Voltage)
	assert.Equal(t, 2.0, s.Current)
}

func TestStep_ArrivesExactlyWithoutOvershoot(t *testing.T) {
	tests := []struct {
		present, target, rate float64
	}{
		{0, 5, 2},
		{0, 4, 2},
		{0, 0.3, 0.1},
		{0, 1, 0.1},
		{12.5, -3.7, 0.9},
		{-1, 1, 0.7},
		{3.3, 3.3, 0.5},
		{0, 0.05, 1},
		{100, 0.001, 7.77},
	}

	for _, tt := range tests {
		s := &State{Voltage: tt.present, VoltSlewRise: tt.rate, VoltSlewFall: tt.rate}
		s.SetVoltage(tt.target)

		steps := s.VoltSteps
		want := int(math.Floor(math.Abs(tt.present-tt.target)/tt.rate)) + 1
		require.Equal(t, want, steps)

		dir := math.Copysign(1, tt.target-tt.present)
		prev := s.Voltage
		for i := 0; i < steps; i++ {
			s.Step()
			// never past the target in the direction of travel
			assert.LessOrEqual(t, dir*(s.Voltage-tt.target), 0.0, "%v step %d", tt, i)
			// never more than one increment per tick
			assert.LessOrEqual(t, math.Abs(s.Voltage-prev), tt.rate+1e-9, "%v step %d", tt, i)
			prev = s.Voltage
		}
		assert.Equal(t, tt.target, s.Voltage, "%v", tt)
		assert.Equal(t, 0, s.VoltSteps)
	}
}

func TestStep_ReachesTargetWithinCeilSteps(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(2)
	s.SetVoltage(4)

	ceil := int(math.Ceil(4.0 / 2.0))
	for i := 0; i < ceil; i++ {
		s.Step()
	}
	assert.Equal(t, 4.0, s.Voltage)

	// the trailing planned step is a snap onto the value already reached
	s.Step()
	assert.Equal(t, 4.0, s.Voltage)
	assert.Equal(t, 0, s.VoltSteps)
}

func TestStep_VoltagePriority(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(1)
	s.SetCurrSlewRise(1)
	s.SetVoltage(1.5) // 2 steps
	s.SetCurrent(2.5) // 3 steps
	require.Equal(t, 2, s.VoltSteps)
	require.Equal(t, 3, s.CurrSteps)

	s.Step()
	assert.Equal(t, 1.0, s.Voltage)
	assert.Equal(t, 0.0, s.Current)
	assert.Equal(t, 1, s.VoltSteps)
	assert.Equal(t, 3, s.CurrSteps)

	s.Step()
	assert.Equal(t, 1.5, s.Voltage)
	assert.Equal(t, 0.0, s.Current)

	s.Step()
	assert.Equal(t, 1.0, s.Current)
	s.Step()
	assert.Equal(t, 2.0, s.Current)
	s.Step()
	assert.Equal(t, 2.5, s.Current)
	assert.False(t, s.Ramping())
}

func TestStep_CurrentNeverMovesWhileVoltageRamps(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(0.5)
	s.SetCurrSlewRise(0.1)
	s.SetCurrent(1)
	s.SetVoltage(4)

	for s.VoltSteps > 0 {
		before := s.Current
		s.Step()
		assert.Equal(t, before, s.Current)
	}
	s.Step()
	assert.Greater(t, s.Current, 0.0)
}

func TestStep_SlewChangedMidRampStillSnaps(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(1)
	s.SetVoltage(3)
	require.Equal(t, 4, s.VoltSteps)

	s.SetVoltSlewRise(0)
	for s.Ramping() {
		s.Step()
	}
	assert.Equal(t, 3.0, s.Voltage)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name            string
		present, target float64
		rise, fall      float64
		last            bool
		want            float64
	}{
		{"rise by increment", 0, 5, 2, 0, false, 2},
		{"fall by increment", 5, 0, 0, 2, false, 3},
		{"within rise increment snaps", 4, 5, 2, 0, false, 5},
		{"exactly one increment snaps", 3, 5, 2, 0, false, 5},
		{"at target", 5, 5, 2, 2, false, 5},
		{"last step snaps", 0, 5, 1, 1, true, 5},
		{"negative rate does not move away", 0, 5, -1, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, advance(tt.present, tt.target, tt.rise, tt.fall, tt.last))
		})
	}
}
