package psu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := New()
	require.NotNil(t, s)
	assert.Equal(t, State{}, *s)
	assert.False(t, s.Ramping())
}

func TestSetVoltage_StepsRemaining(t *testing.T) {
	tests := []struct {
		name      string
		present   float64
		target    float64
		rise      float64
		fall      float64
		wantSteps int
		wantValue float64 // value right after the call
	}{
		{"rise 0 to 5 at 2", 0, 5, 2, 0, 3, 0},
		{"rise exact multiple", 0, 4, 2, 0, 3, 0},
		{"rise sub increment", 0, 0.5, 2, 0, 1, 0},
		{"fall 10 to 3 at 1", 10, 3, 0, 1, 8, 10},
		{"equal uses fall rate", 5, 5, 2, 1, 1, 5},
		{"equal with zero fall snaps", 5, 5, 2, 0, 0, 5},
		{"zero rise snaps", 0, 5, 0, 1, 0, 5},
		{"zero fall snaps", 10, 3, 1, 0, 0, 3},
		{"negative rate snaps", 0, 5, -1, 0, 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Voltage: tt.present, VoltSlewRise: tt.rise, VoltSlewFall: tt.fall}
			s.SetVoltage(tt.target)

			assert.Equal(t, tt.target, s.TargetVoltage)
			assert.Equal(t, tt.wantSteps, s.VoltSteps)
			assert.Equal(t, tt.wantValue, s.Voltage)
		})
	}
}

func TestSetCurrent_StepsRemaining(t *testing.T) {
	s := &State{Current: 0, CurrSlewRise: 0.5}
	s.SetCurrent(1.25)
	assert.Equal(t, 1.25, s.TargetCurrent)
	assert.Equal(t, 3, s.CurrSteps)
	assert.Equal(t, 0.0, s.Current)

	s = &State{Current: 2, CurrSlewFall: 0}
	s.SetCurrent(1)
	assert.Equal(t, 1.0, s.Current)
	assert.Equal(t, 0, s.CurrSteps)
}

func TestSetVoltage_ZeroSlewSnapsCancelsRamp(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(1)
	s.SetVoltage(10)
	require.Equal(t, 11, s.VoltSteps)

	s.Step()
	s.SetVoltSlewFall(0)
	s.SetVoltage(0.5)

	assert.Equal(t, 0.5, s.Voltage)
	assert.Equal(t, 0, s.VoltSteps)
}

func TestSetVoltage_NegativeSlewSnaps(t *testing.T) {
	tests := []struct {
		name   string
		rise   float64
		fall   float64
		target float64
	}{
		{"negative rise", -2, 1, 4},
		{"negative fall", 1, -0.5, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.SetVoltSlewRise(tt.rise)
			s.SetVoltSlewFall(tt.fall)
			s.SetVoltage(tt.target)

			assert.Equal(t, tt.target, s.Voltage)
			assert.Equal(t, tt.target, s.TargetVoltage)
			assert.Equal(t, 0, s.VoltSteps)

			s.Step()
			assert.Equal(t, tt.target, s.Voltage)
		})
	}

	s := New()
	s.SetCurrSlewRise(-1)
	s.SetCurrent(2)
	assert.Equal(t, 2.0, s.Current)
	assert.Equal(t, 0, s.CurrSteps)
}

func TestSetVoltage_MidRampRecomputesFromPresent(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(1)
	s.SetVoltage(10)
	s.Step()
	s.Step()
	s.Step()
	require.Equal(t, 3.0, s.Voltage)
	require.Equal(t, 8, s.VoltSteps)

	s.SetVoltage(5)
	// floor(|3-5| / 1) + 1, not derived from the first 0 -> 10 plan
	assert.Equal(t, 3, s.VoltSteps)
	assert.Equal(t, 3.0, s.Voltage)
}

func TestSetVoltage_Idempotent(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(2)
	s.SetVoltage(5)
	for s.Ramping() {
		s.Step()
	}
	require.Equal(t, 5.0, s.Voltage)

	s.SetVoltSlewFall(0)
	s.SetVoltage(5)
	assert.Equal(t, 0, s.VoltSteps)
	assert.Equal(t, 5.0, s.Voltage)
}

func TestSlewSetters_NotRetroactive(t *testing.T) {
	s := New()
	s.SetVoltSlewRise(2)
	s.SetVoltage(5)
	require.Equal(t, 3, s.VoltSteps)

	s.SetVoltSlewRise(0.1)
	assert.Equal(t, 3, s.VoltSteps)
	assert.Equal(t, 0.1, s.VoltSlewRise)

	s.SetVoltSlewFall(0.2)
	s.SetCurrSlewRise(0.3)
	s.SetCurrSlewFall(0.4)
	assert.Equal(t, 0.2, s.VoltSlewFall)
	assert.Equal(t, 0.3, s.CurrSlewRise)
	assert.Equal(t, 0.4, s.CurrSlewFall)
}

func TestSnapshot(t *testing.T) {
	s := New()
	s.SetVoltage(3)
	snap := s.Snapshot()
	s.SetVoltage(4)
	assert.Equal(t, 3.0, snap.Voltage)
	assert.Equal(t, 4.0, s.Voltage)
}
