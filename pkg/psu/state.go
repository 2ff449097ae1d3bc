package psu

import "math"

// slewTolerance is the magnitude below which a slew rate counts as zero
// (instantaneous change, no ramp).
const slewTolerance = 1e-12

// State holds the present and commanded output of the emulated supply.
//
// State does no validation: any value accepted by the command layer is
// stored as given. A State is owned by a single goroutine and must not be
// shared without external synchronization.
type State struct {
	Voltage       float64 // Present output voltage (V)
	TargetVoltage float64 // Commanded voltage (V)
	VoltSlewRise  float64 // Rising voltage slew rate (V/s), 0 = instantaneous
	VoltSlewFall  float64 // Falling voltage slew rate (V/s), 0 = instantaneous
	VoltSteps     int     // Ticks left in the voltage ramp

	Current       float64 // Present output current (A)
	TargetCurrent float64 // Commanded current (A)
	CurrSlewRise  float64 // Rising current slew rate (A/s), 0 = instantaneous
	CurrSlewFall  float64 // Falling current slew rate (A/s), 0 = instantaneous
	CurrSteps     int     // Ticks left in the current ramp
}

// New returns a State with every value at zero.
func New() *State {
	return &State{}
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() State {
	return *s
}

// Ramping reports whether either output still has ramp steps pending.
func (s *State) Ramping() bool {
	return s.VoltSteps > 0 || s.CurrSteps > 0
}

// SetVoltage records a new voltage target and plans the ramp toward it from
// the present voltage. A pending voltage ramp is replaced.
func (s *State) SetVoltage(v float64) {
	s.TargetVoltage = v
	s.Voltage, s.VoltSteps = plan(s.Voltage, v, s.VoltSlewRise, s.VoltSlewFall)
}

// SetCurrent records a new current target and plans the ramp toward it from
// the present current. A pending current ramp is replaced.
func (s *State) SetCurrent(i float64) {
	s.TargetCurrent = i
	s.Current, s.CurrSteps = plan(s.Current, i, s.CurrSlewRise, s.CurrSlewFall)
}

// SetVoltSlewRise sets the rising voltage slew rate. It applies from the
// next SetVoltage call.
func (s *State) SetVoltSlewRise(rate float64) { s.VoltSlewRise = rate }

// SetVoltSlewFall sets the falling voltage slew rate. It applies from the
// next SetVoltage call.
func (s *State) SetVoltSlewFall(rate float64) { s.VoltSlewFall = rate }

// SetCurrSlewRise sets the rising current slew rate. It applies from the
// next SetCurrent call.
func (s *State) SetCurrSlewRise(rate float64) { s.CurrSlewRise = rate }

// SetCurrSlewFall sets the falling current slew rate. It applies from the
// next SetCurrent call.
func (s *State) SetCurrSlewFall(rate float64) { s.CurrSlewFall = rate }

// plan returns the new present value and the number of ticks needed to
// reach target. Rates at or below zero snap immediately.
func plan(present, target, rise, fall float64) (float64, int) {
	delta := present - target
	rate := fall
	if delta < 0 {
		rate = rise
	}
	if rate <= slewTolerance {
		return target, 0
	}
	// One extra tick so that a sub-increment delta still takes a step; the
	// last step always snaps.
	return present, int(math.Floor(math.Abs(delta)/rate)) + 1
}
