package psu

import "math"

// Step advances the state by one tick.
//
// Only one output moves per tick: the voltage ramp is serviced first and the
// current ramp waits until the voltage ramp has no steps left. Each step moves
// the present value by at most one slew increment and the final step snaps it
// exactly to the target.
func (s *State) Step() {
	switch {
	case s.VoltSteps > 0:
		s.Voltage = advance(s.Voltage, s.TargetVoltage, s.VoltSlewRise, s.VoltSlewFall, s.VoltSteps == 1)
		s.VoltSteps--
	case s.CurrSteps > 0:
		s.Current = advance(s.Current, s.TargetCurrent, s.CurrSlewRise, s.CurrSlewFall, s.CurrSteps == 1)
		s.CurrSteps--
	}
}

// advance moves present one increment toward target, or onto it when the
// remaining distance is within one increment or this is the last step.
func advance(present, target, rise, fall float64, last bool) float64 {
	if last {
		return target
	}

	d := present - target
	rise, fall = math.Max(rise, 0), math.Max(fall, 0)

	switch {
	case d < 0 && math.Abs(d) > rise:
		return present + rise
	case d > 0 && math.Abs(d) > fall:
		return present - fall
	default:
		return target
	}
}
