package scope

import (
	"github.com/chewxy/math32"
	"github.com/itohio/psemu/pkg/telemetry"
)

// axis is a vertical value range in display coordinates.
type axis struct {
	min, max float32
}

// fitAxis returns the range of value over samples with a 10% margin. Flat
// traces get a span of at least 1 unit.
func fitAxis(samples []telemetry.Sample, value func(telemetry.Sample) float64) axis {
	if len(samples) == 0 {
		return axis{min: 0, max: 1}
	}

	lo := float32(value(samples[0]))
	hi := lo
	for _, s := range samples[1:] {
		v := float32(value(s))
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}

	span := hi - lo
	if span == 0 {
		span = math32.Max(math32.Abs(hi), 1)
	}
	margin := span * 0.1
	return axis{min: lo - margin, max: hi + margin}
}

// y maps v into a plot area starting at top with the given height. Larger
// values are drawn higher.
func (a axis) y(v float64, top, height float32) float32 {
	return top + height - (float32(v)-a.min)/(a.max-a.min)*height
}

// tick returns the value of grid line i out of n, counted from the top.
func (a axis) tick(i, n int) float32 {
	return a.max - float32(i)*(a.max-a.min)/float32(n)
}

// projectX maps elapsed seconds into a plot area starting at left.
func projectX(elapsed, xMin, xMax float64, left, width float32) float32 {
	span := float32(xMax - xMin)
	if span <= 0 {
		return left
	}
	return left + float32(elapsed-xMin)/span*width
}
