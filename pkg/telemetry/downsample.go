package telemetry

// Downsample reduces samples to at most maxPoints by decimation.
// It reuses dst when its capacity is sufficient and returns the result,
// which may or may not share storage with dst.
func Downsample(dst []Sample, samples []Sample, maxPoints int) []Sample {
	if maxPoints <= 0 || len(samples) <= maxPoints {
		if cap(dst) >= len(samples) {
			dst = dst[:len(samples)]
			copy(dst, samples)
			return dst
		}
		result := make([]Sample, len(samples))
		copy(result, samples)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Sample, 0, maxPoints)
	}

	step := float64(len(samples)) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i) * step)
		if idx < len(samples) {
			dst = append(dst, samples[idx])
		}
	}

	// Keep the newest sample so the trace ends at "now".
	dst[len(dst)-1] = samples[len(samples)-1]

	return dst
}
