package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsample_NoDownsampling(t *testing.T) {
	now := time.Now()
	samples := []Sample{
		{Timestamp: now, Elapsed: 0, Voltage: 1.0, Current: 0.1},
		{Timestamp: now.Add(time.Second), Elapsed: 1, Voltage: 1.1, Current: 0.1},
		{Timestamp: now.Add(2 * time.Second), Elapsed: 2, Voltage: 1.2, Current: 0.1},
	}

	result := Downsample(nil, samples, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, samples, result)

	dst := make([]Sample, 0, 10)
	result = Downsample(dst, samples, 10)
	require.Equal(t, 3, len(result))
	assert.Equal(t, samples, result)
	// Should reuse dst
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	now := time.Now()
	samples := make([]Sample, 100)
	for i := 0; i < 100; i++ {
		samples[i] = Sample{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Elapsed:   float64(i),
			Voltage:   float64(i) * 0.1,
		}
	}

	dst := make([]Sample, 0, 20)
	result := Downsample(dst, samples, 10)
	require.Equal(t, 10, len(result))

	assert.Equal(t, samples[0], result[0])
	assert.Equal(t, samples[99], result[9])
	for i := 1; i < len(result); i++ {
		assert.Greater(t, result[i].Elapsed, result[i-1].Elapsed)
	}
	assert.Equal(t, 20, cap(result))
}

func TestDownsample_SmallDestination(t *testing.T) {
	samples := make([]Sample, 50)
	for i := range samples {
		samples[i] = Sample{Elapsed: float64(i)}
	}

	dst := make([]Sample, 0, 2)
	result := Downsample(dst, samples, 5)
	assert.Len(t, result, 5)

	result = Downsample(dst, samples[:3], 5)
	assert.Len(t, result, 3)
}

func TestDownsample_Empty(t *testing.T) {
	assert.Empty(t, Downsample(nil, nil, 10))
	assert.Empty(t, Downsample(nil, []Sample{}, 0))
}
