package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the default size for the samples channel buffer.
const DefaultBufferSize = 100

// Sample is one tick's output reading.
type Sample struct {
	Timestamp time.Time
	Elapsed   float64 // Seconds since the emulator started
	Voltage   float64 // Present output voltage (V)
	Current   float64 // Present output current (A)
}

// Sink consumes samples. Emit must not block the caller for long.
type Sink interface {
	Emit(s Sample)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s Sample)

// Emit calls f(s).
func (f SinkFunc) Emit(s Sample) { f(s) }

// Multi fans a sample out to several sinks in order.
type Multi []Sink

// Emit forwards s to every sink.
func (m Multi) Emit(s Sample) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(s)
		}
	}
}

// Stream is a Sink that exposes samples as a channel. The emitter never
// waits: when the buffer is full the sample is dropped and counted.
type Stream struct {
	mu      sync.RWMutex
	samples chan Sample
	closed  bool
	dropped atomic.Uint64
}

var _ Sink = (*Stream)(nil)

// NewStream creates a Stream with the given channel buffer size.
func NewStream(bufSize int) *Stream {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Stream{samples: make(chan Sample, bufSize)}
}

// Emit queues s for the consumer.
func (st *Stream) Emit(s Sample) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.closed {
		return
	}

	select {
	case st.samples <- s:
	default:
		st.dropped.Add(1)
	}
}

// Samples returns the channel for reading samples.
func (st *Stream) Samples() <-chan Sample {
	return st.samples
}

// Dropped returns the number of samples dropped because the consumer was
// behind.
func (st *Stream) Dropped() uint64 {
	return st.dropped.Load()
}

// Close closes the samples channel. Later Emit calls are ignored.
func (st *Stream) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return
	}
	st.closed = true
	close(st.samples)
}
