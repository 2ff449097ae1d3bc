package telemetry

import (
	"sync"
	"time"
)

// DefaultWindow is the history length used when none is given.
const DefaultWindow = 60 * time.Second

// History keeps the samples of a trailing time window for display.
//
// The emulator never retains samples; History is the consumer-side buffer
// that trims by timestamp and notifies registered callbacks after each
// sample.
type History struct {
	window time.Duration

	mu       sync.RWMutex
	samples  []Sample // FIFO, oldest first
	shutdown bool     // Set when the input channel closes; suppresses callbacks

	cbMu      sync.RWMutex
	callbacks []func(samples []Sample)
}

// NewHistory creates a History covering window. A non-positive window
// selects DefaultWindow.
func NewHistory(window time.Duration) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{
		window:  window,
		samples: make([]Sample, 0),
	}
}

// Consume adds samples from input until it is closed. After that no more
// callbacks are sent.
func (h *History) Consume(input <-chan Sample) {
	for s := range input {
		h.Add(s)
	}
	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()
}

// Add appends s, drops samples older than the window and notifies callbacks.
func (h *History) Add(s Sample) {
	h.mu.Lock()

	h.samples = append(h.samples, s)

	cutoff := s.Timestamp.Add(-h.window)
	cutoffIndex := 0
	for i, old := range h.samples {
		if old.Timestamp.After(cutoff) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex > 0 {
		h.samples = h.samples[cutoffIndex:]
	}

	shouldNotify := !h.shutdown
	h.mu.Unlock()

	if shouldNotify {
		h.notifyCallbacks()
	}
}

// Samples returns a copy of the buffered samples, oldest first.
func (h *History) Samples() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Sample, len(h.samples))
	copy(result, h.samples)
	return result
}

// OnUpdate registers a callback invoked with a copy of the buffer after
// every added sample. The callback should return quickly.
func (h *History) OnUpdate(callback func(samples []Sample)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

// notifyCallbacks invokes all registered callbacks without holding locks.
func (h *History) notifyCallbacks() {
	samples := h.Samples()

	h.cbMu.RLock()
	callbacks := make([]func(samples []Sample), len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples)
		}
	}
}
