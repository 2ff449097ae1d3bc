package emulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/psemu/pkg/psu"
	"github.com/itohio/psemu/pkg/scpi"
	"github.com/itohio/psemu/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// DefaultPeriod is the nominal tick period.
const DefaultPeriod = time.Second

// Link is the line-oriented duplex channel the emulator serves.
// TryReadLine must not block.
type Link interface {
	TryReadLine() (line string, ok bool, err error)
	Write(p []byte) (int, error)
}

// Observer is notified at the end of every tick.
type Observer interface {
	TickCompleted(st psu.State, work time.Duration, overrun bool)
}

// Emulator runs the tick loop: ramp, sample, poll one input line, sleep.
//
// The device state is only touched from the goroutine calling Run or Tick.
type Emulator struct {
	state      *psu.State
	link       Link
	dispatcher *scpi.Dispatcher
	sink       telemetry.Sink
	log        logrus.FieldLogger
	observer   Observer

	period time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	start time.Time
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithPeriod sets the tick period.
func WithPeriod(d time.Duration) Option {
	return func(e *Emulator) {
		if d > 0 {
			e.period = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Emulator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithObserver registers a tick observer.
func WithObserver(o Observer) Option {
	return func(e *Emulator) { e.observer = o }
}

// WithClock replaces the time source and the sleep primitive.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Emulator) {
		if now != nil {
			e.now = now
		}
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// New creates an Emulator driving state. A nil sink discards samples and a
// nil dispatcher gets a default one.
func New(state *psu.State, link Link, dispatcher *scpi.Dispatcher, sink telemetry.Sink, opts ...Option) *Emulator {
	if state == nil {
		state = psu.New()
	}
	if sink == nil {
		sink = telemetry.SinkFunc(func(telemetry.Sample) {})
	}

	e := &Emulator{
		state:  state,
		link:   link,
		sink:   sink,
		log:    logrus.StandardLogger(),
		period: DefaultPeriod,
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if dispatcher == nil {
		dispatcher = scpi.NewDispatcher(e.log, nil)
	}
	e.dispatcher = dispatcher

	return e
}

// State returns the device state driven by the emulator.
func (e *Emulator) State() *psu.State {
	return e.state
}

// Run executes ticks until ctx is cancelled or the link fails. It returns
// nil on cancellation and the link error otherwise.
func (e *Emulator) Run(ctx context.Context) error {
	e.start = e.now()
	e.log.WithField("period", e.period).Info("Emulator started")

	for {
		if ctx.Err() != nil {
			e.log.Info("Emulator stopped")
			return nil
		}

		tickStart := e.now()
		if err := e.Tick(); err != nil {
			return err
		}

		work := e.now().Sub(tickStart)
		wait := e.period - work
		overrun := wait < 0
		if overrun {
			e.log.WithField("overrun", -wait).Warn("Tick overrun")
			wait = 0
		}

		if e.observer != nil {
			e.observer.TickCompleted(e.state.Snapshot(), work, overrun)
		}

		if err := e.sleep(ctx, wait); err != nil {
			e.log.Info("Emulator stopped")
			return nil
		}
	}
}

// Tick runs one ramp step, emits one sample and handles at most one pending
// input line. Only link failures are returned; command errors are logged by
// the dispatcher and otherwise ignored.
func (e *Emulator) Tick() error {
	if e.start.IsZero() {
		e.start = e.now()
	}

	e.state.Step()

	now := e.now()
	e.sink.Emit(telemetry.Sample{
		Timestamp: now,
		Elapsed:   now.Sub(e.start).Seconds(),
		Voltage:   e.state.Voltage,
		Current:   e.state.Current,
	})

	if e.link == nil {
		return nil
	}

	line, ok, err := e.link.TryReadLine()
	if err != nil {
		return fmt.Errorf("failed to read command: %w", err)
	}
	if !ok {
		return nil
	}

	e.log.WithField("line", line).Info("Received")
	err = e.dispatcher.Handle(e.link, line, e.state)
	if err != nil && !errors.Is(err, scpi.ErrMalformedCommand) && !errors.Is(err, scpi.ErrUnknownCommand) {
		return err
	}
	return nil
}

// sleepContext waits for d or until ctx is done. Non-positive durations
// return immediately.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
