package scpi

import (
	"errors"
	"fmt"
	"io"

	"github.com/itohio/psemu/pkg/psu"
	"github.com/sirupsen/logrus"
)

// Ack is written back for every accepted setter command.
var Ack = []byte("OK\n")

// Observer is notified about every handled line.
type Observer interface {
	CommandHandled(kind Kind)
	CommandFailed(kind Kind, err error)
}

// Dispatcher parses input lines and applies them to a device state.
type Dispatcher struct {
	log      logrus.FieldLogger
	observer Observer
}

// NewDispatcher creates a Dispatcher. The observer may be nil.
func NewDispatcher(log logrus.FieldLogger, observer Observer) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{log: log, observer: observer}
}

// Handle parses line and executes it against st, writing any reply to w.
//
// Setters write Ack before the change is applied; queries write only the
// value followed by a newline. Malformed and unknown lines are reported to
// the log, write nothing and leave st untouched; the returned error wraps
// ErrMalformedCommand or ErrUnknownCommand. Any other error comes from w.
func (d *Dispatcher) Handle(w io.Writer, line string, st *psu.State) error {
	cmd, err := Parse(line)
	if err != nil {
		d.report(cmd, line, err)
		return err
	}

	switch {
	case cmd.Kind.IsSetter():
		if _, err := w.Write(Ack); err != nil {
			return fmt.Errorf("failed to write acknowledgment: %w", err)
		}
		apply(cmd, st)
	case cmd.Kind == QueryVoltage:
		if err := writeValue(w, st.Voltage); err != nil {
			return err
		}
	case cmd.Kind == QueryCurrent:
		if err := writeValue(w, st.Current); err != nil {
			return err
		}
	}

	if d.observer != nil {
		d.observer.CommandHandled(cmd.Kind)
	}
	d.log.WithFields(logrus.Fields{
		"command": cmd.Kind.String(),
		"value":   cmd.Param,
	}).Debug("Command handled")

	return nil
}

func (d *Dispatcher) report(cmd Command, line string, err error) {
	if d.observer != nil {
		d.observer.CommandFailed(cmd.Kind, err)
	}

	entry := d.log.WithField("line", line)
	if errors.Is(err, ErrUnknownCommand) {
		entry.Warn("invalid command")
		return
	}
	entry.WithError(err).Warn("malformed command")
}

func apply(cmd Command, st *psu.State) {
	switch cmd.Kind {
	case SetVoltage:
		st.SetVoltage(cmd.Param)
	case SetCurrent:
		st.SetCurrent(cmd.Param)
	case SetVoltSlewRise:
		st.SetVoltSlewRise(cmd.Param)
	case SetVoltSlewFall:
		st.SetVoltSlewFall(cmd.Param)
	case SetCurrSlewRise:
		st.SetCurrSlewRise(cmd.Param)
	case SetCurrSlewFall:
		st.SetCurrSlewFall(cmd.Param)
	}
}

func writeValue(w io.Writer, v float64) error {
	if _, err := io.WriteString(w, FormatValue(v)+"\n"); err != nil {
		return fmt.Errorf("failed to write measurement: %w", err)
	}
	return nil
}
