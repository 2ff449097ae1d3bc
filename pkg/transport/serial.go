package transport

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the bit rate used when none is configured.
const DefaultBaudRate = 9600

// Port describes a serial port found on the host.
type Port struct {
	Name         string
	Description  string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Ports returns the serial ports available on the host.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(details))
	for _, p := range details {
		desc := p.Product
		if desc == "" {
			desc = p.Name
		}
		result = append(result, Port{
			Name:         p.Name,
			Description:  desc,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}

	return result, nil
}

// Serial serves commands over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	log      logrus.FieldLogger

	mu     sync.RWMutex
	conn   serial.Port
	queue  *lineQueue
	stop   chan struct{}
	opened bool
}

// NewSerial creates a serial transport. Zero baudRate or bufSize select the
// defaults.
func NewSerial(port string, baudRate int, bufSize int, log logrus.FieldLogger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		log:      log.WithFields(logrus.Fields{"transport": "serial", "port": port}),
		queue:    closedQueue(),
	}
}

// Open opens the serial port and starts reading lines.
func (d *Serial) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opened {
		return fmt.Errorf("serial port %s already open", d.port)
	}

	conn, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("%w: failed to open serial port %s: %w", ErrTransportUnavailable, d.port, err)
	}

	d.conn = conn
	d.queue = newLineQueue(d.bufSize)
	d.stop = make(chan struct{})
	d.opened = true

	go d.readLines(conn, d.queue, d.stop)

	d.log.WithField("baud_rate", d.baudRate).Info("Serial port opened")
	return nil
}

// Close closes the port. Pending lines are discarded.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		return nil
	}

	d.queue.fail(ErrClosed)
	close(d.stop)

	var err error
	if d.conn != nil {
		err = d.conn.Close()
		d.conn = nil
	}
	d.opened = false

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", d.port, err)
	}
	return nil
}

// TryReadLine returns the next received line without blocking.
func (d *Serial) TryReadLine() (string, bool, error) {
	d.mu.RLock()
	q := d.queue
	d.mu.RUnlock()
	return q.tryRead()
}

// Write sends p to the port.
func (d *Serial) Write(p []byte) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.opened {
		return 0, ErrClosed
	}
	return d.conn.Write(p)
}

// IsOpen reports whether the port is open.
func (d *Serial) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.opened
}

// readLines feeds q until the port fails or is closed.
func (d *Serial) readLines(conn io.Reader, q *lineQueue, stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("panic", r).Error("Panic in serial reader")
			q.fail(fmt.Errorf("%w: serial reader panic: %v", ErrClosed, r))
		}
	}()

	err := q.scan(conn, stop)
	select {
	case <-stop:
		return
	default:
	}

	if err == nil {
		err = io.EOF
	}
	d.log.WithError(err).Error("Serial port read failed")
	q.fail(fmt.Errorf("%w: serial port %s: %w", ErrClosed, d.port, err))
}

// closedQueue is served before Open and after Close.
func closedQueue() *lineQueue {
	q := newLineQueue(1)
	q.fail(ErrClosed)
	return q
}
