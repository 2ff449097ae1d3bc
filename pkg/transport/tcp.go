package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultWriteTimeout bounds a single reply write to a TCP client.
const DefaultWriteTimeout = 5 * time.Second

// TCP serves commands to a single TCP client at a time. Further clients are
// refused while one is attached; the listener keeps accepting after the
// client disconnects.
type TCP struct {
	addr         string
	bufSize      int
	writeTimeout time.Duration
	log          logrus.FieldLogger

	mu       sync.Mutex
	listener net.Listener
	client   net.Conn
	queue    *lineQueue
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewTCP creates a TCP transport listening on host:port. Port 0 picks a free
// port, see Addr.
func NewTCP(host string, port int, bufSize int, log logrus.FieldLogger) *TCP {
	if log == nil {
		log = logrus.StandardLogger()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	return &TCP{
		addr:         addr,
		bufSize:      bufSize,
		writeTimeout: DefaultWriteTimeout,
		log:          log.WithFields(logrus.Fields{"transport": "tcp", "addr": addr}),
		queue:        closedQueue(),
	}
}

// Open starts listening.
func (d *TCP) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listener != nil {
		return fmt.Errorf("tcp listener on %s already open", d.addr)
	}

	l, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("%w: failed to listen on %s: %w", ErrTransportUnavailable, d.addr, err)
	}

	d.listener = l
	d.queue = newLineQueue(d.bufSize)
	d.stop = make(chan struct{})

	d.wg.Add(1)
	go d.acceptLoop(l, d.queue, d.stop)

	d.log.WithField("listen", l.Addr().String()).Info("TCP listener started")
	return nil
}

// Addr returns the listening address, or nil when not open.
func (d *TCP) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Close stops the listener and disconnects the client.
func (d *TCP) Close() error {
	d.mu.Lock()
	if d.listener == nil {
		d.mu.Unlock()
		return nil
	}

	d.queue.fail(ErrClosed)
	close(d.stop)
	err := d.listener.Close()
	d.listener = nil
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("TCP listener stopped")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}

// TryReadLine returns the next received line without blocking.
func (d *TCP) TryReadLine() (string, bool, error) {
	d.mu.Lock()
	q := d.queue
	d.mu.Unlock()
	return q.tryRead()
}

// Write sends p to the attached client. Replies with no client attached, or
// that fail to reach it, are dropped: a vanished client is not a transport
// failure.
func (d *TCP) Write(p []byte) (int, error) {
	d.mu.Lock()
	if d.listener == nil {
		d.mu.Unlock()
		return 0, ErrClosed
	}
	conn := d.client
	d.mu.Unlock()

	if conn == nil {
		d.log.WithField("reply", strings.TrimSpace(string(p))).Warn("No client attached, dropping reply")
		return len(p), nil
	}

	conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	if _, err := conn.Write(p); err != nil {
		d.log.WithError(err).Warn("Failed to write reply, dropping client")
		d.detach(conn)
		return len(p), nil
	}
	return len(p), nil
}

// IsOpen reports whether the listener is running.
func (d *TCP) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener != nil
}

func (d *TCP) acceptLoop(l net.Listener, q *lineQueue, stop <-chan struct{}) {
	defer d.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.log.WithError(err).Warn("Failed to accept connection")
			continue
		}

		remote := conn.RemoteAddr().String()
		d.mu.Lock()
		select {
		case <-stop:
			d.mu.Unlock()
			conn.Close()
			return
		default:
		}
		busy := d.client != nil
		if !busy {
			d.client = conn
		}
		d.mu.Unlock()

		if busy {
			d.log.WithField("remote", remote).Warn("Client already attached, refusing connection")
			conn.Close()
			continue
		}

		d.log.WithField("remote", remote).Info("Client connected")
		d.wg.Add(1)
		go d.serve(conn, q, stop)
	}
}

func (d *TCP) serve(conn net.Conn, q *lineQueue, stop <-chan struct{}) {
	defer d.wg.Done()

	err := q.scan(conn, stop)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		d.log.WithError(err).Debug("Client read ended")
	}

	d.detach(conn)
	d.log.WithField("remote", conn.RemoteAddr().String()).Info("Client disconnected")
}

func (d *TCP) detach(conn net.Conn) {
	d.mu.Lock()
	if d.client == conn {
		d.client = nil
	}
	d.mu.Unlock()
	conn.Close()
}
