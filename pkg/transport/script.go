package transport

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Script replays commands from a text file instead of a live link.
//
// Each non-empty line is one command. Lines starting with '#' are comments
// and "WAIT <seconds>" pauses the replay. Replies are logged.
type Script struct {
	path    string
	bufSize int
	log     logrus.FieldLogger

	mu     sync.RWMutex
	queue  *lineQueue
	stop   chan struct{}
	done   chan struct{}
	opened bool
}

// NewScript creates a script transport replaying path.
func NewScript(path string, bufSize int, log logrus.FieldLogger) *Script {
	if log == nil {
		log = logrus.StandardLogger()
	}

	done := make(chan struct{})
	close(done)

	return &Script{
		path:    path,
		bufSize: bufSize,
		log:     log.WithFields(logrus.Fields{"transport": "script", "script": path}),
		queue:   closedQueue(),
		done:    done,
	}
}

// Open opens the script and starts the replay.
func (d *Script) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opened {
		return fmt.Errorf("script %s already open", d.path)
	}

	file, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("%w: failed to open script: %w", ErrTransportUnavailable, err)
	}

	d.queue = newLineQueue(d.bufSize)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.opened = true

	go d.replay(file, d.queue, d.stop, d.done)

	d.log.Info("Script started")
	return nil
}

// Done is closed once the replay has queued its last command or was stopped.
func (d *Script) Done() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.done
}

// Close stops the replay.
func (d *Script) Close() error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return nil
	}
	d.queue.fail(ErrClosed)
	close(d.stop)
	d.opened = false
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}

// TryReadLine returns the next scripted command without blocking.
func (d *Script) TryReadLine() (string, bool, error) {
	d.mu.RLock()
	q := d.queue
	d.mu.RUnlock()
	return q.tryRead()
}

// Write logs a reply.
func (d *Script) Write(p []byte) (int, error) {
	if !d.IsOpen() {
		return 0, ErrClosed
	}
	d.log.WithField("reply", strings.TrimRight(string(p), "\r\n")).Info("Reply")
	return len(p), nil
}

// IsOpen reports whether the script is being replayed.
func (d *Script) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.opened
}

func (d *Script) replay(file *os.File, q *lineQueue, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if strings.EqualFold(fields[0], "WAIT") {
			wait, err := parseWait(fields[1:])
			if err != nil {
				d.log.WithError(err).WithField("line", lineNumber).Warn("Invalid WAIT")
				continue
			}
			if !sleepStop(stop, wait) {
				return
			}
			continue
		}

		d.log.WithFields(logrus.Fields{"line": lineNumber, "command": line}).Debug("Queueing scripted command")
		if !q.push(line, stop) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		d.log.WithError(err).Error("Failed to read script")
		return
	}
	d.log.Info("Script finished")
}

func parseWait(args []string) (time.Duration, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	seconds, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", args[0], err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", args[0])
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// sleepStop waits for d and reports false if stop closed first.
func sleepStop(stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
