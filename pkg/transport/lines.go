package transport

import (
	"bufio"
	"io"
	"sync"
)

// DefaultLineBuffer is the default number of received lines held until the
// emulator polls them.
const DefaultLineBuffer = 16

// lineQueue carries lines from a reader goroutine to a non-blocking poller.
// The first failure recorded is sticky and reported once pending lines are
// drained.
type lineQueue struct {
	lines chan string

	mu  sync.Mutex
	err error
}

func newLineQueue(size int) *lineQueue {
	if size <= 0 {
		size = DefaultLineBuffer
	}
	return &lineQueue{lines: make(chan string, size)}
}

func (q *lineQueue) tryRead() (string, bool, error) {
	select {
	case line := <-q.lines:
		return line, true, nil
	default:
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return "", false, q.err
}

func (q *lineQueue) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err == nil {
		q.err = err
	}
}

// push blocks until the line is queued or stop is closed.
func (q *lineQueue) push(line string, stop <-chan struct{}) bool {
	select {
	case q.lines <- line:
		return true
	case <-stop:
		return false
	}
}

// scan forwards newline-terminated lines from r until r is exhausted or
// stop is closed. It returns nil on EOF.
func (q *lineQueue) scan(r io.Reader, stop <-chan struct{}) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if !q.push(scanner.Text(), stop) {
			return nil
		}
	}
	return scanner.Err()
}
