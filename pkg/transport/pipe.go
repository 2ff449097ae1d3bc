package transport

import (
	"bytes"
	"fmt"
	"sync"
)

// Pipe is an in-memory transport for embedding the emulator in another
// program. Send injects command lines; replies accumulate until Replies is
// called.
type Pipe struct {
	bufSize int

	mu      sync.Mutex
	queue   *lineQueue
	replies bytes.Buffer
	opened  bool
}

// NewPipe creates a pipe buffering up to bufSize pending lines.
func NewPipe(bufSize int) *Pipe {
	return &Pipe{bufSize: bufSize, queue: closedQueue()}
}

// Open makes the pipe accept lines.
func (p *Pipe) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opened {
		return fmt.Errorf("pipe already open")
	}
	p.queue = newLineQueue(p.bufSize)
	p.opened = true
	return nil
}

// Close makes the next TryReadLine fail with ErrClosed once pending lines are
// drained.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return nil
	}
	p.queue.fail(ErrClosed)
	p.opened = false
	return nil
}

// Send queues a command line. It fails if the pipe is closed or full.
func (p *Pipe) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return ErrClosed
	}
	select {
	case p.queue.lines <- line:
		return nil
	default:
		return fmt.Errorf("pipe full: %d lines pending", len(p.queue.lines))
	}
}

// Replies returns and clears everything written so far.
func (p *Pipe) Replies() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.replies.String()
	p.replies.Reset()
	return out
}

// TryReadLine returns the next sent line without blocking.
func (p *Pipe) TryReadLine() (string, bool, error) {
	p.mu.Lock()
	q := p.queue
	p.mu.Unlock()
	return q.tryRead()
}

// Write records a reply.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened {
		return 0, ErrClosed
	}
	return p.replies.Write(b)
}

// IsOpen reports whether the pipe accepts lines.
func (p *Pipe) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}
