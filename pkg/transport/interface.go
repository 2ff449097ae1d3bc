package transport

import "errors"

var (
	// ErrTransportUnavailable is returned by Open when the underlying port,
	// socket or file cannot be acquired.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrClosed is returned once a transport was closed or its link failed.
	ErrClosed = errors.New("transport closed")
)

// Transport is a line-oriented duplex command channel.
//
// TryReadLine never blocks: it returns the oldest pending line, or ok=false
// when nothing is pending. A non-nil error means the link is gone for good.
type Transport interface {
	Open() error
	Close() error
	TryReadLine() (line string, ok bool, err error)
	Write(p []byte) (int, error)
	IsOpen() bool
}

var (
	_ Transport = (*Serial)(nil)
	_ Transport = (*TCP)(nil)
	_ Transport = (*Script)(nil)
	_ Transport = (*Pipe)(nil)
)
