package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/danmuck/kvlink/internal/protocol/frame"
)

var (
	ErrConnectionClosed = errors.New("transport: connection closed by peer")
	ErrClosed           = errors.New("transport: use of closed connection")
	ErrInvalidPort      = errors.New("transport: invalid port")
)

// ConnectKind classifies connection establishment and liveness failures.
type ConnectKind int

const (
	KindIOError ConnectKind = iota
	KindRefused
	KindTimeout
	KindResolutionFailed
)

func (k ConnectKind) String() string {
	switch k {
	case KindRefused:
		return "refused"
	case KindTimeout:
		return "timeout"
	case KindResolutionFailed:
		return "resolution_failed"
	default:
		return "io_error"
	}
}

// ConnectError is returned for every dial, read, or write failure on the stream.
type ConnectError struct {
	Kind ConnectKind
	Op   string
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: %s %s: %s: %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Timeout reports whether a deadline or cancellation ended the call.
func (e *ConnectError) Timeout() bool {
	return e.Kind == KindTimeout
}

// IsKind reports whether err carries a ConnectError of the given kind.
func IsKind(err error, kind ConnectKind) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Kind == kind
}

func classifyDial(addr string, err error) error {
	kind := KindIOError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		kind = KindResolutionFailed
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindRefused
	case isTimeout(err):
		kind = KindTimeout
	}
	return &ConnectError{Kind: kind, Op: "dial", Addr: addr, Err: err}
}

// classifyIO maps a stream failure. Envelope errors from the frame package pass
// through unchanged so callers can tell a desynchronized peer from a dead one.
func classifyIO(op, addr string, err error) error {
	switch {
	case errors.Is(err, frame.ErrInvalidMagic),
		errors.Is(err, frame.ErrUnsupportedVersion),
		errors.Is(err, frame.ErrBodyTooLarge):
		return err
	case errors.Is(err, net.ErrClosed):
		return &ConnectError{Kind: KindIOError, Op: op, Addr: addr, Err: ErrClosed}
	case isTimeout(err):
		return &ConnectError{Kind: KindTimeout, Op: op, Addr: addr, Err: err}
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return &ConnectError{Kind: KindIOError, Op: op, Addr: addr, Err: fmt.Errorf("%w: %w", ErrConnectionClosed, err)}
	default:
		return &ConnectError{Kind: KindIOError, Op: op, Addr: addr, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
