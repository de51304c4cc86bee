package client

import (
	"errors"
	"fmt"

	"github.com/danmuck/kvlink/internal/protocol/wire"
	"github.com/danmuck/kvlink/internal/transport"
)

var (
	ErrNotConnected     = errors.New("client: session not connected")
	ErrNotImplemented   = errors.New("client: operation not implemented")
	ErrNotFound         = errors.New("client: key not found")
	ErrSessionBusy      = errors.New("client: session has an operation in flight")
	ErrAlreadyStarted   = errors.New("client: session already started")
	ErrUnexpectedStatus = errors.New("client: unexpected status")
	ErrDesync           = errors.New("client: response does not match request")
	ErrPoolExhausted    = errors.New("client: pool exhausted")
	ErrPoolClosed       = errors.New("client: pool closed")
)

// ConnectError is the transport failure type surfaced by every operation.
type ConnectError = transport.ConnectError

// ConnectKind classifies a ConnectError.
type ConnectKind = transport.ConnectKind

const (
	ConnectIOError          = transport.KindIOError
	ConnectRefused          = transport.KindRefused
	ConnectTimeout          = transport.KindTimeout
	ConnectResolutionFailed = transport.KindResolutionFailed
)

// ErrConnectionClosed is wrapped by a ConnectError when the node hangs up mid-exchange.
var ErrConnectionClosed = transport.ErrConnectionClosed

// IsConnectKind reports whether err is a ConnectError of kind.
func IsConnectKind(err error, kind ConnectKind) bool {
	return transport.IsKind(err, kind)
}

// ProtocolKind classifies a ProtocolError.
type ProtocolKind int

const (
	ProtocolUnexpectedStatus ProtocolKind = iota
	ProtocolTruncated
	ProtocolCorruptLength
	ProtocolInconsistentPayload
	ProtocolUnexpectedTag
	// ProtocolDesync means the stream can no longer be trusted; the session is closed.
	ProtocolDesync
)

func (k ProtocolKind) String() string {
	switch k {
	case ProtocolUnexpectedStatus:
		return "unexpected_status"
	case ProtocolTruncated:
		return "truncated"
	case ProtocolCorruptLength:
		return "corrupt_length"
	case ProtocolInconsistentPayload:
		return "inconsistent_payload"
	case ProtocolUnexpectedTag:
		return "unexpected_tag"
	case ProtocolDesync:
		return "desync"
	default:
		return fmt.Sprintf("protocol_kind(%d)", int(k))
	}
}

// ProtocolError reports a peer that answered, but not in the shape the
// requested operation guarantees.
type ProtocolError struct {
	Op     wire.Op
	Kind   ProtocolKind
	Status wire.Status
	// Detail is the diagnostic payload an error-family status may carry.
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("client: %s: %s", e.Op, e.Kind)
	if e.Kind == ProtocolUnexpectedStatus {
		msg += fmt.Sprintf(" status=%s", e.Status)
	}
	if e.Detail != "" {
		msg += fmt.Sprintf(" detail=%q", e.Detail)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolKind reports whether err is a ProtocolError of kind.
func IsProtocolKind(err error, kind ProtocolKind) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Kind == kind
}

func decodeFailure(op wire.Op, err error) *ProtocolError {
	kind := ProtocolTruncated
	switch {
	case errors.Is(err, wire.ErrCorruptLength):
		kind = ProtocolCorruptLength
	case errors.Is(err, wire.ErrInconsistentPayload):
		kind = ProtocolInconsistentPayload
	case errors.Is(err, wire.ErrUnexpectedTag):
		kind = ProtocolUnexpectedTag
	}
	return &ProtocolError{Op: op, Kind: kind, Err: err}
}

func unexpectedStatus(op wire.Op, resp wire.Response) *ProtocolError {
	return &ProtocolError{
		Op:     op,
		Kind:   ProtocolUnexpectedStatus,
		Status: resp.Status,
		Detail: string(resp.Payload),
		Err:    ErrUnexpectedStatus,
	}
}
