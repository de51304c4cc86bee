package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/danmuck/kvlink/internal/observability"
	"github.com/danmuck/kvlink/internal/protocol/frame"
	"github.com/danmuck/kvlink/internal/protocol/wire"
	"github.com/danmuck/kvlink/internal/transport"
)

// State is the session lifecycle phase.
type State int32

const (
	StateUnopened State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is one connected relationship to a node. Operations are blocking
// request/response round trips; a Session serves one caller at a time and
// answers a concurrent second call with ErrSessionBusy.
type Session struct {
	cfg Config

	mu    sync.Mutex
	state State
	conn  *transport.Conn

	busy   atomic.Bool
	nextID uint64
}

// New returns an unopened session for cfg.
func New(cfg Config) *Session {
	return &Session{cfg: cfg.WithDefaults()}
}

// Start connects to the default host on port; port 0 selects DefaultPort.
func Start(ctx context.Context, port int) (*Session, error) {
	cfg := DefaultConfig()
	if port != 0 {
		cfg.Port = port
	}
	return StartWithConfig(ctx, cfg)
}

// StartWithConfig connects a new session using cfg.
func StartWithConfig(ctx context.Context, cfg Config) (*Session, error) {
	s := New(cfg)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open moves an unopened session to connected. On failure it stays unopened.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnopened {
		return fmt.Errorf("%w: state=%s", ErrAlreadyStarted, s.state)
	}
	conn, err := transport.Open(ctx, s.cfg.Host, s.cfg.Port, s.cfg.Transport)
	if err != nil {
		logs.Warnf("client.Session open addr=%q err=%v", s.Addr(), err)
		return err
	}
	s.conn = conn
	s.state = StateConnected
	s.nextID = uint64(time.Now().UnixNano())
	logs.Infof("client.Session connected addr=%q", s.Addr())
	return nil
}

// Addr is the configured host:port.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Noop sends the zero-operand probe for variant 1..5.
func (s *Session) Noop(ctx context.Context, variant int) error {
	op, err := wire.NoopOp(variant)
	if err != nil {
		return err
	}
	return s.exec(ctx, wire.Request{Op: op}, func(resp wire.Response) error {
		if resp.Status != wire.StatusSuccess {
			return unexpectedStatus(op, resp)
		}
		return nil
	})
}

func (s *Session) Noop1(ctx context.Context) error { return s.Noop(ctx, 1) }
func (s *Session) Noop2(ctx context.Context) error { return s.Noop(ctx, 2) }
func (s *Session) Noop3(ctx context.Context) error { return s.Noop(ctx, 3) }
func (s *Session) Noop4(ctx context.Context) error { return s.Noop(ctx, 4) }
func (s *Session) Noop5(ctx context.Context) error { return s.Noop(ctx, 5) }

// Get returns the value stored under key, or ErrNotFound. The returned slice
// belongs to the caller; the session keeps no reference to it.
func (s *Session) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.exec(ctx, wire.Request{Op: wire.OpGet, Key: key}, func(resp wire.Response) error {
		switch resp.Status {
		case wire.StatusSuccess:
			value = resp.Payload
			return nil
		case wire.StatusNotFound:
			return ErrNotFound
		default:
			return unexpectedStatus(wire.OpGet, resp)
		}
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores value under key.
func (s *Session) Put(ctx context.Context, key, value []byte) error {
	return s.exec(ctx, wire.Request{Op: wire.OpPut, Key: key, Value: value}, func(resp wire.Response) error {
		if resp.Status != wire.StatusSuccess {
			return unexpectedStatus(wire.OpPut, resp)
		}
		return nil
	})
}

// Delete always fails with ErrNotImplemented and never contacts the node.
func (s *Session) Delete(ctx context.Context, key []byte) error {
	observability.RecordSessionOp(wire.OpDelete.String(), "not_implemented", 0)
	return ErrNotImplemented
}

// Stop closes the session. It always succeeds and may be called repeatedly.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected {
		if err := s.conn.Close(); err != nil {
			logs.Debugf("client.Session stop addr=%q close err=%v", s.Addr(), err)
		}
		logs.Infof("client.Session disconnected addr=%q", s.Addr())
	}
	s.conn = nil
	s.state = StateClosed
	return nil
}

// exec performs one encode/write/read/decode round trip and hands the decoded
// response to interpret.
func (s *Session) exec(ctx context.Context, req wire.Request, interpret func(wire.Response) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordSessionOp(req.Op.String(), outcome(err), time.Since(start))
	}()

	if !s.busy.CompareAndSwap(false, true) {
		return ErrSessionBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	if err := wire.Validate(req, s.cfg.Limits); err != nil {
		return err
	}

	body := wire.EncodeRequest(req)
	if limit := s.cfg.Transport.Limits.MaxBodyBytes; limit > 0 && uint64(len(body)) > uint64(limit) {
		return fmt.Errorf("%w: request body %d > frame limit %d: %w", wire.ErrOperandTooLarge, len(body), limit, frame.ErrBodyTooLarge)
	}
	out := frame.Frame{
		Header: frame.Header{Op: uint8(req.Op), MessageID: id},
		Body:   body,
	}
	if err := conn.WriteFrame(ctx, out); err != nil {
		var ce *transport.ConnectError
		if errors.As(err, &ce) {
			s.abort(conn, err)
		}
		return err
	}

	in, err := conn.ReadFrame(ctx)
	if err != nil {
		var ce *transport.ConnectError
		if errors.As(err, &ce) {
			s.abort(conn, err)
			return err
		}
		perr := &ProtocolError{Op: req.Op, Kind: ProtocolDesync, Err: err}
		s.abort(conn, perr)
		return perr
	}
	if err := checkCorrelation(req.Op, id, in.Header); err != nil {
		s.abort(conn, err)
		return err
	}

	resp, err := wire.DecodeResponse(req.Op, in.Body)
	if err != nil {
		return decodeFailure(req.Op, err)
	}
	logs.Debugf("client.Session %s id=%d status=%s", req.Op, id, resp.Status)
	return interpret(resp)
}

func checkCorrelation(op wire.Op, id uint64, h frame.Header) error {
	switch {
	case !h.IsResponse():
		return &ProtocolError{Op: op, Kind: ProtocolDesync, Err: fmt.Errorf("%w: frame is not a response", ErrDesync)}
	case h.MessageID != id:
		return &ProtocolError{Op: op, Kind: ProtocolDesync, Err: fmt.Errorf("%w: message_id=%d want %d", ErrDesync, h.MessageID, id)}
	case wire.Op(h.Op) != op:
		return &ProtocolError{Op: op, Kind: ProtocolUnexpectedTag, Err: fmt.Errorf("%w: op=%s want %s", ErrDesync, wire.Op(h.Op), op)}
	}
	return nil
}

// abort closes the stream after a failure that leaves it untrustworthy.
func (s *Session) abort(conn *transport.Conn, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn || s.state != StateConnected {
		return
	}
	_ = conn.Close()
	s.conn = nil
	s.state = StateClosed
	logs.Warnf("client.Session closed addr=%q err=%v", s.Addr(), cause)
}

func outcome(err error) string {
	var pe *ProtocolError
	var ce *transport.ConnectError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrSessionBusy):
		return "busy"
	case errors.As(err, &ce):
		return "connect_error"
	case errors.As(err, &pe):
		return "protocol_error"
	default:
		return "error"
	}
}
