package node

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/danmuck/kvlink/internal/observability"
	"github.com/danmuck/kvlink/internal/protocol/frame"
	"github.com/danmuck/kvlink/internal/protocol/wire"
	"github.com/danmuck/kvlink/internal/transport"
)

var ErrNodeIDRequired = errors.New("node: id required")

// Config defines the node's identity and listeners.
type Config struct {
	ID         string
	ListenAddr string
	AdminAddr  string
	// AdminToken, when set, is required as a bearer token on /stats, /keys, and /metrics.
	AdminToken string
	// CorsOrigins enables CORS on the admin surface for these browser origins.
	CorsOrigins []string
	// IdleTimeout closes client connections that send nothing for this long. Zero disables it.
	IdleTimeout time.Duration
	Limits      frame.Limits
	TLS         *tls.Config
}

func DefaultConfig() Config {
	return Config{
		ID:          "kvnode",
		ListenAddr:  "127.0.0.1:9160",
		AdminAddr:   "127.0.0.1:9161",
		IdleTimeout: 5 * time.Minute,
		Limits:      frame.DefaultLimits(),
	}
}

// Server answers the key/value protocol from an in-memory Store.
type Server struct {
	cfg     Config
	store   *Store
	started time.Time

	ops         [wire.OpDelete + 1]atomic.Uint64
	badRequests atomic.Uint64
	active      atomic.Int64
	serving     atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(cfg Config, store *Store) (*Server, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, ErrNodeIDRequired
	}
	if cfg.Limits.MaxBodyBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	if store == nil {
		store = NewStore()
	}
	observability.RegisterMetrics()
	return &Server{
		cfg:     cfg,
		store:   store,
		started: time.Now(),
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

func (s *Server) ID() string {
	return s.cfg.ID
}

func (s *Server) Store() *Store {
	return s.store
}

// Listen opens the protocol listener, TLS when configured.
func (s *Server) Listen() (net.Listener, error) {
	if s.cfg.TLS == nil {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, s.cfg.TLS)
}

// Serve accepts client connections on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.serving.Store(true)
	defer s.serving.Store(false)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = ln.Close()
		case <-done:
		}
	}()

	logs.Infof("node.Serve id=%q addr=%q", s.cfg.ID, ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, raw net.Conn) {
	conn := transport.New(raw, transport.Config{ReadTimeout: s.cfg.IdleTimeout, Limits: s.cfg.Limits})
	defer s.untrackConn(raw)
	defer conn.Close()

	remote := conn.RemoteAddr()
	active := s.active.Add(1)
	observability.NodeConnectionOpened(s.cfg.ID)
	logs.Debugf("node.session client connected remote=%q active_clients=%d", remote, active)
	defer func() {
		remaining := s.active.Add(-1)
		observability.NodeConnectionClosed(s.cfg.ID)
		logs.Debugf("node.session client disconnected remote=%q active_clients=%d", remote, remaining)
	}()

	for {
		in, err := conn.ReadFrame(ctx)
		if err != nil {
			if !errors.Is(err, transport.ErrConnectionClosed) && ctx.Err() == nil {
				logs.Warnf("node.handleConn remote=%q read err=%v", remote, err)
			}
			return
		}
		out := frame.Frame{
			Header: frame.Header{
				Op:        in.Header.Op,
				Flags:     frame.FlagIsResponse,
				MessageID: in.Header.MessageID,
			},
			Body: wire.EncodeResponse(s.dispatch(in)),
		}
		if err := conn.WriteFrame(ctx, out); err != nil {
			logs.Warnf("node.handleConn remote=%q write err=%v", remote, err)
			return
		}
	}
}

func (s *Server) dispatch(in frame.Frame) wire.Response {
	if in.Header.IsResponse() {
		return s.reject(wire.Op(in.Header.Op), "response frame sent to node")
	}
	if op := wire.Op(in.Header.Op); !op.Valid() {
		observability.RecordNodeRequest(s.cfg.ID, opLabel(op), wire.StatusUnsupported.String())
		return detail(wire.StatusUnsupported, op.String()+" unsupported")
	}
	req, err := wire.DecodeRequest(in.Body)
	if err != nil {
		return s.reject(wire.Op(in.Header.Op), err.Error())
	}
	if uint8(req.Op) != in.Header.Op {
		return s.reject(req.Op, "header op does not match body op")
	}
	return s.Handle(req)
}

// Handle applies one decoded request to the store.
func (s *Server) Handle(req wire.Request) wire.Response {
	if req.Op.Valid() {
		s.ops[req.Op].Add(1)
	}
	var resp wire.Response
	switch {
	case req.Op.IsNoop():
		resp = wire.Response{Status: wire.StatusSuccess}
	case req.Op == wire.OpGet:
		if v, ok := s.store.Get(req.Key); ok {
			resp = wire.Response{Status: wire.StatusSuccess, Present: true, Payload: v}
		} else {
			resp = wire.Response{Status: wire.StatusNotFound}
		}
	case req.Op == wire.OpPut:
		s.store.Put(req.Key, req.Value)
		resp = wire.Response{Status: wire.StatusSuccess}
	default:
		resp = detail(wire.StatusUnsupported, req.Op.String()+" unsupported")
	}
	observability.RecordNodeRequest(s.cfg.ID, req.Op.String(), resp.Status.String())
	return resp
}

func (s *Server) reject(op wire.Op, reason string) wire.Response {
	s.badRequests.Add(1)
	observability.RecordNodeRequest(s.cfg.ID, opLabel(op), wire.StatusBadRequest.String())
	logs.Debugf("node.dispatch bad request op=%s reason=%q", op, reason)
	return detail(wire.StatusBadRequest, reason)
}

// opLabel keeps metric cardinality bounded for garbage tags.
func opLabel(op wire.Op) string {
	if !op.Valid() {
		return "unknown"
	}
	return op.String()
}

func detail(status wire.Status, msg string) wire.Response {
	return wire.Response{Status: status, Present: true, Payload: []byte(msg)}
}

// Stats is a snapshot of node activity.
type Stats struct {
	ID          string            `json:"id"`
	Uptime      string            `json:"uptime"`
	Keys        int               `json:"keys"`
	Connections int64             `json:"connections"`
	BadRequests uint64            `json:"bad_requests"`
	Ops         map[string]uint64 `json:"ops"`
}

func (s *Server) Stats() Stats {
	ops := make(map[string]uint64, len(s.ops))
	for i := range s.ops {
		op := wire.Op(i)
		if !op.Valid() {
			continue
		}
		ops[op.String()] = s.ops[i].Load()
	}
	return Stats{
		ID:          s.cfg.ID,
		Uptime:      time.Since(s.started).String(),
		Keys:        s.store.Len(),
		Connections: s.active.Load(),
		BadRequests: s.badRequests.Load(),
		Ops:         ops,
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
