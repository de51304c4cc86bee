package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	logs "github.com/danmuck/kvlink/internal/logging"
	"github.com/danmuck/kvlink/internal/protocol/frame"
)

// Conn is one framed byte stream to a single node. It is not safe for
// concurrent readers or concurrent writers.
type Conn struct {
	conn net.Conn
	addr string
	cfg  Config

	closeOnce sync.Once
	closeErr  error
}

// Open dials host:port and returns a ready stream.
func Open(ctx context.Context, host string, port int, cfg Config) (*Conn, error) {
	cfg = cfg.WithDefaults()
	host = strings.TrimSpace(host)
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if port <= 0 || port > 65535 {
		return nil, &ConnectError{Kind: KindResolutionFailed, Op: "dial", Addr: addr, Err: ErrInvalidPort}
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: cfg.KeepAlive}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDial(addr, err)
	}
	if cfg.TLS == nil {
		logs.Debugf("transport.Open connected addr=%q", addr)
		return New(rawConn, cfg), nil
	}

	tlsCfg := cfg.TLS.Clone()
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = host
	}
	tlsConn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, classifyDial(addr, fmt.Errorf("tls handshake: %w", err))
	}
	logs.Debugf("transport.Open connected addr=%q tls=true", addr)
	return New(tlsConn, cfg), nil
}

// New wraps an established connection.
func New(conn net.Conn, cfg Config) *Conn {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Conn{conn: conn, addr: addr, cfg: cfg.WithDefaults()}
}

func (c *Conn) RemoteAddr() string {
	return c.addr
}

// WriteFrame writes the complete frame or fails. A failed write may leave a
// partial frame on the wire, so the stream must not be reused afterwards.
func (c *Conn) WriteFrame(ctx context.Context, f frame.Frame) error {
	buf, err := frame.AppendFrame(make([]byte, 0, frame.HeaderLen+len(f.Body)), f, c.cfg.Limits)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		return classifyIO("write", c.addr, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer stop()

	if err := frame.WriteFull(c.conn, buf); err != nil {
		return classifyIO("write", c.addr, ctxErr(ctx, err))
	}
	return nil
}

// ReadFrame blocks until one complete frame has arrived.
func (c *Conn) ReadFrame(ctx context.Context) (frame.Frame, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		return frame.Frame{}, classifyIO("read", c.addr, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	f, err := frame.ReadFrame(c.conn, c.cfg.Limits)
	if err != nil {
		return frame.Frame{}, classifyIO("read", c.addr, ctxErr(ctx, err))
	}
	return f, nil
}

// Close releases the stream. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		logs.Debugf("transport.Close addr=%q err=%v", c.addr, c.closeErr)
	})
	return c.closeErr
}

var aLongTimeAgo = time.Unix(1, 0)

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// ctxErr prefers the context's reason when the context ended the call.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && isTimeout(err) {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}
