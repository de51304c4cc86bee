package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/danmuck/kvlink/internal/protocol/frame"
	"github.com/danmuck/kvlink/internal/testutil/testlog"
	"github.com/danmuck/kvlink/internal/testutil/tlstest"
)

func listen(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	host, portRaw, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return ln, host, port
}

// serveOnce accepts one connection and hands it to fn.
func serveOnce(ln net.Listener, fn func(net.Conn)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return done
}

func TestOpenWriteReadRoundTrip(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	done := serveOnce(ln, func(conn net.Conn) {
		f, err := frame.ReadFrame(conn, frame.DefaultLimits())
		if err != nil {
			return
		}
		f.Header.Flags |= frame.FlagIsResponse
		_ = frame.WriteFrame(conn, f, frame.DefaultLimits())
	})

	ctx := context.Background()
	c, err := Open(ctx, host, port, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	in := frame.Frame{Header: frame.Header{Op: 6, MessageID: 7}, Body: []byte("payload")}
	if err := c.WriteFrame(ctx, in); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := c.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !out.Header.IsResponse() || out.Header.MessageID != 7 || string(out.Body) != "payload" {
		t.Fatalf("unexpected echo: %+v body=%q", out.Header, out.Body)
	}
	<-done
}

func TestOpenRefused(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	_ = ln.Close()

	_, err := Open(context.Background(), host, port, DefaultConfig())
	if !IsKind(err, KindRefused) {
		t.Fatalf("expected refused, got %v", err)
	}
}

func TestOpenInvalidPort(t *testing.T) {
	testlog.Start(t)
	_, err := Open(context.Background(), "127.0.0.1", 70000, DefaultConfig())
	if !IsKind(err, KindResolutionFailed) || !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected resolution failure for invalid port, got %v", err)
	}
}

func TestOpenResolutionFailed(t *testing.T) {
	testlog.Start(t)
	_, err := Open(context.Background(), "kvlink-node.invalid", 9160, DefaultConfig())
	if !IsKind(err, KindResolutionFailed) {
		t.Fatalf("expected resolution failure, got %v", err)
	}
}

func TestReadFramePeerClosesMidFrame(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	done := serveOnce(ln, func(conn net.Conn) {
		if _, err := frame.ReadFrame(conn, frame.DefaultLimits()); err != nil {
			return
		}
		h := frame.EncodeHeader(frame.Header{Magic: frame.Magic, Version: frame.Version, BodyLen: 64})
		_, _ = conn.Write(append(h, 1, 2, 3))
	})

	ctx := context.Background()
	c, err := Open(ctx, host, port, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	if err := c.WriteFrame(ctx, frame.Frame{Header: frame.Header{Op: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	<-done
	_, err = c.ReadFrame(ctx)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
	if !IsKind(err, KindIOError) {
		t.Fatalf("expected io error kind, got %v", err)
	}
}

func TestReadFramePeerClosesBeforeReply(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	done := serveOnce(ln, func(conn net.Conn) {})

	ctx := context.Background()
	c, err := Open(ctx, host, port, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	<-done
	if _, err := c.ReadFrame(ctx); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestReadFrameTimeout(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	release := make(chan struct{})
	done := serveOnce(ln, func(conn net.Conn) { <-release })
	defer func() {
		close(release)
		<-done
	}()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 30 * time.Millisecond
	c, err := Open(context.Background(), host, port, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	_, err = c.ReadFrame(context.Background())
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected net.Error timeout, got %v", err)
	}
}

func TestReadFrameContextCanceled(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	release := make(chan struct{})
	done := serveOnce(ln, func(conn net.Conn) { <-release })
	defer func() {
		close(release)
		<-done
	}()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 0
	c, err := Open(context.Background(), host, port, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = c.ReadFrame(ctx)
	if !IsKind(err, KindTimeout) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled read classified as timeout, got %v", err)
	}
}

func TestReadFrameInvalidMagicPassesThrough(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	done := serveOnce(ln, func(conn net.Conn) {
		_, _ = conn.Write(frame.EncodeHeader(frame.Header{Magic: 1, Version: frame.Version}))
	})

	c, err := Open(context.Background(), host, port, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	<-done
	_, err = c.ReadFrame(context.Background())
	if !errors.Is(err, frame.ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		t.Fatalf("envelope error should not be a ConnectError: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	testlog.Start(t)
	ln, host, port := listen(t)
	done := serveOnce(ln, func(conn net.Conn) {})

	c, err := Open(context.Background(), host, port, DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.WriteFrame(context.Background(), frame.Frame{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	<-done
}

func TestOpenTLS(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t)
	raw, host, port := listen(t)
	ln := tls.NewListener(raw, ca.ServerConfig(t))
	done := serveOnce(ln, func(conn net.Conn) {
		f, err := frame.ReadFrame(conn, frame.DefaultLimits())
		if err != nil {
			return
		}
		f.Header.Flags |= frame.FlagIsResponse
		_ = frame.WriteFrame(conn, f, frame.DefaultLimits())
	})

	cfg := DefaultConfig()
	cfg.TLS = ca.ClientConfig()
	ctx := context.Background()
	c, err := Open(ctx, host, port, cfg)
	if err != nil {
		t.Fatalf("open tls: %v", err)
	}
	defer c.Close()
	if err := c.WriteFrame(ctx, frame.Frame{Header: frame.Header{Op: 2, MessageID: 3}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := c.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header.Op != 2 || out.Header.MessageID != 3 {
		t.Fatalf("unexpected tls echo: %+v", out.Header)
	}
	<-done
}
