package client

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/danmuck/kvlink/internal/node"
	"github.com/danmuck/kvlink/internal/protocol/frame"
)

// startNode runs an in-memory node on a loopback port.
func startNode(t *testing.T) (*node.Server, Config) {
	t.Helper()
	srv, err := node.NewServer(node.Config{ID: "client-test", ListenAddr: "127.0.0.1:0"}, nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("listen node: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv, configFor(t, ln.Addr())
}

func configFor(t *testing.T, addr net.Addr) Config {
	t.Helper()
	host, portRaw, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return cfg
}

// fakePeer accepts one connection and answers every request frame with the
// raw bytes returned by reply. A nil reply closes the connection.
func fakePeer(t *testing.T, reply func(in frame.Frame) []byte) Config {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			in, err := frame.ReadFrame(conn, frame.DefaultLimits())
			if err != nil {
				return
			}
			out := reply(in)
			if out == nil {
				return
			}
			if err := frame.WriteFull(conn, out); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return configFor(t, ln.Addr())
}

// respond builds a correlated response frame carrying body.
func respond(in frame.Frame, body []byte) []byte {
	out, _ := frame.AppendFrame(nil, frame.Frame{
		Header: frame.Header{Op: in.Header.Op, Flags: frame.FlagIsResponse, MessageID: in.Header.MessageID},
		Body:   body,
	}, frame.DefaultLimits())
	return out
}
