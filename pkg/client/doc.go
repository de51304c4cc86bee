// Package client is the session API for a single key/value node.
//
// A Session owns one framed TCP stream and moves through
// unopened -> connected -> closed. Every operation is one blocking
// request/response round trip with no pipelining and no retry:
//
//	s, err := client.Start(ctx, client.DefaultPort)
//	if err != nil { ... }
//	defer s.Stop()
//	if err := s.Put(ctx, []byte("key1"), []byte("value1")); err != nil { ... }
//	v, err := s.Get(ctx, []byte("key1"))
//	switch {
//	case errors.Is(err, client.ErrNotFound):
//	case err != nil:
//	}
//
// Values returned by Get are fresh allocations owned by the caller.
//
// Failures are distinguishable: *ConnectError for transport problems (the
// session is closed afterwards), *ProtocolError for malformed replies,
// ErrNotConnected outside the connected state, and ErrNotImplemented from
// Delete, which never contacts the node.
//
// Sessions are not shared between goroutines; use one per caller or a Pool.
package client
