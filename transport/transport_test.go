// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/testutil"
)

// echoHandler returns every envelope it receives until the stream
// ends.
func echoHandler(ctx context.Context, conn MessageConn) {
	defer conn.Close()
	for {
		envelope, err := conn.Receive()
		if err != nil {
			return
		}
		if err := conn.Send(envelope); err != nil {
			return
		}
	}
}

// exchange sends a run of add_point messages and checks they come
// back in order.
func exchange(t *testing.T, conn MessageConn) {
	t.Helper()
	line := ref.MustParseObjectID("line-1")
	const count = 50
	for i := 0; i < count; i++ {
		if err := Send(conn, &protocol.AddPoint{Line: line, Point: geometry.V(float64(i), 0, 0)}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	for i := 0; i < count; i++ {
		envelope, err := conn.Receive()
		if err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		message, err := envelope.Decode()
		if err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		point, ok := message.(*protocol.AddPoint)
		if !ok {
			t.Fatalf("message %d is %T, want *protocol.AddPoint", i, message)
		}
		if point.Point.X != float64(i) {
			t.Errorf("message %d has x=%g, out of order", i, point.Point.X)
		}
	}
}

func TestPipe(t *testing.T) {
	left, right := Pipe("peer", "authority")
	go echoHandler(context.Background(), right)
	exchange(t, left)

	if got := left.RemoteAddr(); got != "pipe:authority" {
		t.Errorf("RemoteAddr() = %q", got)
	}
	left.Close()
	if err := left.Send(protocol.Envelope{Kind: protocol.KindBake}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestPipeDeliversBeforeClose(t *testing.T) {
	left, right := Pipe("a", "b")
	if err := left.Send(protocol.Envelope{Kind: protocol.KindBake}); err != nil {
		t.Fatal(err)
	}
	left.Close()
	envelope, err := right.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if envelope.Kind != protocol.KindBake {
		t.Errorf("kind = %s", envelope.Kind)
	}
	if _, err := right.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("second Receive = %v, want EOF", err)
	}
}

func serve(t *testing.T, listener Listener) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Serve(ctx, echoHandler) }()
	t.Cleanup(func() {
		cancel()
		listener.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return cancel
}

func TestTCPRoundTrip(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener: %v", err)
	}
	if !strings.Contains(listener.Address(), ":") {
		t.Errorf("Address() = %q, expected host:port", listener.Address())
	}
	serve(t, listener)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&TCPDialer{Timeout: time.Second}).Dial(ctx, listener.Address())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	exchange(t, conn)
}

func TestTCPReceiveAfterRemoteClose(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	accepted := make(chan MessageConn, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Serve(ctx, func(_ context.Context, conn MessageConn) { accepted <- conn })
	defer listener.Close()

	conn, err := (&TCPDialer{}).Dial(ctx, listener.Address())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	server := testutil.RequireReceive(t, accepted, 5*time.Second, "waiting for accepted connection")
	server.Close()

	if _, err := conn.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("Receive after remote close = %v, want EOF", err)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	listener, err := NewWebSocketListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketListener: %v", err)
	}
	if !strings.HasPrefix(listener.Address(), "ws://") || !strings.HasSuffix(listener.Address(), SessionPath) {
		t.Errorf("Address() = %q", listener.Address())
	}
	serve(t, listener)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Retry briefly: Serve starts the HTTP server asynchronously.
	var conn MessageConn
	for attempt := 0; attempt < 50; attempt++ {
		conn, err = (&WebSocketDialer{}).Dial(ctx, listener.Address())
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	exchange(t, conn)
}
