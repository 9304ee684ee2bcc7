// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts peers over plain TCP. It requires direct
// reachability between peer and authority; for NAT traversal use
// WebRTC.
type TCPListener struct {
	listener net.Listener

	closeOnce sync.Once
	closed    chan struct{}
}

// NewTCPListener listens on address (e.g. ":7400" or
// "192.168.1.10:7400"). Use ":0" for a random available port.
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener, closed: make(chan struct{})}, nil
}

// Serve accepts TCP connections until ctx is cancelled or Close is
// called.
func (l *TCPListener) Serve(ctx context.Context, handler Handler) error {
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-l.closed:
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closed:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			// Strokes are many small messages; latency matters more
			// than packet count.
			tcp.SetNoDelay(true)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler(ctx, NewStreamConn(conn))
		}()
	}
}

// Address returns the TCP address in "host:port" format.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close stops accepting connections.
func (l *TCPListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.listener.Close()
	})
	return err
}

// TCPDialer opens TCP connections to an authority.
type TCPDialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// Dial connects to address (host:port).
func (d *TCPDialer) Dial(ctx context.Context, address string) (MessageConn, error) {
	conn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn), nil
}
