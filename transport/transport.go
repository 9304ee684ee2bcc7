// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"

	"github.com/bureau-foundation/holdfast/lib/protocol"
)

// ErrClosed is returned by operations on a closed MessageConn.
var ErrClosed = errors.New("connection closed")

// MessageConn is an ordered, reliable stream of envelopes. Send is
// safe for concurrent use; Receive must be called from one goroutine.
type MessageConn interface {
	// Send writes one envelope.
	Send(envelope protocol.Envelope) error

	// Receive blocks until the next envelope arrives. It returns
	// io.EOF or ErrClosed when the stream ends.
	Receive() (protocol.Envelope, error)

	// Close ends the stream in both directions. A blocked Receive on
	// either end returns.
	Close() error

	// RemoteAddr identifies the other end, for logs.
	RemoteAddr() string
}

// Handler serves one inbound connection. It owns conn and must close
// it before returning.
type Handler func(ctx context.Context, conn MessageConn)

// Listener accepts inbound connections.
type Listener interface {
	// Serve accepts connections and runs handler for each on its own
	// goroutine. Blocks until ctx is cancelled or Close is called.
	// Returns nil on clean shutdown.
	Serve(ctx context.Context, handler Handler) error

	// Address returns the address peers dial. The format is
	// transport-specific ("host:port" for TCP, a URL for WebSocket).
	Address() string

	// Close shuts down the listener. Connections already handed to
	// the handler are not affected.
	Close() error
}

// Dialer opens connections to an authority.
type Dialer interface {
	Dial(ctx context.Context, address string) (MessageConn, error)
}

// Send encodes message and writes it to conn.
func Send(conn MessageConn, message protocol.Message) error {
	envelope, err := protocol.Encode(message)
	if err != nil {
		return err
	}
	return conn.Send(envelope)
}
