// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/lib/version"
	"github.com/bureau-foundation/holdfast/transport"
)

// session is one joined peer. Fields other than conn and outbox are
// owned by the loop goroutine.
type session struct {
	peer    ref.PeerID
	conn    transport.MessageConn
	outbox  chan protocol.Envelope
	limiter *rate.Limiter
	joined  time.Time

	received   uint64
	denied     uint64
	overflowed bool
	closed     bool
}

// admission is the loop's answer to a hello.
type admission struct {
	session *session
	reject  *protocol.Reject
}

// Handle runs one peer connection: handshake, then a read loop feeding
// the authority. It has the transport.Handler signature and returns
// when the connection ends.
func (a *Authority) Handle(ctx context.Context, conn transport.MessageConn) {
	defer conn.Close()
	logger := a.logger.With("remote", conn.RemoteAddr())

	hello, err := a.readHello(conn)
	if err != nil {
		logger.Debug("handshake failed", "error", err)
		return
	}

	var result admission
	if err := a.do(ctx, func() { result = a.admit(hello, conn) }); err != nil {
		return
	}
	if result.reject != nil {
		logger.Info("peer rejected",
			"peer", hello.Peer,
			"reason", result.reject.Reason,
			"detail", result.reject.Detail,
		)
		transport.Send(conn, result.reject)
		return
	}

	joined := result.session
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		a.writeOutbox(joined)
	}()

	a.read(ctx, joined)

	a.enqueue(ctx, func() { a.leave(joined, "connection closed") })
	// The writer exits once the loop closes the outbox. If the loop
	// is gone it never will, so closing the connection unblocks it.
	select {
	case <-writerDone:
	case <-a.stopped:
	case <-ctx.Done():
	}
}

// readHello waits for the first message, which must be a hello.
func (a *Authority) readHello(conn transport.MessageConn) (*protocol.Hello, error) {
	timer := a.clock.AfterFunc(a.options.HandshakeTimeout, func() { conn.Close() })
	defer timer.Stop()

	envelope, err := conn.Receive()
	if err != nil {
		return nil, fmt.Errorf("waiting for hello: %w", err)
	}
	if envelope.Kind != protocol.KindHello {
		transport.Send(conn, &protocol.Reject{
			Reason: protocol.ReasonMalformed,
			Detail: fmt.Sprintf("expected hello, got %s", envelope.Kind),
		})
		return nil, fmt.Errorf("first message was %s", envelope.Kind)
	}
	message, err := envelope.Decode()
	if err != nil {
		transport.Send(conn, &protocol.Reject{Reason: protocol.ReasonMalformed, Detail: err.Error()})
		return nil, err
	}
	return message.(*protocol.Hello), nil
}

// admit decides a hello on the loop. An admitted session is registered
// with the welcome already queued, so no broadcast can overtake it.
func (a *Authority) admit(hello *protocol.Hello, conn transport.MessageConn) admission {
	reject := func(reason protocol.Reason, format string, args ...any) admission {
		return admission{reject: &protocol.Reject{Reason: reason, Detail: fmt.Sprintf(format, args...)}}
	}

	if hello.Peer.IsZero() || hello.Peer.IsAuthority() {
		return reject(protocol.ReasonMalformed, "peer id %q is reserved", hello.Peer)
	}
	if !version.Compatible(hello.Protocol) {
		return reject(protocol.ReasonIncompatible, "protocol %d, authority speaks %d", hello.Protocol, version.Protocol)
	}
	if a.tokens != nil {
		if _, err := a.tokens.Verify(hello.Token, hello.Peer); err != nil {
			return reject(protocol.ReasonUnauthorized, "%v", err)
		}
	}
	if _, exists := a.peers[hello.Peer]; exists {
		return reject(protocol.ReasonDuplicatePeer, "peer %s is already connected", hello.Peer)
	}

	world, err := a.world()
	if err != nil {
		a.logger.Error("capturing world for welcome", "peer", hello.Peer, "error", err)
		return reject(protocol.ReasonInternal, "snapshot unavailable")
	}
	encoded, err := snapshot.Encode(world, a.options.Compression)
	if err != nil {
		a.logger.Error("encoding welcome snapshot", "peer", hello.Peer, "error", err)
		return reject(protocol.ReasonInternal, "snapshot unavailable")
	}
	welcome, err := protocol.Encode(&protocol.Welcome{Peer: hello.Peer, Snapshot: encoded})
	if err != nil {
		return reject(protocol.ReasonInternal, "encoding welcome")
	}

	joined := &session{
		peer:    hello.Peer,
		conn:    conn,
		outbox:  make(chan protocol.Envelope, a.options.OutboxSize),
		limiter: a.newLimiter(),
		joined:  a.clock.Now(),
	}
	joined.outbox <- welcome
	a.peers[hello.Peer] = joined

	a.logger.Info("peer joined",
		"peer", hello.Peer,
		"remote", conn.RemoteAddr(),
		"objects", len(world.Objects),
		"snapshot_bytes", len(encoded),
	)
	return admission{session: joined}
}

// leave removes a session and releases everything its peer owned.
// Leaving twice does nothing.
func (a *Authority) leave(target *session, cause string) {
	if target.closed {
		return
	}
	target.closed = true
	if a.peers[target.peer] == target {
		delete(a.peers, target.peer)
	}
	close(target.outbox)

	released, err := a.registry.ReleaseAll(target.peer)
	if err != nil {
		a.logger.Error("releasing objects of departed peer", "peer", target.peer, "error", err)
	}
	a.logger.Info("peer left",
		"peer", target.peer,
		"cause", cause,
		"released", len(released),
		"received", target.received,
		"denied", target.denied,
	)
}

// writeOutbox drains the outbox onto the connection.
func (a *Authority) writeOutbox(target *session) {
	for envelope := range target.outbox {
		if err := target.conn.Send(envelope); err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				a.logger.Debug("write failed", "peer", target.peer, "error", err)
			}
			target.conn.Close()
			return
		}
	}
}

// read decodes messages and queues them for the loop until the
// connection fails.
func (a *Authority) read(ctx context.Context, target *session) {
	for {
		envelope, err := target.conn.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, transport.ErrClosed) {
				a.logger.Debug("read failed", "peer", target.peer, "error", err)
			}
			return
		}
		message, err := envelope.Decode()
		if err != nil {
			a.logger.Debug("dropping undecodable message", "peer", target.peer, "kind", envelope.Kind, "error", err)
			continue
		}
		if !a.enqueue(ctx, func() { a.dispatch(target, message) }) {
			return
		}
	}
}
