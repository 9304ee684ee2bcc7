// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/lib/socket"
	"github.com/bureau-foundation/holdfast/lib/version"
	"github.com/bureau-foundation/holdfast/transport"
)

// DefaultEventBuffer is the event channel capacity when
// Options.EventBuffer is zero.
const DefaultEventBuffer = 256

var (
	// ErrRejected is returned by Connect when the authority refuses the
	// hello. The error also wraps a *protocol.Denial carrying the
	// reason.
	ErrRejected = errors.New("authority rejected hello")

	// ErrClosed is returned by queries and predicted writes after the
	// connection ended.
	ErrClosed = errors.New("peer client closed")
)

// Options configure a Client.
type Options struct {
	Peer ref.PeerID

	// Token is the join token, required when the authority has a join
	// secret.
	Token string

	Clock       clock.Clock
	Logger      *slog.Logger
	EventBuffer int
}

// Client is one peer's connection to the authority and its mirror of
// the world.
type Client struct {
	self   ref.PeerID
	conn   transport.MessageConn
	clock  clock.Clock
	logger *slog.Logger
	mirror *replica.Mirror
	digest snapshot.Digest

	objects *object.Table

	// mu serializes mirror mutations between the reader goroutine and
	// predicting callers, and guards lines and sockets.
	mu      sync.Mutex
	lines   map[ref.ObjectID]*line.Line
	sockets map[ref.SocketID]socket.State

	events chan Event
	done   chan struct{}
	err    error
}

// Connect performs the handshake on conn and starts the reader. The
// client owns conn from here on, whether or not Connect succeeds.
// Cancelling ctx aborts the handshake; it has no effect afterwards.
func Connect(ctx context.Context, conn transport.MessageConn, options Options) (*Client, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.EventBuffer <= 0 {
		options.EventBuffer = DefaultEventBuffer
	}

	c := &Client{
		self:    options.Peer,
		conn:    conn,
		clock:   options.Clock,
		logger:  options.Logger.With("peer", options.Peer),
		mirror:  replica.NewMirror(options.Peer),
		objects: object.NewTable(),
		lines:   make(map[ref.ObjectID]*line.Line),
		sockets: make(map[ref.SocketID]socket.State),
		events:  make(chan Event, options.EventBuffer),
		done:    make(chan struct{}),
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	err := c.handshake(options.Token)
	if !stop() {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s: %w", conn.RemoteAddr(), ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.logger.Info("joined session",
		"authority", conn.RemoteAddr(),
		"objects", c.objects.Len(),
		"digest", c.digest.Short(),
	)
	go c.read()
	return c, nil
}

// Dial opens a connection with dialer and calls Connect.
func Dial(ctx context.Context, dialer transport.Dialer, address string, options Options) (*Client, error) {
	conn, err := dialer.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, conn, options)
}

func (c *Client) handshake(token string) error {
	if err := transport.Send(c.conn, &protocol.Hello{
		Peer:     c.self,
		Protocol: version.Protocol,
		Token:    token,
	}); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}

	envelope, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("waiting for welcome: %w", err)
	}
	message, err := envelope.Decode()
	if err != nil {
		return err
	}
	switch m := message.(type) {
	case *protocol.Reject:
		return fmt.Errorf("%w: %w", ErrRejected, protocol.Deny(m.Reason, m.Detail))
	case *protocol.Welcome:
		return c.restore(m.Snapshot)
	default:
		return fmt.Errorf("expected welcome, got %s", envelope.Kind)
	}
}

// restore seeds the mirror from the welcome snapshot.
func (c *Client) restore(encoded []byte) error {
	world, info, err := snapshot.Decode(encoded)
	if err != nil {
		return fmt.Errorf("welcome snapshot: %w", err)
	}
	c.digest = info.Digest

	for _, state := range world.Objects {
		if err := c.addObject(state); err != nil {
			return fmt.Errorf("welcome snapshot: %w", err)
		}
	}
	for _, state := range world.Sockets {
		c.sockets[state.ID] = state
	}
	return nil
}

// addObject rebuilds an object from its full state. Caller holds mu or
// is the only goroutine running.
func (c *Client) addObject(state protocol.ObjectState) error {
	if state.Kind == string(object.KindLine) {
		drawn, err := line.FromState(state)
		if err != nil {
			return err
		}
		if err := c.objects.Add(drawn.Object); err != nil {
			return err
		}
		c.lines[drawn.ID] = drawn
		return nil
	}
	target := object.New(state.ID, object.Kind(state.Kind))
	if err := target.Restore(state); err != nil {
		return err
	}
	return c.objects.Add(target)
}

// Self returns the local peer id.
func (c *Client) Self() ref.PeerID { return c.self }

// WelcomeDigest returns the digest carried by the welcome snapshot.
func (c *Client) WelcomeDigest() snapshot.Digest { return c.digest }

// Events returns the event stream. It is closed when the connection
// ends.
func (c *Client) Events() <-chan Event { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended, or nil if it is still open or
// ended cleanly. Valid after Done is closed.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close disconnects. The authority releases everything this peer
// owned.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Object describes one mirrored object.
func (c *Client) Object(id ref.ObjectID) (object.Describe, bool) {
	target, ok := c.objects.Get(id)
	if !ok {
		return object.Describe{}, false
	}
	return target.Summary(), true
}

// Objects describes every mirrored object in id order.
func (c *Client) Objects() []object.Describe {
	all := c.objects.All()
	described := make([]object.Describe, len(all))
	for index, target := range all {
		described[index] = target.Summary()
	}
	return described
}

// Points returns a copy of a line's points and whether it is baked.
func (c *Client) Points(id ref.ObjectID) ([]geometry.Vec3, bool, error) {
	c.mu.Lock()
	drawn, ok := c.lines[id]
	c.mu.Unlock()
	if !ok {
		return nil, false, fmt.Errorf("%w: line %s", object.ErrNotFound, id)
	}
	return drawn.Points.Items(), drawn.Baked.Get(), nil
}

// Lines returns the ids of every mirrored line in id order.
func (c *Client) Lines() []ref.ObjectID {
	var ids []ref.ObjectID
	for _, target := range c.objects.All() {
		if target.Kind == object.KindLine {
			ids = append(ids, target.ID)
		}
	}
	return ids
}

// Line returns the mirrored line. The returned value is live: its
// fields change as broadcasts arrive.
func (c *Client) Line(id ref.ObjectID) (*line.Line, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	drawn, ok := c.lines[id]
	return drawn, ok
}

// Socket returns a mirrored socket.
func (c *Client) Socket(id ref.SocketID) (socket.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.sockets[id]
	return state, ok
}

// World captures the mirror in snapshot form. Its StateDigest equals
// the authority's once all broadcasts have been applied and no
// prediction is outstanding.
func (c *Client) World() (snapshot.World, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	objects, err := c.objects.States()
	if err != nil {
		return snapshot.World{}, err
	}
	sockets := make([]socket.State, 0, len(c.sockets))
	for _, state := range c.sockets {
		sockets = append(sockets, state)
	}
	slices.SortFunc(sockets, func(a, b socket.State) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return snapshot.World{Taken: c.clock.Now().UnixMilli(), Objects: objects, Sockets: sockets}, nil
}
