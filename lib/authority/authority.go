// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/jointoken"
	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ownership"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/lib/socket"
)

// ErrStopped is returned by queries made after Run has returned.
var ErrStopped = errors.New("authority stopped")

const (
	DefaultRateLimit        = 120
	DefaultRateBurst        = 240
	DefaultOutboxSize       = 1024
	DefaultHandshakeTimeout = 10 * time.Second

	// queueSize is the depth of the loop's inbound queue. Connection
	// readers block when it is full, which back-pressures peers.
	queueSize = 4096
)

// Options configure an Authority. Zero values select the defaults.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// RateLimit and RateBurst shape each peer's token bucket for
	// mutation messages.
	RateLimit float64
	RateBurst int

	// OutboxSize is the per-peer outbound queue depth.
	OutboxSize int

	// HandshakeTimeout bounds the wait for a connection's hello.
	HandshakeTimeout time.Duration

	// Compression is applied to welcome snapshots.
	Compression snapshot.Compression

	// JoinSecret, when set, requires every hello to carry a join token
	// signed with it.
	JoinSecret []byte

	// MaxPoints and Baker configure the line service.
	MaxPoints int
	Baker     geometry.Baker
}

// Authority arbitrates a session. Create with New, seed with Seed,
// then call Run and hand connections to Handle.
type Authority struct {
	clock   clock.Clock
	logger  *slog.Logger
	options Options
	tokens  *jointoken.Signer

	objects  *object.Table
	channel  *replica.Channel
	registry *ownership.Registry
	lines    *line.Service
	sockets  *socket.Manager

	// queue carries work for the loop goroutine in arrival order.
	queue   chan func()
	stopped chan struct{}
	started time.Time

	// Loop-owned state.
	peers    map[ref.PeerID]*session
	overflow []*session
}

// New builds an Authority with an empty world.
func New(options Options) (*Authority, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.RateLimit <= 0 {
		options.RateLimit = DefaultRateLimit
	}
	if options.RateBurst <= 0 {
		options.RateBurst = DefaultRateBurst
	}
	if options.OutboxSize <= 0 {
		options.OutboxSize = DefaultOutboxSize
	}
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}

	a := &Authority{
		clock:   options.Clock,
		logger:  options.Logger,
		options: options,
		objects: object.NewTable(),
		queue:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
		peers:   make(map[ref.PeerID]*session),
	}
	if len(options.JoinSecret) > 0 {
		signer, err := jointoken.NewSigner(options.JoinSecret, options.Clock)
		if err != nil {
			return nil, fmt.Errorf("join secret: %w", err)
		}
		a.tokens = signer
	}

	a.channel = replica.NewChannel(a, a.logger)
	a.registry = ownership.NewRegistry(a.objects, a.channel, a.logger)
	a.lines = line.NewService(a.objects, a.registry, a.channel, line.Options{
		Baker:     options.Baker,
		MaxPoints: options.MaxPoints,
	}, a.logger)
	a.sockets = socket.NewManager(a.objects, a.registry, a.channel, a.destroy, a.logger)
	return a, nil
}

// Seed adds the configured objects and sockets. It must be called
// before Run.
func (a *Authority) Seed(world config.WorldConfig) error {
	for _, entry := range world.Objects {
		id, err := ref.ParseObjectID(entry.ID)
		if err != nil {
			return err
		}
		target := object.New(id, object.KindObject)
		target.Pose.Set(geometry.At(geometry.V(entry.Position[0], entry.Position[1], entry.Position[2])))
		target.Kinematic.Set(entry.Kinematic)
		if entry.Retrievable != nil {
			target.Retrievable.Set(*entry.Retrievable)
		}
		if err := a.objects.Add(target); err != nil {
			return err
		}
		a.registry.Configure(id, ownership.Options{MultiHolder: entry.MultiHolder})
	}
	for _, entry := range world.Sockets {
		id, err := ref.ParseSocketID(entry.ID)
		if err != nil {
			return err
		}
		pose := geometry.At(geometry.V(entry.Position[0], entry.Position[1], entry.Position[2]))
		if err := a.sockets.Add(id, pose, entry.Policy); err != nil {
			return err
		}
	}
	a.logger.Info("world seeded", "objects", len(world.Objects), "sockets", len(world.Sockets))
	return nil
}

// Run executes queued work until ctx is cancelled. On return every
// peer connection is closed.
func (a *Authority) Run(ctx context.Context) error {
	a.started = a.clock.Now()
	defer close(a.stopped)
	defer a.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case work := <-a.queue:
			work()
			a.reap()
		}
	}
}

// enqueue hands work to the loop. It reports false if the authority
// stopped first.
func (a *Authority) enqueue(ctx context.Context, work func()) bool {
	select {
	case a.queue <- work:
		return true
	case <-ctx.Done():
		return false
	case <-a.stopped:
		return false
	}
}

// do runs work on the loop and waits for it to finish.
func (a *Authority) do(ctx context.Context, work func()) error {
	done := make(chan struct{})
	if !a.enqueue(ctx, func() {
		defer close(done)
		work()
	}) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopped:
		return ErrStopped
	}
}

// Broadcast implements replica.Coordinator. Loop goroutine only.
func (a *Authority) Broadcast(message protocol.Message) {
	envelope, err := protocol.Encode(message)
	if err != nil {
		a.logger.Error("encoding broadcast", "kind", message.Kind(), "error", err)
		return
	}
	for _, peer := range a.peerIDs() {
		a.deliver(a.peers[peer], envelope)
	}
}

// Send implements replica.Coordinator. Loop goroutine only.
func (a *Authority) Send(peer ref.PeerID, message protocol.Message) {
	target, ok := a.peers[peer]
	if !ok {
		return
	}
	envelope, err := protocol.Encode(message)
	if err != nil {
		a.logger.Error("encoding message", "kind", message.Kind(), "peer", peer, "error", err)
		return
	}
	a.deliver(target, envelope)
}

// Connected implements replica.Coordinator. Loop goroutine only.
func (a *Authority) Connected(peer ref.PeerID) bool {
	_, ok := a.peers[peer]
	return ok
}

// deliver queues envelope on the session's outbox. A full outbox
// marks the session for disconnection after the current work item.
func (a *Authority) deliver(target *session, envelope protocol.Envelope) {
	if target.overflowed {
		return
	}
	select {
	case target.outbox <- envelope:
	default:
		target.overflowed = true
		a.overflow = append(a.overflow, target)
	}
}

// reap disconnects sessions whose outbox overflowed.
func (a *Authority) reap() {
	for len(a.overflow) > 0 {
		target := a.overflow[0]
		a.overflow = a.overflow[1:]
		a.logger.Warn("disconnecting slow peer", "peer", target.peer, "outbox", cap(target.outbox))
		a.leave(target, "outbox overflow")
		target.conn.Close()
	}
}

// peerIDs returns connected peers in a stable order so that broadcast
// delivery order does not depend on map iteration.
func (a *Authority) peerIDs() []ref.PeerID {
	peers := make([]ref.PeerID, 0, len(a.peers))
	for peer := range a.peers {
		peers = append(peers, peer)
	}
	slices.SortFunc(peers, func(x, y ref.PeerID) int { return strings.Compare(x.String(), y.String()) })
	return peers
}

// destroy removes an object from the world. Lines go through the line
// service; any socket the object sat in is vacated.
func (a *Authority) destroy(id ref.ObjectID, reason protocol.Reason) {
	if _, err := a.lines.Line(id); err == nil {
		a.lines.Destroy(id, reason)
	} else if _, ok := a.objects.Remove(id); ok {
		a.registry.Forget(id)
		a.Broadcast(&protocol.Destroyed{Object: id, Reason: reason})
	} else {
		return
	}
	a.sockets.Evict(id)
	a.logger.Debug("object destroyed", "object", id, "reason", reason)
}

// world captures the current state. Loop goroutine only.
func (a *Authority) world() (snapshot.World, error) {
	objects, err := a.objects.States()
	if err != nil {
		return snapshot.World{}, err
	}
	return snapshot.World{
		Taken:   a.clock.Now().UnixMilli(),
		Objects: objects,
		Sockets: a.sockets.States(),
	}, nil
}

func (a *Authority) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(a.options.RateLimit), a.options.RateBurst)
}

func (a *Authority) closeAll() {
	for _, peer := range a.peerIDs() {
		target := a.peers[peer]
		a.leave(target, "authority stopping")
		target.conn.Close()
	}
}
