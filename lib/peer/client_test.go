// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/holdfast/lib/authority"
	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/interaction"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/lib/testutil"
	"github.com/bureau-foundation/holdfast/transport"
)

const eventTimeout = 5 * time.Second

var (
	epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	pen   = ref.MustParseObjectID("pen")
	tray  = ref.MustParseSocketID("tray")
	alice = ref.MustParsePeerID("alice")
	bob   = ref.MustParsePeerID("bob")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type session struct {
	authority *authority.Authority
	clock     *clock.FakeClock
	ctx       context.Context
}

func newSession(t *testing.T) *session {
	t.Helper()
	fake := clock.Fake(epoch)
	arbiter, err := authority.New(authority.Options{Clock: fake, Logger: testLogger()})
	if err != nil {
		t.Fatalf("authority.New: %v", err)
	}
	if err := arbiter.Seed(config.WorldConfig{
		Objects: []config.ObjectConfig{{ID: "pen", Position: [3]float64{0, 1, 0}}},
		Sockets: []config.SocketConfig{{ID: "tray", Position: [3]float64{1, 1, 0}}},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- arbiter.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, eventTimeout, "authority did not stop")
	})
	return &session{authority: arbiter, clock: fake, ctx: ctx}
}

func (s *session) connect(t *testing.T, id ref.PeerID) (*Client, error) {
	t.Helper()
	local, remote := transport.Pipe(id.String(), "authority")
	go s.authority.Handle(s.ctx, remote)
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	return Connect(ctx, local, Options{Peer: id, Clock: s.clock, Logger: testLogger()})
}

func (s *session) join(t *testing.T, id ref.PeerID) *Client {
	t.Helper()
	client, err := s.connect(t, id)
	if err != nil {
		t.Fatalf("connecting %s: %v", id, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// waitEvent returns the first event satisfying match. Results seen on
// the way are passed to controller, if one is given.
func waitEvent(t *testing.T, client *Client, controller *interaction.Controller, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case event, ok := <-client.Events():
			if !ok {
				t.Fatalf("%s: event stream closed: %v", client.Self(), client.Err())
			}
			if controller != nil {
				switch {
				case event.Result != nil:
					controller.HandleResult(*event.Result)
				case event.Kind == EventDestroyed:
					controller.LineDestroyed(event.Object)
				}
			}
			if match(event) {
				return event
			}
		case <-deadline:
			t.Fatalf("%s: no matching event within %s", client.Self(), eventTimeout)
		}
	}
}

func answers(request protocol.RequestID) func(Event) bool {
	return func(event Event) bool { return event.Result != nil && event.Result.Request == request }
}

func ownerOf(object ref.ObjectID, owner ref.PeerID) func(Event) bool {
	return func(event Event) bool {
		return event.Kind == EventOwnerChanged && event.Object == object && event.Owner == owner
	}
}

func stateDigest(t *testing.T, client *Client) string {
	t.Helper()
	world, err := client.World()
	if err != nil {
		t.Fatal(err)
	}
	digest, err := snapshot.StateDigest(world)
	if err != nil {
		t.Fatal(err)
	}
	return digest.String()
}

func TestConnectMirrorsWorld(t *testing.T) {
	s := newSession(t)
	client := s.join(t, alice)

	described, ok := client.Object(pen)
	if !ok {
		t.Fatal("pen missing from mirror")
	}
	if described.Position != geometry.V(0, 1, 0) || !described.Owner.IsZero() {
		t.Errorf("pen = %+v, want unowned at (0,1,0)", described)
	}
	if _, ok := client.Socket(tray); !ok {
		t.Error("tray missing from mirror")
	}

	status, err := s.authority.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := stateDigest(t, client); got != status.Digest {
		t.Errorf("mirror digest %s, authority %s", got, status.Digest)
	}
}

func TestConnectRejected(t *testing.T) {
	s := newSession(t)
	s.join(t, alice)

	_, err := s.connect(t, alice)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("second alice: err = %v, want ErrRejected", err)
	}
	if reason := protocol.ReasonOf(err); reason != protocol.ReasonDuplicatePeer {
		t.Errorf("reason = %s, want %s", reason, protocol.ReasonDuplicatePeer)
	}
}

func TestConnectCancelled(t *testing.T) {
	local, _ := transport.Pipe("alice", "nobody")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, local, Options{Peer: alice})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestContention(t *testing.T) {
	s := newSession(t)
	first := s.join(t, alice)
	second := s.join(t, bob)

	granted := waitEvent(t, first, nil, answers(first.RequestOwnership(pen)))
	if granted.Kind != EventGranted {
		t.Fatalf("alice's pick: %s (%s)", granted.Kind, granted.Reason)
	}
	denied := waitEvent(t, second, nil, answers(second.RequestOwnership(pen)))
	if denied.Kind != EventDenied || denied.Reason != protocol.ReasonAlreadyHeld {
		t.Errorf("bob's pick: %s (%s), want denied already_held", denied.Kind, denied.Reason)
	}

	waitEvent(t, second, nil, ownerOf(pen, alice))
	if described, _ := second.Object(pen); described.Owner != alice {
		t.Errorf("bob sees pen owner %s, want alice", described.Owner)
	}
}

func TestDrawingConverges(t *testing.T) {
	s := newSession(t)
	drawer := s.join(t, alice)
	observer := s.join(t, bob)

	controller := interaction.NewController(drawer, interaction.Options{Tool: pen}, s.clock, testLogger())
	controller.Pick()
	waitEvent(t, drawer, controller, func(event Event) bool {
		return event.Kind == EventGranted && event.Result.Action == protocol.KindRequestOwnership
	})
	if controller.State() != interaction.Held {
		t.Fatalf("controller state = %s, want held", controller.State())
	}

	controller.BeginStroke(geometry.V(0, 1, 0), interaction.SourceContact)
	spawned := waitEvent(t, drawer, controller, func(event Event) bool {
		return event.Kind == EventGranted && event.Result.Action == protocol.KindSpawnLine
	})
	stroke := spawned.Object

	controller.ContactMove(geometry.V(0, 1, 0.02))
	// The append is predicted before the authority answers.
	points, _, err := drawer.Points(stroke)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("drawer sees %d points right after ContactMove, want 3", len(points))
	}

	controller.EndStroke()
	waitEvent(t, drawer, controller, ownerOf(stroke, ref.PeerID{}))
	waitEvent(t, observer, nil, ownerOf(stroke, ref.PeerID{}))

	want := []geometry.Vec3{geometry.V(0, 1, 0), geometry.V(0, 1, 0), geometry.V(0, 1, 0.02), geometry.V(0, 1, 0.02)}
	for _, client := range []*Client{drawer, observer} {
		points, baked, err := client.Points(stroke)
		if err != nil {
			t.Fatalf("%s: %v", client.Self(), err)
		}
		if !baked {
			t.Errorf("%s: line not baked", client.Self())
		}
		if len(points) != len(want) {
			t.Fatalf("%s: points = %v, want %v", client.Self(), points, want)
		}
		for index := range want {
			if points[index] != want[index] {
				t.Errorf("%s: point %d = %v, want %v", client.Self(), index, points[index], want[index])
			}
		}
	}

	status, err := s.authority.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, client := range []*Client{drawer, observer} {
		if got := stateDigest(t, client); got != status.Digest {
			t.Errorf("%s digest %s, authority %s", client.Self(), got, status.Digest)
		}
	}
	if finished := controller.Finished(); len(finished) != 1 || finished[0] != stroke {
		t.Errorf("finished = %v, want [%s]", finished, stroke)
	}
}

func TestRejectedPredictionIsCorrected(t *testing.T) {
	s := newSession(t)
	client := s.join(t, alice)

	spawned := waitEvent(t, client, nil, answers(client.SpawnLine(geometry.V(0, 0, 0), geometry.DefaultStyle)))
	stroke := spawned.Object
	if err := client.AddPoint(stroke, geometry.V(0, 0, 0.05)); err != nil {
		t.Fatal(err)
	}
	if event := waitEvent(t, client, nil, answers(client.Bake(stroke))); event.Kind != EventGranted {
		t.Fatalf("bake: %s (%s)", event.Kind, event.Reason)
	}

	// A baked line rejects further points; the local append is undone.
	if err := client.AddPoint(stroke, geometry.V(0, 0, 0.1)); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, client, nil, func(event Event) bool {
		return event.Kind == EventCorrected && event.Object == stroke
	})
	points, _, err := client.Points(stroke)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Errorf("after correction: %d points, want 3", len(points))
	}
}

func TestNonOwnerWritesAreRefusedLocally(t *testing.T) {
	s := newSession(t)
	owner := s.join(t, alice)
	other := s.join(t, bob)

	waitEvent(t, owner, nil, answers(owner.RequestOwnership(pen)))
	waitEvent(t, other, nil, ownerOf(pen, alice))

	if err := other.Move(pen, geometry.At(geometry.V(3, 3, 3))); err == nil {
		t.Error("bob moved alice's pen")
	}
	if err := owner.Move(pen, geometry.At(geometry.V(2, 1, 0))); err != nil {
		t.Fatalf("owner move: %v", err)
	}
	if described, _ := owner.Object(pen); described.Position != geometry.V(2, 1, 0) {
		t.Errorf("owner sees pen at %v before the echo, want predicted (2,1,0)", described.Position)
	}
}

func TestDegenerateBake(t *testing.T) {
	s := newSession(t)
	client := s.join(t, alice)

	stroke := waitEvent(t, client, nil, answers(client.SpawnLine(geometry.V(0, 0, 0), geometry.DefaultStyle))).Object
	result := waitEvent(t, client, nil, answers(client.Bake(stroke)))
	if result.Kind != EventDenied || result.Reason != protocol.ReasonDegenerate {
		t.Errorf("bake: %s (%s), want denied degenerate", result.Kind, result.Reason)
	}
	// Destroyed is broadcast before the result.
	if _, _, err := client.Points(stroke); err == nil {
		t.Error("degenerate line still mirrored")
	}
}

func TestSocketPlacement(t *testing.T) {
	s := newSession(t)
	client := s.join(t, alice)
	watcher := s.join(t, bob)

	waitEvent(t, client, nil, answers(client.RequestOwnership(pen)))
	placed := waitEvent(t, client, nil, answers(client.PlaceSocket(tray, pen)))
	if placed.Kind != EventGranted {
		t.Fatalf("place: %s (%s)", placed.Kind, placed.Reason)
	}
	waitEvent(t, watcher, nil, func(event Event) bool {
		return event.Kind == EventPlaced && event.Socket == tray && event.Object == pen
	})
	if state, _ := watcher.Socket(tray); state.Occupant != pen {
		t.Errorf("bob sees tray occupant %s, want pen", state.Occupant)
	}

	removed := waitEvent(t, client, nil, answers(client.RemoveSocket(tray, pen)))
	if removed.Kind != EventGranted {
		t.Fatalf("remove: %s (%s)", removed.Kind, removed.Reason)
	}
	waitEvent(t, watcher, nil, func(event Event) bool { return event.Kind == EventRemoved && event.Socket == tray })
	if state, _ := watcher.Socket(tray); !state.Occupant.IsZero() {
		t.Errorf("tray still occupied by %s", state.Occupant)
	}
}

func TestCloseEndsEventStream(t *testing.T) {
	s := newSession(t)
	client := s.join(t, alice)
	client.Close()

	testutil.RequireClosed(t, client.Done(), eventTimeout, "client did not finish")
	for range client.Events() {
	}
	if err := client.Err(); err != nil {
		t.Errorf("Err after clean close = %v", err)
	}
	if err := client.AddPoint(pen, geometry.V(0, 0, 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("AddPoint after close = %v, want ErrClosed", err)
	}
}
