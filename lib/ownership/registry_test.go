// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

var (
	peerOne = ref.MustParsePeerID("c1")
	peerTwo = ref.MustParsePeerID("c2")
	pen     = ref.MustParseObjectID("pen")
)

type fixture struct {
	recorder *replica.Recorder
	objects  *object.Table
	registry *Registry
}

func newFixture(t *testing.T, ids ...ref.ObjectID) *fixture {
	t.Helper()
	recorder := replica.NewRecorder(peerOne, peerTwo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	objects := object.NewTable()
	for _, id := range ids {
		if err := objects.Add(object.New(id, object.KindObject)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return &fixture{
		recorder: recorder,
		objects:  objects,
		registry: NewRegistry(objects, replica.NewChannel(recorder, logger), logger),
	}
}

func (f *fixture) owner(t *testing.T, id ref.ObjectID) ref.PeerID {
	t.Helper()
	owner, err := f.registry.Owner(id)
	if err != nil {
		t.Fatalf("Owner(%s): %v", id, err)
	}
	return owner
}

func TestGrantBroadcastsOwner(t *testing.T) {
	f := newFixture(t, pen)
	granted, err := f.registry.RequestOwnership(pen, peerOne)
	if err != nil || !granted {
		t.Fatalf("RequestOwnership = %v, %v", granted, err)
	}
	if f.owner(t, pen) != peerOne {
		t.Errorf("owner = %v, want c1", f.owner(t, pen))
	}

	updates := f.recorder.BroadcastUpdates()
	if len(updates) != 2 {
		t.Fatalf("broadcast %d updates, want owner and held", len(updates))
	}
	if updates[0].Field != object.FieldOwner || updates[1].Field != object.FieldHeld {
		t.Errorf("broadcast fields = %s, %s", updates[0].Field, updates[1].Field)
	}
	for _, update := range updates {
		if update.Origin != ref.Authority {
			t.Errorf("ownership update origin = %v, want authority", update.Origin)
		}
	}
}

// Two requests for the same unowned object arrive back to back: the
// first processed wins and the second is refused without changes.
func TestSimultaneousRequestsYieldOneGrant(t *testing.T) {
	f := newFixture(t, pen)
	grants := 0
	for _, peer := range []ref.PeerID{peerOne, peerTwo} {
		granted, err := f.registry.RequestOwnership(pen, peer)
		if granted {
			grants++
		} else if !errors.Is(err, ErrAlreadyHeld) {
			t.Errorf("loser error = %v, want ErrAlreadyHeld", err)
		}
	}
	if grants != 1 {
		t.Errorf("grants = %d, want exactly 1", grants)
	}
}

func TestRequestDeniedWhileOwned(t *testing.T) {
	f := newFixture(t, pen)
	f.registry.RequestOwnership(pen, peerOne)
	f.recorder.Reset()

	granted, err := f.registry.RequestOwnership(pen, peerTwo)
	if granted || !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("RequestOwnership = %v, %v; want denied with ErrAlreadyHeld", granted, err)
	}
	if f.owner(t, pen) != peerOne {
		t.Errorf("owner = %v, want c1 unchanged", f.owner(t, pen))
	}
	if len(f.recorder.Broadcasts()) != 0 {
		t.Error("denied request broadcast something")
	}
}

func TestDuplicateRequestIsNoOp(t *testing.T) {
	f := newFixture(t, pen)
	f.registry.RequestOwnership(pen, peerOne)
	f.recorder.Reset()

	granted, err := f.registry.RequestOwnership(pen, peerOne)
	if err != nil || !granted {
		t.Fatalf("repeat request = %v, %v; want granted no-op", granted, err)
	}
	if len(f.recorder.Broadcasts()) != 0 {
		t.Error("repeat request broadcast something")
	}
	if err := f.registry.ReleaseOwnership(pen, peerOne); err != nil {
		t.Fatalf("ReleaseOwnership: %v", err)
	}
	if !f.owner(t, pen).IsZero() {
		t.Error("single-holder object still owned after one release")
	}
}

func TestStaleRequesterIgnored(t *testing.T) {
	f := newFixture(t, pen)
	f.recorder.Disconnect(peerTwo)
	granted, err := f.registry.RequestOwnership(pen, peerTwo)
	if granted || !errors.Is(err, ErrStaleRequester) {
		t.Errorf("RequestOwnership = %v, %v; want ErrStaleRequester", granted, err)
	}
	if !f.owner(t, pen).IsZero() {
		t.Error("stale requester became owner")
	}
}

func TestReleaseByNonOwnerRejected(t *testing.T) {
	f := newFixture(t, pen)
	f.registry.RequestOwnership(pen, peerOne)
	if err := f.registry.ReleaseOwnership(pen, peerTwo); !errors.Is(err, ErrNotOwner) {
		t.Errorf("ReleaseOwnership = %v, want ErrNotOwner", err)
	}
	if f.owner(t, pen) != peerOne {
		t.Error("non-owner release changed the owner")
	}
	f.registry.ReleaseOwnership(pen, peerOne)
	if err := f.registry.ReleaseOwnership(pen, peerOne); !errors.Is(err, ErrNotOwner) {
		t.Errorf("release of unowned object = %v, want ErrNotOwner", err)
	}
}

func TestMultiHolderReleasesOnLastHold(t *testing.T) {
	f := newFixture(t, pen)
	f.registry.Configure(pen, Options{MultiHolder: true})

	f.registry.RequestOwnership(pen, peerOne)
	f.registry.RequestOwnership(pen, peerOne)
	if f.registry.Holds(pen) != 2 {
		t.Fatalf("Holds = %d, want 2", f.registry.Holds(pen))
	}

	if err := f.registry.ReleaseOwnership(pen, peerOne); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if f.owner(t, pen) != peerOne {
		t.Fatal("released while a hold remained")
	}
	if err := f.registry.ReleaseOwnership(pen, peerOne); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if !f.owner(t, pen).IsZero() {
		t.Error("still owned after every hold released")
	}
}

func TestForceReleaseBroadcastsToEveryone(t *testing.T) {
	f := newFixture(t, pen)
	f.registry.RequestOwnership(pen, peerOne)
	f.recorder.Reset()

	previous, err := f.registry.ForceRelease(pen)
	if err != nil || previous != peerOne {
		t.Fatalf("ForceRelease = %v, %v", previous, err)
	}
	updates := f.recorder.BroadcastUpdates()
	if len(updates) != 2 || updates[0].Field != object.FieldOwner {
		t.Fatalf("broadcast = %+v", updates)
	}
	if len(f.recorder.SentTo(peerOne)) != 0 {
		t.Error("force release sent privately instead of broadcast")
	}

	f.recorder.Reset()
	if _, err := f.registry.ForceRelease(pen); err != nil {
		t.Fatalf("ForceRelease of unowned: %v", err)
	}
	if len(f.recorder.Broadcasts()) != 0 {
		t.Error("force release of unowned object broadcast")
	}
}

func TestReleaseAll(t *testing.T) {
	cube := ref.MustParseObjectID("cube")
	eraser := ref.MustParseObjectID("eraser")
	f := newFixture(t, pen, cube, eraser)
	f.registry.RequestOwnership(pen, peerOne)
	f.registry.RequestOwnership(cube, peerOne)
	f.registry.RequestOwnership(eraser, peerTwo)

	released, err := f.registry.ReleaseAll(peerOne)
	if err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if len(released) != 2 {
		t.Errorf("released %v, want cube and pen", released)
	}
	if !f.owner(t, pen).IsZero() || !f.owner(t, cube).IsZero() {
		t.Error("objects still owned after ReleaseAll")
	}
	if f.owner(t, eraser) != peerTwo {
		t.Error("ReleaseAll touched another peer's object")
	}
}

func TestNotRetrievable(t *testing.T) {
	f := newFixture(t, pen)
	target, _ := f.objects.Get(pen)
	target.Retrievable.Set(false)
	if granted, err := f.registry.RequestOwnership(pen, peerOne); granted || !errors.Is(err, ErrNotRetrievable) {
		t.Errorf("RequestOwnership = %v, %v; want ErrNotRetrievable", granted, err)
	}
}

func TestGrantHookCanDeny(t *testing.T) {
	f := newFixture(t, pen)
	refused := errors.New("busy")
	var calls []ref.PeerID
	f.registry.BeforeGrant(func(id ref.ObjectID, requester ref.PeerID) error {
		calls = append(calls, requester)
		if requester == peerTwo {
			return refused
		}
		return nil
	})

	if granted, err := f.registry.RequestOwnership(pen, peerTwo); granted || !errors.Is(err, refused) {
		t.Fatalf("RequestOwnership = %v, %v; want hook error", granted, err)
	}
	if owner := f.owner(t, pen); !owner.IsZero() {
		t.Errorf("owner = %v after denied grant", owner)
	}
	if granted, err := f.registry.RequestOwnership(pen, peerOne); !granted {
		t.Fatalf("RequestOwnership: %v", err)
	}
	// Asking again while owning is not a fresh grant.
	f.registry.RequestOwnership(pen, peerOne)
	if len(calls) != 2 {
		t.Errorf("hook ran %d times, want 2", len(calls))
	}
}

func TestUnknownObject(t *testing.T) {
	f := newFixture(t)
	if _, err := f.registry.RequestOwnership(pen, peerOne); !errors.Is(err, object.ErrNotFound) {
		t.Errorf("RequestOwnership = %v, want ErrNotFound", err)
	}
}

// A random interleaving of requests and releases from several peers
// never leaves an object with an owner that was not granted it.
func TestAtMostOneOwnerUnderRandomTraffic(t *testing.T) {
	f := newFixture(t, pen)
	peers := []ref.PeerID{peerOne, peerTwo, ref.MustParsePeerID("c3")}
	f.recorder.Connect(peers[2])
	random := rand.New(rand.NewPCG(1, 2))

	var expected ref.PeerID
	for step := 0; step < 500; step++ {
		peer := peers[random.IntN(len(peers))]
		if random.IntN(2) == 0 {
			granted, _ := f.registry.RequestOwnership(pen, peer)
			if granted && !expected.IsZero() && expected != peer {
				t.Fatalf("step %d: %s granted while %s owns", step, peer, expected)
			}
			if granted {
				expected = peer
			}
		} else if err := f.registry.ReleaseOwnership(pen, peer); err == nil {
			if expected != peer {
				t.Fatalf("step %d: %s released an object owned by %s", step, peer, expected)
			}
			expected = ref.PeerID{}
		}
		if got := f.owner(t, pen); got != expected {
			t.Fatalf("step %d: owner = %v, want %v", step, got, expected)
		}
	}
}
