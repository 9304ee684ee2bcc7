// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ownership"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

var (
	holder   = ref.MustParsePeerID("c1")
	other    = ref.MustParsePeerID("c2")
	dock     = ref.MustParseSocketID("dock")
	cubeA    = ref.MustParseObjectID("cube-a")
	cubeB    = ref.MustParseObjectID("cube-b")
	dockPose = geometry.At(geometry.V(2, 1, 0))
)

type event struct {
	placed bool
	socket ref.SocketID
	object ref.ObjectID
}

type recordingListener struct{ events []event }

func (l *recordingListener) OnPlaced(socket ref.SocketID, object ref.ObjectID) {
	l.events = append(l.events, event{true, socket, object})
}

func (l *recordingListener) OnRemoved(socket ref.SocketID, object ref.ObjectID) {
	l.events = append(l.events, event{false, socket, object})
}

type fixture struct {
	recorder  *replica.Recorder
	objects   *object.Table
	registry  *ownership.Registry
	manager   *Manager
	listener  *recordingListener
	destroyed []ref.ObjectID
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		recorder: replica.NewRecorder(holder, other),
		objects:  object.NewTable(),
		listener: &recordingListener{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	channel := replica.NewChannel(f.recorder, logger)
	f.registry = ownership.NewRegistry(f.objects, channel, logger)
	destroy := func(id ref.ObjectID, reason protocol.Reason) {
		f.objects.Remove(id)
		f.destroyed = append(f.destroyed, id)
	}
	f.manager = NewManager(f.objects, f.registry, channel, destroy, logger)
	f.manager.Subscribe(f.listener)
	for _, id := range []ref.ObjectID{cubeA, cubeB} {
		if err := f.objects.Add(object.New(id, object.KindObject)); err != nil {
			t.Fatalf("Add object: %v", err)
		}
	}
	if err := f.manager.Add(dock, dockPose, policy); err != nil {
		t.Fatalf("Add socket: %v", err)
	}
	return f
}

func (f *fixture) object(t *testing.T, id ref.ObjectID) *object.Object {
	t.Helper()
	target, err := f.objects.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", id, err)
	}
	return target
}

func (f *fixture) occupant(t *testing.T) ref.ObjectID {
	t.Helper()
	socket, err := f.manager.Get(dock)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return socket.Occupant()
}

func TestPlaceAndRemoveWithReparent(t *testing.T) {
	f := newFixture(t, Policy{ReparentOccupant: true})
	if granted, err := f.registry.RequestOwnership(cubeA, holder); !granted {
		t.Fatalf("RequestOwnership: %v", err)
	}

	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Fatalf("Place: %v", err)
	}
	cube := f.object(t, cubeA)
	if f.occupant(t) != cubeA {
		t.Errorf("occupant = %v, want cube-a", f.occupant(t))
	}
	if !cube.Owner.Get().IsZero() || cube.Held.Get() {
		t.Errorf("placed object still owned: owner %v held %v", cube.Owner.Get(), cube.Held.Get())
	}
	if cube.Parent.Get() != dock {
		t.Errorf("parent = %v, want dock", cube.Parent.Get())
	}
	if cube.Pose.Get() != dockPose {
		t.Errorf("pose = %+v, want socket pose", cube.Pose.Get())
	}

	if err := f.manager.Remove(dock, ref.ObjectID{}, holder); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !f.occupant(t).IsZero() {
		t.Errorf("occupant = %v after remove", f.occupant(t))
	}
	if !cube.Parent.Get().IsZero() {
		t.Errorf("parent = %v after remove, want none", cube.Parent.Get())
	}

	want := []event{{true, dock, cubeA}, {false, dock, cubeA}}
	if len(f.listener.events) != 2 || f.listener.events[0] != want[0] || f.listener.events[1] != want[1] {
		t.Errorf("listener events = %+v, want %+v", f.listener.events, want)
	}
}

func TestSecondPlacementRefused(t *testing.T) {
	f := newFixture(t, Policy{})
	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Fatalf("Place A: %v", err)
	}
	f.recorder.Reset()

	err := f.manager.Place(dock, cubeB, other)
	if !errors.Is(err, ErrOccupied) {
		t.Fatalf("Place B = %v, want ErrOccupied", err)
	}
	if f.occupant(t) != cubeA {
		t.Errorf("occupant = %v, want cube-a", f.occupant(t))
	}
	if len(f.recorder.Broadcasts()) != 0 {
		t.Error("refused placement broadcast something")
	}
	if protocol.ReasonOf(err) != protocol.ReasonAlreadyOccupied {
		t.Errorf("reason = %q", protocol.ReasonOf(err))
	}
}

func TestPlacementBroadcasts(t *testing.T) {
	f := newFixture(t, Policy{})
	f.registry.RequestOwnership(cubeA, holder)
	f.recorder.Reset()

	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Fatalf("Place: %v", err)
	}
	broadcasts := f.recorder.Broadcasts()
	last, ok := broadcasts[len(broadcasts)-1].(*protocol.Placed)
	if !ok || last.Socket != dock || last.Object != cubeA {
		t.Fatalf("last broadcast = %#v, want Placed", broadcasts[len(broadcasts)-1])
	}
	ownerCleared := false
	for _, update := range f.recorder.BroadcastUpdates() {
		if update.Field == object.FieldOwner {
			ownerCleared = true
		}
	}
	if !ownerCleared {
		t.Error("ownership clear not broadcast")
	}
}

func TestRequireHeld(t *testing.T) {
	f := newFixture(t, Policy{RequireHeldBeforePlace: true})
	if err := f.manager.Place(dock, cubeA, holder); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("Place unheld = %v, want ErrNotHeld", err)
	}
	if !f.occupant(t).IsZero() {
		t.Error("refused placement occupied the socket")
	}
	f.registry.RequestOwnership(cubeA, holder)
	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Errorf("Place held = %v", err)
	}
}

func TestPlaceByNonOwnerRefused(t *testing.T) {
	f := newFixture(t, Policy{})
	f.registry.RequestOwnership(cubeA, holder)
	if err := f.manager.Place(dock, cubeA, other); !errors.Is(err, replica.ErrPermissionDenied) {
		t.Errorf("Place by non-owner = %v, want ErrPermissionDenied", err)
	}
	if f.object(t, cubeA).Owner.Get() != holder {
		t.Error("refused placement released ownership")
	}
}

func TestKinematicAndRetrievalRestoredOnRemove(t *testing.T) {
	f := newFixture(t, Policy{ForceKinematicOnPlace: true, DisableRetrievalOnPlace: true})
	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Fatalf("Place: %v", err)
	}
	cube := f.object(t, cubeA)
	if !cube.Kinematic.Get() || cube.Retrievable.Get() {
		t.Fatalf("kinematic=%v retrievable=%v after place", cube.Kinematic.Get(), cube.Retrievable.Get())
	}
	if granted, err := f.registry.RequestOwnership(cubeA, other); granted || !errors.Is(err, ownership.ErrNotRetrievable) {
		t.Errorf("pick from locked socket = %v, %v", granted, err)
	}

	if err := f.manager.Remove(dock, cubeA, ref.Authority); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if cube.Kinematic.Get() || !cube.Retrievable.Get() {
		t.Errorf("kinematic=%v retrievable=%v after remove", cube.Kinematic.Get(), cube.Retrievable.Get())
	}
}

func TestDestroyOnPlace(t *testing.T) {
	f := newFixture(t, Policy{DestroyOnPlace: true})
	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if len(f.destroyed) != 1 || f.destroyed[0] != cubeA {
		t.Errorf("destroyed = %v, want [cube-a]", f.destroyed)
	}
	if f.occupant(t) != cubeA {
		t.Errorf("tombstone occupant = %v, want cube-a", f.occupant(t))
	}
	if err := f.manager.Remove(dock, ref.ObjectID{}, holder); err != nil {
		t.Errorf("Remove on destroy socket = %v, want no-op", err)
	}
	if f.occupant(t) != cubeA {
		t.Error("Remove changed a destroy-on-place socket")
	}
}

func TestRemoveValidation(t *testing.T) {
	f := newFixture(t, Policy{})
	if err := f.manager.Remove(dock, ref.ObjectID{}, holder); !errors.Is(err, ErrEmpty) {
		t.Errorf("Remove empty = %v, want ErrEmpty", err)
	}
	f.manager.Place(dock, cubeA, holder)
	if err := f.manager.Remove(dock, cubeB, holder); !errors.Is(err, ErrOccupantMismatch) {
		t.Errorf("Remove mismatched = %v, want ErrOccupantMismatch", err)
	}
	if f.occupant(t) != cubeA {
		t.Error("mismatched remove vacated the socket")
	}
}

func TestPickingUpSeatedObjectVacatesSocket(t *testing.T) {
	f := newFixture(t, Policy{ReparentOccupant: true})
	if err := f.manager.Place(dock, cubeA, holder); err != nil {
		t.Fatalf("Place: %v", err)
	}
	f.recorder.Reset()
	f.listener.events = nil

	if granted, err := f.registry.RequestOwnership(cubeA, other); !granted {
		t.Fatalf("RequestOwnership: %v", err)
	}
	if !f.occupant(t).IsZero() {
		t.Errorf("occupant = %v after pickup, want empty", f.occupant(t))
	}
	if _, seated := f.manager.SocketOf(cubeA); seated {
		t.Error("SocketOf still reports cube-a seated")
	}
	cube := f.object(t, cubeA)
	if cube.Owner.Get() != other {
		t.Errorf("owner = %v, want c2", cube.Owner.Get())
	}
	if !cube.Parent.Get().IsZero() {
		t.Errorf("parent = %v, want none", cube.Parent.Get())
	}

	var removed bool
	for _, message := range f.recorder.Broadcasts() {
		if m, ok := message.(*protocol.Removed); ok && m.Socket == dock && m.Object == cubeA {
			removed = true
		}
	}
	if !removed {
		t.Error("no Removed broadcast for the pickup")
	}
	want := []event{{false, dock, cubeA}}
	if len(f.listener.events) != 1 || f.listener.events[0] != want[0] {
		t.Errorf("listener events = %+v, want %+v", f.listener.events, want)
	}

	if err := f.manager.Remove(dock, cubeA, other); !errors.Is(err, ErrEmpty) {
		t.Errorf("Remove after pickup = %v, want ErrEmpty", err)
	}
}

func TestObjectCannotOccupyTwoSockets(t *testing.T) {
	f := newFixture(t, Policy{})
	second := ref.MustParseSocketID("shelf")
	f.manager.Add(second, geometry.At(geometry.V(0, 0, 0)), Policy{})
	f.manager.Place(dock, cubeA, holder)
	if err := f.manager.Place(second, cubeA, holder); !errors.Is(err, ErrAlreadySeated) {
		t.Errorf("second seat = %v, want ErrAlreadySeated", err)
	}
}

func TestEvict(t *testing.T) {
	f := newFixture(t, Policy{})
	f.manager.Place(dock, cubeA, holder)
	f.objects.Remove(cubeA)
	f.manager.Evict(cubeA)
	if !f.occupant(t).IsZero() {
		t.Errorf("occupant = %v after evict", f.occupant(t))
	}
}

func TestUnknownSocket(t *testing.T) {
	f := newFixture(t, Policy{})
	if err := f.manager.Place(ref.MustParseSocketID("nowhere"), cubeA, holder); !errors.Is(err, ErrNotFound) {
		t.Errorf("Place = %v, want ErrNotFound", err)
	}
}
