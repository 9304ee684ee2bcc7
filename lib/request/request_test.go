// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/proximity"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

var (
	dock = ref.MustParseSocketID("dock")
	cube = ref.MustParseObjectID("cube")
)

var mintTime = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker[string]()
	var issued protocol.RequestID
	send := func() protocol.RequestID {
		issued = protocol.NewRequestID(mintTime)
		return issued
	}

	if !tracker.Begin("pen", send) {
		t.Fatal("Begin from Idle refused")
	}
	if tracker.State("pen") != Requesting {
		t.Fatalf("state = %v, want requesting", tracker.State("pen"))
	}
	first := issued
	if tracker.Begin("pen", send) {
		t.Error("Begin while Requesting issued a second request")
	}
	if issued != first {
		t.Error("send called while Requesting")
	}

	if key, ok := tracker.Find(first); !ok || key != "pen" {
		t.Errorf("Find = %q, %v", key, ok)
	}
	stale := protocol.NewRequestID(mintTime)
	if tracker.Resolve("pen", stale, true, "") {
		t.Error("Resolve accepted a result for another request")
	}
	if !tracker.Resolve("pen", first, false, protocol.ReasonAlreadyHeld) {
		t.Fatal("Resolve refused the matching result")
	}
	if tracker.State("pen") != Denied || tracker.Reason("pen") != protocol.ReasonAlreadyHeld {
		t.Errorf("state = %v reason = %q", tracker.State("pen"), tracker.Reason("pen"))
	}
	if tracker.Resolve("pen", first, true, "") {
		t.Error("duplicate result applied")
	}
	if tracker.Begin("pen", send) {
		t.Error("Begin from Denied issued a request before Reset")
	}

	tracker.Reset("pen")
	if tracker.State("pen") != Idle || !tracker.Begin("pen", send) {
		t.Error("Reset did not return the target to Idle")
	}
}

type recordedCall struct {
	place  bool
	socket ref.SocketID
	object ref.ObjectID
	id     protocol.RequestID
}

type fakeSocketActions struct{ calls []recordedCall }

func (f *fakeSocketActions) PlaceSocket(socket ref.SocketID, object ref.ObjectID) protocol.RequestID {
	id := protocol.NewRequestID(mintTime)
	f.calls = append(f.calls, recordedCall{true, socket, object, id})
	return id
}

func (f *fakeSocketActions) RemoveSocket(socket ref.SocketID, object ref.ObjectID) protocol.RequestID {
	id := protocol.NewRequestID(mintTime)
	f.calls = append(f.calls, recordedCall{false, socket, object, id})
	return id
}

func TestSocketsDebounceFramesInsideVolume(t *testing.T) {
	actions := &fakeSocketActions{}
	sockets := NewSockets(actions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	detector := proximity.NewDetector(proximity.Volume{Socket: dock, Center: geometry.V(0, 0, 0), Radius: 0.3})

	for frame := 0; frame < 60; frame++ {
		for _, intent := range detector.Observe(cube, geometry.V(0, 0.1, 0)) {
			sockets.Handle(intent)
		}
	}
	if len(actions.calls) != 1 || !actions.calls[0].place {
		t.Fatalf("calls after 60 frames inside = %+v, want one placement", actions.calls)
	}

	sockets.HandleResult(protocol.Result{
		Request: actions.calls[0].id,
		Action:  protocol.KindPlaceSocket,
		Socket:  dock,
		Object:  cube,
		Granted: true,
	})
	if sockets.State(dock) != Granted {
		t.Fatalf("state = %v, want granted", sockets.State(dock))
	}
	for _, intent := range detector.Observe(cube, geometry.V(0, 0.1, 0)) {
		sockets.Handle(intent)
	}
	if len(actions.calls) != 1 {
		t.Fatal("placement re-requested after grant")
	}

	for _, intent := range detector.Observe(cube, geometry.V(5, 0, 0)) {
		sockets.Handle(intent)
	}
	if len(actions.calls) != 2 || actions.calls[1].place || actions.calls[1].object != cube {
		t.Fatalf("calls after exit = %+v, want a removal", actions.calls)
	}
	if sockets.State(dock) != Idle {
		t.Errorf("state after exit = %v, want idle", sockets.State(dock))
	}
}

func TestSocketsDeniedPlacementNotRetriedUntilExit(t *testing.T) {
	actions := &fakeSocketActions{}
	sockets := NewSockets(actions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	inside := proximity.Intent{Kind: proximity.Inside, Socket: dock, Object: cube}

	sockets.Handle(inside)
	sockets.HandleResult(protocol.Result{
		Request: actions.calls[0].id,
		Action:  protocol.KindPlaceSocket,
		Socket:  dock,
		Reason:  protocol.ReasonAlreadyOccupied,
	})
	sockets.Handle(inside)
	sockets.Handle(inside)
	if len(actions.calls) != 1 {
		t.Fatalf("denied placement retried: %+v", actions.calls)
	}

	sockets.Handle(proximity.Intent{Kind: proximity.Left, Socket: dock, Object: cube})
	if len(actions.calls) != 1 {
		t.Error("exit after denial requested a removal")
	}
	sockets.Handle(inside)
	if len(actions.calls) != 2 || !actions.calls[1].place {
		t.Errorf("re-entry did not request placement: %+v", actions.calls)
	}
}

func TestSocketsLeaveDuringPlacementRemovesOnGrant(t *testing.T) {
	actions := &fakeSocketActions{}
	sockets := NewSockets(actions, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sockets.Handle(proximity.Intent{Kind: proximity.Inside, Socket: dock, Object: cube})
	sockets.Handle(proximity.Intent{Kind: proximity.Left, Socket: dock, Object: cube})
	if sockets.State(dock) != Idle {
		t.Errorf("state after leaving = %v, want idle", sockets.State(dock))
	}
	if len(actions.calls) != 1 {
		t.Fatalf("calls before result = %+v, want only the placement", actions.calls)
	}

	sockets.HandleResult(protocol.Result{
		Request: actions.calls[0].id,
		Action:  protocol.KindPlaceSocket,
		Socket:  dock,
		Object:  cube,
		Granted: true,
	})
	if len(actions.calls) != 2 || actions.calls[1].place || actions.calls[1].socket != dock || actions.calls[1].object != cube {
		t.Fatalf("calls after late grant = %+v, want a removal", actions.calls)
	}
	if sockets.State(dock) != Idle {
		t.Errorf("state after late grant = %v, want idle", sockets.State(dock))
	}

	// A late denial needs no cleanup.
	sockets.Handle(proximity.Intent{Kind: proximity.Inside, Socket: dock, Object: cube})
	sockets.Handle(proximity.Intent{Kind: proximity.Left, Socket: dock, Object: cube})
	sockets.HandleResult(protocol.Result{
		Request: actions.calls[2].id,
		Action:  protocol.KindPlaceSocket,
		Socket:  dock,
		Reason:  protocol.ReasonAlreadyOccupied,
	})
	if len(actions.calls) != 3 {
		t.Errorf("late denial sent %+v", actions.calls[3:])
	}
}
