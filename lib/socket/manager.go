// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ownership"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

var (
	// ErrNotFound is returned for an unknown socket id.
	ErrNotFound = protocol.Deny(protocol.ReasonNotFound, "socket not found")

	// ErrOccupied is returned when placing into an occupied socket.
	ErrOccupied = protocol.Deny(protocol.ReasonAlreadyOccupied, "socket already occupied")

	// ErrAlreadySeated is returned when the object already occupies a
	// socket.
	ErrAlreadySeated = protocol.Deny(protocol.ReasonAlreadyOccupied, "object already seated")

	// ErrNotHeld is returned when the socket requires a held object and
	// the object is not held.
	ErrNotHeld = protocol.Deny(protocol.ReasonInvalidTransition, "object must be held before placement")

	// ErrEmpty is returned when removing from an empty socket.
	ErrEmpty = protocol.Deny(protocol.ReasonInvalidTransition, "socket is empty")

	// ErrOccupantMismatch is returned when a removal names an object
	// that is not the current occupant.
	ErrOccupantMismatch = protocol.Deny(protocol.ReasonInvalidTransition, "occupant does not match")
)

// DestroyFunc removes a destroyed object from the world and announces
// it. The authority supplies one that also knows about lines.
type DestroyFunc func(id ref.ObjectID, reason protocol.Reason)

// Manager arbitrates socket occupancy. Not safe for concurrent use.
type Manager struct {
	objects  *object.Table
	registry *ownership.Registry
	channel  *replica.Channel
	destroy  DestroyFunc
	logger   *slog.Logger

	sockets   map[ref.SocketID]*Socket
	listeners []Listener
}

// NewManager returns a Manager. destroy is called for objects placed in
// a DestroyOnPlace socket.
//
// A seated object that gets picked up leaves its socket before the
// grant lands, so an occupant never has an owner.
func NewManager(objects *object.Table, registry *ownership.Registry, channel *replica.Channel, destroy DestroyFunc, logger *slog.Logger) *Manager {
	m := &Manager{
		objects:  objects,
		registry: registry,
		channel:  channel,
		destroy:  destroy,
		logger:   logger,
		sockets:  make(map[ref.SocketID]*Socket),
	}
	registry.BeforeGrant(m.vacate)
	return m
}

func (m *Manager) vacate(id ref.ObjectID, requester ref.PeerID) error {
	socketID, ok := m.SocketOf(id)
	if !ok {
		return nil
	}
	m.logger.Debug("vacating socket for pickup", "socket", socketID, "object", id, "peer", requester)
	return m.Remove(socketID, id, ref.Authority)
}

// Add registers an empty socket.
func (m *Manager) Add(id ref.SocketID, pose geometry.Pose, policy Policy) error {
	if _, exists := m.sockets[id]; exists {
		return fmt.Errorf("socket %s already exists", id)
	}
	m.sockets[id] = &Socket{ID: id, Pose: pose, Policy: policy}
	return nil
}

// Subscribe registers a listener for placement events.
func (m *Manager) Subscribe(listener Listener) {
	m.listeners = append(m.listeners, listener)
}

// Get returns a socket.
func (m *Manager) Get(id ref.SocketID) (*Socket, error) {
	socket, ok := m.sockets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return socket, nil
}

// States returns every socket's state in id order.
func (m *Manager) States() []State {
	states := make([]State, 0, len(m.sockets))
	for _, socket := range m.sockets {
		states = append(states, socket.State())
	}
	slices.SortFunc(states, func(a, b State) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return states
}

// SocketOf returns the socket an object occupies, if any.
func (m *Manager) SocketOf(id ref.ObjectID) (ref.SocketID, bool) {
	for _, socket := range m.sockets {
		if socket.occupant == id {
			return socket.ID, true
		}
	}
	return ref.SocketID{}, false
}

// Place seats an object in a socket on behalf of requester. A peer may
// place an object it owns or an unowned one; the authority may place
// anything.
func (m *Manager) Place(socketID ref.SocketID, objectID ref.ObjectID, requester ref.PeerID) error {
	socket, err := m.Get(socketID)
	if err != nil {
		return err
	}
	if !socket.occupant.IsZero() {
		return fmt.Errorf("%w: %s holds %s", ErrOccupied, socketID, socket.occupant)
	}
	target, err := m.objects.Lookup(objectID)
	if err != nil {
		return err
	}
	if seated, ok := m.SocketOf(objectID); ok {
		return fmt.Errorf("%w: %s is in %s", ErrAlreadySeated, objectID, seated)
	}
	owner := target.Owner.Get()
	if !requester.IsAuthority() && !owner.IsZero() && owner != requester {
		return fmt.Errorf("%w: %s placing %s owned by %s", replica.ErrPermissionDenied, requester, objectID, owner)
	}
	if socket.Policy.RequireHeldBeforePlace && !target.Held.Get() {
		return fmt.Errorf("%w: %s into %s", ErrNotHeld, objectID, socketID)
	}

	if _, err := m.registry.ForceRelease(objectID); err != nil {
		return fmt.Errorf("releasing %s for placement: %w", objectID, err)
	}

	socket.previousKinematic = target.Kinematic.Get()
	socket.previousRetrievable = target.Retrievable.Get()
	updates, err := m.placementUpdates(target, socket)
	if err != nil {
		return err
	}
	if err := m.channel.Commit(target.Fields, ref.Authority, ref.PeerID{}, updates...); err != nil {
		return err
	}

	socket.occupant = objectID
	if socket.Policy.DestroyOnPlace {
		m.destroy(objectID, "")
	}

	m.logger.Debug("object placed",
		"socket", socketID,
		"object", objectID,
		"peer", requester,
		"destroyed", socket.Policy.DestroyOnPlace,
	)
	m.channel.Coordinator().Broadcast(&protocol.Placed{Socket: socketID, Object: objectID})
	for _, listener := range m.listeners {
		listener.OnPlaced(socketID, objectID)
	}
	return nil
}

// Remove vacates a socket on behalf of requester. If expected is not
// zero it must match the current occupant. Removing from a
// DestroyOnPlace socket does nothing.
func (m *Manager) Remove(socketID ref.SocketID, expected ref.ObjectID, requester ref.PeerID) error {
	socket, err := m.Get(socketID)
	if err != nil {
		return err
	}
	if socket.Policy.DestroyOnPlace {
		m.logger.Debug("remove ignored on destroy-on-place socket", "socket", socketID, "peer", requester)
		return nil
	}
	occupant := socket.occupant
	if occupant.IsZero() {
		return fmt.Errorf("%w: %s", ErrEmpty, socketID)
	}
	if !expected.IsZero() && expected != occupant {
		return fmt.Errorf("%w: %s holds %s, not %s", ErrOccupantMismatch, socketID, occupant, expected)
	}

	target, ok := m.objects.Get(occupant)
	if ok {
		owner := target.Owner.Get()
		if !requester.IsAuthority() && !owner.IsZero() && owner != requester {
			return fmt.Errorf("%w: %s removing %s owned by %s", replica.ErrPermissionDenied, requester, occupant, owner)
		}
		updates, err := m.removalUpdates(target, socket)
		if err != nil {
			return err
		}
		if err := m.channel.Commit(target.Fields, ref.Authority, owner, updates...); err != nil {
			return err
		}
	}

	socket.occupant = ref.ObjectID{}
	m.logger.Debug("object removed", "socket", socketID, "object", occupant, "peer", requester)
	m.channel.Coordinator().Broadcast(&protocol.Removed{Socket: socketID, Object: occupant})
	for _, listener := range m.listeners {
		listener.OnRemoved(socketID, occupant)
	}
	return nil
}

// Evict clears a socket whose occupant was destroyed elsewhere, without
// touching the (gone) object. Sockets are found by occupant.
func (m *Manager) Evict(objectID ref.ObjectID) {
	socketID, ok := m.SocketOf(objectID)
	if !ok {
		return
	}
	socket := m.sockets[socketID]
	if socket.Policy.DestroyOnPlace {
		return
	}
	socket.occupant = ref.ObjectID{}
	m.channel.Coordinator().Broadcast(&protocol.Removed{Socket: socketID, Object: objectID})
	for _, listener := range m.listeners {
		listener.OnRemoved(socketID, objectID)
	}
}

func (m *Manager) placementUpdates(target *object.Object, socket *Socket) ([]protocol.Update, error) {
	var updates []protocol.Update
	add := func(update protocol.Update, err error) error {
		if err != nil {
			return err
		}
		updates = append(updates, update)
		return nil
	}

	if err := add(target.Pose.Write(socket.Pose)); err != nil {
		return nil, err
	}
	if socket.Policy.ReparentOccupant {
		if err := add(target.Parent.Write(socket.ID)); err != nil {
			return nil, err
		}
	}
	if socket.Policy.ForceKinematicOnPlace {
		if err := add(target.Kinematic.Write(true)); err != nil {
			return nil, err
		}
	}
	if socket.Policy.DisableRetrievalOnPlace {
		if err := add(target.Retrievable.Write(false)); err != nil {
			return nil, err
		}
	}
	return updates, nil
}

func (m *Manager) removalUpdates(target *object.Object, socket *Socket) ([]protocol.Update, error) {
	var updates []protocol.Update
	if !target.Parent.Get().IsZero() {
		update, err := target.Parent.Write(ref.SocketID{})
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	if target.Kinematic.Get() != socket.previousKinematic {
		update, err := target.Kinematic.Write(socket.previousKinematic)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	if target.Retrievable.Get() != socket.previousRetrievable {
		update, err := target.Retrievable.Write(socket.previousRetrievable)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, nil
}
