// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Policy controls what placement does to an object.
type Policy struct {
	ReparentOccupant        bool `cbor:"reparent_occupant" json:"reparent_occupant" yaml:"reparent_occupant"`
	DestroyOnPlace          bool `cbor:"destroy_on_place" json:"destroy_on_place" yaml:"destroy_on_place"`
	DisableRetrievalOnPlace bool `cbor:"disable_retrieval_on_place" json:"disable_retrieval_on_place" yaml:"disable_retrieval_on_place"`
	RequireHeldBeforePlace  bool `cbor:"require_held_before_place" json:"require_held_before_place" yaml:"require_held_before_place"`
	ForceKinematicOnPlace   bool `cbor:"force_kinematic_on_place" json:"force_kinematic_on_place" yaml:"force_kinematic_on_place"`
}

// Socket is one placement slot.
type Socket struct {
	ID     ref.SocketID
	Pose   geometry.Pose
	Policy Policy

	occupant ref.ObjectID

	// State of the occupant before placement, restored on removal.
	previousKinematic   bool
	previousRetrievable bool
}

// Occupant returns the seated object, or the zero id.
func (s *Socket) Occupant() ref.ObjectID { return s.occupant }

// State is a socket as carried in snapshots and admin listings.
type State struct {
	ID       ref.SocketID  `cbor:"id" json:"id"`
	Pose     geometry.Pose `cbor:"pose" json:"pose"`
	Policy   Policy        `cbor:"policy" json:"policy"`
	Occupant ref.ObjectID  `cbor:"occupant,omitempty" json:"occupant,omitempty"`
}

// State returns the socket's current state.
func (s *Socket) State() State {
	return State{ID: s.ID, Pose: s.Pose, Policy: s.Policy, Occupant: s.occupant}
}

// Listener is notified after each placement and removal.
type Listener interface {
	OnPlaced(socket ref.SocketID, object ref.ObjectID)
	OnRemoved(socket ref.SocketID, object ref.ObjectID)
}
