// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

// Kind distinguishes object shapes in snapshots and spawn messages.
type Kind string

const (
	KindObject Kind = "object"
	KindLine   Kind = "line"
)

// Field names of the base fields.
const (
	FieldOwner       = "owner"
	FieldHeld        = "held"
	FieldParent      = "parent"
	FieldKinematic   = "kinematic"
	FieldRetrievable = "retrievable"
	FieldPose        = "pose"
)

// ErrNotFound is returned for an id with no object behind it.
var ErrNotFound = protocol.Deny(protocol.ReasonNotFound, "object not found")

// Object is an interactable object's replicated state.
type Object struct {
	ID     ref.ObjectID
	Kind   Kind
	Fields *replica.FieldSet

	Owner       *replica.Field[ref.PeerID]
	Held        *replica.Field[bool]
	Parent      *replica.Field[ref.SocketID]
	Kinematic   *replica.Field[bool]
	Retrievable *replica.Field[bool]
	Pose        *replica.Field[geometry.Pose]
}

// New builds an unowned, retrievable object at the origin. extra fields
// are appended after the base fields.
func New(id ref.ObjectID, kind Kind, extra ...replica.Replicated) *Object {
	object := &Object{
		ID:          id,
		Kind:        kind,
		Owner:       replica.NewField[ref.PeerID](FieldOwner, replica.ServerOnly, ref.PeerID{}),
		Held:        replica.NewField(FieldHeld, replica.ServerOnly, false),
		Parent:      replica.NewField[ref.SocketID](FieldParent, replica.ServerOnly, ref.SocketID{}),
		Kinematic:   replica.NewField(FieldKinematic, replica.ServerOnly, false),
		Retrievable: replica.NewField(FieldRetrievable, replica.ServerOnly, true),
		Pose:        replica.NewField(FieldPose, replica.OwnerOnly, geometry.At(geometry.Vec3{})),
	}
	object.Fields = replica.NewFieldSet(id,
		object.Owner, object.Held, object.Parent, object.Kinematic, object.Retrievable, object.Pose)
	for _, field := range extra {
		object.Fields.Add(field)
	}
	return object
}

// State returns the object's full replicated state.
func (o *Object) State() (protocol.ObjectState, error) {
	fields, err := o.Fields.Snapshot()
	if err != nil {
		return protocol.ObjectState{}, err
	}
	return protocol.ObjectState{ID: o.ID, Kind: string(o.Kind), Fields: fields}, nil
}

// Restore overwrites the object's fields from state.
func (o *Object) Restore(state protocol.ObjectState) error {
	if state.ID != o.ID {
		return fmt.Errorf("restoring %s from state of %s", o.ID, state.ID)
	}
	if Kind(state.Kind) != o.Kind {
		return fmt.Errorf("restoring %s %s from %s state", o.Kind, o.ID, state.Kind)
	}
	return o.Fields.Restore(state.Fields)
}

// Describe is a plain summary for admin listings and logs.
type Describe struct {
	ID          ref.ObjectID  `cbor:"id" json:"id"`
	Kind        Kind          `cbor:"kind" json:"kind"`
	Owner       ref.PeerID    `cbor:"owner,omitempty" json:"owner,omitempty"`
	Held        bool          `cbor:"held" json:"held"`
	Parent      ref.SocketID  `cbor:"parent,omitempty" json:"parent,omitempty"`
	Kinematic   bool          `cbor:"kinematic" json:"kinematic"`
	Retrievable bool          `cbor:"retrievable" json:"retrievable"`
	Position    geometry.Vec3 `cbor:"position" json:"position"`
}

// Summary returns the object's current values as a Describe.
func (o *Object) Summary() Describe {
	return Describe{
		ID:          o.ID,
		Kind:        o.Kind,
		Owner:       o.Owner.Get(),
		Held:        o.Held.Get(),
		Parent:      o.Parent.Get(),
		Kinematic:   o.Kinematic.Get(),
		Retrievable: o.Retrievable.Get(),
		Position:    o.Pose.Get().Position,
	}
}
