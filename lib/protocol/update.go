// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Op is a field operation.
type Op uint8

const (
	// OpSet replaces the whole value. For sequences the value is the
	// full element list.
	OpSet Op = iota

	// OpAppend adds one element to the end of a sequence.
	OpAppend

	// OpRemove deletes the element at Index from a sequence.
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpAppend:
		return "append"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Update is one replicated field operation.
type Update struct {
	Object ref.ObjectID     `cbor:"object"`
	Field  string           `cbor:"field"`
	Op     Op               `cbor:"op"`
	Value  codec.RawMessage `cbor:"value,omitempty"`
	Index  int              `cbor:"index,omitempty"`

	// Version is the field's authoritative version after this update.
	// Zero on updates a peer predicts locally.
	Version uint64 `cbor:"version,omitempty"`

	// Origin is the peer whose write this is, or ref.Authority for
	// server-originated writes.
	Origin ref.PeerID `cbor:"origin,omitempty"`

	// Correction marks an authoritative value sent to undo a rejected
	// prediction. Corrections are applied even by their origin.
	Correction bool `cbor:"correction,omitempty"`
}

// FieldState is one field in a snapshot.
type FieldState struct {
	Name    string           `cbor:"name"`
	Version uint64           `cbor:"version"`
	Value   codec.RawMessage `cbor:"value"`
}

// ObjectState is every field of one object, used for late-join
// snapshots and spawn broadcasts.
type ObjectState struct {
	ID     ref.ObjectID `cbor:"id"`
	Kind   string       `cbor:"kind"`
	Fields []FieldState `cbor:"fields"`
}
