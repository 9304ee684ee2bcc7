// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Permission says who may write a field.
type Permission uint8

const (
	// ServerOnly fields are written only by the authority.
	ServerOnly Permission = iota

	// OwnerOnly fields may be written by the authority or the object's
	// current owner.
	OwnerOnly
)

func (p Permission) String() string {
	switch p {
	case ServerOnly:
		return "server-only"
	case OwnerOnly:
		return "owner-only"
	default:
		return fmt.Sprintf("permission(%d)", uint8(p))
	}
}

var (
	// ErrPermissionDenied is returned when the writer may not write the
	// field.
	ErrPermissionDenied = protocol.Deny(protocol.ReasonPermissionDenied, "permission denied")

	// ErrUnknownField is returned for an update naming a field the
	// object does not have.
	ErrUnknownField = protocol.Deny(protocol.ReasonMalformed, "unknown field")

	// ErrUnsupportedOp is returned for an operation the field shape
	// does not support, such as append on a scalar.
	ErrUnsupportedOp = protocol.Deny(protocol.ReasonMalformed, "unsupported operation")

	// ErrIndexOutOfRange is returned for a remove past the end of a
	// sequence.
	ErrIndexOutOfRange = protocol.Deny(protocol.ReasonInvalidTransition, "index out of range")
)

// Authorize checks whether writer may write a field with the given
// permission on an object currently owned by owner (zero if unowned).
// The authority may write anything. A peer may write only OwnerOnly
// fields of objects it owns.
func Authorize(permission Permission, writer, owner ref.PeerID) error {
	if writer.IsAuthority() {
		return nil
	}
	if permission == OwnerOnly && !owner.IsZero() && writer == owner {
		return nil
	}
	if owner.IsZero() {
		return fmt.Errorf("%w: %s field, writer %s, object unowned", ErrPermissionDenied, permission, writer)
	}
	return fmt.Errorf("%w: %s field, writer %s, owner %s", ErrPermissionDenied, permission, writer, owner)
}
