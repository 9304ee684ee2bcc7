// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides the identity value types shared by every holdfast
// component: [PeerID] for session participants (including the
// [Authority] itself), [ObjectID] for interactable objects and lines,
// and [SocketID] for placement slots.
//
// All three are immutable value types wrapping a validated name. Names
// are 1 to 64 bytes of ASCII letters, digits, '.', '_', and '-'. The zero
// value is "unset" and reports IsZero; it is what an empty optional
// (no owner, no occupant) looks like on the wire. Serialization goes
// through encoding.TextMarshaler, so the CBOR codec writes ids as plain
// text strings.
//
// Generated ids (NewPeerID, NewObjectID) combine a short prefix with a
// random UUID from github.com/google/uuid.
package ref
