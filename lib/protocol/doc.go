// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the messages exchanged between peers and the
// authority.
//
// Every message travels as an [Envelope]: a [Kind] string and a CBOR
// body. Body types implement [Message]. [Encode] wraps a body and
// [Envelope.Decode] unwraps it into the concrete type for its kind, so
// receivers dispatch with a type switch:
//
//	message, err := envelope.Decode()
//	switch body := message.(type) {
//	case *protocol.AddPoint:
//	    ...
//	}
//
// Field replication travels as [Update] values inside [Updates]. An
// update names an object, a field, an operation ([OpSet], [OpAppend],
// [OpRemove]), the field version after the operation, and the peer
// whose write it was. Receivers use the origin to discard echoes of
// their own predicted writes.
//
// Requests that expect an answer carry a [RequestID] (a ULID) which the
// authority copies into the [Result]. Requests are fire-and-forget from
// the peer's point of view: nothing blocks on the result.
//
// Refusals never carry Go errors across the wire, only a [Reason]. A
// [Denial] is an error that carries a Reason; domain packages declare
// their sentinel errors with [Deny] so the authority can map any
// rejection to its wire reason with [ReasonOf].
package protocol
