// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replica implements replicated fields: named values whose
// writes are validated by the authority and rebroadcast so that every
// peer converges on the same state.
//
// Each field declares a [Permission]. [ServerOnly] fields (an object's
// owner, its held flag) are written only by the authority. [OwnerOnly]
// fields (a pose, a line's points) may also be written by the object's
// current owner. Everyone may read everything.
//
// Two field shapes exist: [Field] holds a single value and supports
// set; [Sequence] holds an ordered list and supports append, remove by
// index, and whole-list set. A [FieldSet] groups the fields of one
// object and produces and restores snapshots.
//
// The authority side writes through a [Channel]:
//
//	update, err := line.Points.AppendOp(point)
//	err = channel.Commit(line.Fields, requester, owner, update)
//
// Commit checks the permission against the writer and current owner,
// applies the operation, bumps the field version, stamps the writer as
// origin, and broadcasts. Broadcasting goes through an injected
// [Coordinator]. Tests use [Recorder].
//
// The peer side keeps a local copy through a [Mirror]. An owner calls
// [Mirror.Predict] to apply its own write immediately, then sends the
// request. When the authority's broadcast arrives, [Mirror.Apply]
// recognizes the echo by its origin and skips it, adopting only the
// version. If the authority rejected the write it sends a correction
// instead, which the mirror applies unconditionally. There is no other
// rollback.
package replica
