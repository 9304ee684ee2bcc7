// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package object models interactable objects and the table that holds
// them on both the authority and each peer.
//
// Every [Object] has the same base fields. owner, held, parent,
// kinematic, and retrievable are ServerOnly: only the authority writes
// them, as the outcome of an ownership grant or a socket placement.
// pose is OwnerOnly, so the peer holding an object moves it. Specialized
// objects (lines) pass extra fields to [New].
//
// A [Table] maps ids to objects and iterates in id order, so snapshots
// of the same world encode to the same bytes.
package object
