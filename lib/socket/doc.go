// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package socket manages exclusive placement slots on the authority.
//
// A [Socket] holds at most one occupant. [Manager.Place] seats an
// object: it force-releases the object's ownership, snaps its pose to
// the socket, applies the socket's [Policy], marks the socket occupied,
// broadcasts a placed event, and notifies registered [Listener]s.
// Placing into an occupied socket is refused and the occupant is left
// alone. [Manager.Remove] vacates the socket and restores the object's
// parent, kinematic, and retrievable state.
//
// Policy flags:
//
//   - ReparentOccupant: the object's parent field is set to the socket
//   - DestroyOnPlace: the object is destroyed; the socket keeps its id
//     as a tombstone occupant and Remove becomes a no-op
//   - DisableRetrievalOnPlace: the object cannot be picked up while
//     seated
//   - RequireHeldBeforePlace: only a held object may be placed
//   - ForceKinematicOnPlace: the object's kinematic flag is set while
//     seated
//
// Every decision re-validates current authoritative state; the
// requester's view is never trusted.
package socket
