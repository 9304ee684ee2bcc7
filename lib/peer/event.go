// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// EventKind classifies an Event.
type EventKind uint8

const (
	// EventGranted and EventDenied carry the authority's answer to one
	// of this peer's requests in Result.
	EventGranted EventKind = iota + 1
	EventDenied

	// EventLineSpawned announces a new line, by any peer.
	EventLineSpawned

	// EventBaked reports that a line was finalized.
	EventBaked

	// EventDestroyed reports that an object left the world. Reason is
	// set when the authority gave one (degenerate, for a bake that
	// produced no geometry).
	EventDestroyed

	// EventOwnerChanged reports a new owner, or none, for Object.
	EventOwnerChanged

	// EventPlaced and EventRemoved report socket occupancy changes.
	EventPlaced
	EventRemoved

	// EventCorrected reports that the authority overwrote a field this
	// peer predicted.
	EventCorrected
)

func (k EventKind) String() string {
	switch k {
	case EventGranted:
		return "granted"
	case EventDenied:
		return "denied"
	case EventLineSpawned:
		return "line-spawned"
	case EventBaked:
		return "baked"
	case EventDestroyed:
		return "destroyed"
	case EventOwnerChanged:
		return "owner-changed"
	case EventPlaced:
		return "placed"
	case EventRemoved:
		return "removed"
	case EventCorrected:
		return "corrected"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one thing the application may want to react to.
type Event struct {
	Kind   EventKind
	Object ref.ObjectID
	Socket ref.SocketID

	// Owner is the new owner for EventOwnerChanged and the spawning
	// peer for EventLineSpawned.
	Owner ref.PeerID

	// Field names the corrected field for EventCorrected.
	Field string

	Reason protocol.Reason

	// Result is set for EventGranted and EventDenied.
	Result *protocol.Result
}

func (e Event) String() string {
	switch {
	case e.Result != nil:
		return fmt.Sprintf("%s %s %s", e.Kind, e.Result.Action, e.Result.Request)
	case !e.Socket.IsZero():
		return fmt.Sprintf("%s %s %s", e.Kind, e.Socket, e.Object)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Object)
	}
}
