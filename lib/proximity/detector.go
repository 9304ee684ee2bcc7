// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proximity

import (
	"sync"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// IntentKind is what an intent asks for.
type IntentKind uint8

const (
	// Inside: the object is within the socket's volume this frame.
	Inside IntentKind = iota + 1

	// Left: the object was inside last frame and is not now.
	Left
)

func (k IntentKind) String() string {
	switch k {
	case Inside:
		return "inside"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Intent is one detection for one object and socket.
type Intent struct {
	Kind   IntentKind
	Socket ref.SocketID
	Object ref.ObjectID
}

// Volume is a sphere around a socket.
type Volume struct {
	Socket ref.SocketID
	Center geometry.Vec3
	Radius float64
}

// Contains reports whether position is inside or on the sphere.
func (v Volume) Contains(position geometry.Vec3) bool {
	return v.Center.Distance(position) <= v.Radius
}

type pair struct {
	socket ref.SocketID
	object ref.ObjectID
}

// Detector turns positions into intents. Safe for concurrent use.
type Detector struct {
	volumes []Volume

	mu     sync.Mutex
	inside map[pair]bool
}

// NewDetector returns a detector over volumes.
func NewDetector(volumes ...Volume) *Detector {
	return &Detector{volumes: volumes, inside: make(map[pair]bool)}
}

// Observe reports the intents for object at position, in volume order.
func (d *Detector) Observe(object ref.ObjectID, position geometry.Vec3) []Intent {
	d.mu.Lock()
	defer d.mu.Unlock()

	var intents []Intent
	for _, volume := range d.volumes {
		key := pair{socket: volume.Socket, object: object}
		switch {
		case volume.Contains(position):
			d.inside[key] = true
			intents = append(intents, Intent{Kind: Inside, Socket: volume.Socket, Object: object})
		case d.inside[key]:
			delete(d.inside, key)
			intents = append(intents, Intent{Kind: Left, Socket: volume.Socket, Object: object})
		}
	}
	return intents
}

// Forget drops tracking for an object that no longer exists, reporting
// Left for every volume it was inside.
func (d *Detector) Forget(object ref.ObjectID) []Intent {
	d.mu.Lock()
	defer d.mu.Unlock()

	var intents []Intent
	for _, volume := range d.volumes {
		key := pair{socket: volume.Socket, object: object}
		if d.inside[key] {
			delete(d.inside, key)
			intents = append(intents, Intent{Kind: Left, Socket: volume.Socket, Object: object})
		}
	}
	return intents
}
