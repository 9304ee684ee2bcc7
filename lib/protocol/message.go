// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Kind names a message type on the wire.
type Kind string

// Peer to authority.
const (
	KindHello            Kind = "hello"
	KindRequestOwnership Kind = "request_ownership"
	KindReleaseOwnership Kind = "release_ownership"
	KindWrite            Kind = "write"
	KindSpawnLine        Kind = "spawn_line"
	KindAddPoint         Kind = "add_point"
	KindRemovePoint      Kind = "remove_point"
	KindBake             Kind = "bake"
	KindPlaceSocket      Kind = "place_socket"
	KindRemoveSocket     Kind = "remove_socket"
)

// Authority to peer.
const (
	KindWelcome   Kind = "welcome"
	KindReject    Kind = "reject"
	KindUpdates   Kind = "updates"
	KindSpawned   Kind = "spawned"
	KindDestroyed Kind = "destroyed"
	KindResult    Kind = "result"
	KindPlaced    Kind = "placed"
	KindRemoved   Kind = "removed"
)

// Message is implemented by every body type.
type Message interface {
	Kind() Kind
}

// Envelope is the unit written to a transport connection.
type Envelope struct {
	Kind Kind             `cbor:"kind"`
	Body codec.RawMessage `cbor:"body,omitempty"`
}

// Encode wraps a message body in an envelope.
func Encode(message Message) (Envelope, error) {
	body, err := codec.Marshal(message)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s: %w", message.Kind(), err)
	}
	return Envelope{Kind: message.Kind(), Body: body}, nil
}

// Decode unmarshals the body into the concrete type registered for the
// envelope's kind and returns a pointer to it.
func (e Envelope) Decode() (Message, error) {
	constructor, ok := registry[e.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %q", e.Kind)
	}
	message := constructor()
	if err := codec.Unmarshal(e.Body, message); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", e.Kind, err)
	}
	return message, nil
}

var registry = map[Kind]func() Message{
	KindHello:            func() Message { return new(Hello) },
	KindRequestOwnership: func() Message { return new(RequestOwnership) },
	KindReleaseOwnership: func() Message { return new(ReleaseOwnership) },
	KindWrite:            func() Message { return new(Write) },
	KindSpawnLine:        func() Message { return new(SpawnLine) },
	KindAddPoint:         func() Message { return new(AddPoint) },
	KindRemovePoint:      func() Message { return new(RemovePoint) },
	KindBake:             func() Message { return new(Bake) },
	KindPlaceSocket:      func() Message { return new(PlaceSocket) },
	KindRemoveSocket:     func() Message { return new(RemoveSocket) },
	KindWelcome:          func() Message { return new(Welcome) },
	KindReject:           func() Message { return new(Reject) },
	KindUpdates:          func() Message { return new(Updates) },
	KindSpawned:          func() Message { return new(Spawned) },
	KindDestroyed:        func() Message { return new(Destroyed) },
	KindResult:           func() Message { return new(Result) },
	KindPlaced:           func() Message { return new(Placed) },
	KindRemoved:          func() Message { return new(Removed) },
}

// Hello is the first message on every peer connection.
type Hello struct {
	Peer     ref.PeerID `cbor:"peer"`
	Protocol int        `cbor:"protocol"`

	// Token is a signed join token, required when the authority is
	// configured with a join secret.
	Token string `cbor:"token,omitempty"`
}

// RequestOwnership asks for exclusive write access to an object.
type RequestOwnership struct {
	Request RequestID    `cbor:"request"`
	Object  ref.ObjectID `cbor:"object"`
}

// ReleaseOwnership gives up ownership (or one hold on a multi-holder
// object).
type ReleaseOwnership struct {
	Request RequestID    `cbor:"request"`
	Object  ref.ObjectID `cbor:"object"`
}

// Write is an owner-only field write that has no dedicated message,
// such as an object's pose or a line's style.
type Write struct {
	Update Update `cbor:"update"`
}

// SpawnLine asks the authority to create a new line owned by the
// sender, seeded with Seed twice.
type SpawnLine struct {
	Request RequestID      `cbor:"request"`
	Seed    geometry.Vec3  `cbor:"seed"`
	Style   geometry.Style `cbor:"style"`
}

// AddPoint appends a point to a line.
type AddPoint struct {
	Line  ref.ObjectID  `cbor:"line"`
	Point geometry.Vec3 `cbor:"point"`
}

// RemovePoint deletes the point at Index from a line.
type RemovePoint struct {
	Line  ref.ObjectID `cbor:"line"`
	Index int          `cbor:"index"`
}

// Bake finalizes a line.
type Bake struct {
	Request RequestID    `cbor:"request"`
	Line    ref.ObjectID `cbor:"line"`
}

// PlaceSocket asks to seat an object in a socket.
type PlaceSocket struct {
	Request RequestID    `cbor:"request"`
	Socket  ref.SocketID `cbor:"socket"`
	Object  ref.ObjectID `cbor:"object"`
}

// RemoveSocket asks to vacate a socket. When Object is set the
// authority refuses unless it is still the occupant.
type RemoveSocket struct {
	Request RequestID    `cbor:"request"`
	Socket  ref.SocketID `cbor:"socket"`
	Object  ref.ObjectID `cbor:"object,omitempty"`
}

// Welcome admits a peer and carries the encoded world snapshot.
type Welcome struct {
	Peer     ref.PeerID `cbor:"peer"`
	Snapshot []byte     `cbor:"snapshot"`
}

// Reject refuses a hello. The authority closes the connection after
// sending it.
type Reject struct {
	Reason Reason `cbor:"reason"`
	Detail string `cbor:"detail,omitempty"`
}

// Updates is a batch of authoritative field updates.
type Updates struct {
	Updates []Update `cbor:"updates"`
}

// Spawned announces a new object with all its fields.
type Spawned struct {
	Object ObjectState `cbor:"object"`
}

// Destroyed announces that an object no longer exists.
type Destroyed struct {
	Object ref.ObjectID `cbor:"object"`
	Reason Reason       `cbor:"reason,omitempty"`
}

// Result answers a request that carried a RequestID. Only the
// requester receives it.
type Result struct {
	Request RequestID    `cbor:"request"`
	Action  Kind         `cbor:"action"`
	Object  ref.ObjectID `cbor:"object,omitempty"`
	Socket  ref.SocketID `cbor:"socket,omitempty"`
	Granted bool         `cbor:"granted"`
	Reason  Reason       `cbor:"reason,omitempty"`
}

// Placed announces that Object now occupies Socket.
type Placed struct {
	Socket ref.SocketID `cbor:"socket"`
	Object ref.ObjectID `cbor:"object"`
}

// Removed announces that Socket was vacated by Object.
type Removed struct {
	Socket ref.SocketID `cbor:"socket"`
	Object ref.ObjectID `cbor:"object"`
}

func (*Hello) Kind() Kind            { return KindHello }
func (*RequestOwnership) Kind() Kind { return KindRequestOwnership }
func (*ReleaseOwnership) Kind() Kind { return KindReleaseOwnership }
func (*Write) Kind() Kind            { return KindWrite }
func (*SpawnLine) Kind() Kind        { return KindSpawnLine }
func (*AddPoint) Kind() Kind         { return KindAddPoint }
func (*RemovePoint) Kind() Kind      { return KindRemovePoint }
func (*Bake) Kind() Kind             { return KindBake }
func (*PlaceSocket) Kind() Kind      { return KindPlaceSocket }
func (*RemoveSocket) Kind() Kind     { return KindRemoveSocket }
func (*Welcome) Kind() Kind          { return KindWelcome }
func (*Reject) Kind() Kind           { return KindReject }
func (*Updates) Kind() Kind          { return KindUpdates }
func (*Spawned) Kind() Kind          { return KindSpawned }
func (*Destroyed) Kind() Kind        { return KindDestroyed }
func (*Result) Kind() Kind           { return KindResult }
func (*Placed) Kind() Kind           { return KindPlaced }
func (*Removed) Kind() Kind          { return KindRemoved }

// IsMutation reports whether kind changes world state. The authority
// rate-limits these.
func IsMutation(kind Kind) bool {
	switch kind {
	case KindRequestOwnership, KindReleaseOwnership, KindWrite, KindSpawnLine,
		KindAddPoint, KindRemovePoint, KindBake, KindPlaceSocket, KindRemoveSocket:
		return true
	}
	return false
}
