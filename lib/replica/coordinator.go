// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"sync"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Coordinator delivers authority messages to peers. The authority loop
// implements it over real connections; every authority-side component
// receives it at construction instead of looking up a session.
//
// Implementations must not block: messages are queued per peer and
// delivered in the order they were passed in.
type Coordinator interface {
	// Broadcast queues message for every connected peer.
	Broadcast(message protocol.Message)

	// Send queues message for one peer. Unknown peers are ignored.
	Send(peer ref.PeerID, message protocol.Message)

	// Connected reports whether peer currently has a live connection.
	Connected(peer ref.PeerID) bool
}

// Sent is one message recorded by a Recorder's Send.
type Sent struct {
	Peer    ref.PeerID
	Message protocol.Message
}

// Recorder is an in-memory Coordinator for tests. It records every
// message and answers Connected from an explicit peer set. Safe for
// concurrent use.
type Recorder struct {
	mu         sync.Mutex
	connected  map[ref.PeerID]bool
	broadcasts []protocol.Message
	sent       []Sent
}

// NewRecorder returns a Recorder with the given peers connected.
func NewRecorder(peers ...ref.PeerID) *Recorder {
	recorder := &Recorder{connected: make(map[ref.PeerID]bool)}
	for _, peer := range peers {
		recorder.connected[peer] = true
	}
	return recorder
}

func (r *Recorder) Broadcast(message protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, message)
}

func (r *Recorder) Send(peer ref.PeerID, message protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Peer: peer, Message: message})
}

func (r *Recorder) Connected(peer ref.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected[peer]
}

// Connect marks peer as connected.
func (r *Recorder) Connect(peer ref.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[peer] = true
}

// Disconnect marks peer as gone.
func (r *Recorder) Disconnect(peer ref.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, peer)
}

// Broadcasts returns every broadcast message so far.
func (r *Recorder) Broadcasts() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.broadcasts...)
}

// SentTo returns the messages sent to peer.
func (r *Recorder) SentTo(peer ref.PeerID) []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var messages []protocol.Message
	for _, sent := range r.sent {
		if sent.Peer == peer {
			messages = append(messages, sent.Message)
		}
	}
	return messages
}

// BroadcastUpdates flattens the Updates batches among the broadcasts.
func (r *Recorder) BroadcastUpdates() []protocol.Update {
	var updates []protocol.Update
	for _, message := range r.Broadcasts() {
		if batch, ok := message.(*protocol.Updates); ok {
			updates = append(updates, batch.Updates...)
		}
	}
	return updates
}

// Reset forgets recorded messages. Connected peers are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = nil
	r.sent = nil
}
