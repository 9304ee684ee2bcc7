// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/protocol"
)

// State is where a target's request stands.
type State uint8

const (
	Idle State = iota
	Requesting
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type entry struct {
	state   State
	request protocol.RequestID
	reason  protocol.Reason
}

// Tracker holds request state per target key. Safe for concurrent use.
type Tracker[K comparable] struct {
	mu      sync.Mutex
	entries map[K]entry
}

// NewTracker returns a Tracker with every target Idle.
func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{entries: make(map[K]entry)}
}

// State returns the target's state.
func (t *Tracker[K]) State(key K) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[key].state
}

// Reason returns why the target's last request was denied.
func (t *Tracker[K]) Reason(key K) protocol.Reason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[key].reason
}

// Begin moves an Idle target to Requesting and calls send to issue the
// request. It reports false, without calling send, if the target is not
// Idle.
func (t *Tracker[K]) Begin(key K, send func() protocol.RequestID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[key].state != Idle {
		return false
	}
	t.entries[key] = entry{state: Requesting, request: send()}
	return true
}

// Resolve records the result for the target's outstanding request. It
// reports false if the target is not Requesting or the request id does
// not match.
func (t *Tracker[K]) Resolve(key K, request protocol.RequestID, granted bool, reason protocol.Reason) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.entries[key]
	if current.state != Requesting || current.request != request {
		return false
	}
	if granted {
		t.entries[key] = entry{state: Granted, request: request}
	} else {
		t.entries[key] = entry{state: Denied, request: request, reason: reason}
	}
	return true
}

// Outstanding returns the target's in-flight request, if it is
// Requesting.
func (t *Tracker[K]) Outstanding(key K) (protocol.RequestID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.entries[key]
	return current.request, current.state == Requesting
}

// Find returns the key whose outstanding request is request.
func (t *Tracker[K]) Find(request protocol.RequestID) (K, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, current := range t.entries {
		if current.state == Requesting && current.request == request {
			return key, true
		}
	}
	var zero K
	return zero, false
}

// Reset returns the target to Idle, abandoning any outstanding request.
func (t *Tracker[K]) Reset(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}
