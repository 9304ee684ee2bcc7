// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Table holds objects by id. Safe for concurrent use: the peer runtime
// reads it from the application while its reader goroutine applies
// spawns and destroys.
type Table struct {
	mu      sync.RWMutex
	objects map[ref.ObjectID]*Object
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{objects: make(map[ref.ObjectID]*Object)}
}

// Add inserts an object. Adding an id twice is an error.
func (t *Table) Add(object *Object) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.objects[object.ID]; exists {
		return fmt.Errorf("object %s already exists", object.ID)
	}
	t.objects[object.ID] = object
	return nil
}

// Remove deletes an object and returns it.
func (t *Table) Remove(id ref.ObjectID) (*Object, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	object, ok := t.objects[id]
	delete(t.objects, id)
	return object, ok
}

// Get looks up an object.
func (t *Table) Get(id ref.ObjectID) (*Object, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	object, ok := t.objects[id]
	return object, ok
}

// Lookup is Get returning ErrNotFound for a missing id.
func (t *Table) Lookup(id ref.ObjectID) (*Object, error) {
	object, ok := t.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return object, nil
}

// Len returns the number of objects.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

// All returns every object in id order.
func (t *Table) All() []*Object {
	t.mu.RLock()
	objects := make([]*Object, 0, len(t.objects))
	for _, object := range t.objects {
		objects = append(objects, object)
	}
	t.mu.RUnlock()

	slices.SortFunc(objects, func(a, b *Object) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return objects
}

// OwnedBy returns the ids of objects owned by peer, in id order.
func (t *Table) OwnedBy(peer ref.PeerID) []ref.ObjectID {
	var owned []ref.ObjectID
	for _, object := range t.All() {
		if object.Owner.Get() == peer {
			owned = append(owned, object.ID)
		}
	}
	return owned
}

// States returns the full state of every object in id order.
func (t *Table) States() ([]protocol.ObjectState, error) {
	objects := t.All()
	states := make([]protocol.ObjectState, 0, len(objects))
	for _, object := range objects {
		state, err := object.State()
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}
