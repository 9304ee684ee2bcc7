// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// FieldSet is the replicated fields of one object, in declaration
// order.
type FieldSet struct {
	object ref.ObjectID
	fields []Replicated
	byName map[string]Replicated
}

// NewFieldSet groups fields under object. Field names must be unique.
func NewFieldSet(object ref.ObjectID, fields ...Replicated) *FieldSet {
	set := &FieldSet{object: object, byName: make(map[string]Replicated, len(fields))}
	for _, field := range fields {
		set.Add(field)
	}
	return set
}

// Add appends a field. Panics on a duplicate name: field layouts are
// fixed at construction.
func (s *FieldSet) Add(field Replicated) {
	if _, exists := s.byName[field.Name()]; exists {
		panic(fmt.Sprintf("replica: duplicate field %q on %s", field.Name(), s.object))
	}
	s.fields = append(s.fields, field)
	s.byName[field.Name()] = field
}

// Object returns the id of the object the fields belong to.
func (s *FieldSet) Object() ref.ObjectID { return s.object }

// Field looks up a field by name.
func (s *FieldSet) Field(name string) (Replicated, bool) {
	field, ok := s.byName[name]
	return field, ok
}

// Snapshot returns every field's value and version.
func (s *FieldSet) Snapshot() ([]protocol.FieldState, error) {
	states := make([]protocol.FieldState, 0, len(s.fields))
	for _, field := range s.fields {
		value, err := field.Encode()
		if err != nil {
			return nil, fmt.Errorf("snapshot of %s: %w", s.object, err)
		}
		states = append(states, protocol.FieldState{Name: field.Name(), Version: field.Version(), Value: value})
	}
	return states, nil
}

// Restore overwrites fields from a snapshot. Fields missing from the
// snapshot keep their values; unknown names are an error.
func (s *FieldSet) Restore(states []protocol.FieldState) error {
	for _, state := range states {
		field, ok := s.byName[state.Name]
		if !ok {
			return fmt.Errorf("%w: %q on %s", ErrUnknownField, state.Name, s.object)
		}
		if err := field.restore(state.Value, state.Version); err != nil {
			return fmt.Errorf("restoring %s: %w", s.object, err)
		}
	}
	return nil
}

func (s *FieldSet) lookup(update protocol.Update) (Replicated, error) {
	field, ok := s.byName[update.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownField, update.Field, s.object)
	}
	return field, nil
}
