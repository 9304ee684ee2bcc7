// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Mirror is the peer side of field replication for the local peer
// self. It counts the predictions on each field that the authority has
// not yet echoed. It is not safe for concurrent use.
type Mirror struct {
	self    ref.PeerID
	pending map[fieldKey]int
}

type fieldKey struct {
	object ref.ObjectID
	field  string
}

// NewMirror returns a Mirror for the local peer.
func NewMirror(self ref.PeerID) *Mirror {
	return &Mirror{self: self, pending: make(map[fieldKey]int)}
}

// Self returns the local peer id.
func (m *Mirror) Self() ref.PeerID { return m.self }

// Predict applies a write by the local peer immediately, before the
// authority has seen it. owner is the object's owner as the local copy
// knows it. The version is left alone: it advances when the echo
// arrives.
func (m *Mirror) Predict(set *FieldSet, owner ref.PeerID, update protocol.Update) error {
	field, err := set.lookup(update)
	if err != nil {
		return err
	}
	if err := Authorize(field.Permission(), m.self, owner); err != nil {
		return fmt.Errorf("%s.%s: %w", set.Object(), field.Name(), err)
	}
	if err := field.apply(update); err != nil {
		return fmt.Errorf("%s.%s: %w", set.Object(), field.Name(), err)
	}
	m.pending[fieldKey{set.Object(), field.Name()}]++
	return nil
}

// Apply applies an authoritative update to the local copy. It reports
// whether the local value changed.
//
// Corrections always apply and discard every outstanding prediction on
// the field, since the corrected value no longer contains them.
// Otherwise updates at or below the field's version are stale and
// skipped. An update whose origin is the local peer is the echo of a
// prediction: while one is outstanding the version is adopted and the
// value left as predicted. An echo with nothing outstanding belongs to
// a prediction a correction wiped out, and is applied.
func (m *Mirror) Apply(set *FieldSet, update protocol.Update) (bool, error) {
	field, err := set.lookup(update)
	if err != nil {
		return false, err
	}
	key := fieldKey{set.Object(), field.Name()}

	if update.Correction {
		delete(m.pending, key)
	} else {
		if update.Version <= field.Version() {
			return false, nil
		}
		if update.Origin == m.self && m.pending[key] > 0 {
			if m.pending[key]--; m.pending[key] == 0 {
				delete(m.pending, key)
			}
			field.setVersion(update.Version)
			return false, nil
		}
	}

	if err := field.apply(update); err != nil {
		return false, fmt.Errorf("%s.%s: %w", set.Object(), field.Name(), err)
	}
	field.setVersion(update.Version)
	return true, nil
}

// Abandon discards outstanding predictions on one field of object, for
// a write the authority refused without sending a correction.
func (m *Mirror) Abandon(object ref.ObjectID, field string) {
	delete(m.pending, fieldKey{object, field})
}

// Forget drops the bookkeeping for a destroyed object.
func (m *Mirror) Forget(object ref.ObjectID) {
	for key := range m.pending {
		if key.object == object {
			delete(m.pending, key)
		}
	}
}
