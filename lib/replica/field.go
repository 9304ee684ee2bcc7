// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/protocol"
)

// Replicated is a field that can live in a FieldSet. It is implemented
// only by Field and Sequence.
type Replicated interface {
	Name() string
	Permission() Permission
	Version() uint64

	// Encode returns the current value in its wire form.
	Encode() (codec.RawMessage, error)

	apply(update protocol.Update) error
	restore(value codec.RawMessage, version uint64) error
	setVersion(version uint64)
}

// Field is a single replicated value. Safe for concurrent use.
type Field[T any] struct {
	name       string
	permission Permission

	mu      sync.RWMutex
	value   T
	version uint64
}

// NewField returns a field holding initial at version zero.
func NewField[T any](name string, permission Permission, initial T) *Field[T] {
	return &Field[T]{name: name, permission: permission, value: initial}
}

func (f *Field[T]) Name() string           { return f.name }
func (f *Field[T]) Permission() Permission { return f.permission }

func (f *Field[T]) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// Get returns the current value.
func (f *Field[T]) Get() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// Set assigns value without replicating it or touching the version.
// Use it to seed a field before the object is published.
func (f *Field[T]) Set(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
}

// Write builds a set operation for value. It does not change the field;
// pass the result to Channel.Commit or Mirror.Predict.
func (f *Field[T]) Write(value T) (protocol.Update, error) {
	encoded, err := codec.Marshal(value)
	if err != nil {
		return protocol.Update{}, fmt.Errorf("encoding field %s: %w", f.name, err)
	}
	return protocol.Update{Field: f.name, Op: protocol.OpSet, Value: encoded}, nil
}

func (f *Field[T]) Encode() (codec.RawMessage, error) {
	return codec.Marshal(f.Get())
}

func (f *Field[T]) apply(update protocol.Update) error {
	if update.Op != protocol.OpSet {
		return fmt.Errorf("%w: %s on field %s", ErrUnsupportedOp, update.Op, f.name)
	}
	var value T
	if err := codec.Unmarshal(update.Value, &value); err != nil {
		return fmt.Errorf("decoding field %s: %w", f.name, err)
	}
	f.mu.Lock()
	f.value = value
	f.mu.Unlock()
	return nil
}

func (f *Field[T]) restore(value codec.RawMessage, version uint64) error {
	var decoded T
	if err := codec.Unmarshal(value, &decoded); err != nil {
		return fmt.Errorf("decoding field %s: %w", f.name, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = decoded
	f.version = version
	return nil
}

func (f *Field[T]) setVersion(version uint64) {
	f.mu.Lock()
	f.version = version
	f.mu.Unlock()
}

// Sequence is a replicated ordered list. Insertion order is
// significant and duplicates are allowed. Safe for concurrent use.
type Sequence[T any] struct {
	name       string
	permission Permission

	mu      sync.RWMutex
	items   []T
	version uint64
}

// NewSequence returns an empty sequence at version zero.
func NewSequence[T any](name string, permission Permission) *Sequence[T] {
	return &Sequence[T]{name: name, permission: permission}
}

func (s *Sequence[T]) Name() string           { return s.name }
func (s *Sequence[T]) Permission() Permission { return s.permission }

func (s *Sequence[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Items returns a copy of the elements.
func (s *Sequence[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.items...)
}

// Len returns the number of elements.
func (s *Sequence[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Last returns the final element, if any.
func (s *Sequence[T]) Last() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Set replaces the elements without replicating them or touching the
// version. Use it to seed a sequence before the object is published.
func (s *Sequence[T]) Set(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]T(nil), items...)
}

// AppendOp builds an append operation.
func (s *Sequence[T]) AppendOp(item T) (protocol.Update, error) {
	encoded, err := codec.Marshal(item)
	if err != nil {
		return protocol.Update{}, fmt.Errorf("encoding element of %s: %w", s.name, err)
	}
	return protocol.Update{Field: s.name, Op: protocol.OpAppend, Value: encoded}, nil
}

// RemoveOp builds a remove-by-index operation. The index is checked
// when the operation is applied.
func (s *Sequence[T]) RemoveOp(index int) protocol.Update {
	return protocol.Update{Field: s.name, Op: protocol.OpRemove, Index: index}
}

// SetOp builds a whole-list replacement.
func (s *Sequence[T]) SetOp(items []T) (protocol.Update, error) {
	encoded, err := codec.Marshal(items)
	if err != nil {
		return protocol.Update{}, fmt.Errorf("encoding %s: %w", s.name, err)
	}
	return protocol.Update{Field: s.name, Op: protocol.OpSet, Value: encoded}, nil
}

func (s *Sequence[T]) Encode() (codec.RawMessage, error) {
	return codec.Marshal(s.Items())
}

func (s *Sequence[T]) apply(update protocol.Update) error {
	switch update.Op {
	case protocol.OpSet:
		var items []T
		if err := codec.Unmarshal(update.Value, &items); err != nil {
			return fmt.Errorf("decoding %s: %w", s.name, err)
		}
		s.mu.Lock()
		s.items = items
		s.mu.Unlock()
	case protocol.OpAppend:
		var item T
		if err := codec.Unmarshal(update.Value, &item); err != nil {
			return fmt.Errorf("decoding element of %s: %w", s.name, err)
		}
		s.mu.Lock()
		s.items = append(s.items, item)
		s.mu.Unlock()
	case protocol.OpRemove:
		s.mu.Lock()
		defer s.mu.Unlock()
		if update.Index < 0 || update.Index >= len(s.items) {
			return fmt.Errorf("%w: remove %d from %s of length %d", ErrIndexOutOfRange, update.Index, s.name, len(s.items))
		}
		s.items = append(s.items[:update.Index], s.items[update.Index+1:]...)
	default:
		return fmt.Errorf("%w: %s on sequence %s", ErrUnsupportedOp, update.Op, s.name)
	}
	return nil
}

func (s *Sequence[T]) restore(value codec.RawMessage, version uint64) error {
	var items []T
	if err := codec.Unmarshal(value, &items); err != nil {
		return fmt.Errorf("decoding %s: %w", s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.version = version
	return nil
}

func (s *Sequence[T]) setVersion(version uint64) {
	s.mu.Lock()
	s.version = version
	s.mu.Unlock()
}
