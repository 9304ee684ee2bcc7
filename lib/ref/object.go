// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/google/uuid"
)

// ObjectID identifies an interactable object. Lines are objects too and
// share this id space.
type ObjectID struct {
	id string
}

// ParseObjectID validates a raw object id.
func ParseObjectID(raw string) (ObjectID, error) {
	if err := validateName("object ID", raw); err != nil {
		return ObjectID{}, err
	}
	return ObjectID{id: raw}, nil
}

// MustParseObjectID is like ParseObjectID but panics on error.
func MustParseObjectID(raw string) ObjectID {
	object, err := ParseObjectID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseObjectID(%q): %v", raw, err))
	}
	return object
}

// NewObjectID returns a fresh id of the form "<prefix>-<uuid>". The
// prefix must itself be a valid name of at most 27 bytes.
func NewObjectID(prefix string) ObjectID {
	return MustParseObjectID(prefix + "-" + uuid.NewString())
}

func (o ObjectID) String() string { return o.id }

// IsZero reports whether the id is unset.
func (o ObjectID) IsZero() bool { return o.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (o ObjectID) MarshalText() ([]byte, error) { return []byte(o.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ObjectID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*o = ObjectID{}
		return nil
	}
	parsed, err := ParseObjectID(string(data))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
