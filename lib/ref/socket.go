// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// SocketID identifies a placement slot. Sockets are configured, not
// spawned, so there is no generator.
type SocketID struct {
	id string
}

// ParseSocketID validates a raw socket id.
func ParseSocketID(raw string) (SocketID, error) {
	if err := validateName("socket ID", raw); err != nil {
		return SocketID{}, err
	}
	return SocketID{id: raw}, nil
}

// MustParseSocketID is like ParseSocketID but panics on error.
func MustParseSocketID(raw string) SocketID {
	socket, err := ParseSocketID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseSocketID(%q): %v", raw, err))
	}
	return socket
}

func (s SocketID) String() string { return s.id }

// IsZero reports whether the id is unset.
func (s SocketID) IsZero() bool { return s.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (s SocketID) MarshalText() ([]byte, error) { return []byte(s.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SocketID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*s = SocketID{}
		return nil
	}
	parsed, err := ParseSocketID(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
