// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/google/uuid"
)

// PeerID identifies a session participant. The authority has the
// reserved id [Authority]; connected peers may not claim it.
type PeerID struct {
	id string
}

// Authority is the PeerID of the serializing authority process. It is
// the origin stamped on every server-originated write.
var Authority = PeerID{id: "authority"}

// ParsePeerID validates a raw peer id.
func ParsePeerID(raw string) (PeerID, error) {
	if err := validateName("peer ID", raw); err != nil {
		return PeerID{}, err
	}
	return PeerID{id: raw}, nil
}

// MustParsePeerID is like ParsePeerID but panics on error.
func MustParsePeerID(raw string) PeerID {
	peer, err := ParsePeerID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParsePeerID(%q): %v", raw, err))
	}
	return peer
}

// NewPeerID returns a fresh random peer id ("peer-<uuid>").
func NewPeerID() PeerID {
	return PeerID{id: "peer-" + uuid.NewString()}
}

func (p PeerID) String() string { return p.id }

// IsZero reports whether the id is unset.
func (p PeerID) IsZero() bool { return p.id == "" }

// IsAuthority reports whether p is the authority's reserved id.
func (p PeerID) IsAuthority() bool { return p == Authority }

// MarshalText implements encoding.TextMarshaler. The zero value
// encodes as an empty string.
func (p PeerID) MarshalText() ([]byte, error) { return []byte(p.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero value.
func (p *PeerID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = PeerID{}
		return nil
	}
	parsed, err := ParsePeerID(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
