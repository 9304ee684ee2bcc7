// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID correlates a request with its Result. It is a ULID, so ids
// minted by one peer sort in the order they were issued, which makes
// the authority's debug logs readable.
type RequestID struct {
	id ulid.ULID
}

var (
	entropyMutex sync.Mutex
	entropy      io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID mints a request id timestamped at now.
func NewRequestID(now time.Time) RequestID {
	entropyMutex.Lock()
	defer entropyMutex.Unlock()
	return RequestID{id: ulid.MustNew(ulid.Timestamp(now), entropy)}
}

// ParseRequestID parses the 26-character text form.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return RequestID{}, fmt.Errorf("request ID %q: %w", raw, err)
	}
	return RequestID{id: parsed}, nil
}

// IsZero reports whether the id is unset.
func (r RequestID) IsZero() bool { return r.id == (ulid.ULID{}) }

// Time returns the timestamp the id was minted with.
func (r RequestID) Time() time.Time { return ulid.Time(r.id.Time()) }

func (r RequestID) String() string {
	if r.IsZero() {
		return ""
	}
	return r.id.String()
}

// MarshalText implements encoding.TextMarshaler. The zero id encodes as
// an empty string.
func (r RequestID) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RequestID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = RequestID{}
		return nil
	}
	parsed, err := ParseRequestID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
