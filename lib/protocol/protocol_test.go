// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

func TestEnvelopeDispatchesByKind(t *testing.T) {
	request := NewRequestID(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	envelope, err := Encode(&SpawnLine{
		Request: request,
		Seed:    geometry.V(0, 1, 0),
		Style:   geometry.DefaultStyle,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if envelope.Kind != KindSpawnLine {
		t.Fatalf("Kind = %q, want %q", envelope.Kind, KindSpawnLine)
	}

	// Through the codec, as a transport would carry it.
	data, err := codec.Marshal(envelope)
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}
	var received Envelope
	if err := codec.Unmarshal(data, &received); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}

	message, err := received.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	spawn, ok := message.(*SpawnLine)
	if !ok {
		t.Fatalf("Decode returned %T, want *SpawnLine", message)
	}
	if spawn.Request != request {
		t.Errorf("Request = %v, want %v", spawn.Request, request)
	}
	if spawn.Seed != geometry.V(0, 1, 0) || spawn.Style != geometry.DefaultStyle {
		t.Errorf("decoded body = %+v", spawn)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Envelope{Kind: "teleport"}.Decode()
	if err == nil {
		t.Fatal("Decode accepted an unknown kind")
	}
}

func TestEveryKindIsRegistered(t *testing.T) {
	for kind, constructor := range registry {
		if got := constructor().Kind(); got != kind {
			t.Errorf("registry[%q] constructs a %q body", kind, got)
		}
	}
}

func TestRequestIDsAreOrderedAndParse(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	first := NewRequestID(now)
	second := NewRequestID(now)
	if first.String() >= second.String() {
		t.Errorf("ids minted in the same millisecond not increasing: %s, %s", first, second)
	}
	if !first.Time().Equal(now) {
		t.Errorf("Time() = %v, want %v", first.Time(), now)
	}
	parsed, err := ParseRequestID(first.String())
	if err != nil {
		t.Fatalf("ParseRequestID: %v", err)
	}
	if parsed != first {
		t.Errorf("parsed = %v, want %v", parsed, first)
	}
	if _, err := ParseRequestID("not-a-ulid"); err == nil {
		t.Error("ParseRequestID accepted garbage")
	}
}

func TestZeroRequestIDEncodesEmpty(t *testing.T) {
	data, err := codec.Marshal(&RequestOwnership{Object: ref.MustParseObjectID("pen")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded RequestOwnership
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Request.IsZero() {
		t.Errorf("Request = %v, want zero", decoded.Request)
	}
}

func TestReasonOf(t *testing.T) {
	errHeld := Deny(ReasonAlreadyHeld, "object already held")
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ""},
		{"sentinel", errHeld, ReasonAlreadyHeld},
		{"wrapped", fmt.Errorf("object pen: %w", errHeld), ReasonAlreadyHeld},
		{"plain", errors.New("disk on fire"), ReasonInternal},
	}
	for _, test := range tests {
		if got := ReasonOf(test.err); got != test.want {
			t.Errorf("%s: ReasonOf = %q, want %q", test.name, got, test.want)
		}
	}
}

func TestIsMutation(t *testing.T) {
	if !IsMutation(KindAddPoint) || !IsMutation(KindRequestOwnership) {
		t.Error("mutations not reported")
	}
	if IsMutation(KindHello) || IsMutation(KindUpdates) {
		t.Error("non-mutations reported as mutations")
	}
}
