// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// sampleUpdate mirrors the shape of a replicated field update.
type sampleUpdate struct {
	Object string     `cbor:"object"`
	Field  string     `cbor:"field"`
	Value  RawMessage `cbor:"value,omitempty"`
	Index  int        `cbor:"index,omitempty"`
}

// textID implements encoding.TextMarshaler the way the ref types do.
type textID struct {
	id string
}

func (t textID) MarshalText() ([]byte, error) { return []byte(t.id), nil }

func (t *textID) UnmarshalText(data []byte) error {
	t.id = string(data)
	return nil
}

func TestRawValueRoundtrip(t *testing.T) {
	value, err := Marshal([]float32{0, 1, 0.02})
	if err != nil {
		t.Fatalf("Marshal value: %v", err)
	}
	original := sampleUpdate{Object: "pen-1", Field: "points", Value: value}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleUpdate
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Object != original.Object || decoded.Field != original.Field {
		t.Errorf("header mismatch: got %+v, want %+v", decoded, original)
	}

	var points []float32
	if err := Unmarshal(decoded.Value, &points); err != nil {
		t.Fatalf("Unmarshal value: %v", err)
	}
	if len(points) != 3 || points[2] != 0.02 {
		t.Errorf("points = %v, want [0 1 0.02]", points)
	}
}

func TestMapEncodingIsDeterministic(t *testing.T) {
	// Snapshot digests compare bytes across peers, so map iteration
	// order must not leak into the encoding.
	first := map[string]int{"owner": 1, "held": 2, "pose": 3, "baked": 4}
	second := map[string]int{"baked": 4, "pose": 3, "held": 2, "owner": 1}

	firstData, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal first: %v", err)
	}
	for range 20 {
		secondData, err := Marshal(second)
		if err != nil {
			t.Fatalf("Marshal second: %v", err)
		}
		if !bytes.Equal(firstData, secondData) {
			t.Fatalf("encodings differ: %x != %x", firstData, secondData)
		}
	}
}

func TestTextMarshalerEncodesAsString(t *testing.T) {
	type envelope struct {
		Sender textID `cbor:"sender"`
	}

	data, err := Marshal(envelope{Sender: textID{id: "peer-a"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"peer-a"`) {
		t.Errorf("notation %q does not carry the id as a text string", notation)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Sender.id != "peer-a" {
		t.Errorf("sender = %q, want %q", decoded.Sender.id, "peer-a")
	}
}

func TestStreamCarriesSequenceOfMessages(t *testing.T) {
	updates := []sampleUpdate{
		{Object: "line-1", Field: "points", Index: 0},
		{Object: "line-1", Field: "points", Index: 1},
		{Object: "line-1", Field: "baked"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, update := range updates {
		if err := encoder.Encode(update); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range updates {
		var got sampleUpdate
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got.Object != want.Object || got.Field != want.Field || got.Index != want.Index {
			t.Errorf("update %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestDecodeAnyProducesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"socket": map[string]any{"occupant": "pen-1"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["socket"].(map[string]any); !ok {
		t.Errorf("nested type = %T, want map[string]any", outer["socket"])
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var update sampleUpdate
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &update); err == nil {
		t.Error("Unmarshal accepted invalid CBOR")
	}
}
