// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
)

func lineState(t *testing.T, id string, baked bool, points ...geometry.Vec3) protocol.ObjectState {
	t.Helper()
	stroke := line.New(ref.MustParseObjectID(id))
	stroke.Points.Set(points)
	stroke.Baked.Set(baked)
	state, err := stroke.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	return state
}

func TestStrokesFromWorldSkipsUnbakedAndObjects(t *testing.T) {
	pen, err := object.New(ref.MustParseObjectID("pen-1"), object.KindObject).State()
	if err != nil {
		t.Fatal(err)
	}
	world := snapshot.World{Objects: []protocol.ObjectState{
		pen,
		lineState(t, "line-1", true, geometry.V(0, 0, 0), geometry.V(1, 0, 0), geometry.V(1, 1, 0)),
		lineState(t, "line-2", false, geometry.V(0, 0, 0), geometry.V(0, 1, 0)),
	}}
	strokes, err := StrokesFromWorld(world)
	if err != nil {
		t.Fatalf("StrokesFromWorld: %v", err)
	}
	if len(strokes) != 1 {
		t.Fatalf("got %d strokes, want 1", len(strokes))
	}
	if len(strokes[0].Points) != 3 {
		t.Errorf("stroke has %d points, want 3", len(strokes[0].Points))
	}
}

func TestWritePDF(t *testing.T) {
	strokes := []Stroke{{
		Points: []geometry.Vec3{geometry.V(0, 0, 0), geometry.V(0.5, 0.2, 0), geometry.V(1, 0, 0)},
		Style:  geometry.Style{StartColor: geometry.Red, EndColor: geometry.Blue, StartWidth: 0.01, EndWidth: 0.02},
	}}
	var buffer bytes.Buffer
	if err := WritePDF(&buffer, strokes, ProjectXY); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buffer.Bytes(), []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header: %q", buffer.Bytes()[:min(8, buffer.Len())])
	}
}

func TestWritePDFNothingToExport(t *testing.T) {
	if err := WritePDF(&bytes.Buffer{}, nil, ProjectXY); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("got %v, want ErrNothingToExport", err)
	}
}

func TestFitKeepsAspectAndMargins(t *testing.T) {
	strokes := []Stroke{{Points: []geometry.Vec3{geometry.V(-1, -1, 0), geometry.V(1, 1, 0)}}}
	f := fit(strokes, ProjectXY)

	x1, y1 := f.page(-1, -1)
	x2, y2 := f.page(1, 1)
	if x1 < margin || x2 > pageWidth-margin || y2 < margin || y1 > pageHeight-margin {
		t.Errorf("square mapped outside margins: (%g,%g) (%g,%g)", x1, y1, x2, y2)
	}
	if width, height := x2-x1, y1-y2; width-height > 1e-9 || height-width > 1e-9 {
		t.Errorf("aspect not preserved: width %g height %g", width, height)
	}
	if y2 >= y1 {
		t.Error("world up should map to page up")
	}
}

func TestParseProjection(t *testing.T) {
	if p, err := ParseProjection("xz"); err != nil || p != ProjectXZ {
		t.Errorf("ParseProjection(xz) = %v, %v", p, err)
	}
	if _, err := ParseProjection("yz"); err == nil {
		t.Error("ParseProjection accepted yz")
	}
}
