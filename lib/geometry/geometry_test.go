// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import (
	"math"
	"reflect"
	"testing"

	"github.com/bureau-foundation/holdfast/lib/codec"
)

func TestDistance(t *testing.T) {
	got := V(0, 1, 0).Distance(V(0, 1, 0.02))
	if math.Abs(got-0.02) > 1e-12 {
		t.Errorf("Distance = %v, want 0.02", got)
	}
}

func TestIsFinite(t *testing.T) {
	if !V(1, 2, 3).IsFinite() {
		t.Error("finite vector reported non-finite")
	}
	if V(math.NaN(), 0, 0).IsFinite() || V(0, math.Inf(1), 0).IsFinite() {
		t.Error("non-finite vector reported finite")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		raw     string
		want    Color
		wantErr bool
	}{
		{"#ff0000", Red, false},
		{"#0000ff80", Color{0, 0, 255, 0x80}, false},
		{"ff0000", Color{}, true},
		{"#ff00", Color{}, true},
		{"#gg0000", Color{}, true},
	}
	for _, test := range tests {
		got, err := ParseColor(test.raw)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", test.raw, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseColor(%q) = %v, want %v", test.raw, got, test.want)
		}
	}
}

func TestColorLerp(t *testing.T) {
	mid := Black.Lerp(White, 0.5)
	if mid != (Color{128, 128, 128, 255}) {
		t.Errorf("Lerp(0.5) = %v", mid)
	}
	if Red.Lerp(Blue, 0) != Red || Red.Lerp(Blue, 1) != Blue {
		t.Error("Lerp endpoints do not match inputs")
	}
}

func TestPointsEncodeAsArrays(t *testing.T) {
	data, err := codec.Marshal([]Vec3{V(0, 1, 0)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// 0x81: array of one element; 0x83: array of three.
	if len(data) < 2 || data[0] != 0x81 || data[1] != 0x83 {
		t.Errorf("encoding = %x, want a one-element array of three-element arrays", data)
	}

	var decoded []Vec3
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0] != V(0, 1, 0) {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestSingleTapIsDegenerate(t *testing.T) {
	tap := V(0, 1, 0)
	mesh := RibbonBaker{}.Bake([]Vec3{tap, tap, tap}, DefaultStyle)
	if got := mesh.UniqueVertexCount(); got != 2 {
		t.Errorf("UniqueVertexCount = %d, want 2", got)
	}
	if !mesh.IsDegenerate() {
		t.Error("single tap not degenerate")
	}
}

func TestStrokeBakesToStrip(t *testing.T) {
	points := []Vec3{V(0, 1, 0), V(0, 1, 0), V(0, 1, 0.02), V(0, 1, 0.05)}
	mesh := RibbonBaker{}.Bake(points, DefaultStyle)

	if len(mesh.Vertices) != 2*len(points) {
		t.Fatalf("vertices = %d, want %d", len(mesh.Vertices), 2*len(points))
	}
	if len(mesh.Triangles) != 6*(len(points)-1) {
		t.Errorf("triangle indices = %d, want %d", len(mesh.Triangles), 6*(len(points)-1))
	}
	if mesh.IsDegenerate() {
		t.Error("real stroke reported degenerate")
	}
	for _, index := range mesh.Triangles {
		if index < 0 || index >= len(mesh.Vertices) {
			t.Fatalf("triangle index %d out of range", index)
		}
	}
	// Travel along +Z with up +Y puts the strip edges on the X axis.
	left, right := mesh.Vertices[4], mesh.Vertices[5]
	if math.Abs(left.Distance(right)-DefaultStyle.StartWidth) > 1e-9 {
		t.Errorf("strip width = %v, want %v", left.Distance(right), DefaultStyle.StartWidth)
	}
	if left.Y != 1 || right.Y != 1 {
		t.Errorf("strip edges left the drawing plane: %v %v", left, right)
	}
}

func TestBakeIsDeterministic(t *testing.T) {
	points := []Vec3{V(0, 0, 0), V(0.1, 0.2, 0), V(0.3, 0.1, 0.4)}
	style := Style{StartColor: Red, EndColor: Blue, StartWidth: 0.01, EndWidth: 0.03}
	first := RibbonBaker{}.Bake(points, style)
	second := RibbonBaker{}.Bake(points, style)
	if !reflect.DeepEqual(first, second) {
		t.Error("two bakes of the same input differ")
	}
}

func TestBakeEmpty(t *testing.T) {
	mesh := RibbonBaker{}.Bake(nil, DefaultStyle)
	if len(mesh.Vertices) != 0 || !mesh.IsDegenerate() {
		t.Errorf("empty bake = %+v", mesh)
	}
}

func TestStyleValidate(t *testing.T) {
	if err := DefaultStyle.Validate(); err != nil {
		t.Errorf("DefaultStyle invalid: %v", err)
	}
	bad := DefaultStyle
	bad.EndWidth = -1
	if bad.Validate() == nil {
		t.Error("negative width accepted")
	}
}
