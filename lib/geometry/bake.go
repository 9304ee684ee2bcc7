// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import (
	"fmt"
	"math"
)

// MinUniqueVertices is the smallest number of distinct vertices a baked
// line may have. Anything less cannot form a triangle.
const MinUniqueVertices = 3

// Style is the visual style a line is drawn with. Widths are in world
// units; colors and widths are interpolated along the stroke.
type Style struct {
	StartColor Color   `cbor:"start_color" json:"start_color" yaml:"start_color"`
	EndColor   Color   `cbor:"end_color" json:"end_color" yaml:"end_color"`
	StartWidth float64 `cbor:"start_width" json:"start_width" yaml:"start_width"`
	EndWidth   float64 `cbor:"end_width" json:"end_width" yaml:"end_width"`
}

// DefaultStyle is a thin black stroke.
var DefaultStyle = Style{StartColor: Black, EndColor: Black, StartWidth: 0.005, EndWidth: 0.005}

// Validate rejects negative or non-finite widths.
func (s Style) Validate() error {
	for _, width := range []float64{s.StartWidth, s.EndWidth} {
		if width < 0 || math.IsNaN(width) || math.IsInf(width, 0) {
			return fmt.Errorf("invalid stroke width %v", width)
		}
	}
	return nil
}

// WidthAt interpolates the width at t in [0,1].
func (s Style) WidthAt(t float64) float64 {
	return s.StartWidth + (s.EndWidth-s.StartWidth)*t
}

// Mesh is a triangle mesh. Triangles index into Vertices, three per
// triangle.
type Mesh struct {
	Vertices  []Vec3
	Triangles []int
}

// UniqueVertexCount counts distinct vertices, treating vertices within
// 1e-9 units on every axis as the same.
func (m Mesh) UniqueVertexCount() int {
	type key [3]int64
	quantize := func(value float64) int64 { return int64(math.Round(value * 1e9)) }
	seen := make(map[key]struct{}, len(m.Vertices))
	for _, vertex := range m.Vertices {
		seen[key{quantize(vertex.X), quantize(vertex.Y), quantize(vertex.Z)}] = struct{}{}
	}
	return len(seen)
}

// IsDegenerate reports whether the mesh has too few distinct vertices
// to be kept.
func (m Mesh) IsDegenerate() bool { return m.UniqueVertexCount() < MinUniqueVertices }

// Baker turns a point sequence into renderable geometry. Implementations
// must be deterministic: the same points and style always produce the
// same mesh.
type Baker interface {
	Bake(points []Vec3, style Style) Mesh
}

// RibbonBaker extrudes the polyline sideways into a flat strip. Up is
// the reference direction used to pick the strip's sideways axis; the
// zero value uses +Y.
type RibbonBaker struct {
	Up Vec3
}

// Bake emits two vertices per point (left and right edge) and two
// triangles per segment.
func (b RibbonBaker) Bake(points []Vec3, style Style) Mesh {
	if len(points) == 0 {
		return Mesh{}
	}
	up := b.Up.Normalize()
	if up == (Vec3{}) {
		up = V(0, 1, 0)
	}

	mesh := Mesh{Vertices: make([]Vec3, 0, 2*len(points))}
	last := len(points) - 1
	for index, point := range points {
		side := sideways(points, index, up)
		t := 0.0
		if last > 0 {
			t = float64(index) / float64(last)
		}
		half := side.Scale(style.WidthAt(t) / 2)
		mesh.Vertices = append(mesh.Vertices, point.Sub(half), point.Add(half))
	}
	for index := 0; index < last; index++ {
		left, right := 2*index, 2*index+1
		nextLeft, nextRight := left+2, right+2
		mesh.Triangles = append(mesh.Triangles,
			left, nextLeft, right,
			right, nextLeft, nextRight,
		)
	}
	return mesh
}

// sideways picks the unit strip axis at points[index]: perpendicular to
// the local travel direction and up. Falls back to +X when the stroke
// has no direction there (repeated points) or travels along up.
func sideways(points []Vec3, index int, up Vec3) Vec3 {
	var direction Vec3
	for offset := 1; offset < len(points); offset++ {
		if next := index + offset; next < len(points) {
			if direction = points[next].Sub(points[index]); direction.Length() > 1e-12 {
				break
			}
		}
		if previous := index - offset; previous >= 0 {
			if direction = points[index].Sub(points[previous]); direction.Length() > 1e-12 {
				break
			}
		}
	}
	axis := direction.Cross(up).Normalize()
	if axis == (Vec3{}) {
		return V(1, 0, 0)
	}
	return axis
}
