// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import (
	"fmt"
	"math"
)

// Vec3 is a point or direction in world units. Encoded as a three
// element array to keep point sequences compact.
type Vec3 struct {
	_ struct{} `cbor:",toarray"`
	X float64  `json:"x" yaml:"x"`
	Y float64  `json:"y" yaml:"y"`
	Z float64  `json:"z" yaml:"z"`
}

// V is shorthand for Vec3{X: x, Y: y, Z: z}.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(other Vec3) Vec3 { return V(v.X+other.X, v.Y+other.Y, v.Z+other.Z) }
func (v Vec3) Sub(other Vec3) Vec3 { return V(v.X-other.X, v.Y-other.Y, v.Z-other.Z) }
func (v Vec3) Scale(factor float64) Vec3 {
	return V(v.X*factor, v.Y*factor, v.Z*factor)
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float64 { return v.X*other.X + v.Y*other.Y + v.Z*other.Z }

// Cross returns the cross product v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return V(
		v.Y*other.Z-v.Z*other.Y,
		v.Z*other.X-v.X*other.Z,
		v.X*other.Y-v.Y*other.X,
	)
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Distance returns the Euclidean distance between two points.
func (v Vec3) Distance(other Vec3) float64 { return v.Sub(other).Length() }

// Normalize returns v scaled to unit length, or the zero vector if v is
// shorter than 1e-12.
func (v Vec3) Normalize() Vec3 {
	length := v.Length()
	if length < 1e-12 {
		return Vec3{}
	}
	return v.Scale(1 / length)
}

// IsFinite reports whether every component is a finite number. The
// authority rejects points that are not.
func (v Vec3) IsFinite() bool {
	for _, component := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(component) || math.IsInf(component, 0) {
			return false
		}
	}
	return true
}

func (v Vec3) String() string { return fmt.Sprintf("(%g,%g,%g)", v.X, v.Y, v.Z) }

// Quat is a rotation quaternion.
type Quat struct {
	_ struct{} `cbor:",toarray"`
	X float64  `json:"x" yaml:"x"`
	Y float64  `json:"y" yaml:"y"`
	Z float64  `json:"z" yaml:"z"`
	W float64  `json:"w" yaml:"w"`
}

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// Pose is a position and orientation.
type Pose struct {
	Position Vec3 `cbor:"p" json:"position" yaml:"position"`
	Rotation Quat `cbor:"r" json:"rotation" yaml:"rotation"`
}

// At returns a pose at position with identity rotation.
func At(position Vec3) Pose { return Pose{Position: position, Rotation: Identity} }
