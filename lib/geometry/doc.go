// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package geometry holds the spatial value types replicated between
// peers ([Vec3], [Quat], [Pose], [Color]) and the bake step that turns a
// line's point sequence into a [Mesh].
//
// Bake is an injected collaborator ([Baker]). Every peer runs the same
// deterministic baker on the same replicated points and style, so baked
// geometry converges without being sent over the wire. [RibbonBaker]
// is the built-in implementation: a flat strip of two vertices per
// point, width interpolated from the style's start to end width.
//
// A mesh with fewer than [MinUniqueVertices] distinct vertices is
// degenerate. A single tap (the same point repeated) bakes to exactly
// two distinct vertices.
package geometry
