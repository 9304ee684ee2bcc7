// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package line replicates drawn strokes.
//
// A [Line] is an object with an append-only point sequence, a style
// (start and end color and width), and a baked flag. All of these are
// OwnerOnly: the peer drawing the line writes them, predicting locally,
// and the authority validates and rebroadcasts.
//
// The authority side is [Service]. Lines are created by [Service.Spawn]
// on behalf of a peer, which becomes the owner; the new line is seeded
// with the contact point twice so a tap is visible as a dot. Points are
// appended and removed by the owner until [Service.Bake], a one-way
// transition after which the points and style are frozen. Baking runs
// the injected geometry.Baker; a line whose mesh has fewer than three
// distinct vertices is destroyed instead of finalized. Baking a baked
// line is a no-op. The owner normally releases ownership right after
// baking, leaving an unowned, immutable stroke.
//
// Each peer bakes locally with the same deterministic baker once it
// observes the baked flag, so meshes are never sent over the wire.
package line
