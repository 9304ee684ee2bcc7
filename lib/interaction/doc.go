// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package interaction turns raw input on a peer into drawing requests.
//
// A [Controller] drives one tool (a pen) through three states:
//
//	Idle ──Pick, granted──▶ Held ──BeginStroke──▶ Drawing
//	  ▲                      │  ▲                   │
//	  └──Drop / Socketed─────┘  └──EndStroke────────┘
//
// Picking requests ownership of the tool; the controller enters Held
// when the grant arrives. [Controller.BeginStroke] is the single entry
// point for starting a line, whether the trigger was surface contact
// or an explicit button; it asks the authority to spawn a line seeded
// at the contact point. [Controller.ContactMove] appends a point only
// when it is at least the minimum distance from the last appended one.
// [Controller.EndStroke] appends the final contact point, bakes the
// line, and releases it. If no contact event arrives for the
// contact-loss timeout the stroke is ended the same way, so a lost
// contact never leaves an unbaked line behind.
//
// The style (colors and widths) is captured when a stroke begins.
// Changing it mid-stroke affects only later lines.
//
// Requests go through the [Actions] interface and are fire-and-forget.
// Results come back through [Controller.HandleResult]. Points reported
// while the spawn request is outstanding are buffered and flushed, in
// order, once the line id arrives.
package interaction
