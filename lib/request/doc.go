// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package request tracks in-flight requests on the peer side.
//
// Requests to the authority are fire-and-forget: the caller never
// blocks on a reply. A [Tracker] keeps an explicit [State] per target
// (Idle, Requesting, Granted, Denied) so that a trigger firing every
// frame produces one request, and so that a late or duplicate result
// cannot be mistaken for the answer to a newer request. A target moves
// Idle → Requesting on [Tracker.Begin], to Granted or Denied when the
// matching result arrives, and back to Idle only on [Tracker.Reset].
//
// [Sockets] is the protocol layer for socket placement: it turns
// proximity intents into at most one PlaceSocket per stay inside a
// volume, and a RemoveSocket when a placed object leaves.
package request
