// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer is the client runtime that connects an application to
// an authority.
//
// A [Client] holds a local mirror of every object, line and socket. It
// is seeded from the welcome snapshot and kept current by a reader
// goroutine that applies the authority's broadcasts. Writes the local
// peer is entitled to make (point appends, pose moves, bakes of its own
// lines) are predicted: applied to the mirror at once, then sent. The
// authority's echo of a predicted write only advances the field
// version; a correction from the authority overwrites the prediction.
//
// Requests are fire-and-forget. Each request method returns the
// request id immediately and the answer arrives later as an [Event]
// on [Client.Events]. The client implements the action interfaces of
// lib/interaction and lib/request, so a Controller or Sockets can be
// driven directly from the event stream.
//
// Events must be drained. The reader goroutine blocks on a full event
// channel, and an authority disconnects a peer that stops reading.
package peer
