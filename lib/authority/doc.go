// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authority is the serializing arbiter of a holdfast session.
//
// An [Authority] owns the world: the object table, the ownership
// registry, the line service and the socket manager. All of them are
// driven from one goroutine, [Authority.Run], so every decision is made
// against a single, totally ordered history. Connection goroutines
// only decode messages and queue them for the loop; nothing else
// touches the world.
//
// Outbound traffic goes through per-peer buffered outboxes drained by
// a writer goroutine per connection. The Authority implements
// [replica.Coordinator] over those outboxes. A peer whose outbox fills
// is disconnected rather than allowed to stall the loop.
//
// Joining is a handshake: the first message on a connection must be a
// hello naming the peer, the protocol revision and (when a join secret
// is configured) a join token. The authority answers with a welcome
// carrying a compressed snapshot of the world, or a reject. When a
// peer disconnects every object it owns is released.
//
// Operator queries ([Authority.Status], [Authority.Objects],
// [Authority.ForceRelease], ...) also execute on the loop goroutine.
// [Authority.RegisterAdmin] exposes them on a service.SocketServer.
package authority
