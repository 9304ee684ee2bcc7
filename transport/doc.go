// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries protocol envelopes between peers and the
// authority.
//
// Every transport produces a [MessageConn]: an ordered, reliable
// stream of [protocol.Envelope] values. The authority does not care
// which transport a peer arrived on.
//
// [Listener] accepts inbound connections (Serve, Address, Close) and
// hands each one to a [Handler]. [Dialer] opens outbound connections
// (Dial). Three network transports implement both:
//
//   - TCP ([TCPListener], [TCPDialer]): a CBOR sequence over a plain
//     stream. The default for LAN sessions.
//   - WebSocket ([WebSocketListener], [WebSocketDialer]): one binary
//     frame per envelope, served at /session. For browser peers and
//     HTTP-only networks.
//   - WebRTC ([WebRTCListener], [WebRTCDialer]): a single ordered,
//     reliable pion data channel per peer, detached and wrapped as a
//     net.Conn ([DataChannelConn]) so it carries the same CBOR stream
//     as TCP. Signaling is a single offer/answer exchange in vanilla
//     ICE mode (all candidates gathered before the SDP is sent), so
//     [Signaler] needs exactly one round trip. [HTTPSignaler] posts the
//     offer to the listener's /offer endpoint; [MemorySignaler] calls
//     the listener directly for tests.
//
// [Pipe] returns a connected in-memory pair for tests and in-process
// peers.
package transport
