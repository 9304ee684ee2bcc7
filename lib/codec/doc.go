// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides holdfast's CBOR encoding configuration.
//
// CBOR is used for everything that crosses a process boundary: the
// peer<->authority message stream, late-join snapshots, and the
// authority's admin socket. JSON appears only at the edges (CLI --json
// output and the WebRTC signaling endpoint).
//
// The encoder uses Core Deterministic Encoding: sorted map keys,
// smallest integer encoding, no indefinite-length items. Snapshot
// digests depend on this.
//
// Buffer-oriented use (snapshots, field values):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream-oriented use (peer connections, admin socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Wire types carry `cbor` struct tags. Types that the CLI also prints
// as JSON carry `json` tags instead; fxamacker/cbor falls back to them.
// Never put both tags on one field.
package codec
