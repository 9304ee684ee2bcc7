// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot encodes the full world state a late-joining peer
// needs: every object (including lines) with each field's value and
// version, and every socket with its occupant.
//
// The world is CBOR-encoded, optionally compressed with LZ4 or zstd,
// and wrapped in a small CBOR header carrying the compression tag, the
// uncompressed size, and a keyed BLAKE3 digest of the uncompressed
// bytes. [Decode] rejects a snapshot whose size or digest does not
// match.
//
// Because the codec is deterministic, two authorities (or an authority
// and a peer re-encoding its mirror) holding the same state produce
// the same digest. [StateDigest] exposes that for convergence checks.
package snapshot
