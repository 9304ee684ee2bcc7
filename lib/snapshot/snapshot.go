// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/socket"
)

// MaxSize bounds the uncompressed body a peer will accept.
const MaxSize = 64 << 20

// ErrDigestMismatch means the body decoded but does not hash to the
// digest in the header.
var ErrDigestMismatch = errors.New("snapshot digest mismatch")

// World is the complete replicated state.
type World struct {
	// Taken is when the world was captured, in Unix milliseconds.
	Taken   int64                  `cbor:"taken"`
	Objects []protocol.ObjectState `cbor:"objects"`
	Sockets []socket.State         `cbor:"sockets"`
}

// Digest is a keyed BLAKE3 hash of an encoded world.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 12 hex characters, for logs.
func (d Digest) Short() string { return d.String()[:12] }

// digestKey separates snapshot digests from any other BLAKE3 use. The
// bytes are the ASCII domain name, zero-padded to 32.
var digestKey = [32]byte{
	'h', 'o', 'l', 'd', 'f', 'a', 's', 't', '.', 's', 'n', 'a', 'p', 's', 'h', 'o',
	't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func digestOf(data []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// envelope is the encoded form. Body holds the (possibly compressed)
// CBOR world.
type envelope struct {
	Compression Compression `cbor:"compression"`
	Size        int         `cbor:"size"`
	Digest      Digest      `cbor:"digest"`
	Body        []byte      `cbor:"body"`
}

// Info describes an encoded snapshot without decoding the world.
type Info struct {
	Compression    Compression
	Size           int
	CompressedSize int
	Digest         Digest
}

// Encode serializes world. If compression would not shrink the body
// the snapshot is stored uncompressed.
func Encode(world World, compression Compression) ([]byte, error) {
	body, err := codec.Marshal(world)
	if err != nil {
		return nil, fmt.Errorf("encoding world: %w", err)
	}
	stored, err := compress(body, compression)
	if errors.Is(err, errIncompressible) {
		stored, compression = body, CompressionNone
	} else if err != nil {
		return nil, err
	}
	data, err := codec.Marshal(envelope{
		Compression: compression,
		Size:        len(body),
		Digest:      digestOf(body),
		Body:        stored,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot envelope: %w", err)
	}
	return data, nil
}

// Decode verifies and decodes a snapshot produced by Encode.
func Decode(data []byte) (World, Info, error) {
	var outer envelope
	if err := codec.Unmarshal(data, &outer); err != nil {
		return World{}, Info{}, fmt.Errorf("decoding snapshot envelope: %w", err)
	}
	info := Info{
		Compression:    outer.Compression,
		Size:           outer.Size,
		CompressedSize: len(outer.Body),
		Digest:         outer.Digest,
	}
	if outer.Size < 0 || outer.Size > MaxSize {
		return World{}, info, fmt.Errorf("snapshot size %d outside [0, %d]", outer.Size, MaxSize)
	}
	body, err := decompress(outer.Body, outer.Compression, outer.Size)
	if err != nil {
		return World{}, info, err
	}
	if digestOf(body) != outer.Digest {
		return World{}, info, ErrDigestMismatch
	}
	var world World
	if err := codec.Unmarshal(body, &world); err != nil {
		return World{}, info, fmt.Errorf("decoding world: %w", err)
	}
	return world, info, nil
}

// Inspect returns the header of an encoded snapshot and the CBOR
// diagnostic notation of its world, for operators.
func Inspect(data []byte) (Info, string, error) {
	world, info, err := Decode(data)
	if err != nil {
		return info, "", err
	}
	body, err := codec.Marshal(world)
	if err != nil {
		return info, "", err
	}
	diagnostic, err := codec.Diagnose(body)
	if err != nil {
		return info, "", err
	}
	return info, diagnostic, nil
}

// StateDigest hashes world without the Taken timestamp, so two parties
// holding identical state agree on the result regardless of when each
// captured it.
func StateDigest(world World) (Digest, error) {
	world.Taken = 0
	body, err := codec.Marshal(world)
	if err != nil {
		return Digest{}, fmt.Errorf("encoding world: %w", err)
	}
	return digestOf(body), nil
}
