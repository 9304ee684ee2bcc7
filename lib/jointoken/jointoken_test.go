// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jointoken

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

var (
	secret = []byte("0123456789abcdef0123456789abcdef")
	alice  = ref.MustParsePeerID("peer-alice")
	bob    = ref.MustParsePeerID("peer-bob")
)

func newSigner(t *testing.T) (*Signer, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	signer, err := NewSigner(secret, fake)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return signer, fake
}

func TestMintVerify(t *testing.T) {
	signer, fake := newSigner(t)
	token, err := signer.Mint(alice, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	claims, err := signer.Verify(token, alice)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Peer != alice {
		t.Errorf("Peer = %v, want %v", claims.Peer, alice)
	}
	if want := fake.Now().Add(time.Hour); !claims.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, want)
	}

	// A zero peer accepts any subject.
	if _, err := signer.Verify(token, ref.PeerID{}); err != nil {
		t.Errorf("Verify without peer: %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	signer, fake := newSigner(t)
	token, err := signer.Mint(alice, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := signer.Verify("", alice); !errors.Is(err, ErrMissing) {
		t.Errorf("empty token: got %v, want ErrMissing", err)
	}
	if _, err := signer.Verify(token, bob); !errors.Is(err, ErrPeerMismatch) {
		t.Errorf("wrong peer: got %v, want ErrPeerMismatch", err)
	}

	other, err := NewSigner([]byte("fedcba9876543210fedcba9876543210"), fake)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Verify(token, alice); !errors.Is(err, ErrInvalid) {
		t.Errorf("other secret: got %v, want ErrInvalid", err)
	}

	fake.Advance(2 * time.Minute)
	if _, err := signer.Verify(token, alice); !errors.Is(err, ErrInvalid) {
		t.Errorf("expired token: got %v, want ErrInvalid", err)
	}
}

func TestNewSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewSigner([]byte("short"), clock.Real()); !errors.Is(err, ErrSecretTooWeak) {
		t.Errorf("got %v, want ErrSecretTooWeak", err)
	}
}

func TestMintRejectsBadInput(t *testing.T) {
	signer, _ := newSigner(t)
	if _, err := signer.Mint(ref.PeerID{}, time.Hour); err == nil {
		t.Error("Mint accepted zero peer")
	}
	if _, err := signer.Mint(alice, 0); err == nil {
		t.Error("Mint accepted zero ttl")
	}
}
