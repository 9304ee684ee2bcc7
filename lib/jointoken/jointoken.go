// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jointoken mints and verifies the tokens a peer presents in
// its hello message when the authority is configured with a join
// secret.
//
// A token is an HS256 JWT whose subject is the peer id and whose
// audience is "holdfast". The authority rejects a hello whose token is
// missing, expired, signed with another secret, or issued to a
// different peer id.
package jointoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Audience is the aud claim on every join token.
const Audience = "holdfast"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

var (
	ErrMissing       = errors.New("join token required")
	ErrInvalid       = errors.New("join token invalid")
	ErrPeerMismatch  = errors.New("join token issued to a different peer")
	ErrSecretTooWeak = fmt.Errorf("join secret shorter than %d bytes", MinSecretLength)
)

// Claims are the verified contents of a token.
type Claims struct {
	Peer      ref.PeerID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer mints and verifies tokens with one secret.
type Signer struct {
	secret []byte
	clock  clock.Clock
}

// NewSigner returns a Signer for secret.
func NewSigner(secret []byte, clk clock.Clock) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooWeak
	}
	return &Signer{secret: append([]byte(nil), secret...), clock: clk}, nil
}

// Mint returns a token for peer valid for ttl.
func (s *Signer) Mint(peer ref.PeerID, ttl time.Duration) (string, error) {
	if peer.IsZero() {
		return "", errors.New("minting join token: zero peer id")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("minting join token: non-positive ttl %s", ttl)
	}
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   peer.String(),
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing join token: %w", err)
	}
	return signed, nil
}

// Verify checks raw and returns its claims. If peer is non-zero the
// token must have been issued to it.
func (s *Signer) Verify(raw string, peer ref.PeerID) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrMissing
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	var registered jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(raw, &registered, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	subject, err := ref.ParsePeerID(registered.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject: %w", ErrInvalid, err)
	}
	if !peer.IsZero() && subject != peer {
		return Claims{}, fmt.Errorf("%w: token for %s, hello from %s", ErrPeerMismatch, subject, peer)
	}

	claims := Claims{Peer: subject}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
