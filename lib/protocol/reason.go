// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "errors"

// Reason is the wire form of a refused request.
type Reason string

const (
	ReasonPermissionDenied  Reason = "permission_denied"
	ReasonAlreadyHeld       Reason = "already_held"
	ReasonAlreadyOccupied   Reason = "already_occupied"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonDegenerate        Reason = "degenerate"
	ReasonNotFound          Reason = "not_found"
	ReasonRateLimited       Reason = "rate_limited"
	ReasonStaleRequester    Reason = "stale_requester"
	ReasonMalformed         Reason = "malformed"
	ReasonUnauthorized      Reason = "unauthorized"
	ReasonIncompatible      Reason = "incompatible"
	ReasonDuplicatePeer     Reason = "duplicate_peer"
	ReasonInternal          Reason = "internal"
)

// Denial is an error carrying a wire reason.
type Denial struct {
	Reason  Reason
	Message string
}

// Deny returns a Denial. Domain packages use it for their sentinel
// errors:
//
//	var ErrAlreadyHeld = protocol.Deny(protocol.ReasonAlreadyHeld, "object already held")
func Deny(reason Reason, message string) *Denial {
	return &Denial{Reason: reason, Message: message}
}

func (d *Denial) Error() string { return d.Message }

// ReasonOf returns the wire reason for err: the reason of the first
// Denial in its chain, or ReasonInternal. A nil error has no reason.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var denial *Denial
	if errors.As(err, &denial) {
		return denial.Reason
	}
	return ReasonInternal
}
