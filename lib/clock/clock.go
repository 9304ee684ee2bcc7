// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for the interaction controller's
// contact-loss timer, the authority's handshake deadline and rate
// limiter refills, and join token expiry.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. With d <= 0 the real clock
	// runs f on a new goroutine right away and the fake runs it before
	// returning.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the call. Returns false if it already ran or was
// already stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Reset reschedules the call for d from now, reporting whether it was
// still pending. The controller pushes contact loss back this way on
// every sample.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }
