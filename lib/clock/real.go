// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Real returns the wall clock. The authority and the CLI use it; tests
// substitute Fake.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) *Timer {
	pending := time.AfterFunc(d, f)
	return &Timer{stop: pending.Stop, reset: pending.Reset}
}
