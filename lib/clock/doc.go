// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that schedule work take a Clock instead of calling the
// time package: the interaction controller's contact-loss timer, the
// authority's per-peer rate limiters, and join token validation.
// Production code passes Real(); tests pass Fake() and move time with
// Advance, so a "no contact for 250ms" edge can be tested without
// sleeping.
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := interaction.NewController(actions, options, fake, logger)
//	controller.ContactMove(point)
//	fake.Advance(300 * time.Millisecond) // contact-loss fires
//
// When the timer is registered from another goroutine, call
// WaitForTimers before Advance.
package clock
