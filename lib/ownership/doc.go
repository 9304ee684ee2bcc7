// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ownership is the authority's ownership registry: the single
// place that decides which peer may write an object.
//
// The registry is not safe for concurrent use and needs no locks. The
// authority calls it from one goroutine, so simultaneous requests are
// totally ordered by arrival and the first one wins. Ownership is a
// replicated ServerOnly field on the object, committed through the
// replica channel so that every peer (including a previous owner)
// observes each change.
//
// A requester that is no longer connected is refused
// ([ErrStaleRequester]). A repeated request from the current owner is a
// successful no-op, except on multi-holder objects where it adds a
// hold: the object stays owned until every hold is released.
package ownership
