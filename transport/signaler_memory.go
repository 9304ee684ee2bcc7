// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync/atomic"
)

// Compile-time interface check.
var _ Signaler = (*MemorySignaler)(nil)

// MemorySignaler hands offers straight to an in-process Answerer,
// bypassing HTTP. For tests and for peers embedded in the authority
// process.
type MemorySignaler struct {
	answerer  Answerer
	exchanges atomic.Int64
}

// NewMemorySignaler returns a signaler that answers with answerer.
func NewMemorySignaler(answerer Answerer) *MemorySignaler {
	return &MemorySignaler{answerer: answerer}
}

// Exchange ignores address.
func (s *MemorySignaler) Exchange(ctx context.Context, _ string, offer string) (string, error) {
	s.exchanges.Add(1)
	return s.answerer.Answer(ctx, offer)
}

// Exchanges returns how many offers have been relayed.
func (s *MemorySignaler) Exchanges() int64 { return s.exchanges.Load() }
