// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Channel is the authority side of field replication. It is not safe
// for concurrent use; the authority calls it from its event loop.
type Channel struct {
	coordinator Coordinator
	logger      *slog.Logger
}

// NewChannel returns a Channel broadcasting through coordinator.
func NewChannel(coordinator Coordinator, logger *slog.Logger) *Channel {
	return &Channel{coordinator: coordinator, logger: logger}
}

// Coordinator returns the coordinator the channel broadcasts through.
func (c *Channel) Coordinator() Coordinator { return c.coordinator }

// Commit applies updates to set on behalf of writer and broadcasts them
// to every peer, originator included. owner is the object's current
// owner, against which OwnerOnly permissions are checked.
//
// Every update is authorized before any is applied. If applying one
// fails, the updates before it stay applied and are still broadcast.
func (c *Channel) Commit(set *FieldSet, writer, owner ref.PeerID, updates ...protocol.Update) error {
	fields := make([]Replicated, len(updates))
	for index, update := range updates {
		field, err := set.lookup(update)
		if err != nil {
			return err
		}
		if err := Authorize(field.Permission(), writer, owner); err != nil {
			return fmt.Errorf("%s.%s: %w", set.Object(), field.Name(), err)
		}
		fields[index] = field
	}

	committed := make([]protocol.Update, 0, len(updates))
	var applyErr error
	for index, update := range updates {
		field := fields[index]
		if err := field.apply(update); err != nil {
			applyErr = fmt.Errorf("%s.%s: %w", set.Object(), field.Name(), err)
			break
		}
		version := field.Version() + 1
		field.setVersion(version)

		update.Object = set.Object()
		update.Version = version
		update.Origin = writer
		update.Correction = false
		committed = append(committed, update)
	}

	if len(committed) > 0 {
		c.coordinator.Broadcast(&protocol.Updates{Updates: committed})
	}
	return applyErr
}

// Correct sends peer the authoritative value of the named fields (all
// fields when names is empty), marked as a correction so that the
// peer overwrites any prediction it made.
func (c *Channel) Correct(peer ref.PeerID, set *FieldSet, names ...string) error {
	states, err := set.Snapshot()
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var corrections []protocol.Update
	for _, state := range states {
		if len(names) > 0 && !wanted[state.Name] {
			continue
		}
		corrections = append(corrections, protocol.Update{
			Object:     set.Object(),
			Field:      state.Name,
			Op:         protocol.OpSet,
			Value:      state.Value,
			Version:    state.Version,
			Origin:     ref.Authority,
			Correction: true,
		})
	}
	if len(corrections) == 0 {
		return nil
	}
	c.logger.Debug("correcting rejected prediction",
		"peer", peer,
		"object", set.Object(),
		"fields", len(corrections),
	)
	c.coordinator.Send(peer, &protocol.Updates{Updates: corrections})
	return nil
}
