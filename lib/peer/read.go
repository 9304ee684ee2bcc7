// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"errors"
	"io"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/transport"
)

// read applies messages from the authority until the connection ends.
func (c *Client) read() {
	defer close(c.done)
	defer close(c.events)

	for {
		envelope, err := c.conn.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, transport.ErrClosed) {
				c.err = err
			}
			c.logger.Info("left session", "error", c.err)
			return
		}
		message, err := envelope.Decode()
		if err != nil {
			c.logger.Warn("undecodable message from authority", "kind", envelope.Kind, "error", err)
			continue
		}
		for _, event := range c.apply(message) {
			c.events <- event
		}
	}
}

// apply updates the mirror and returns the events to publish. Events
// are sent after mu is released so a slow consumer cannot block
// predicting callers.
func (c *Client) apply(message protocol.Message) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := message.(type) {
	case *protocol.Updates:
		return c.applyUpdates(m.Updates)

	case *protocol.Spawned:
		if err := c.addObject(m.Object); err != nil {
			c.logger.Warn("applying spawn", "object", m.Object.ID, "error", err)
			return nil
		}
		if m.Object.Kind != string(object.KindLine) {
			return nil
		}
		owner, _ := c.objects.Get(m.Object.ID)
		return []Event{{Kind: EventLineSpawned, Object: m.Object.ID, Owner: owner.Owner.Get()}}

	case *protocol.Destroyed:
		c.objects.Remove(m.Object)
		delete(c.lines, m.Object)
		c.mirror.Forget(m.Object)
		return []Event{{Kind: EventDestroyed, Object: m.Object, Reason: m.Reason}}

	case *protocol.Placed:
		if state, ok := c.sockets[m.Socket]; ok {
			state.Occupant = m.Object
			c.sockets[m.Socket] = state
		}
		return []Event{{Kind: EventPlaced, Socket: m.Socket, Object: m.Object}}

	case *protocol.Removed:
		if state, ok := c.sockets[m.Socket]; ok {
			state.Occupant = ref.ObjectID{}
			c.sockets[m.Socket] = state
		}
		return []Event{{Kind: EventRemoved, Socket: m.Socket, Object: m.Object}}

	case *protocol.Result:
		kind := EventDenied
		if m.Granted {
			kind = EventGranted
		}
		// A refused bake is not corrected by the authority; undo the
		// prediction unless the line was already baked.
		if !m.Granted && m.Action == protocol.KindBake && m.Reason != protocol.ReasonInvalidTransition {
			if drawn, ok := c.lines[m.Object]; ok {
				drawn.Baked.Set(false)
				c.mirror.Abandon(m.Object, line.FieldBaked)
			}
		}
		return []Event{{Kind: kind, Object: m.Object, Socket: m.Socket, Reason: m.Reason, Result: m}}

	default:
		c.logger.Warn("unexpected message from authority", "kind", message.Kind())
		return nil
	}
}

func (c *Client) applyUpdates(updates []protocol.Update) []Event {
	var events []Event
	for _, update := range updates {
		target, ok := c.objects.Get(update.Object)
		if !ok {
			c.logger.Debug("update for unknown object", "object", update.Object, "field", update.Field)
			continue
		}
		changed, err := c.mirror.Apply(target.Fields, update)
		if err != nil {
			c.logger.Warn("applying update",
				"object", update.Object,
				"field", update.Field,
				"error", err,
			)
			continue
		}
		if update.Correction {
			events = append(events, Event{Kind: EventCorrected, Object: update.Object, Field: update.Field})
		}
		if !changed && update.Origin != c.self {
			continue
		}
		switch update.Field {
		case object.FieldOwner:
			if changed {
				events = append(events, Event{Kind: EventOwnerChanged, Object: update.Object, Owner: target.Owner.Get()})
			}
		case line.FieldBaked:
			var baked bool
			if codec.Unmarshal(update.Value, &baked) == nil && baked {
				events = append(events, Event{Kind: EventBaked, Object: update.Object})
			}
		}
	}
	return events
}
