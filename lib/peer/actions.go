// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/interaction"
	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/request"
	"github.com/bureau-foundation/holdfast/transport"
)

var (
	_ interaction.Actions    = (*Client)(nil)
	_ request.SocketActions = (*Client)(nil)
)

// send writes message and logs failures. Requests are fire-and-forget:
// a lost connection shows up on Done, not here.
func (c *Client) send(message protocol.Message) {
	if err := transport.Send(c.conn, message); err != nil {
		c.logger.Debug("send failed", "kind", message.Kind(), "error", err)
	}
}

func (c *Client) newRequest() protocol.RequestID {
	return protocol.NewRequestID(c.clock.Now())
}

// RequestOwnership asks for exclusive ownership of an object.
func (c *Client) RequestOwnership(id ref.ObjectID) protocol.RequestID {
	request := c.newRequest()
	c.send(&protocol.RequestOwnership{Request: request, Object: id})
	return request
}

// ReleaseOwnership gives up ownership of an object.
func (c *Client) ReleaseOwnership(id ref.ObjectID) protocol.RequestID {
	request := c.newRequest()
	c.send(&protocol.ReleaseOwnership{Request: request, Object: id})
	return request
}

// SpawnLine asks for a new line seeded at seed. The line appears in the
// mirror when the authority's announcement arrives, before the result.
func (c *Client) SpawnLine(seed geometry.Vec3, style geometry.Style) protocol.RequestID {
	request := c.newRequest()
	c.send(&protocol.SpawnLine{Request: request, Seed: seed, Style: style})
	return request
}

// AddPoint appends point to a line this peer owns, locally first.
func (c *Client) AddPoint(id ref.ObjectID, point geometry.Vec3) error {
	if err := c.predict(id, func(drawn *line.Line) (protocol.Update, error) {
		return drawn.Points.AppendOp(point)
	}); err != nil {
		return err
	}
	c.send(&protocol.AddPoint{Line: id, Point: point})
	return nil
}

// RemovePoint deletes the point at index from a line this peer owns,
// locally first.
func (c *Client) RemovePoint(id ref.ObjectID, index int) error {
	if err := c.predict(id, func(drawn *line.Line) (protocol.Update, error) {
		return drawn.Points.RemoveOp(index), nil
	}); err != nil {
		return err
	}
	c.send(&protocol.RemovePoint{Line: id, Index: index})
	return nil
}

// Bake finalizes a line this peer owns. The baked flag is predicted;
// if the geometry is degenerate the authority destroys the line
// instead.
func (c *Client) Bake(id ref.ObjectID) protocol.RequestID {
	if err := c.predict(id, func(drawn *line.Line) (protocol.Update, error) {
		if drawn.Baked.Get() {
			return protocol.Update{}, line.ErrBaked
		}
		return drawn.Baked.Write(true)
	}); err != nil {
		c.logger.Debug("bake not predicted", "line", id, "error", err)
	}
	request := c.newRequest()
	c.send(&protocol.Bake{Request: request, Line: id})
	return request
}

// Move writes a new pose for an object this peer owns, locally first.
func (c *Client) Move(id ref.ObjectID, pose geometry.Pose) error {
	target, ok := c.objects.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", object.ErrNotFound, id)
	}
	update, err := target.Pose.Write(pose)
	if err != nil {
		return err
	}
	update.Object = id

	c.mu.Lock()
	err = c.mirror.Predict(target.Fields, target.Owner.Get(), update)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.send(&protocol.Write{Update: update})
	return nil
}

// PlaceSocket asks the authority to seat an object in a socket.
func (c *Client) PlaceSocket(socketID ref.SocketID, id ref.ObjectID) protocol.RequestID {
	request := c.newRequest()
	c.send(&protocol.PlaceSocket{Request: request, Socket: socketID, Object: id})
	return request
}

// RemoveSocket asks the authority to vacate a socket. id, if not zero,
// must be the current occupant.
func (c *Client) RemoveSocket(socketID ref.SocketID, id ref.ObjectID) protocol.RequestID {
	request := c.newRequest()
	c.send(&protocol.RemoveSocket{Request: request, Socket: socketID, Object: id})
	return request
}

// predict builds an update against a mirrored line and applies it
// locally, subject to the same permission check the authority makes.
func (c *Client) predict(id ref.ObjectID, build func(*line.Line) (protocol.Update, error)) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	drawn, ok := c.lines[id]
	if !ok {
		return fmt.Errorf("%w: line %s", object.ErrNotFound, id)
	}
	update, err := build(drawn)
	if err != nil {
		return err
	}
	update.Object = id
	return c.mirror.Predict(drawn.Fields, drawn.Owner.Get(), update)
}
