// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// errRateLimited is the denial for a peer over its mutation budget.
var errRateLimited = protocol.Deny(protocol.ReasonRateLimited, "rate limited")

// dispatch applies one peer message. Loop goroutine only.
func (a *Authority) dispatch(from *session, message protocol.Message) {
	if from.closed {
		return
	}
	from.received++

	if protocol.IsMutation(message.Kind()) && !from.limiter.AllowN(a.clock.Now(), 1) {
		a.refuse(from, message, errRateLimited)
		return
	}

	var err error
	switch m := message.(type) {
	case *protocol.RequestOwnership:
		_, err = a.registry.RequestOwnership(m.Object, from.peer)
		a.respond(from, m.Request, protocol.KindRequestOwnership, m.Object, ref.SocketID{}, err)

	case *protocol.ReleaseOwnership:
		err = a.registry.ReleaseOwnership(m.Object, from.peer)
		a.respond(from, m.Request, protocol.KindReleaseOwnership, m.Object, ref.SocketID{}, err)

	case *protocol.SpawnLine:
		var spawned *line.Line
		spawned, err = a.lines.Spawn(from.peer, m.Seed, m.Style)
		var id ref.ObjectID
		if spawned != nil {
			id = spawned.ID
		}
		a.respond(from, m.Request, protocol.KindSpawnLine, id, ref.SocketID{}, err)

	case *protocol.Bake:
		var outcome line.Outcome
		outcome, err = a.lines.Bake(m.Line, from.peer)
		if err == nil && outcome == line.Destroyed {
			a.sockets.Evict(m.Line)
			err = fmt.Errorf("%w: %s", errDegenerate, m.Line)
		}
		a.respond(from, m.Request, protocol.KindBake, m.Line, ref.SocketID{}, err)

	case *protocol.AddPoint:
		if err = a.lines.AddPoint(m.Line, m.Point, from.peer); err != nil {
			a.correct(from, m.Line, line.FieldPoints)
		}

	case *protocol.RemovePoint:
		if err = a.lines.RemovePoint(m.Line, m.Index, from.peer); err != nil {
			a.correct(from, m.Line, line.FieldPoints)
		}

	case *protocol.Write:
		if err = a.write(from.peer, m.Update); err != nil {
			a.correct(from, m.Update.Object, m.Update.Field)
		}

	case *protocol.PlaceSocket:
		err = a.sockets.Place(m.Socket, m.Object, from.peer)
		a.respond(from, m.Request, protocol.KindPlaceSocket, m.Object, m.Socket, err)

	case *protocol.RemoveSocket:
		err = a.sockets.Remove(m.Socket, m.Object, from.peer)
		a.respond(from, m.Request, protocol.KindRemoveSocket, m.Object, m.Socket, err)

	default:
		a.logger.Debug("ignoring unexpected message", "peer", from.peer, "kind", message.Kind())
		return
	}

	if err != nil {
		from.denied++
		a.logDenied(from.peer, message, err)
	}
}

// errDegenerate reports a bake that destroyed its line.
var errDegenerate = protocol.Deny(protocol.ReasonDegenerate, "line destroyed as degenerate")

// write applies a generic owner write. Lines route through the line
// service so that baked lines stay frozen.
func (a *Authority) write(peer ref.PeerID, update protocol.Update) error {
	if _, err := a.lines.Line(update.Object); err == nil {
		return a.lines.Write(update.Object, update, peer)
	}
	target, err := a.objects.Lookup(update.Object)
	if err != nil {
		return err
	}
	return a.channel.Commit(target.Fields, peer, target.Owner.Get(), update)
}

// respond sends the requester its result.
func (a *Authority) respond(to *session, request protocol.RequestID, action protocol.Kind, object ref.ObjectID, socket ref.SocketID, err error) {
	a.Send(to.peer, &protocol.Result{
		Request: request,
		Action:  action,
		Object:  object,
		Socket:  socket,
		Granted: err == nil,
		Reason:  protocol.ReasonOf(err),
	})
}

// correct sends the authoritative value of a field the peer may have
// predicted. Unknown objects and fields are skipped.
func (a *Authority) correct(to *session, id ref.ObjectID, field string) {
	target, ok := a.objects.Get(id)
	if !ok {
		return
	}
	if _, ok := target.Fields.Field(field); !ok {
		return
	}
	if err := a.channel.Correct(to.peer, target.Fields, field); err != nil {
		a.logger.Error("sending correction", "peer", to.peer, "object", id, "field", field, "error", err)
	}
}

// refuse answers a message that was not applied at all.
func (a *Authority) refuse(from *session, message protocol.Message, err error) {
	from.denied++
	switch m := message.(type) {
	case *protocol.RequestOwnership:
		a.respond(from, m.Request, m.Kind(), m.Object, ref.SocketID{}, err)
	case *protocol.ReleaseOwnership:
		a.respond(from, m.Request, m.Kind(), m.Object, ref.SocketID{}, err)
	case *protocol.SpawnLine:
		a.respond(from, m.Request, m.Kind(), ref.ObjectID{}, ref.SocketID{}, err)
	case *protocol.Bake:
		a.respond(from, m.Request, m.Kind(), m.Line, ref.SocketID{}, err)
	case *protocol.PlaceSocket:
		a.respond(from, m.Request, m.Kind(), m.Object, m.Socket, err)
	case *protocol.RemoveSocket:
		a.respond(from, m.Request, m.Kind(), m.Object, m.Socket, err)
	case *protocol.AddPoint:
		a.correct(from, m.Line, line.FieldPoints)
	case *protocol.RemovePoint:
		a.correct(from, m.Line, line.FieldPoints)
	case *protocol.Write:
		a.correct(from, m.Update.Object, m.Update.Field)
	}
	a.logDenied(from.peer, message, err)
}

func (a *Authority) logDenied(peer ref.PeerID, message protocol.Message, err error) {
	reason := protocol.ReasonOf(err)
	if reason == protocol.ReasonInternal {
		a.logger.Error("request failed", "peer", peer, "kind", message.Kind(), "error", err)
		return
	}
	a.logger.Debug("request denied",
		"peer", peer,
		"kind", message.Kind(),
		"reason", reason,
		"error", err,
	)
}
