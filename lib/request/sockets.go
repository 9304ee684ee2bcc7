// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"log/slog"

	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/proximity"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// SocketActions sends socket requests to the authority.
type SocketActions interface {
	PlaceSocket(socket ref.SocketID, object ref.ObjectID) protocol.RequestID
	RemoveSocket(socket ref.SocketID, object ref.ObjectID) protocol.RequestID
}

// Sockets turns proximity intents into socket requests.
type Sockets struct {
	actions SocketActions
	tracker *Tracker[ref.SocketID]
	objects map[ref.SocketID]ref.ObjectID
	leaving map[protocol.RequestID]placement
	logger  *slog.Logger
}

type placement struct {
	socket ref.SocketID
	object ref.ObjectID
}

// NewSockets returns a Sockets sending through actions.
func NewSockets(actions SocketActions, logger *slog.Logger) *Sockets {
	return &Sockets{
		actions: actions,
		tracker: NewTracker[ref.SocketID](),
		objects: make(map[ref.SocketID]ref.ObjectID),
		leaving: make(map[protocol.RequestID]placement),
		logger:  logger,
	}
}

// Handle processes one intent. Inside intents request placement once;
// repeats are absorbed until the object leaves. A leave after a granted
// placement requests removal. A leave while placement is still in
// flight requests removal once that placement is granted.
func (s *Sockets) Handle(intent proximity.Intent) {
	switch intent.Kind {
	case proximity.Inside:
		if s.tracker.Begin(intent.Socket, func() protocol.RequestID {
			return s.actions.PlaceSocket(intent.Socket, intent.Object)
		}) {
			s.objects[intent.Socket] = intent.Object
			s.logger.Debug("placement requested", "socket", intent.Socket, "object", intent.Object)
		}
	case proximity.Left:
		if s.objects[intent.Socket] != intent.Object {
			return
		}
		switch s.tracker.State(intent.Socket) {
		case Granted:
			s.actions.RemoveSocket(intent.Socket, intent.Object)
			s.logger.Debug("removal requested", "socket", intent.Socket, "object", intent.Object)
		case Requesting:
			if request, ok := s.tracker.Outstanding(intent.Socket); ok {
				s.leaving[request] = placement{socket: intent.Socket, object: intent.Object}
				s.logger.Debug("left before placement resolved", "socket", intent.Socket, "object", intent.Object)
			}
		}
		s.tracker.Reset(intent.Socket)
		delete(s.objects, intent.Socket)
	}
}

// HandleResult applies a placement result. Results for other actions
// or unknown requests are ignored.
func (s *Sockets) HandleResult(result protocol.Result) {
	if result.Action != protocol.KindPlaceSocket {
		return
	}
	if left, ok := s.leaving[result.Request]; ok {
		delete(s.leaving, result.Request)
		if result.Granted {
			s.actions.RemoveSocket(left.socket, left.object)
			s.logger.Debug("removal requested", "socket", left.socket, "object", left.object)
		}
		return
	}
	s.tracker.Resolve(result.Socket, result.Request, result.Granted, result.Reason)
}

// State returns the request state for a socket.
func (s *Sockets) State(socket ref.SocketID) State {
	return s.tracker.State(socket)
}
