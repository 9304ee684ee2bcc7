// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"context"
	"errors"

	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/service"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/lib/socket"
	"github.com/bureau-foundation/holdfast/lib/version"
)

// Admin action names on the service socket.
const (
	ActionStatus       = "status"
	ActionObjects      = "objects"
	ActionSockets      = "sockets"
	ActionForceRelease = "force-release"
	ActionSnapshot     = "snapshot"
)

// PeerStatus describes one connected peer.
type PeerStatus struct {
	Peer     ref.PeerID `cbor:"peer" json:"peer"`
	Remote   string     `cbor:"remote" json:"remote"`
	Joined   int64      `cbor:"joined" json:"joined"` // Unix milliseconds
	Queued   int        `cbor:"queued" json:"queued"`
	Received uint64     `cbor:"received" json:"received"`
	Denied   uint64     `cbor:"denied" json:"denied"`
	Owned    int        `cbor:"owned" json:"owned"`
}

// Status is the authority's summary for operators.
type Status struct {
	Version  string       `cbor:"version" json:"version"`
	Protocol int          `cbor:"protocol" json:"protocol"`
	Started  int64        `cbor:"started" json:"started"` // Unix milliseconds
	Objects  int          `cbor:"objects" json:"objects"`
	Lines    int          `cbor:"lines" json:"lines"`
	Sockets  int          `cbor:"sockets" json:"sockets"`
	Peers    []PeerStatus `cbor:"peers" json:"peers"`

	// Digest is the state digest of the world, excluding capture
	// time. Two authorities (or an authority and a converged peer)
	// with equal digests hold equal state.
	Digest string `cbor:"digest" json:"digest"`
}

// ObjectInfo is one row of the objects listing.
type ObjectInfo struct {
	object.Describe

	Holds  int          `cbor:"holds,omitempty" json:"holds,omitempty"`
	Socket ref.SocketID `cbor:"socket,omitempty" json:"socket,omitempty"`
	Points int          `cbor:"points,omitempty" json:"points,omitempty"`
	Baked  bool         `cbor:"baked,omitempty" json:"baked,omitempty"`
}

// Status reports connected peers and world counts.
func (a *Authority) Status(ctx context.Context) (Status, error) {
	var status Status
	var failure error
	err := a.do(ctx, func() {
		world, err := a.world()
		if err != nil {
			failure = err
			return
		}
		digest, err := snapshot.StateDigest(world)
		if err != nil {
			failure = err
			return
		}
		status = Status{
			Version:  version.Info(),
			Protocol: version.Protocol,
			Started:  a.started.UnixMilli(),
			Objects:  a.objects.Len(),
			Lines:    len(a.lines.Lines()),
			Sockets:  len(world.Sockets),
			Digest:   digest.String(),
		}
		for _, peer := range a.peerIDs() {
			target := a.peers[peer]
			status.Peers = append(status.Peers, PeerStatus{
				Peer:     peer,
				Remote:   target.conn.RemoteAddr(),
				Joined:   target.joined.UnixMilli(),
				Queued:   len(target.outbox),
				Received: target.received,
				Denied:   target.denied,
				Owned:    len(a.objects.OwnedBy(peer)),
			})
		}
	})
	if err != nil {
		return Status{}, err
	}
	return status, failure
}

// Objects lists every object in id order.
func (a *Authority) Objects(ctx context.Context) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := a.do(ctx, func() {
		for _, target := range a.objects.All() {
			info := ObjectInfo{Describe: target.Summary()}
			if !info.Owner.IsZero() {
				info.Holds = a.registry.Holds(target.ID)
			}
			if seated, ok := a.sockets.SocketOf(target.ID); ok {
				info.Socket = seated
			}
			if drawn, err := a.lines.Line(target.ID); err == nil {
				info.Points = drawn.Points.Len()
				info.Baked = drawn.Baked.Get()
			}
			infos = append(infos, info)
		}
	})
	return infos, err
}

// Sockets lists every socket in id order.
func (a *Authority) Sockets(ctx context.Context) ([]socket.State, error) {
	var states []socket.State
	err := a.do(ctx, func() { states = a.sockets.States() })
	return states, err
}

// ForceRelease clears an object's owner regardless of who holds it and
// returns the previous owner.
func (a *Authority) ForceRelease(ctx context.Context, id ref.ObjectID) (ref.PeerID, error) {
	var previous ref.PeerID
	var failure error
	err := a.do(ctx, func() {
		previous, failure = a.registry.ForceRelease(id)
		if failure == nil && !previous.IsZero() {
			a.logger.Info("ownership force-released by operator", "object", id, "previous_owner", previous)
		}
	})
	if err != nil {
		return ref.PeerID{}, err
	}
	return previous, failure
}

// Snapshot returns the encoded world, in the same form peers receive
// in their welcome.
func (a *Authority) Snapshot(ctx context.Context) ([]byte, error) {
	var encoded []byte
	var failure error
	err := a.do(ctx, func() {
		world, err := a.world()
		if err != nil {
			failure = err
			return
		}
		encoded, failure = snapshot.Encode(world, a.options.Compression)
	})
	if err != nil {
		return nil, err
	}
	return encoded, failure
}

// Line returns a copy of a line's points and baked state, for tests
// and diagnostics.
func (a *Authority) Line(ctx context.Context, id ref.ObjectID) (points int, baked bool, err error) {
	doErr := a.do(ctx, func() {
		var drawn *line.Line
		drawn, err = a.lines.Line(id)
		if err == nil {
			points = drawn.Points.Len()
			baked = drawn.Baked.Get()
		}
	})
	if doErr != nil {
		return 0, false, doErr
	}
	return points, baked, err
}

// RegisterAdmin registers the operator actions on server.
func (a *Authority) RegisterAdmin(server *service.SocketServer) {
	server.Handle(ActionStatus, func(ctx context.Context, call *service.Request) (any, error) {
		return a.Status(ctx)
	})
	server.Handle(ActionObjects, func(ctx context.Context, call *service.Request) (any, error) {
		return a.Objects(ctx)
	})
	server.Handle(ActionSockets, func(ctx context.Context, call *service.Request) (any, error) {
		return a.Sockets(ctx)
	})
	server.Handle(ActionForceRelease, func(ctx context.Context, call *service.Request) (any, error) {
		var request struct {
			Object string `cbor:"object"`
		}
		if err := call.Decode(&request); err != nil {
			return nil, err
		}
		if request.Object == "" {
			return nil, errors.New("missing required field: object")
		}
		id, err := ref.ParseObjectID(request.Object)
		if err != nil {
			return nil, err
		}
		previous, err := a.ForceRelease(ctx, id)
		if err != nil {
			return nil, err
		}
		return ForceReleaseResult{Object: id, Previous: previous}, nil
	})
	server.Handle(ActionSnapshot, func(ctx context.Context, call *service.Request) (any, error) {
		encoded, err := a.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return SnapshotResult{Snapshot: encoded}, nil
	})
}

// ForceReleaseResult is the force-release response.
type ForceReleaseResult struct {
	Object   ref.ObjectID `cbor:"object" json:"object"`
	Previous ref.PeerID   `cbor:"previous,omitempty" json:"previous,omitempty"`
}

// SnapshotResult is the snapshot response.
type SnapshotResult struct {
	Snapshot []byte `cbor:"snapshot" json:"-"`
}
