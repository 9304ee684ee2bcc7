// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package line

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ownership"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

// DefaultMaxPoints bounds a single line's point sequence.
const DefaultMaxPoints = 4096

var (
	// ErrBaked is returned for any mutation of a baked line.
	ErrBaked = protocol.Deny(protocol.ReasonInvalidTransition, "line is baked")

	// ErrTooManyPoints is returned when an append would exceed the
	// point limit.
	ErrTooManyPoints = protocol.Deny(protocol.ReasonInvalidTransition, "line point limit reached")

	// ErrInvalidPoint is returned for points with NaN or infinite
	// coordinates.
	ErrInvalidPoint = protocol.Deny(protocol.ReasonMalformed, "point is not finite")

	// ErrInvalidStyle is returned for styles with bad widths.
	ErrInvalidStyle = protocol.Deny(protocol.ReasonMalformed, "invalid line style")

	// ErrNotALine is returned for an id that names a non-line object.
	ErrNotALine = protocol.Deny(protocol.ReasonNotFound, "object is not a line")

	// ErrReservedField is returned for a generic write to a field that
	// has its own operation (points, baked).
	ErrReservedField = protocol.Deny(protocol.ReasonMalformed, "field has a dedicated operation")
)

// Outcome is the result of a Bake call.
type Outcome int

const (
	// Baked means the line is now finalized.
	Baked Outcome = iota

	// AlreadyBaked means the line was finalized by an earlier call.
	AlreadyBaked

	// Destroyed means the line was degenerate and no longer exists.
	Destroyed
)

func (o Outcome) String() string {
	switch o {
	case Baked:
		return "baked"
	case AlreadyBaked:
		return "already_baked"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Options configure a Service.
type Options struct {
	// Baker generates geometry on bake. Defaults to RibbonBaker.
	Baker geometry.Baker

	// MaxPoints bounds each line. Defaults to DefaultMaxPoints.
	MaxPoints int
}

// Service is the authority side of line replication. Not safe for
// concurrent use.
type Service struct {
	objects  *object.Table
	registry *ownership.Registry
	channel  *replica.Channel
	logger   *slog.Logger

	baker     geometry.Baker
	maxPoints int

	lines  map[ref.ObjectID]*Line
	meshes map[ref.ObjectID]geometry.Mesh
}

// NewService returns a Service that registers lines in objects and
// arbitrates their ownership through registry.
func NewService(objects *object.Table, registry *ownership.Registry, channel *replica.Channel, options Options, logger *slog.Logger) *Service {
	if options.Baker == nil {
		options.Baker = geometry.RibbonBaker{}
	}
	if options.MaxPoints <= 0 {
		options.MaxPoints = DefaultMaxPoints
	}
	return &Service{
		objects:   objects,
		registry:  registry,
		channel:   channel,
		logger:    logger,
		baker:     options.Baker,
		maxPoints: options.MaxPoints,
		lines:     make(map[ref.ObjectID]*Line),
		meshes:    make(map[ref.ObjectID]geometry.Mesh),
	}
}

// Line returns a live line.
func (s *Service) Line(id ref.ObjectID) (*Line, error) {
	line, ok := s.lines[id]
	if ok {
		return line, nil
	}
	if _, exists := s.objects.Get(id); exists {
		return nil, fmt.Errorf("%w: %s", ErrNotALine, id)
	}
	return nil, fmt.Errorf("%w: %s", object.ErrNotFound, id)
}

// Lines returns every live line in id order.
func (s *Service) Lines() []*Line {
	lines := make([]*Line, 0, len(s.lines))
	for _, line := range s.lines {
		lines = append(lines, line)
	}
	slices.SortFunc(lines, func(a, b *Line) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return lines
}

// Mesh returns the geometry produced when the line was baked.
func (s *Service) Mesh(id ref.ObjectID) (geometry.Mesh, bool) {
	mesh, ok := s.meshes[id]
	return mesh, ok
}

// Spawn creates a line owned by requester, seeded with seed twice, and
// announces it to every peer.
func (s *Service) Spawn(requester ref.PeerID, seed geometry.Vec3, style geometry.Style) (*Line, error) {
	if !s.channel.Coordinator().Connected(requester) {
		return nil, fmt.Errorf("%w: %s", ownership.ErrStaleRequester, requester)
	}
	if !seed.IsFinite() {
		return nil, fmt.Errorf("%w: seed %v", ErrInvalidPoint, seed)
	}
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}

	line := New(ref.NewObjectID("line"))
	line.Owner.Set(requester)
	line.SetStyle(style)
	line.Points.Set([]geometry.Vec3{seed, seed})

	if err := s.objects.Add(line.Object); err != nil {
		return nil, err
	}
	s.lines[line.ID] = line

	state, err := line.State()
	if err != nil {
		return nil, err
	}
	s.channel.Coordinator().Broadcast(&protocol.Spawned{Object: state})
	s.logger.Debug("line spawned", "line", line.ID, "peer", requester)
	return line, nil
}

// AddPoint appends point to the line on behalf of requester, who must
// own it.
func (s *Service) AddPoint(id ref.ObjectID, point geometry.Vec3, requester ref.PeerID) error {
	line, err := s.mutable(id)
	if err != nil {
		return err
	}
	if !point.IsFinite() {
		return fmt.Errorf("%w: %v", ErrInvalidPoint, point)
	}
	if line.Points.Len() >= s.maxPoints {
		return fmt.Errorf("%w: %s has %d points", ErrTooManyPoints, id, line.Points.Len())
	}
	update, err := line.Points.AppendOp(point)
	if err != nil {
		return err
	}
	return s.channel.Commit(line.Fields, requester, line.Owner.Get(), update)
}

// RemovePoint deletes the point at index on behalf of requester.
func (s *Service) RemovePoint(id ref.ObjectID, index int, requester ref.PeerID) error {
	line, err := s.mutable(id)
	if err != nil {
		return err
	}
	return s.channel.Commit(line.Fields, requester, line.Owner.Get(), line.Points.RemoveOp(index))
}

// SetStyle changes the style of an unbaked line.
func (s *Service) SetStyle(id ref.ObjectID, style geometry.Style, requester ref.PeerID) error {
	line, err := s.mutable(id)
	if err != nil {
		return err
	}
	if err := style.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}
	updates, err := line.StyleUpdates(style)
	if err != nil {
		return err
	}
	return s.channel.Commit(line.Fields, requester, line.Owner.Get(), updates...)
}

// Write applies a generic field write to a line. Style and pose go
// through here; points and baked have their own operations.
func (s *Service) Write(id ref.ObjectID, update protocol.Update, requester ref.PeerID) error {
	if update.Field == FieldPoints || update.Field == FieldBaked {
		return fmt.Errorf("%w: %s", ErrReservedField, update.Field)
	}
	line, err := s.mutable(id)
	if err != nil {
		return err
	}
	return s.channel.Commit(line.Fields, requester, line.Owner.Get(), update)
}

// Bake finalizes the line on behalf of its owner. A degenerate line is
// destroyed instead.
func (s *Service) Bake(id ref.ObjectID, requester ref.PeerID) (Outcome, error) {
	line, err := s.Line(id)
	if err != nil {
		return 0, err
	}
	if err := replica.Authorize(replica.OwnerOnly, requester, line.Owner.Get()); err != nil {
		return 0, fmt.Errorf("bake %s: %w", id, err)
	}
	if line.Baked.Get() {
		return AlreadyBaked, nil
	}

	mesh := line.Mesh(s.baker)
	if mesh.IsDegenerate() {
		s.logger.Debug("degenerate line destroyed on bake",
			"line", id,
			"peer", requester,
			"unique_vertices", mesh.UniqueVertexCount(),
		)
		s.Destroy(id, protocol.ReasonDegenerate)
		return Destroyed, nil
	}

	update, err := line.Baked.Write(true)
	if err != nil {
		return 0, err
	}
	if err := s.channel.Commit(line.Fields, requester, line.Owner.Get(), update); err != nil {
		return 0, err
	}
	s.meshes[id] = mesh
	s.logger.Debug("line baked", "line", id, "peer", requester, "points", line.Points.Len())
	return Baked, nil
}

// ReleaseOwnership gives up requester's ownership of the line.
func (s *Service) ReleaseOwnership(id ref.ObjectID, requester ref.PeerID) error {
	if _, err := s.Line(id); err != nil {
		return err
	}
	return s.registry.ReleaseOwnership(id, requester)
}

// Destroy removes a line and announces it. Destroying a missing line
// does nothing.
func (s *Service) Destroy(id ref.ObjectID, reason protocol.Reason) {
	if _, ok := s.lines[id]; !ok {
		return
	}
	delete(s.lines, id)
	delete(s.meshes, id)
	s.objects.Remove(id)
	s.registry.Forget(id)
	s.channel.Coordinator().Broadcast(&protocol.Destroyed{Object: id, Reason: reason})
}

func (s *Service) mutable(id ref.ObjectID) (*Line, error) {
	line, err := s.Line(id)
	if err != nil {
		return nil, err
	}
	if line.Baked.Get() {
		return nil, fmt.Errorf("%w: %s", ErrBaked, id)
	}
	return line, nil
}
