// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package line

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

// Field names of the line-specific fields.
const (
	FieldPoints     = "points"
	FieldStartColor = "start_color"
	FieldEndColor   = "end_color"
	FieldStartWidth = "start_width"
	FieldEndWidth   = "end_width"
	FieldBaked      = "baked"
)

// Line is a replicated stroke.
type Line struct {
	*object.Object

	Points     *replica.Sequence[geometry.Vec3]
	StartColor *replica.Field[geometry.Color]
	EndColor   *replica.Field[geometry.Color]
	StartWidth *replica.Field[float64]
	EndWidth   *replica.Field[float64]
	Baked      *replica.Field[bool]
}

// New builds an empty, unbaked line with the default style.
func New(id ref.ObjectID) *Line {
	style := geometry.DefaultStyle
	line := &Line{
		Points:     replica.NewSequence[geometry.Vec3](FieldPoints, replica.OwnerOnly),
		StartColor: replica.NewField(FieldStartColor, replica.OwnerOnly, style.StartColor),
		EndColor:   replica.NewField(FieldEndColor, replica.OwnerOnly, style.EndColor),
		StartWidth: replica.NewField(FieldStartWidth, replica.OwnerOnly, style.StartWidth),
		EndWidth:   replica.NewField(FieldEndWidth, replica.OwnerOnly, style.EndWidth),
		Baked:      replica.NewField(FieldBaked, replica.OwnerOnly, false),
	}
	line.Object = object.New(id, object.KindLine,
		line.Points, line.StartColor, line.EndColor, line.StartWidth, line.EndWidth, line.Baked)
	return line
}

// Style returns the line's current style.
func (l *Line) Style() geometry.Style {
	return geometry.Style{
		StartColor: l.StartColor.Get(),
		EndColor:   l.EndColor.Get(),
		StartWidth: l.StartWidth.Get(),
		EndWidth:   l.EndWidth.Get(),
	}
}

// SetStyle seeds the style fields without replicating them.
func (l *Line) SetStyle(style geometry.Style) {
	l.StartColor.Set(style.StartColor)
	l.EndColor.Set(style.EndColor)
	l.StartWidth.Set(style.StartWidth)
	l.EndWidth.Set(style.EndWidth)
}

// StyleUpdates builds the set operations that change the style.
func (l *Line) StyleUpdates(style geometry.Style) ([]protocol.Update, error) {
	startColor, err := l.StartColor.Write(style.StartColor)
	if err != nil {
		return nil, err
	}
	endColor, err := l.EndColor.Write(style.EndColor)
	if err != nil {
		return nil, err
	}
	startWidth, err := l.StartWidth.Write(style.StartWidth)
	if err != nil {
		return nil, err
	}
	endWidth, err := l.EndWidth.Write(style.EndWidth)
	if err != nil {
		return nil, err
	}
	return []protocol.Update{startColor, endColor, startWidth, endWidth}, nil
}

// Mesh bakes the current points with baker.
func (l *Line) Mesh(baker geometry.Baker) geometry.Mesh {
	return baker.Bake(l.Points.Items(), l.Style())
}

// FromState rebuilds a line from a snapshot or spawn broadcast.
func FromState(state protocol.ObjectState) (*Line, error) {
	if state.Kind != string(object.KindLine) {
		return nil, fmt.Errorf("%w: %s is a %q", ErrNotALine, state.ID, state.Kind)
	}
	line := New(state.ID)
	if err := line.Restore(state); err != nil {
		return nil, err
	}
	return line, nil
}
