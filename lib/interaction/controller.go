// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package interaction

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/request"
)

// Defaults for Options.
const (
	DefaultMinPointDistance   = 0.01
	DefaultContactLossTimeout = 250 * time.Millisecond
)

// State is the controller's workflow state.
type State uint8

const (
	Idle State = iota
	Held
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Held:
		return "held"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Source says what started a stroke.
type Source uint8

const (
	// SourceContact is the tool tip touching a drawable surface.
	SourceContact Source = iota

	// SourceTrigger is an explicit draw button.
	SourceTrigger
)

func (s Source) String() string {
	if s == SourceTrigger {
		return "trigger"
	}
	return "contact"
}

// Actions sends requests to the authority. AddPoint predicts the
// append locally before sending; the others only send.
type Actions interface {
	RequestOwnership(object ref.ObjectID) protocol.RequestID
	ReleaseOwnership(object ref.ObjectID) protocol.RequestID
	SpawnLine(seed geometry.Vec3, style geometry.Style) protocol.RequestID
	AddPoint(line ref.ObjectID, point geometry.Vec3) error
	Bake(line ref.ObjectID) protocol.RequestID
}

// Options configure a Controller.
type Options struct {
	// Tool is the object the controller picks up and draws with.
	Tool ref.ObjectID

	// MinPointDistance is the smallest movement from the last appended
	// point that produces a new point. Defaults to
	// DefaultMinPointDistance.
	MinPointDistance float64

	// ContactLossTimeout ends a stroke when no contact event arrives
	// for this long. Defaults to DefaultContactLossTimeout.
	ContactLossTimeout time.Duration

	// Style is the initial tool style.
	Style geometry.Style
}

// stroke is the client-local drawing session for one line.
type stroke struct {
	line         ref.ObjectID // zero until the spawn is acknowledged
	style        geometry.Style
	lastAppended geometry.Vec3
	lastContact  geometry.Vec3
	buffered     []geometry.Vec3
	ended        bool
}

// Controller is the drawing workflow for one tool. Safe for concurrent
// use: input methods, results, and the contact-loss timer may arrive
// on different goroutines.
type Controller struct {
	actions Actions
	options Options
	clock   clock.Clock
	logger  *slog.Logger

	picks  *request.Tracker[ref.ObjectID]
	spawns *request.Tracker[ref.ObjectID]

	mu          sync.Mutex
	state       State
	style       geometry.Style
	current     *stroke
	contactLoss *clock.Timer
	finished    []ref.ObjectID
}

// NewController returns an Idle controller.
func NewController(actions Actions, options Options, clk clock.Clock, logger *slog.Logger) *Controller {
	if options.MinPointDistance <= 0 {
		options.MinPointDistance = DefaultMinPointDistance
	}
	if options.ContactLossTimeout <= 0 {
		options.ContactLossTimeout = DefaultContactLossTimeout
	}
	if options.Style == (geometry.Style{}) {
		options.Style = geometry.DefaultStyle
	}
	return &Controller{
		actions: actions,
		options: options,
		clock:   clk,
		logger:  logger,
		picks:   request.NewTracker[ref.ObjectID](),
		spawns:  request.NewTracker[ref.ObjectID](),
		style:   options.Style,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Line returns the line being drawn, or the zero id when not drawing
// or while the spawn is outstanding.
func (c *Controller) Line() ref.ObjectID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ref.ObjectID{}
	}
	return c.current.line
}

// Finished returns the lines this controller has baked and released,
// oldest first.
func (c *Controller) Finished() []ref.ObjectID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ref.ObjectID(nil), c.finished...)
}

// SetStyle changes the style for strokes started from now on.
func (c *Controller) SetStyle(style geometry.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.style = style
}

// Pick requests ownership of the tool. The controller stays Idle until
// the grant arrives. Repeated picks while a request is outstanding are
// absorbed.
func (c *Controller) Pick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return
	}
	if c.picks.State(c.options.Tool) == request.Denied {
		c.picks.Reset(c.options.Tool)
	}
	c.picks.Begin(c.options.Tool, func() protocol.RequestID {
		return c.actions.RequestOwnership(c.options.Tool)
	})
}

// Drop ends any stroke, releases the tool, and returns to Idle.
func (c *Controller) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		c.picks.Reset(c.options.Tool)
		return
	}
	c.endStrokeLocked()
	c.actions.ReleaseOwnership(c.options.Tool)
	c.toIdleLocked()
}

// Socketed ends any stroke and returns to Idle. The authority already
// cleared the tool's ownership when it seated it.
func (c *Controller) Socketed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return
	}
	c.endStrokeLocked()
	c.toIdleLocked()
}

// ToolLost handles the tool's ownership being taken away (an
// administrative release). Same as Socketed.
func (c *Controller) ToolLost() { c.Socketed() }

// BeginStroke starts a line at point. Only valid while Held; anything
// else is ignored.
func (c *Controller) BeginStroke(point geometry.Vec3, source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Held {
		return
	}
	// A previous spawn that was denied leaves the tracker in Denied.
	c.spawns.Reset(c.options.Tool)

	style := c.style
	started := c.spawns.Begin(c.options.Tool, func() protocol.RequestID {
		return c.actions.SpawnLine(point, style)
	})
	if !started {
		return
	}
	c.current = &stroke{style: style, lastAppended: point, lastContact: point}
	c.state = Drawing
	c.armContactLossLocked()
	c.logger.Debug("stroke started", "tool", c.options.Tool, "source", source, "point", point)
}

// ContactMove reports the contact point moving while drawing.
func (c *Controller) ContactMove(point geometry.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Drawing || c.current == nil {
		return
	}
	c.armContactLossLocked()
	c.current.lastContact = point
	if point.Distance(c.current.lastAppended) < c.options.MinPointDistance {
		return
	}
	c.current.lastAppended = point
	c.appendLocked(point)
}

// EndStroke reports contact ending. The last contact point is appended
// and the line is baked and released.
func (c *Controller) EndStroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStrokeLocked()
}

// HandleResult applies a result from the authority.
func (c *Controller) HandleResult(result protocol.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch result.Action {
	case protocol.KindRequestOwnership:
		if result.Object != c.options.Tool {
			return
		}
		if !c.picks.Resolve(c.options.Tool, result.Request, result.Granted, result.Reason) {
			return
		}
		if result.Granted && c.state == Idle {
			c.state = Held
			c.logger.Debug("tool held", "tool", c.options.Tool)
		} else if !result.Granted {
			c.logger.Debug("pick denied", "tool", c.options.Tool, "reason", result.Reason)
		}

	case protocol.KindSpawnLine:
		if !c.spawns.Resolve(c.options.Tool, result.Request, result.Granted, result.Reason) {
			return
		}
		if c.current == nil {
			return
		}
		if !result.Granted {
			c.logger.Debug("line spawn denied", "tool", c.options.Tool, "reason", result.Reason)
			c.current = nil
			c.stopContactLossLocked()
			if c.state == Drawing {
				c.state = Held
			}
			return
		}
		c.current.line = result.Object
		for _, point := range c.current.buffered {
			c.sendPointLocked(point)
		}
		c.current.buffered = nil
		if c.current.ended {
			c.finishLocked()
		}
	}
}

// LineDestroyed handles the authority destroying a line. If it is the
// line being drawn the stroke is abandoned.
func (c *Controller) LineDestroyed(line ref.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.line != line {
		return
	}
	c.current = nil
	c.stopContactLossLocked()
	if c.state == Drawing {
		c.state = Held
	}
}

func (c *Controller) appendLocked(point geometry.Vec3) {
	if c.current.line.IsZero() {
		c.current.buffered = append(c.current.buffered, point)
		return
	}
	c.sendPointLocked(point)
}

func (c *Controller) sendPointLocked(point geometry.Vec3) {
	if err := c.actions.AddPoint(c.current.line, point); err != nil {
		c.logger.Debug("point dropped", "line", c.current.line, "error", err)
	}
}

// endStrokeLocked appends the final point and, once the line id is
// known, bakes and releases it. Before that, the stroke is marked
// ended and finished when the spawn is acknowledged.
func (c *Controller) endStrokeLocked() {
	if c.state != Drawing || c.current == nil || c.current.ended {
		return
	}
	c.stopContactLossLocked()
	c.current.ended = true
	c.appendLocked(c.current.lastContact)
	c.state = Held
	if !c.current.line.IsZero() {
		c.finishLocked()
	}
}

func (c *Controller) finishLocked() {
	line := c.current.line
	c.actions.Bake(line)
	c.actions.ReleaseOwnership(line)
	c.finished = append(c.finished, line)
	c.current = nil
	c.spawns.Reset(c.options.Tool)
	c.logger.Debug("stroke finished", "tool", c.options.Tool, "line", line)
}

func (c *Controller) toIdleLocked() {
	c.state = Idle
	c.picks.Reset(c.options.Tool)
	c.stopContactLossLocked()
}

func (c *Controller) armContactLossLocked() {
	if c.contactLoss != nil {
		c.contactLoss.Reset(c.options.ContactLossTimeout)
		return
	}
	c.contactLoss = c.clock.AfterFunc(c.options.ContactLossTimeout, c.contactLost)
}

func (c *Controller) stopContactLossLocked() {
	if c.contactLoss != nil {
		c.contactLoss.Stop()
		c.contactLoss = nil
	}
}

func (c *Controller) contactLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Drawing {
		return
	}
	c.logger.Debug("contact lost, ending stroke", "tool", c.options.Tool)
	c.contactLoss = nil
	c.endStrokeLocked()
}
