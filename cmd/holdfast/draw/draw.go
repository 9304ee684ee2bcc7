// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package draw implements "holdfast draw", a scripted peer that joins a
// session, picks up a tool and draws one stroke with it. It drives the
// same interaction controller a headset client uses, so it doubles as
// a smoke test of a running authority.
package draw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/discovery"
	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/interaction"
	"github.com/bureau-foundation/holdfast/lib/peer"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/transport"
)

// EnvToken supplies --token when the flag is not given.
const EnvToken = "HOLDFAST_TOKEN"

type drawParams struct {
	cli.JSONOutput
	Address     string        `json:"address"      flag:"address,a"     desc:"authority address (host:port, or a URL for websocket/webrtc)" default:"localhost:7400"`
	Transport   string        `json:"transport"    flag:"transport"     desc:"tcp, websocket or webrtc" default:"tcp"`
	Discover    bool          `json:"discover"     flag:"discover"      desc:"use the first compatible authority found over mDNS instead of --address"`
	ICE         []string      `json:"ice"          flag:"ice"           desc:"STUN/TURN URL for webrtc (repeatable)"`
	Peer        string        `json:"peer"         flag:"peer"          desc:"peer id to join as (default: random)"`
	Token       string        `json:"-"            flag:"token"         desc:"join token (default: $HOLDFAST_TOKEN)"`
	Tool        string        `json:"tool"         flag:"tool"          desc:"object to draw with" default:"pen"`
	Shape       string        `json:"shape"        flag:"shape"         desc:"line or circle" default:"line"`
	From        string        `json:"from"         flag:"from"          desc:"stroke start x,y,z in metres" default:"0,1.5,-1"`
	To          string        `json:"to"           flag:"to"            desc:"stroke end x,y,z (line) or centre (circle)" default:"0.5,1.5,-1"`
	Steps       int           `json:"steps"        flag:"steps"         desc:"contact samples along the stroke" default:"50"`
	StepDelay   time.Duration `json:"step_delay"   flag:"step-delay"    desc:"time between contact samples" default:"10ms"`
	Color       string        `json:"color"        flag:"color"         desc:"stroke color" default:"#000000"`
	Width       float64       `json:"width"        flag:"width"         desc:"stroke width in metres" default:"0.005"`
	MinDistance float64       `json:"min_distance" flag:"min-distance"  desc:"smallest movement that adds a point" default:"0.01"`
	Config      string        `json:"config"       flag:"config"        desc:"take min distance, contact-loss timeout and style from this config's interaction section"`
	Timeout     time.Duration `json:"timeout"      flag:"timeout"       desc:"give up after this long" default:"30s"`
	Verbose     bool          `json:"-"            flag:"verbose,v"     desc:"log protocol activity"`
}

// drawResult describes the finished stroke.
type drawResult struct {
	Peer      ref.PeerID      `json:"peer"`
	Authority string          `json:"authority"`
	Line      ref.ObjectID    `json:"line"`
	Baked     bool            `json:"baked"`
	Destroyed bool            `json:"destroyed,omitempty"`
	Points    int             `json:"points"`
	Digest    string          `json:"digest"`
	Reason    protocol.Reason `json:"reason,omitempty"`
}

// Command returns "holdfast draw".
func Command() *cli.Command {
	var params drawParams

	return &cli.Command{
		Name:    "draw",
		Summary: "Join a session and draw one stroke",
		Description: `Join a running authority as a peer, pick up a tool, draw a stroke by
feeding contact samples to the drawing controller, and wait for the
line to be baked. The tool is released before exiting.

The stroke is a straight line from --from to --to, or a circle around
--to passing through --from. Samples closer than --min-distance to
the last point are dropped, exactly as on a headset.`,
		Usage: "holdfast draw [--address <host:port>] [--shape line|circle] [flags]",
		Examples: []cli.Example{
			{
				Description: "Draw a half-metre line on the local authority",
				Command:     "holdfast draw",
			},
			{
				Description: "Draw a red circle over WebSocket",
				Command:     "holdfast draw --transport websocket --address studio:7401 --shape circle --color '#ff0000'",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("draw", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runDraw(params)
		},
	}
}

func runDraw(params drawParams) error {
	if params.Token == "" {
		params.Token = os.Getenv(EnvToken)
	}
	logger := cli.NewCommandLogger(params.Verbose)

	ctx, cancel := context.WithTimeout(context.Background(), params.Timeout)
	defer cancel()

	result, err := draw(ctx, params, logger)
	if err != nil {
		return err
	}
	if done, err := params.EmitJSON(result); done {
		return err
	}
	if result.Destroyed {
		fmt.Fprintf(os.Stdout, "line %s was destroyed by the authority (%s)\n", result.Line, result.Reason)
		return &cli.ExitError{Code: 1}
	}
	fmt.Fprintf(os.Stdout, "drew %s: %d points, baked, digest %s\n", result.Line, result.Points, shortDigest(result.Digest))
	return nil
}

// stroke is a validated drawing plan.
type stroke struct {
	tool        ref.ObjectID
	peer        ref.PeerID
	style       geometry.Style
	minDistance float64
	contactLoss time.Duration
	samples     []geometry.Vec3
}

func planStroke(params drawParams) (stroke, error) {
	var plan stroke
	var err error
	if plan.tool, err = ref.ParseObjectID(params.Tool); err != nil {
		return plan, cli.Validation("invalid --tool: %v", err)
	}
	if params.Peer == "" {
		plan.peer = ref.NewPeerID()
	} else if plan.peer, err = ref.ParsePeerID(params.Peer); err != nil {
		return plan, cli.Validation("invalid --peer: %v", err)
	}
	color, err := geometry.ParseColor(params.Color)
	if err != nil {
		return plan, cli.Validation("invalid --color: %v", err)
	}
	plan.style = geometry.Style{StartColor: color, EndColor: color, StartWidth: params.Width, EndWidth: params.Width}
	if err := plan.style.Validate(); err != nil {
		return plan, cli.Validation("invalid --width: %v", err)
	}
	plan.minDistance = params.MinDistance
	if params.Config != "" {
		if err := applyInteractionConfig(&plan, params.Config); err != nil {
			return plan, err
		}
	}
	if params.Steps < 2 {
		return plan, cli.Validation("--steps must be at least 2")
	}
	from, err := parseVec3(params.From)
	if err != nil {
		return plan, cli.Validation("invalid --from: %v", err)
	}
	to, err := parseVec3(params.To)
	if err != nil {
		return plan, cli.Validation("invalid --to: %v", err)
	}
	switch params.Shape {
	case "line":
		plan.samples = lineSamples(from, to, params.Steps)
	case "circle":
		if math.Hypot(from.X-to.X, from.Y-to.Y) == 0 {
			return plan, cli.Validation("circle needs --from off the centre --to in the XY plane")
		}
		plan.samples = circleSamples(to, from, params.Steps)
	default:
		return plan, cli.Validation("unknown --shape %q (want line or circle)", params.Shape)
	}
	return plan, nil
}

// applyInteractionConfig replaces the style and thresholds with the
// interaction section of a config file.
func applyInteractionConfig(plan *stroke, path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return cli.Validation("%v", err)
	}
	interactionConfig := cfg.Interaction
	style, err := interactionConfig.Style.Style()
	if err != nil {
		return cli.Validation("%s: interaction.style: %v", path, err)
	}
	contactLoss, err := interactionConfig.ContactLossTimeoutDuration()
	if err != nil {
		return cli.Validation("%s: %v", path, err)
	}
	plan.style = style
	plan.minDistance = interactionConfig.MinPointDistance
	plan.contactLoss = contactLoss
	return nil
}

func parseVec3(raw string) (geometry.Vec3, error) {
	var v geometry.Vec3
	if _, err := fmt.Sscanf(raw, "%g,%g,%g", &v.X, &v.Y, &v.Z); err != nil {
		return v, fmt.Errorf("%q is not x,y,z: %w", raw, err)
	}
	if !v.IsFinite() {
		return v, fmt.Errorf("%q is not finite", raw)
	}
	return v, nil
}

// lineSamples returns steps points evenly spaced from start to end
// inclusive.
func lineSamples(start, end geometry.Vec3, steps int) []geometry.Vec3 {
	samples := make([]geometry.Vec3, steps)
	for index := range samples {
		t := float64(index) / float64(steps-1)
		samples[index] = start.Add(end.Sub(start).Scale(t))
	}
	return samples
}

// circleSamples traces a closed circle around centre through start, in
// the plane perpendicular to Z.
func circleSamples(centre, start geometry.Vec3, steps int) []geometry.Vec3 {
	offset := start.Sub(centre)
	radius := math.Hypot(offset.X, offset.Y)
	phase := math.Atan2(offset.Y, offset.X)
	samples := make([]geometry.Vec3, steps)
	for index := range samples {
		angle := phase + 2*math.Pi*float64(index)/float64(steps-1)
		samples[index] = geometry.V(centre.X+radius*math.Cos(angle), centre.Y+radius*math.Sin(angle), start.Z)
	}
	return samples
}

func dialerFor(params drawParams) (transport.Dialer, error) {
	switch params.Transport {
	case "tcp":
		return &transport.TCPDialer{Timeout: 5 * time.Second}, nil
	case "websocket", "ws":
		return &transport.WebSocketDialer{}, nil
	case "webrtc":
		return &transport.WebRTCDialer{
			Signaler:  &transport.HTTPSignaler{},
			ICEConfig: transport.ICEConfigFromURLs(params.ICE, "", ""),
		}, nil
	default:
		return nil, cli.Validation("unknown --transport %q (want tcp, websocket or webrtc)", params.Transport)
	}
}

func resolveAddress(ctx context.Context, params drawParams) (string, error) {
	if !params.Discover {
		return params.Address, nil
	}
	if params.Transport != "tcp" {
		return "", cli.Validation("--discover finds TCP listeners only; use --transport tcp")
	}
	authorities, err := discovery.Browse(ctx, discovery.DefaultBrowseTimeout)
	if err != nil && len(authorities) == 0 {
		return "", cli.Transient("%w", err)
	}
	for _, authority := range authorities {
		if authority.Compatible() {
			return authority.Address, nil
		}
	}
	return "", cli.NotFound("no compatible authority answered on the local network")
}

// draw joins the session and performs the stroke.
func draw(ctx context.Context, params drawParams, logger *slog.Logger) (drawResult, error) {
	plan, err := planStroke(params)
	if err != nil {
		return drawResult{}, err
	}
	dialer, err := dialerFor(params)
	if err != nil {
		return drawResult{}, err
	}
	address, err := resolveAddress(ctx, params)
	if err != nil {
		return drawResult{}, err
	}

	client, err := peer.Dial(ctx, dialer, address, peer.Options{
		Peer:   plan.peer,
		Token:  params.Token,
		Logger: logger,
	})
	if errors.Is(err, peer.ErrRejected) {
		return drawResult{}, cli.Validation("%w", err).
			WithHint("If the authority requires join tokens, mint one with: holdfast token mint " + plan.peer.String())
	}
	if err != nil {
		return drawResult{}, cli.Transient("joining %s: %w", address, err)
	}
	defer client.Close()

	controller := interaction.NewController(client, interaction.Options{
		Tool:               plan.tool,
		MinPointDistance:   plan.minDistance,
		ContactLossTimeout: plan.contactLoss,
		Style:              plan.style,
	}, clock.Real(), logger)
	session := &session{client: client, controller: controller}

	controller.Pick()
	picked, err := session.wait(ctx, func(event peer.Event) bool {
		return event.Result != nil && event.Result.Action == protocol.KindRequestOwnership && event.Result.Object == plan.tool
	})
	if err != nil {
		return drawResult{}, err
	}
	if !picked.Result.Granted {
		holder := "another peer"
		if described, ok := client.Object(plan.tool); ok && !described.Owner.IsZero() {
			holder = described.Owner.String()
		}
		return drawResult{}, cli.Transient("cannot pick up %s: %s", plan.tool, picked.Reason).
			WithHint(fmt.Sprintf("%s is held by %s. Try again later, or free it with: holdfast release %s", plan.tool, holder, plan.tool))
	}
	defer controller.Drop()

	controller.BeginStroke(plan.samples[0], interaction.SourceContact)
	for _, sample := range plan.samples[1:] {
		if err := session.idle(ctx, params.StepDelay); err != nil {
			return drawResult{}, err
		}
		controller.ContactMove(sample)
	}
	controller.EndStroke()

	if len(controller.Finished()) == 0 {
		spawned, err := session.wait(ctx, func(event peer.Event) bool {
			if len(controller.Finished()) > 0 {
				return true
			}
			return event.Result != nil && event.Result.Action == protocol.KindSpawnLine && !event.Result.Granted
		})
		if err != nil {
			return drawResult{}, err
		}
		if len(controller.Finished()) == 0 {
			return drawResult{}, cli.Transient("line spawn refused: %s", spawned.Reason)
		}
	}
	line := controller.Finished()[0]
	outcome, err := session.wait(ctx, func(event peer.Event) bool {
		return event.Result != nil && event.Result.Action == protocol.KindBake && event.Result.Object == line
	})
	if err != nil {
		return drawResult{}, err
	}

	result := drawResult{Peer: plan.peer, Authority: address, Line: line}
	if !outcome.Result.Granted {
		result.Destroyed = outcome.Result.Reason == protocol.ReasonDegenerate
		result.Reason = outcome.Result.Reason
		if !result.Destroyed {
			return result, cli.Internal("bake of %s refused: %s", line, outcome.Result.Reason)
		}
	} else {
		points, baked, err := client.Points(line)
		if err != nil {
			return result, cli.Internal("reading %s: %w", line, err)
		}
		result.Points = len(points)
		result.Baked = baked
	}

	world, err := client.World()
	if err != nil {
		return result, cli.Internal("capturing world: %w", err)
	}
	digest, err := snapshot.StateDigest(world)
	if err != nil {
		return result, cli.Internal("hashing world: %w", err)
	}
	result.Digest = digest.String()
	return result, nil
}

// session pumps peer events into the controller while the command
// waits for particular ones.
type session struct {
	client     *peer.Client
	controller *interaction.Controller
}

func (s *session) handle(event peer.Event) {
	switch {
	case event.Result != nil:
		s.controller.HandleResult(*event.Result)
	case event.Kind == peer.EventDestroyed:
		s.controller.LineDestroyed(event.Object)
	}
}

// wait handles events until match accepts one.
func (s *session) wait(ctx context.Context, match func(peer.Event) bool) (peer.Event, error) {
	for {
		select {
		case event, ok := <-s.client.Events():
			if !ok {
				return peer.Event{}, s.ended()
			}
			s.handle(event)
			if match(event) {
				return event, nil
			}
		case <-ctx.Done():
			return peer.Event{}, cli.Transient("timed out: %w", ctx.Err())
		}
	}
}

// idle handles events for duration.
func (s *session) idle(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	for {
		select {
		case event, ok := <-s.client.Events():
			if !ok {
				return s.ended()
			}
			s.handle(event)
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return cli.Transient("timed out: %w", ctx.Err())
		}
	}
}

func (s *session) ended() error {
	if err := s.client.Err(); err != nil {
		return cli.Transient("connection lost: %w", err)
	}
	return cli.Transient("authority closed the connection")
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
