// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/authority"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/socket"
)

type objectsParams struct {
	cli.AdminConnection
	cli.JSONOutput
	Kind string `json:"kind" flag:"kind" desc:"only list objects of this kind (object or line)"`
}

// ObjectsCommand returns "holdfast objects".
func ObjectsCommand() *cli.Command {
	var params objectsParams

	return &cli.Command{
		Name:    "objects",
		Summary: "List objects with owners and holds",
		Description: `List every object in the authority's world in id order: its kind,
owner, hold count, parent socket and position. Lines also show their
point count and whether they are baked.`,
		Usage: "holdfast objects [--kind <kind>] [flags]",
		Examples: []cli.Example{
			{
				Description: "List everything",
				Command:     "holdfast objects",
			},
			{
				Description: "List only lines",
				Command:     "holdfast objects --kind line",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("objects", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runObjects(params)
		},
	}
}

func runObjects(params objectsParams) error {
	if params.Kind != "" && params.Kind != string(object.KindObject) && params.Kind != string(object.KindLine) {
		return cli.Validation("unknown kind %q", params.Kind).
			WithHint("Valid kinds are object and line.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	var objects []authority.ObjectInfo
	if err := params.Call(ctx, authority.ActionObjects, nil, &objects); err != nil {
		return err
	}
	objects = filterKind(objects, object.Kind(params.Kind))

	if done, err := params.EmitJSON(objects); done {
		return err
	}
	if len(objects) == 0 {
		fmt.Fprintln(os.Stderr, "no objects")
		return nil
	}
	printObjects(os.Stdout, objects)
	return nil
}

func filterKind(objects []authority.ObjectInfo, kind object.Kind) []authority.ObjectInfo {
	if kind == "" {
		return objects
	}
	var kept []authority.ObjectInfo
	for _, info := range objects {
		if info.Kind == kind {
			kept = append(kept, info)
		}
	}
	return kept
}

func printObjects(w io.Writer, objects []authority.ObjectInfo) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tKIND\tOWNER\tHOLDS\tSOCKET\tPOSITION\tDETAIL")
	for _, info := range objects {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			info.ID, info.Kind, orDash(info.Owner.String()), info.Holds,
			orDash(info.Socket.String()), info.Position, objectDetail(info))
	}
	writer.Flush()
}

// objectDetail renders the flags worth an operator's attention.
func objectDetail(info authority.ObjectInfo) string {
	var parts []string
	if info.Kind == object.KindLine {
		state := "drawing"
		if info.Baked {
			state = "baked"
		}
		parts = append(parts, fmt.Sprintf("%d points, %s", info.Points, state))
	}
	if info.Kinematic {
		parts = append(parts, "kinematic")
	}
	if !info.Retrievable {
		parts = append(parts, "not retrievable")
	}
	return strings.Join(parts, "; ")
}

type socketsParams struct {
	cli.AdminConnection
	cli.JSONOutput
}

// SocketsCommand returns "holdfast sockets".
func SocketsCommand() *cli.Command {
	var params socketsParams

	return &cli.Command{
		Name:    "sockets",
		Summary: "List sockets and their occupants",
		Description: `List every socket with its occupant and placement policy. Policy
letters: R reparent occupant, D destroy on place, N disable retrieval,
H require held, K force kinematic.`,
		Usage: "holdfast sockets [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("sockets", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runSockets(params)
		},
	}
}

func runSockets(params socketsParams) error {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	var sockets []socket.State
	if err := params.Call(ctx, authority.ActionSockets, nil, &sockets); err != nil {
		return err
	}
	if done, err := params.EmitJSON(sockets); done {
		return err
	}
	if len(sockets) == 0 {
		fmt.Fprintln(os.Stderr, "no sockets")
		return nil
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tOCCUPANT\tPOLICY\tPOSITION")
	for _, state := range sockets {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			state.ID, orDash(state.Occupant.String()), policyLetters(state.Policy), state.Pose.Position)
	}
	writer.Flush()
	return nil
}

func policyLetters(policy socket.Policy) string {
	letters := []struct {
		set    bool
		letter byte
	}{
		{policy.ReparentOccupant, 'R'},
		{policy.DestroyOnPlace, 'D'},
		{policy.DisableRetrievalOnPlace, 'N'},
		{policy.RequireHeldBeforePlace, 'H'},
		{policy.ForceKinematicOnPlace, 'K'},
	}
	var builder strings.Builder
	for _, entry := range letters {
		if entry.set {
			builder.WriteByte(entry.letter)
		} else {
			builder.WriteByte('-')
		}
	}
	return builder.String()
}

type releaseParams struct {
	cli.AdminConnection
	cli.JSONOutput
}

// ReleaseCommand returns "holdfast release".
func ReleaseCommand() *cli.Command {
	var params releaseParams

	return &cli.Command{
		Name:    "release",
		Summary: "Force-release an object's owner",
		Description: `Clear the owner and hold count of an object, as if its owner had
disconnected. The change is broadcast to every peer. Use this to free
an object held by a peer that is connected but wedged.`,
		Usage: "holdfast release <object> [flags]",
		Examples: []cli.Example{
			{
				Description: "Take the pen back",
				Command:     "holdfast release pen",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("release", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: holdfast release <object>")
			}
			return runRelease(params, args[0])
		},
	}
}

func runRelease(params releaseParams, raw string) error {
	id, err := ref.ParseObjectID(raw)
	if err != nil {
		return cli.Validation("invalid object id: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	var result authority.ForceReleaseResult
	if err := params.Call(ctx, authority.ActionForceRelease, map[string]any{"object": id.String()}, &result); err != nil {
		return err
	}
	if done, err := params.EmitJSON(result); done {
		return err
	}
	if result.Previous.IsZero() {
		fmt.Fprintf(os.Stdout, "%s had no owner\n", result.Object)
		return nil
	}
	fmt.Fprintf(os.Stdout, "released %s from %s\n", result.Object, result.Previous)
	return nil
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
