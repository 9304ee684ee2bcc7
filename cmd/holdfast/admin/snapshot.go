// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/authority"
	"github.com/bureau-foundation/holdfast/lib/export"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
)

type snapshotParams struct {
	cli.AdminConnection
	cli.JSONOutput
	Out      string `json:"out"      flag:"out,o"    desc:"write the encoded snapshot to this file"`
	Diagnose bool   `json:"diagnose" flag:"diagnose" desc:"print the world in CBOR diagnostic notation"`
}

// snapshotSummary is the --json form of a snapshot.
type snapshotSummary struct {
	Compression    string `json:"compression"`
	Size           int    `json:"size"`
	CompressedSize int    `json:"compressed_size"`
	Digest         string `json:"digest"`
	Objects        int    `json:"objects"`
	Lines          int    `json:"lines"`
	Sockets        int    `json:"sockets"`
	Taken          int64  `json:"taken"`
	Out            string `json:"out,omitempty"`
}

// SnapshotCommand returns "holdfast snapshot".
func SnapshotCommand() *cli.Command {
	var params snapshotParams

	return &cli.Command{
		Name:    "snapshot",
		Summary: "Capture the authority's world",
		Description: `Fetch the world snapshot the authority sends to joining peers, verify
its digest, and summarize it. --out saves the encoded bytes. --diagnose
prints the decoded world in CBOR diagnostic notation.`,
		Usage: "holdfast snapshot [--out <file>] [--diagnose] [flags]",
		Examples: []cli.Example{
			{
				Description: "Save the world",
				Command:     "holdfast snapshot --out world.snap",
			},
			{
				Description: "Inspect the world",
				Command:     "holdfast snapshot --diagnose",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("snapshot", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runSnapshot(params)
		},
	}
}

// fetchSnapshot calls the snapshot action and decodes the result.
func fetchSnapshot(connection *cli.AdminConnection) ([]byte, snapshot.World, snapshot.Info, error) {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	var result authority.SnapshotResult
	if err := connection.Call(ctx, authority.ActionSnapshot, nil, &result); err != nil {
		return nil, snapshot.World{}, snapshot.Info{}, err
	}
	world, info, err := snapshot.Decode(result.Snapshot)
	if err != nil {
		return nil, snapshot.World{}, info, cli.Internal("decoding snapshot from %s: %w", connection.SocketPath, err)
	}
	return result.Snapshot, world, info, nil
}

func runSnapshot(params snapshotParams) error {
	encoded, world, info, err := fetchSnapshot(&params.AdminConnection)
	if err != nil {
		return err
	}

	if params.Out != "" {
		if err := os.WriteFile(params.Out, encoded, 0o644); err != nil {
			return cli.Internal("writing snapshot: %w", err)
		}
	}

	summary := summarize(world, info)
	summary.Out = params.Out
	if done, err := params.EmitJSON(summary); done {
		return err
	}

	printSummary(os.Stdout, summary)
	if params.Diagnose {
		_, diagnostic, err := snapshot.Inspect(encoded)
		if err != nil {
			return cli.Internal("inspecting snapshot: %w", err)
		}
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, diagnostic)
	}
	return nil
}

func summarize(world snapshot.World, info snapshot.Info) snapshotSummary {
	summary := snapshotSummary{
		Compression:    info.Compression.String(),
		Size:           info.Size,
		CompressedSize: info.CompressedSize,
		Digest:         info.Digest.String(),
		Objects:        len(world.Objects),
		Sockets:        len(world.Sockets),
		Taken:          world.Taken,
	}
	for _, state := range world.Objects {
		if state.Kind == string(object.KindLine) {
			summary.Lines++
		}
	}
	return summary
}

func printSummary(w io.Writer, summary snapshotSummary) {
	fmt.Fprintf(w, "digest      %s\n", summary.Digest)
	fmt.Fprintf(w, "compression %s (%d -> %d bytes)\n", summary.Compression, summary.Size, summary.CompressedSize)
	fmt.Fprintf(w, "world       %d objects (%d lines), %d sockets\n", summary.Objects, summary.Lines, summary.Sockets)
	if summary.Out != "" {
		fmt.Fprintf(w, "written to  %s\n", summary.Out)
	}
}

type exportParams struct {
	cli.AdminConnection
	Out        string `json:"out"        flag:"out,o"      desc:"PDF file to write (required)"`
	Projection string `json:"projection" flag:"projection" desc:"plane to project onto: xy (wall) or xz (table)" default:"xy"`
	Snapshot   string `json:"snapshot"   flag:"snapshot"   desc:"read a saved snapshot file instead of asking the authority"`
}

// ExportCommand returns "holdfast export".
func ExportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Export baked strokes to PDF",
		Description: `Draw every baked line in the world onto one A4 page, projected onto
the chosen plane and scaled to fit. Lines still being drawn are
skipped. The world comes from the running authority, or from a file
saved with "holdfast snapshot --out".`,
		Usage: "holdfast export --out <file.pdf> [--projection xy|xz] [flags]",
		Examples: []cli.Example{
			{
				Description: "Export the whiteboard",
				Command:     "holdfast export --out board.pdf",
			},
			{
				Description: "Export a saved table-top session",
				Command:     "holdfast export --snapshot world.snap --projection xz --out table.pdf",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("export", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runExport(params)
		},
	}
}

func runExport(params exportParams) error {
	if params.Out == "" {
		return cli.Validation("--out is required")
	}
	projection, err := export.ParseProjection(params.Projection)
	if err != nil {
		return cli.Validation("%v", err)
	}

	var world snapshot.World
	if params.Snapshot != "" {
		encoded, err := os.ReadFile(params.Snapshot)
		if err != nil {
			return cli.NotFound("reading snapshot: %v", err)
		}
		world, _, err = snapshot.Decode(encoded)
		if err != nil {
			return cli.Validation("decoding %s: %v", params.Snapshot, err)
		}
	} else {
		_, world, _, err = fetchSnapshot(&params.AdminConnection)
		if err != nil {
			return err
		}
	}

	strokes, err := export.StrokesFromWorld(world)
	if err != nil {
		return cli.Internal("collecting strokes: %w", err)
	}
	if len(strokes) == 0 {
		return cli.NotFound("%v", export.ErrNothingToExport).
			WithHint("Only baked lines are exported. Finish a stroke and try again.")
	}

	if err := writePDF(params.Out, strokes, projection); err != nil {
		return cli.Internal("writing %s: %w", params.Out, err)
	}
	fmt.Fprintf(os.Stdout, "exported %d strokes to %s\n", len(strokes), params.Out)
	return nil
}

func writePDF(path string, strokes []export.Stroke, projection export.Projection) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	if err := export.WritePDF(file, strokes, projection); err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			return err
		}
		return fmt.Errorf("rendering PDF: %w", err)
	}
	return nil
}
