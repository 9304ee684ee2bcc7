// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/authority"
)

// adminTimeout bounds one admin round trip.
const adminTimeout = 10 * time.Second

type statusParams struct {
	cli.AdminConnection
	cli.JSONOutput
}

// StatusCommand returns "holdfast status".
func StatusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show authority status and connected peers",
		Description: `Show the running authority's version, world counts, state digest and
one row per connected peer.

QUEUED is the peer's outbound backlog. A peer whose backlog reaches the
configured outbox size is disconnected as too slow.`,
		Usage: "holdfast status [flags]",
		Examples: []cli.Example{
			{
				Description: "Check the local authority",
				Command:     "holdfast status",
			},
			{
				Description: "Machine-readable status",
				Command:     "holdfast status --json",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("status", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runStatus(params)
		},
	}
}

func runStatus(params statusParams) error {
	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	var status authority.Status
	if err := params.Call(ctx, authority.ActionStatus, nil, &status); err != nil {
		return err
	}
	if done, err := params.EmitJSON(status); done {
		return err
	}
	printStatus(os.Stdout, status)
	return nil
}

func printStatus(w io.Writer, status authority.Status) {
	started := time.UnixMilli(status.Started)
	fmt.Fprintf(w, "authority %s (protocol %d), up since %s\n",
		status.Version, status.Protocol, started.Format(time.RFC3339))
	fmt.Fprintf(w, "objects %d (lines %d), sockets %d, digest %s\n\n",
		status.Objects, status.Lines, status.Sockets, shortDigest(status.Digest))

	if len(status.Peers) == 0 {
		fmt.Fprintln(w, "no peers connected")
		return
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "PEER\tREMOTE\tJOINED\tOWNED\tRECEIVED\tDENIED\tQUEUED")
	for _, peer := range status.Peers {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			peer.Peer, peer.Remote,
			time.UnixMilli(peer.Joined).Format(time.TimeOnly),
			peer.Owned, peer.Received, peer.Denied, peer.Queued)
	}
	writer.Flush()
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
