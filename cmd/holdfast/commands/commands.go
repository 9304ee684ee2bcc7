// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the holdfast CLI command tree.
package commands

import (
	"fmt"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/admin"
	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	discovercmd "github.com/bureau-foundation/holdfast/cmd/holdfast/discover"
	drawcmd "github.com/bureau-foundation/holdfast/cmd/holdfast/draw"
	tokencmd "github.com/bureau-foundation/holdfast/cmd/holdfast/token"
	"github.com/bureau-foundation/holdfast/lib/version"
)

// Root returns the complete holdfast command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "holdfast",
		Description: `holdfast: operator tools for shared drawing sessions.

Inspect and steer a running authority through its admin socket, mint
join tokens, find authorities on the local network, and join a
session as a scripted peer.`,
		Subcommands: []*cli.Command{
			admin.StatusCommand(),
			admin.ObjectsCommand(),
			admin.SocketsCommand(),
			admin.ReleaseCommand(),
			admin.SnapshotCommand(),
			admin.ExportCommand(),
			admin.WatchCommand(),
			tokencmd.Command(),
			discovercmd.Command(),
			drawcmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("holdfast %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
