// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package discover implements "holdfast discover", which lists
// authorities advertising themselves on the local network.
package discover

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/discovery"
)

type discoverParams struct {
	cli.JSONOutput
	Timeout time.Duration `json:"timeout" flag:"timeout,t" desc:"how long to listen for answers" default:"2s"`
}

type discoveredAuthority struct {
	Instance   string `json:"instance"`
	Address    string `json:"address"`
	Protocol   int    `json:"protocol,omitempty"`
	Compatible bool   `json:"compatible"`
}

// Command returns "holdfast discover".
func Command() *cli.Command {
	var params discoverParams

	return &cli.Command{
		Name:    "discover",
		Summary: "Find authorities on the local network",
		Description: `Browse mDNS for ` + discovery.ServiceType + ` services and list each
authority's address and protocol version. Authorities speaking an
incompatible protocol are listed but marked.

Exits with status 1 when nothing answers.`,
		Usage: "holdfast discover [--timeout <duration>] [flags]",
		Examples: []cli.Example{
			{
				Description: "Listen a little longer on a busy network",
				Command:     "holdfast discover --timeout 5s",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("discover", &params) },
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			return runDiscover(params)
		},
	}
}

func runDiscover(params discoverParams) error {
	if params.Timeout <= 0 {
		return cli.Validation("--timeout must be positive")
	}
	authorities, err := discovery.Browse(context.Background(), params.Timeout)
	if err != nil && len(authorities) == 0 {
		return cli.Transient("%w", err).
			WithHint("mDNS needs multicast on the local interface. Connect by address instead if it is blocked.")
	}

	found := make([]discoveredAuthority, len(authorities))
	for index, authority := range authorities {
		found[index] = discoveredAuthority{
			Instance:   authority.Instance,
			Address:    authority.Address,
			Protocol:   authority.Protocol,
			Compatible: authority.Compatible(),
		}
	}

	if done, err := params.EmitJSON(found); done {
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return &cli.ExitError{Code: 1}
		}
		return nil
	}
	if len(found) == 0 {
		fmt.Fprintf(os.Stderr, "no authorities answered within %s\n", params.Timeout)
		return &cli.ExitError{Code: 1}
	}
	printAuthorities(os.Stdout, found)
	return nil
}

func printAuthorities(w io.Writer, found []discoveredAuthority) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "INSTANCE\tADDRESS\tPROTOCOL")
	for _, authority := range found {
		protocol := "?"
		if authority.Protocol != 0 {
			protocol = fmt.Sprint(authority.Protocol)
		}
		if !authority.Compatible {
			protocol += " (incompatible)"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", authority.Instance, authority.Address, protocol)
	}
	writer.Flush()
}
