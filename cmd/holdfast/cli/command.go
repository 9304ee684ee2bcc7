// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one verb of the holdfast CLI, or a group of them.
type Command struct {
	Name    string
	Summary string

	// Description replaces Summary at the top of the command's own
	// help.
	Description string

	// Usage replaces the generated "holdfast <name> [flags]" line.
	Usage string

	Examples []Example

	// Flags builds a fresh flag set bound to the command's params.
	// It is called again for help and suggestions, so it must not
	// carry state between calls.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the arguments left after flag parsing. On a group
	// it runs when no subcommand is named.
	Run func(args []string) error

	parent *Command
}

// Example is a help-text invocation.
type Example struct {
	Description string
	Command     string
}

// Execute routes args to the named subcommand, parses flags and runs
// the command. Mistyped commands and flags come back as validation
// errors that suggest the likely intent.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}
	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			sub, err := c.subcommand(args[0])
			if err != nil {
				return err
			}
			return sub.Execute(args[1:])
		}
		if c.Run == nil {
			c.PrintHelp(os.Stderr)
			if len(args) == 0 {
				return Validation("subcommand required")
			}
			return Validation("subcommand required (got flag %q)", args[0])
		}
	}

	args, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		return Internal("%q has nothing to run", c.path())
	}
	return c.Run(args)
}

func (c *Command) subcommand(name string) (*Command, error) {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub, nil
		}
	}
	if guess := suggestCommand(name, c.Subcommands); guess != "" {
		return nil, Validation("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.", name, guess, c.path())
	}
	return nil, Validation("unknown command %q\n\nRun '%s --help' for usage.", name, c.path())
}

func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	err := flagSet.Parse(args)
	if err == nil {
		return flagSet.Args(), nil
	}
	message := err.Error()
	if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand flag") {
		if guess := suggestFlag(args, c.Flags()); guess != "" {
			return nil, Validation("%s (did you mean %s?)\n\nRun '%s --help' for usage.", message, guess, c.path())
		}
	}
	return nil, Validation("%s\n\nRun '%s --help' for usage.", message, c.path())
}

// PrintHelp writes the command's help to w: description, usage,
// subcommands, flags and examples.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.path()

	if text := c.Description; text != "" {
		fmt.Fprintf(w, "%s\n\n", text)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		usage = name + " [flags]"
		if len(c.Subcommands) > 0 {
			usage = name + " <command> [flags]"
		}
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", usage)

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if c.Flags != nil {
		if defaults := c.Flags().FlagUsages(); defaults != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", defaults)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description == "" {
				fmt.Fprintf(w, "  %s\n", example.Command)
				continue
			}
			fmt.Fprintf(w, "  # %s\n  %s\n\n", example.Description, example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// path is the command as typed from the root, e.g. "holdfast token mint".
func (c *Command) path() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.path() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
