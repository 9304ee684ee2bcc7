// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"testing"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
)

// TestCommandTree builds every command's flag set, which panics on a
// malformed params struct, and checks names are unique per level.
func TestCommandTree(t *testing.T) {
	var walk func(command *cli.Command, path string)
	walk = func(command *cli.Command, path string) {
		if command.Flags != nil {
			command.Flags()
		}
		seen := make(map[string]bool)
		for _, sub := range command.Subcommands {
			if sub.Name == "" {
				t.Errorf("%s has an unnamed subcommand", path)
			}
			if seen[sub.Name] {
				t.Errorf("%s has two %q subcommands", path, sub.Name)
			}
			seen[sub.Name] = true
			if sub.Summary == "" {
				t.Errorf("%s %s has no summary", path, sub.Name)
			}
			if sub.Run == nil && len(sub.Subcommands) == 0 {
				t.Errorf("%s %s can neither run nor dispatch", path, sub.Name)
			}
			walk(sub, path+" "+sub.Name)
		}
	}
	walk(Root(), "holdfast")
}

func TestUnknownCommandSuggests(t *testing.T) {
	err := Root().Execute([]string{"statsu"})
	if err == nil {
		t.Fatal("unknown command succeeded")
	}
	toolErr, ok := err.(*cli.ToolError)
	if !ok || toolErr.Category != cli.CategoryValidation {
		t.Fatalf("err = %v, want a validation ToolError", err)
	}
}
