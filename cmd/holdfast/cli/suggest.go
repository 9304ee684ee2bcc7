// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestCommand returns the subcommand the user most likely meant by
// typed, or "".
func suggestCommand(typed string, commands []*Command) string {
	names := make([]string, 0, len(commands))
	for _, command := range commands {
		names = append(names, command.Name)
	}
	return suggest(typed, names)
}

// suggestFlag looks at the first flag in args that flagSet does not
// define and returns the likeliest intended flag, dashes included.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		typed, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(typed) != nil {
			continue
		}
		var names []string
		flagSet.VisitAll(func(f *pflag.Flag) { names = append(names, f.Name) })
		switch best := suggest(typed, names); len(best) {
		case 0:
			return ""
		case 1:
			return "-" + best
		default:
			return "--" + best
		}
	}
	return ""
}

// suggest picks the candidate typed most likely abbreviates or
// misspells. A unique prefix wins ("snap" for "snapshot"). Otherwise
// the nearest candidate by edit distance is offered if it is within a
// third of typed's length, at least one and at most three edits.
func suggest(typed string, candidates []string) string {
	if typed == "" {
		return ""
	}
	var prefixed []string
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, typed) {
			prefixed = append(prefixed, candidate)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0]
	}

	limit := min(max(len(typed)/3, 1), 3)
	best, bestDistance := "", limit+1
	for _, candidate := range candidates {
		if distance := editDistance(typed, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// editDistance counts the insertions, deletions, substitutions and
// adjacent swaps that turn a into b. Swaps count once because "stauts"
// is a slip of the fingers, not two mistakes.
func editDistance(a, b string) int {
	// Three rows of the matrix: two back, one back, current.
	before := make([]int, len(b)+1)
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}
	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				current[j] = min(current[j], before[j-2]+1)
			}
		}
		before, previous, current = previous, current, before
	}
	return previous[len(b)]
}
