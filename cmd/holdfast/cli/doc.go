// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the holdfast operator tool.
//
// A [Command] is a node in the command tree: either a group with
// subcommands or a leaf with a Run function. Flags come from a params
// struct whose fields carry flag, desc and default tags (see
// [BindFlags]). Errors returned from Run are categorized with
// [ToolError] constructors so scripts can tell bad input from an
// authority that is not running.
//
// [AdminConnection] adds the --admin-socket flag and turns service
// errors from the authority's admin socket into categorized errors.
package cli
