// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads holdfast configuration.
//
// Configuration comes from a single file named by the HOLDFAST_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no search path and no fallback file. Files
// ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas allowed; anything else is YAML.
//
// The file may carry environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter: the
// authority does not advertise over mDNS and a join secret is
// required.
//
// After loading, ${VAR} and ${VAR:-default} are expanded in path
// fields. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Authority, Interaction, World
//   - [Default] -- a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
package config
