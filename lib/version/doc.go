// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build information for holdfast binaries and
// the wire protocol revision used in the hello handshake.
//
// [GitCommit], [BuildTime], and [Version] are injected via -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/holdfast/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Protocol] is compiled in. The authority refuses peers whose hello
// names a different revision (see [Compatible]).
package version
