// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin implements the holdfast commands that talk to a running
// authority over its admin socket: status, objects, sockets, release,
// snapshot, export and watch.
//
// Every command resolves the socket through [cli.AdminConnection]:
// --admin-socket, then HOLDFAST_ADMIN_SOCKET, then the config file
// named by HOLDFAST_CONFIG, then the built-in default under
// XDG_RUNTIME_DIR.
package admin
