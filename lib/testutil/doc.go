// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes. t.TempDir() can exceed that.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout safety valve so that tests exercising goroutines
// (the authority loop, transports, the admin socket) fail instead of
// hanging. They are the only place tests use real wall-clock timeouts.
//
// All helpers call t.Fatalf on failure.
package testutil
