// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the authority's administrative socket: a
// CBOR request-response protocol on a Unix socket, one request per
// connection.
//
// A request is a CBOR map with an "action" field plus action-specific
// fields. The server routes on the action and replies with a
// [Response]: {ok, error, data}. [Client] is the matching caller used
// by the holdfast CLI.
//
// Access control is the socket file mode: the server creates the
// socket 0600 inside a 0700 directory, so only the user running the
// authority can reach it. Peers never use this socket; they connect
// over the transport package.
package service
