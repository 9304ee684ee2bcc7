// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/holdfast/lib/codec"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second

	// Admin requests carry at most an object id.
	maxRequestSize = 64 * 1024
)

// Request is one decoded admin call.
type Request struct {
	Action string

	raw codec.RawMessage
}

// Decode unmarshals the action's fields into v. The "action" key is
// present too and can be ignored.
func (r *Request) Decode(v any) error {
	if err := codec.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("invalid %s request: %w", r.Action, err)
	}
	return nil
}

// Handler answers one admin action. A nil result replies {ok: true}
// with no data; an error replies {ok: false} with its message.
type Handler func(ctx context.Context, request *Request) (any, error)

// Response is the reply envelope.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer answers operator calls for the authority on a Unix
// socket, one request per connection. Register every action with
// Handle, then call Serve once.
type SocketServer struct {
	path     string
	handlers map[string]Handler
	logger   *slog.Logger
	ready    chan struct{}
	inflight sync.WaitGroup
}

// NewSocketServer returns a server that will listen at path.
func NewSocketServer(path string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		path:     path,
		handlers: make(map[string]Handler),
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Handle registers handler for action. Registering an action twice is
// a programming error and panics.
func (s *SocketServer) Handle(action string, handler Handler) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service: action %q registered twice", action))
	}
	s.handlers[action] = handler
}

// Ready is closed once the socket accepts connections.
func (s *SocketServer) Ready() <-chan struct{} { return s.ready }

// Serve answers calls until ctx is cancelled and in-flight calls have
// replied. The socket is created 0600 in a 0700 directory, replacing
// any file left by an authority that did not shut down cleanly, and is
// removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}
	defer os.Remove(s.path)
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("admin socket listening", "path", s.path, "actions", slices.Sorted(maps.Keys(s.handlers)))
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("admin accept failed", "error", err)
			continue
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.serveConn(ctx, conn)
		}()
	}
	listener.Close()
	s.inflight.Wait()
	return nil
}

func (s *SocketServer) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("creating admin socket directory: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing leftover admin socket %s: %w", s.path, err)
	}
	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		listener.Close()
		os.Remove(s.path)
		return nil, fmt.Errorf("restricting admin socket mode: %w", err)
	}
	return listener, nil
}

func (s *SocketServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.reply(conn, Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	s.reply(conn, s.dispatch(ctx, raw))
}

// dispatch routes raw to its handler and builds the reply. A handler
// panic becomes an error reply so one bad call cannot take the
// authority down.
func (s *SocketServer) dispatch(ctx context.Context, raw codec.RawMessage) (response Response) {
	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return Response{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	if header.Action == "" {
		return Response{Error: "missing required field: action"}
	}
	handler, ok := s.handlers[header.Action]
	if !ok {
		return Response{Error: fmt.Sprintf("unknown action %q", header.Action)}
	}

	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("admin action panicked", "action", header.Action, "panic", recovered)
			response = Response{Error: fmt.Sprintf("internal error in %s", header.Action)}
		}
	}()
	result, err := handler(ctx, &Request{Action: header.Action, raw: raw})
	s.logger.Debug("admin action", "action", header.Action, "elapsed", time.Since(started), "error", err)
	if err != nil {
		return Response{Error: err.Error()}
	}
	if result == nil {
		return Response{OK: true}
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return Response{Error: fmt.Sprintf("encoding %s result: %v", header.Action, err)}
	}
	return Response{OK: true, Data: data}
}

func (s *SocketServer) reply(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("admin reply not delivered", "error", err)
	}
}
