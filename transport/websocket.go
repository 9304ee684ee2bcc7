// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/protocol"
)

// SessionPath is where WebSocket peers connect.
const SessionPath = "/session"

// maxFrameSize bounds one inbound WebSocket frame. The largest message
// is the welcome snapshot, which only travels authority to peer.
const maxFrameSize = 1 << 20

// Compile-time interface checks.
var (
	_ Listener    = (*WebSocketListener)(nil)
	_ Dialer      = (*WebSocketDialer)(nil)
	_ MessageConn = (*WebSocketConn)(nil)
)

// WebSocketConn carries one envelope per binary frame.
type WebSocketConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps an established WebSocket.
func NewWebSocketConn(ws *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{ws: ws}
}

func (c *WebSocketConn) Send(envelope protocol.Envelope) error {
	data, err := codec.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", envelope.Kind, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("writing %s to %s: %w", envelope.Kind, c.RemoteAddr(), err)
	}
	return nil
}

func (c *WebSocketConn) Receive() (protocol.Envelope, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				return protocol.Envelope{}, ErrClosed
			}
			return protocol.Envelope{}, fmt.Errorf("reading from %s: %w", c.RemoteAddr(), err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		var envelope protocol.Envelope
		if err := codec.Unmarshal(data, &envelope); err != nil {
			return protocol.Envelope{}, fmt.Errorf("decoding frame from %s: %w", c.RemoteAddr(), err)
		}
		return envelope, nil
	}
}

func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *WebSocketConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// WebSocketListener serves peers at SessionPath over HTTP.
type WebSocketListener struct {
	listener net.Listener
	upgrader websocket.Upgrader

	mu     sync.Mutex
	server *http.Server
}

// NewWebSocketListener listens on address.
func NewWebSocketListener(address string) (*WebSocketListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &WebSocketListener{
		listener: listener,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are headsets and scripts, not browsers on
			// arbitrary origins; join tokens authenticate them.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Serve accepts WebSocket sessions until ctx is cancelled or Close is
// called.
func (l *WebSocketListener) Serve(ctx context.Context, handler Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc(SessionPath, func(w http.ResponseWriter, r *http.Request) {
		ws, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			return
		}
		ws.SetReadLimit(maxFrameSize)
		handler(ctx, NewWebSocketConn(ws))
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	l.mu.Lock()
	l.server = server
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	err := server.Serve(l.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Address returns the ws:// URL of the session endpoint.
func (l *WebSocketListener) Address() string {
	return "ws://" + l.listener.Addr().String() + SessionPath
}

// Close shuts down the HTTP server.
func (l *WebSocketListener) Close() error {
	l.mu.Lock()
	server := l.server
	l.mu.Unlock()
	if server != nil {
		return server.Close()
	}
	return l.listener.Close()
}

// WebSocketDialer connects to a WebSocketListener.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the HTTP upgrade. Zero means 10s.
	HandshakeTimeout time.Duration
}

// Dial connects to a ws:// or wss:// URL. A bare host:port is given
// the default session path.
func (d *WebSocketDialer) Dial(ctx context.Context, address string) (MessageConn, error) {
	url := address
	if _, _, err := net.SplitHostPort(address); err == nil {
		url = "ws://" + address + SessionPath
	}
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, response, err := dialer.DialContext(ctx, url, nil)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	ws.SetReadLimit(maxFrameSize * 64)
	return NewWebSocketConn(ws), nil
}
