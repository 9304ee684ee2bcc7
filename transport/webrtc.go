// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface checks.
var (
	_ Listener = (*WebRTCListener)(nil)
	_ Dialer   = (*WebRTCDialer)(nil)
	_ Answerer = (*WebRTCListener)(nil)
)

// sessionLabel is the data channel every session uses.
const sessionLabel = "holdfast"

// iceGatherTimeout bounds candidate gathering before an SDP is sent.
const iceGatherTimeout = 15 * time.Second

// channelOpenTimeout bounds how long a dialer waits for its data
// channel to open after the answer arrives.
const channelOpenTimeout = 10 * time.Second

// webrtcConn is a session over one PeerConnection. Closing it tears
// down the PeerConnection.
type webrtcConn struct {
	*StreamConn
	connection *webrtc.PeerConnection
}

func (c *webrtcConn) Close() error {
	err := c.StreamConn.Close()
	if closeErr := c.connection.Close(); err == nil {
		err = closeErr
	}
	return err
}

// WebRTCListener answers offers and accepts one data channel per
// peer. It optionally serves HTTP signaling on its own address.
type WebRTCListener struct {
	iceConfig ICEConfig
	logger    *slog.Logger

	// signaling is nil when the listener is used only through
	// MemorySignaler.
	signaling net.Listener
	server    *http.Server

	inbound chan MessageConn
	counter atomic.Uint64

	mu          sync.Mutex
	connections map[*webrtc.PeerConnection]struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

// NewWebRTCListener creates a listener. If signalingAddress is
// non-empty the listener also serves HTTP signaling there.
func NewWebRTCListener(signalingAddress string, iceConfig ICEConfig, logger *slog.Logger) (*WebRTCListener, error) {
	listener := &WebRTCListener{
		iceConfig:   iceConfig,
		logger:      logger,
		inbound:     make(chan MessageConn, 64),
		connections: make(map[*webrtc.PeerConnection]struct{}),
		closed:      make(chan struct{}),
	}
	if signalingAddress != "" {
		signaling, err := net.Listen("tcp", signalingAddress)
		if err != nil {
			return nil, err
		}
		listener.signaling = signaling
	}
	return listener, nil
}

// Serve hands each opened session to handler. Blocks until ctx is
// cancelled or Close is called.
func (l *WebRTCListener) Serve(ctx context.Context, handler Handler) error {
	if l.signaling != nil {
		server := &http.Server{Handler: SignalingHandler(l), ReadHeaderTimeout: 10 * time.Second}
		l.mu.Lock()
		l.server = server
		l.mu.Unlock()
		go func() {
			if err := server.Serve(l.signaling); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.logger.Error("webrtc signaling server failed", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			l.Close()
			return nil
		case <-l.closed:
			return nil
		case conn := <-l.inbound:
			go handler(ctx, conn)
		}
	}
}

// Address returns the HTTP signaling URL, or "memory" when the
// listener has no signaling server.
func (l *WebRTCListener) Address() string {
	if l.signaling == nil {
		return "memory"
	}
	return "http://" + l.signaling.Addr().String() + OfferPath
}

// Close stops signaling and tears down every PeerConnection.
func (l *WebRTCListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.mu.Lock()
		if l.server != nil {
			l.server.Close()
		} else if l.signaling != nil {
			l.signaling.Close()
		}
		for connection := range l.connections {
			connection.Close()
		}
		l.connections = nil
		l.mu.Unlock()
	})
	return nil
}

// Answer accepts an offer and returns the complete answer. The session
// is delivered to Serve's handler once its data channel opens.
func (l *WebRTCListener) Answer(ctx context.Context, offer string) (string, error) {
	select {
	case <-l.closed:
		return "", net.ErrClosed
	default:
	}

	connection, err := newPeerConnection(l.iceConfig)
	if err != nil {
		return "", fmt.Errorf("creating PeerConnection: %w", err)
	}
	peer := fmt.Sprintf("webrtc-%d", l.counter.Add(1))

	connection.OnDataChannel(func(channel *webrtc.DataChannel) {
		if channel.Label() != sessionLabel {
			l.logger.Debug("ignoring unexpected data channel", "peer", peer, "label", channel.Label())
			channel.Close()
			return
		}
		channel.OnOpen(func() {
			raw, err := channel.Detach()
			if err != nil {
				l.logger.Error("detaching data channel failed", "peer", peer, "error", err)
				connection.Close()
				return
			}
			conn := &webrtcConn{
				StreamConn: NewStreamConn(NewDataChannelConn(raw, "authority/"+sessionLabel, peer)),
				connection: connection,
			}
			select {
			case l.inbound <- conn:
			case <-l.closed:
				conn.Close()
			}
		})
	})
	connection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.logger.Debug("webrtc connection state", "peer", peer, "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			connection.Close()
		case webrtc.PeerConnectionStateClosed:
			l.mu.Lock()
			delete(l.connections, connection)
			l.mu.Unlock()
		}
	})

	if err := connection.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		connection.Close()
		return "", fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := connection.CreateAnswer(nil)
	if err != nil {
		connection.Close()
		return "", fmt.Errorf("creating SDP answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(connection)
	if err := connection.SetLocalDescription(answer); err != nil {
		connection.Close()
		return "", fmt.Errorf("setting local description: %w", err)
	}
	if err := waitGathered(ctx, gatherComplete); err != nil {
		connection.Close()
		return "", err
	}

	l.mu.Lock()
	if l.connections == nil {
		l.mu.Unlock()
		connection.Close()
		return "", net.ErrClosed
	}
	l.connections[connection] = struct{}{}
	l.mu.Unlock()

	l.logger.Info("webrtc offer answered", "peer", peer)
	return connection.LocalDescription().SDP, nil
}

// WebRTCDialer opens sessions over WebRTC.
type WebRTCDialer struct {
	Signaler  Signaler
	ICEConfig ICEConfig
}

// Dial offers a session to address through the signaler and returns
// once the data channel is open.
func (d *WebRTCDialer) Dial(ctx context.Context, address string) (MessageConn, error) {
	connection, err := newPeerConnection(d.ICEConfig)
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}

	ordered := true
	channel, err := connection.CreateDataChannel(sessionLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	opened := make(chan struct{})
	channel.OnOpen(func() { close(opened) })

	offer, err := connection.CreateOffer(nil)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(connection)
	if err := connection.SetLocalDescription(offer); err != nil {
		connection.Close()
		return nil, fmt.Errorf("setting local description: %w", err)
	}
	if err := waitGathered(ctx, gatherComplete); err != nil {
		connection.Close()
		return nil, err
	}

	answer, err := d.Signaler.Exchange(ctx, address, connection.LocalDescription().SDP)
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("signaling %s: %w", address, err)
	}
	if err := connection.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		connection.Close()
		return nil, fmt.Errorf("setting remote description: %w", err)
	}

	select {
	case <-opened:
	case <-time.After(channelOpenTimeout):
		connection.Close()
		return nil, fmt.Errorf("data channel to %s did not open within %s", address, channelOpenTimeout)
	case <-ctx.Done():
		connection.Close()
		return nil, ctx.Err()
	}

	raw, err := channel.Detach()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("detaching data channel: %w", err)
	}
	return &webrtcConn{
		StreamConn: NewStreamConn(NewDataChannelConn(raw, "peer/"+sessionLabel, address)),
		connection: connection,
	}, nil
}

func waitGathered(ctx context.Context, gatherComplete <-chan struct{}) error {
	select {
	case <-gatherComplete:
		return nil
	case <-time.After(iceGatherTimeout):
		return fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
