// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/codec"
	"github.com/bureau-foundation/holdfast/lib/protocol"
)

// StreamConn carries envelopes as a CBOR sequence over a byte stream.
// CBOR items are self-delimiting, so no extra framing is needed.
type StreamConn struct {
	conn    net.Conn
	decoder *codec.Decoder

	writeMu sync.Mutex
	encoder *codec.Encoder

	closeOnce sync.Once
	closeErr  error
}

var _ MessageConn = (*StreamConn)(nil)

// NewStreamConn wraps conn.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{
		conn:    conn,
		decoder: codec.NewDecoder(conn),
		encoder: codec.NewEncoder(conn),
	}
}

func (s *StreamConn) Send(envelope protocol.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.encoder.Encode(envelope); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("writing %s to %s: %w", envelope.Kind, s.RemoteAddr(), err)
	}
	return nil
}

func (s *StreamConn) Receive() (protocol.Envelope, error) {
	var envelope protocol.Envelope
	if err := s.decoder.Decode(&envelope); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return protocol.Envelope{}, io.EOF
		}
		if errors.Is(err, net.ErrClosed) {
			return protocol.Envelope{}, ErrClosed
		}
		return protocol.Envelope{}, fmt.Errorf("reading from %s: %w", s.RemoteAddr(), err)
	}
	return envelope, nil
}

func (s *StreamConn) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.conn.Close() })
	return s.closeErr
}

func (s *StreamConn) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
