// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/protocol"
)

// pipeBuffer is how many envelopes a pipe end queues before Send
// blocks.
const pipeBuffer = 256

// Pipe returns two connected in-memory MessageConns. Envelopes sent on
// one are received on the other, in order. Closing either end ends
// both.
func Pipe(leftName, rightName string) (MessageConn, MessageConn) {
	shared := &pipeShared{done: make(chan struct{})}
	leftToRight := make(chan protocol.Envelope, pipeBuffer)
	rightToLeft := make(chan protocol.Envelope, pipeBuffer)
	left := &pipeEnd{shared: shared, outbound: leftToRight, inbound: rightToLeft, remote: rightName}
	right := &pipeEnd{shared: shared, outbound: rightToLeft, inbound: leftToRight, remote: leftName}
	return left, right
}

type pipeShared struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	shared   *pipeShared
	outbound chan<- protocol.Envelope
	inbound  <-chan protocol.Envelope
	remote   string
}

func (p *pipeEnd) Send(envelope protocol.Envelope) error {
	select {
	case <-p.shared.done:
		return ErrClosed
	default:
	}
	select {
	case p.outbound <- envelope:
		return nil
	case <-p.shared.done:
		return ErrClosed
	}
}

func (p *pipeEnd) Receive() (protocol.Envelope, error) {
	// Drain what was sent before the close.
	select {
	case envelope := <-p.inbound:
		return envelope, nil
	default:
	}
	select {
	case envelope := <-p.inbound:
		return envelope, nil
	case <-p.shared.done:
		select {
		case envelope := <-p.inbound:
			return envelope, nil
		default:
			return protocol.Envelope{}, io.EOF
		}
	}
}

func (p *pipeEnd) Close() error {
	p.shared.once.Do(func() { close(p.shared.done) })
	return nil
}

func (p *pipeEnd) RemoteAddr() string { return "pipe:" + p.remote }
