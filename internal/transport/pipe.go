// ABOUTME: In-memory pipe transport and listener for transport-agnostic tests.
// ABOUTME: Satisfies the same contract as the socket transports over net.Pipe pairs.

package transport

import (
	"net"
	"sync"

	"github.com/2389/agentwire/internal/protocol"
)

// pipeEndpoint is the endpoint URI reported by in-memory transports.
const pipeEndpoint = "mem://pipe"

// NewPipe returns a connected client/server transport pair backed by an
// in-memory full-duplex pipe.
func NewPipe(opts ...Option) (client, server Transport) {
	o := applyOptions(opts)
	codec := protocol.NewCodec(o.maxFrameSize)
	c, s := net.Pipe()
	return newAcceptedConn(c, pipeEndpoint, codec), newAcceptedConn(s, pipeEndpoint, codec)
}

// PipeListener hands out in-memory connections: each Dial produces a
// connected client transport and queues the server side for Accept.
type PipeListener struct {
	codec *protocol.Codec
	conns chan net.Conn
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// ListenPipe creates an in-memory listener.
func ListenPipe(opts ...Option) *PipeListener {
	o := applyOptions(opts)
	return &PipeListener{
		codec: protocol.NewCodec(o.maxFrameSize),
		conns: make(chan net.Conn, 16),
		done:  make(chan struct{}),
	}
}

// Dial returns a connected client transport for this listener.
func (l *PipeListener) Dial() (Transport, error) {
	c, s := net.Pipe()
	select {
	case l.conns <- s:
		return newAcceptedConn(c, pipeEndpoint, l.codec), nil
	case <-l.done:
		c.Close()
		s.Close()
		return nil, protocol.NewError(protocol.CodeConnectionFailed, "pipe listener closed")
	}
}

// Accept blocks until a peer dials or the listener closes.
func (l *PipeListener) Accept() (Transport, error) {
	select {
	case conn := <-l.conns:
		return newAcceptedConn(conn, pipeEndpoint, l.codec), nil
	case <-l.done:
		return nil, protocol.NewError(protocol.CodeConnectionClosed, "listener closed")
	}
}

// Close unblocks Accept and rejects further dials. Safe to call twice.
func (l *PipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		close(l.done)
	}
	return nil
}

// Endpoint returns the in-memory endpoint URI.
func (l *PipeListener) Endpoint() string {
	return pipeEndpoint
}
