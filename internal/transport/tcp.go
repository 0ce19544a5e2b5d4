// ABOUTME: TCP listener for cross-host connections.
// ABOUTME: Same contract as the Unix listener minus socket file handling; TLS is a higher layer's concern.

package transport

import (
	"net"
	"sync"

	"github.com/2389/agentwire/internal/protocol"
)

// tcpListener serves transports on a TCP address.
type tcpListener struct {
	listener net.Listener
	codec    *protocol.Codec

	mu     sync.Mutex
	closed bool
}

func listenTCP(address string, codec *protocol.Codec) (Listener, error) {
	listener, err := net.Listen(SchemeTCP, address)
	if err != nil {
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "listening on "+address, err)
	}
	return &tcpListener{
		listener: listener,
		codec:    codec,
	}, nil
}

func (l *tcpListener) Accept() (Transport, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.isClosed() {
			return nil, protocol.WrapError(protocol.CodeConnectionClosed, "listener closed", err)
		}
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "accepting on "+l.listener.Addr().String(), err)
	}
	return newAcceptedConn(conn, l.Endpoint(), l.codec), nil
}

func (l *tcpListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.listener.Close()
}

// Endpoint returns the bound address, with a wildcard port resolved to the
// port actually chosen by the kernel.
func (l *tcpListener) Endpoint() string {
	return FormatEndpoint(SchemeTCP, l.listener.Addr().String())
}

func (l *tcpListener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
