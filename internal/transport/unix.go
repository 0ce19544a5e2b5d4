// ABOUTME: Unix domain socket listener with stale-socket cleanup and owner-only permissions.
// ABOUTME: Creates the socket directory 0700, the socket 0600, and unlinks the file on close.

package transport

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/2389/agentwire/internal/protocol"
)

// unixListener serves transports on a Unix domain socket.
type unixListener struct {
	path     string
	listener net.Listener
	codec    *protocol.Codec

	mu     sync.Mutex
	closed bool
}

func listenUnix(path string, codec *protocol.Codec) (Listener, error) {
	// A previous process may have died without unlinking its socket.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "removing stale socket "+path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "creating socket directory", err)
	}

	listener, err := net.Listen(SchemeUnix, path)
	if err != nil {
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "listening on "+path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		os.Remove(path)
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "restricting socket permissions", err)
	}

	return &unixListener{
		path:     path,
		listener: listener,
		codec:    codec,
	}, nil
}

func (l *unixListener) Accept() (Transport, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if l.isClosed() {
			return nil, protocol.WrapError(protocol.CodeConnectionClosed, "listener closed", err)
		}
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "accepting on "+l.path, err)
	}
	return newAcceptedConn(conn, l.Endpoint(), l.codec), nil
}

func (l *unixListener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.listener.Close()
	// net.UnixListener unlinks on close, but only when it created the file
	// itself. Remove explicitly so restarts never hit a stale socket.
	if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

func (l *unixListener) Endpoint() string {
	return FormatEndpoint(SchemeUnix, l.path)
}

func (l *unixListener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
