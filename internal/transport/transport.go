// ABOUTME: Transport and Listener interfaces plus the shared net.Conn-backed implementation.
// ABOUTME: Frames every payload through the protocol codec and classifies I/O failures.

package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/2389/agentwire/internal/protocol"
)

// Transport is one bidirectional, frame-oriented connection. Operations
// block; run each connection's I/O on its own goroutine. A Transport is
// owned by exactly one logical connection.
type Transport interface {
	// Connect establishes the connection. Calling Connect on an already
	// connected transport is a no-op.
	Connect(ctx context.Context) error
	// Send writes one frame.
	Send(payload []byte) error
	// Receive blocks until the next frame arrives and returns its body.
	Receive() ([]byte, error)
	// SetReceiveDeadline bounds subsequent Receive calls. The zero time
	// clears the deadline.
	SetReceiveDeadline(t time.Time) error
	// Close releases the connection. Safe to call multiple times.
	Close() error
	// IsConnected reports whether the transport currently holds a live
	// connection.
	IsConnected() bool
	// Endpoint returns the endpoint URI this transport talks to.
	Endpoint() string
}

// Listener accepts inbound transports on a bound endpoint.
type Listener interface {
	Accept() (Transport, error)
	Close() error
	// Endpoint returns the bound endpoint URI, with wildcard ports resolved.
	Endpoint() string
}

// Option configures a transport or listener.
type Option func(*options)

type options struct {
	maxFrameSize int
}

// WithMaxFrameSize overrides the default 10 MiB frame size limit.
func WithMaxFrameSize(n int) Option {
	return func(o *options) {
		o.maxFrameSize = n
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates an unconnected transport for the given endpoint URI.
func New(endpoint string, opts ...Option) (Transport, error) {
	network, address, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "", err)
	}
	o := applyOptions(opts)
	return &Conn{
		endpoint: endpoint,
		network:  network,
		address:  address,
		codec:    protocol.NewCodec(o.maxFrameSize),
	}, nil
}

// Listen binds a listener on the given endpoint URI.
func Listen(endpoint string, opts ...Option) (Listener, error) {
	network, address, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "", err)
	}
	o := applyOptions(opts)
	codec := protocol.NewCodec(o.maxFrameSize)
	switch network {
	case SchemeUnix:
		return listenUnix(address, codec)
	default:
		return listenTCP(address, codec)
	}
}

// Conn is a Transport over a net.Conn. Dial-capable when constructed by
// New; accepted and pipe connections are born connected and cannot redial.
type Conn struct {
	endpoint string
	network  string
	address  string
	codec    *protocol.Codec

	mu   sync.Mutex
	conn net.Conn
}

// newAcceptedConn wraps an established net.Conn in a Transport.
func newAcceptedConn(conn net.Conn, endpoint string, codec *protocol.Codec) *Conn {
	return &Conn{
		endpoint: endpoint,
		codec:    codec,
		conn:     conn,
	}
}

// Connect dials the endpoint. No-op if already connected.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if c.network == "" {
		return protocol.NewError(protocol.CodeConnectionFailed, "transport cannot reconnect")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, c.network, c.address)
	if err != nil {
		return protocol.WrapError(protocol.CodeConnectionFailed, "connecting to "+c.endpoint, err)
	}
	c.conn = conn
	return nil
}

// Send writes one frame to the connection.
func (c *Conn) Send(payload []byte) error {
	conn := c.current()
	if conn == nil {
		return protocol.NewError(protocol.CodeConnectionClosed, "transport not connected")
	}
	return c.codec.WriteFrame(conn, payload)
}

// Receive reads the next frame from the connection. Deadline expiry is
// surfaced as CONNECTION_TIMEOUT.
func (c *Conn) Receive() ([]byte, error) {
	conn := c.current()
	if conn == nil {
		return nil, protocol.NewError(protocol.CodeConnectionClosed, "transport not connected")
	}
	payload, err := c.codec.ReadFrame(conn)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, protocol.WrapError(protocol.CodeConnectionTimeout, "receive deadline exceeded", err)
		}
		return nil, err
	}
	return payload, nil
}

// SetReceiveDeadline bounds subsequent Receive calls.
func (c *Conn) SetReceiveDeadline(t time.Time) error {
	conn := c.current()
	if conn == nil {
		return protocol.NewError(protocol.CodeConnectionClosed, "transport not connected")
	}
	return conn.SetReadDeadline(t)
}

// Close releases the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected reports whether the transport holds a live connection.
func (c *Conn) IsConnected() bool {
	return c.current() != nil
}

// Endpoint returns the endpoint URI this transport talks to.
func (c *Conn) Endpoint() string {
	return c.endpoint
}

func (c *Conn) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
