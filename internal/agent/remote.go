// ABOUTME: RemoteAgent proxies the Agent interface over a transport to a LocalAgent.
// ABOUTME: Lazy connect, per-call receive deadline, and typed error translation.

package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agentwire/internal/protocol"
	"github.com/2389/agentwire/internal/transport"
)

// DefaultProcessTimeout bounds how long a Process call waits for the
// remote response.
const DefaultProcessTimeout = 30 * time.Second

// RemoteAgent is a client-side proxy: it satisfies Agent but forwards
// every Process call over a transport to a LocalAgent. Calls are
// serialized per proxy; one request is in flight per connection at a
// time, so responses always match the request that is waiting.
type RemoteAgent struct {
	name    string
	timeout time.Duration
	logger  *slog.Logger
	codec   *protocol.Codec
	dial    func(ctx context.Context) (transport.Transport, error)

	mu sync.Mutex
	tr transport.Transport
}

// RemoteOption configures a RemoteAgent.
type RemoteOption func(*RemoteAgent)

// WithTimeout overrides the default 30s response timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(a *RemoteAgent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRemoteLogger sets the proxy's logger.
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(a *RemoteAgent) {
		a.logger = logger
	}
}

// WithTransport starts the proxy on an already-connected transport. Used
// by tests to proxy over in-memory pipes.
func WithTransport(t transport.Transport) RemoteOption {
	return func(a *RemoteAgent) {
		a.tr = t
	}
}

// WithDialer overrides how the proxy obtains connections.
func WithDialer(dial func(ctx context.Context) (transport.Transport, error)) RemoteOption {
	return func(a *RemoteAgent) {
		a.dial = dial
	}
}

// NewRemoteAgent creates a proxy for the named agent at the endpoint URI.
// The endpoint is validated here; the connection is established lazily on
// the first call.
func NewRemoteAgent(name, endpoint string, opts ...RemoteOption) (*RemoteAgent, error) {
	a := &RemoteAgent{
		name:    name,
		timeout: DefaultProcessTimeout,
		codec:   protocol.NewCodec(0),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default().With("component", "remote-agent", "agent", name)
	}
	if a.dial == nil && a.tr == nil {
		if _, _, err := transport.ParseEndpoint(endpoint); err != nil {
			return nil, protocol.WrapError(protocol.CodeConnectionFailed, "", err)
		}
		a.dial = func(ctx context.Context) (transport.Transport, error) {
			t, err := transport.New(endpoint)
			if err != nil {
				return nil, err
			}
			if err := t.Connect(ctx); err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return a, nil
}

// Name returns the remote agent's name.
func (a *RemoteAgent) Name() string {
	return a.name
}

// Process forwards the message to the remote agent and returns its reply.
// Failures surface as typed errors: connection-class, protocol-class,
// AGENT_NOT_FOUND, or RemoteExecutionError, never a default message.
func (a *RemoteAgent) Process(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.New().String()
	env, err := a.roundTrip(ctx, protocol.NewRequest(id, a.name, msg))
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case protocol.TypeError:
		return nil, a.translateError(env)
	case protocol.TypeResponse:
		reply, err := env.ResponseMessage()
		if err != nil {
			a.closeLocked()
			return nil, err
		}
		return reply, nil
	default:
		a.closeLocked()
		return nil, protocol.Errorf(protocol.CodeInvalidMessage, "unexpected reply envelope type %q", env.Type)
	}
}

// Ping round-trips a heartbeat envelope, verifying the remote exporter is
// alive without invoking the agent.
func (a *RemoteAgent) Ping(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.New().String()
	env, err := a.roundTrip(ctx, protocol.NewHeartbeat(id, a.name))
	if err != nil {
		return err
	}
	if env.Type == protocol.TypeError {
		return a.translateError(env)
	}
	if env.Type != protocol.TypeHeartbeat {
		a.closeLocked()
		return protocol.Errorf(protocol.CodeInvalidMessage, "unexpected ping reply type %q", env.Type)
	}
	return nil
}

// Close releases the underlying transport. The proxy reconnects lazily if
// used again.
func (a *RemoteAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

// roundTrip sends one envelope and waits for the reply with the same id.
// Must be called with mu held. Any failure closes the connection so the
// next call starts clean.
func (a *RemoteAgent) roundTrip(ctx context.Context, req *protocol.Envelope) (*protocol.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, protocol.WrapError(protocol.CodeConnectionTimeout, "context cancelled", err)
	}
	if err := a.ensureConnected(ctx); err != nil {
		return nil, err
	}

	data, err := a.codec.EncodeEnvelope(req)
	if err != nil {
		return nil, err
	}
	if err := a.tr.Send(data); err != nil {
		a.closeLocked()
		return nil, err
	}

	deadline := time.Now().Add(a.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := a.tr.SetReceiveDeadline(deadline); err != nil {
		a.closeLocked()
		return nil, protocol.WrapError(protocol.CodeConnectionFailed, "setting receive deadline", err)
	}

	reply, err := a.tr.Receive()
	if err != nil {
		// A timed-out connection has an unread response in flight; it
		// cannot be reused.
		a.closeLocked()
		return nil, err
	}
	a.tr.SetReceiveDeadline(time.Time{})

	env, err := a.codec.DecodeEnvelope(reply)
	if err != nil {
		a.closeLocked()
		return nil, err
	}
	if env.ID != req.ID {
		// The client never pipelines, so a mismatched id means the
		// connection state is corrupt.
		a.closeLocked()
		return nil, protocol.Errorf(protocol.CodeInvalidMessage,
			"response id %q does not match request id %q", env.ID, req.ID)
	}
	return env, nil
}

// ensureConnected dials lazily. Must be called with mu held.
func (a *RemoteAgent) ensureConnected(ctx context.Context) error {
	if a.tr != nil && a.tr.IsConnected() {
		return nil
	}
	if a.dial == nil {
		return protocol.NewError(protocol.CodeConnectionClosed, "transport closed and no dialer configured")
	}
	t, err := a.dial(ctx)
	if err != nil {
		return err
	}
	a.tr = t
	a.logger.Debug("connected", "endpoint", t.Endpoint())
	return nil
}

func (a *RemoteAgent) closeLocked() error {
	if a.tr == nil {
		return nil
	}
	err := a.tr.Close()
	a.tr = nil
	return err
}

// translateError maps an error envelope onto the client-side taxonomy.
func (a *RemoteAgent) translateError(env *protocol.Envelope) error {
	werr, err := env.WireError()
	if err != nil {
		a.closeLocked()
		return err
	}
	switch werr.Code {
	case protocol.CodeAgentError, protocol.CodeToolExecutionFailed:
		return &protocol.RemoteExecutionError{AgentName: a.name, Err: werr}
	default:
		return werr
	}
}
