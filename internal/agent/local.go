// ABOUTME: LocalAgent exports a concrete agent over a transport listener.
// ABOUTME: One goroutine per connection; optional registry registration with a heartbeat loop.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/agentwire/internal/protocol"
	"github.com/2389/agentwire/internal/registry"
	"github.com/2389/agentwire/internal/transport"
)

// LocalAgent binds a concrete agent to a transport listener and serves
// process requests from remote peers. It satisfies Agent itself, so a
// wrapped agent stays callable in-process.
type LocalAgent struct {
	agent             Agent
	endpoint          string
	logger            *slog.Logger
	codec             *protocol.Codec
	maxFrameSize      int
	reg               *registry.Registry
	heartbeatInterval time.Duration
	capabilities      map[string]any
	instanceID        string

	mu       sync.Mutex
	listener transport.Listener
	conns    map[transport.Transport]struct{}
	cancel   context.CancelFunc
	group    *errgroup.Group
	started  bool
	stopped  bool
}

// LocalOption configures a LocalAgent.
type LocalOption func(*LocalAgent)

// WithLocalLogger sets the exporter's logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(a *LocalAgent) {
		a.logger = logger
	}
}

// WithRegistry registers the agent on Start and renews the registration
// on the given interval. A non-positive interval uses the default.
func WithRegistry(reg *registry.Registry, interval time.Duration) LocalOption {
	return func(a *LocalAgent) {
		a.reg = reg
		if interval > 0 {
			a.heartbeatInterval = interval
		}
	}
}

// WithCapabilities attaches a capability map to the registration.
func WithCapabilities(caps map[string]any) LocalOption {
	return func(a *LocalAgent) {
		a.capabilities = caps
	}
}

// WithListener serves on an already-bound listener instead of binding the
// endpoint. Used by tests to serve over in-memory pipes.
func WithListener(l transport.Listener) LocalOption {
	return func(a *LocalAgent) {
		a.listener = l
	}
}

// WithLocalMaxFrameSize overrides the frame size limit for accepted
// connections.
func WithLocalMaxFrameSize(n int) LocalOption {
	return func(a *LocalAgent) {
		a.maxFrameSize = n
	}
}

// NewLocalAgent creates an exporter for the given agent and endpoint URI.
func NewLocalAgent(a Agent, endpoint string, opts ...LocalOption) *LocalAgent {
	la := &LocalAgent{
		agent:             a,
		endpoint:          endpoint,
		heartbeatInterval: DefaultHeartbeatInterval,
		instanceID:        uuid.New().String(),
		conns:             make(map[transport.Transport]struct{}),
	}
	for _, opt := range opts {
		opt(la)
	}
	if la.logger == nil {
		la.logger = slog.Default().With("component", "local-agent", "agent", a.Name())
	}
	la.codec = protocol.NewCodec(la.maxFrameSize)
	return la
}

// Name returns the wrapped agent's name.
func (a *LocalAgent) Name() string {
	return a.agent.Name()
}

// Process dispatches directly to the wrapped agent, keeping the exporter
// substitutable for the agent it wraps.
func (a *LocalAgent) Process(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	return a.agent.Process(ctx, msg)
}

// Endpoint returns the bound endpoint URI. Before Start it returns the
// configured endpoint; after Start, the resolved one.
func (a *LocalAgent) Endpoint() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Endpoint()
	}
	return a.endpoint
}

// Start binds the listener, registers with the registry if configured,
// and spawns the accept loop. It returns once serving has begun.
func (a *LocalAgent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("local agent %q already started", a.agent.Name())
	}

	if a.listener == nil {
		var opts []transport.Option
		if a.maxFrameSize > 0 {
			opts = append(opts, transport.WithMaxFrameSize(a.maxFrameSize))
		}
		l, err := transport.Listen(a.endpoint, opts...)
		if err != nil {
			return fmt.Errorf("binding %s: %w", a.endpoint, err)
		}
		a.listener = l
	}

	if a.reg != nil {
		err := a.reg.Register(&registry.Registration{
			Name:         a.agent.Name(),
			Endpoint:     a.listener.Endpoint(),
			Capabilities: a.capabilities,
			Metadata:     map[string]any{"instance_id": a.instanceID},
		})
		if err != nil {
			a.listener.Close()
			a.listener = nil
			return fmt.Errorf("registering agent %q: %w", a.agent.Name(), err)
		}
	}

	serveCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(serveCtx)
	a.cancel = cancel
	a.group = group
	a.started = true

	listener := a.listener
	group.Go(func() error {
		return a.acceptLoop(groupCtx, listener)
	})
	if a.reg != nil {
		group.Go(func() error {
			return a.heartbeatLoop(groupCtx)
		})
	}

	a.logger.Info("agent serving",
		"endpoint", listener.Endpoint(),
		"instance_id", a.instanceID,
		"registered", a.reg != nil,
	)
	return nil
}

// Stop signals shutdown, unblocks the accept loop and all connection
// handlers, and deregisters from the registry. Idempotent.
func (a *LocalAgent) Stop() error {
	a.mu.Lock()
	if !a.started || a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	cancel := a.cancel
	group := a.group
	listener := a.listener
	conns := make([]transport.Transport, 0, len(a.conns))
	for t := range a.conns {
		conns = append(conns, t)
	}
	a.mu.Unlock()

	cancel()
	listener.Close()
	for _, t := range conns {
		t.Close()
	}
	err := group.Wait()

	if a.reg != nil {
		if uerr := a.reg.Unregister(a.agent.Name()); uerr != nil {
			a.logger.Warn("deregistering agent", "error", uerr)
		}
	}

	a.logger.Info("agent stopped")
	return err
}

// acceptLoop accepts connections until the listener closes or the context
// is cancelled. Each connection gets its own handler goroutine so slow
// clients cannot block others.
func (a *LocalAgent) acceptLoop(ctx context.Context, listener transport.Listener) error {
	for {
		t, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || protocol.IsCode(err, protocol.CodeConnectionClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		if !a.trackConn(t) {
			// Stop already snapshotted the connection set; anything
			// accepted after that must be closed here or group.Wait
			// blocks on a handler nobody will ever unblock.
			t.Close()
			return nil
		}
		a.group.Go(func() error {
			a.handleConn(ctx, t)
			return nil
		})
	}
}

// trackConn records an open connection. Returns false once Stop has
// begun; the caller owns the connection and must close it.
func (a *LocalAgent) trackConn(t transport.Transport) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return false
	}
	a.conns[t] = struct{}{}
	return true
}

func (a *LocalAgent) releaseConn(t transport.Transport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, t)
}

// handleConn serves one connection: read a frame, decode, dispatch,
// respond with the request's id. A frame that fails to decode closes the
// connection; agent failures become error envelopes and the loop
// continues.
func (a *LocalAgent) handleConn(ctx context.Context, t transport.Transport) {
	defer a.releaseConn(t)
	defer t.Close()

	for {
		data, err := t.Receive()
		if err != nil {
			if ctx.Err() == nil && !protocol.IsCode(err, protocol.CodeConnectionClosed) {
				a.logger.Debug("connection read failed", "error", err)
			}
			return
		}

		env, err := a.codec.DecodeEnvelope(data)
		if err != nil {
			// Answer with the decode failure, then drop the connection:
			// framing can no longer be trusted.
			a.writeError(t, uuid.New().String(), toWireError(err))
			return
		}

		if !a.handleEnvelope(ctx, t, env) {
			return
		}
	}
}

// handleEnvelope processes one decoded envelope. Returns false when the
// connection should be closed.
func (a *LocalAgent) handleEnvelope(ctx context.Context, t transport.Transport, env *protocol.Envelope) bool {
	switch env.Type {
	case protocol.TypeHeartbeat:
		// Liveness probe: answer in kind with the same id.
		return a.writeEnvelope(t, protocol.NewHeartbeat(env.ID, a.agent.Name()))

	case protocol.TypeRequest:
		return a.handleRequest(ctx, t, env)

	default:
		return a.writeError(t, env.ID,
			protocol.Errorf(protocol.CodeInvalidMessage, "unexpected envelope type %q", env.Type))
	}
}

func (a *LocalAgent) handleRequest(ctx context.Context, t transport.Transport, env *protocol.Envelope) bool {
	if name := env.AgentName(); name != "" && name != a.agent.Name() {
		return a.writeError(t, env.ID,
			protocol.Errorf(protocol.CodeAgentNotFound, "agent %q not served here", name).
				WithDetail("serving", a.agent.Name()))
	}

	msg, err := env.RequestMessage()
	if err != nil {
		return a.writeError(t, env.ID, toWireError(err))
	}

	reply, err := a.dispatch(ctx, msg)
	if err != nil {
		a.logger.Warn("agent process failed", "request_id", env.ID, "error", err)
		return a.writeError(t, env.ID,
			protocol.NewError(protocol.CodeAgentError, err.Error()).
				WithDetail("agent_name", a.agent.Name()))
	}

	a.logger.Debug("request served", "request_id", env.ID)
	return a.writeEnvelope(t, protocol.NewResponse(env.ID, reply))
}

// dispatch invokes the wrapped agent, converting panics into errors so a
// misbehaving agent cannot take the connection handler down.
func (a *LocalAgent) dispatch(ctx context.Context, msg *protocol.Message) (reply *protocol.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()
	return a.agent.Process(ctx, msg)
}

func (a *LocalAgent) writeError(t transport.Transport, id string, werr *protocol.Error) bool {
	return a.writeEnvelope(t, protocol.NewErrorEnvelope(id, werr))
}

func (a *LocalAgent) writeEnvelope(t transport.Transport, env *protocol.Envelope) bool {
	data, err := a.codec.EncodeEnvelope(env)
	if err != nil {
		a.logger.Error("encoding envelope", "error", err)
		return false
	}
	if err := t.Send(data); err != nil {
		a.logger.Debug("connection write failed", "error", err)
		return false
	}
	return true
}

// heartbeatLoop renews the registration until stopped, or until the
// registry forgets the agent.
func (a *LocalAgent) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.reg.Heartbeat(a.agent.Name()); err != nil {
				if protocol.IsCode(err, protocol.CodeAgentNotFound) {
					a.logger.Warn("registration gone, stopping heartbeat")
					return nil
				}
				a.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// toWireError reduces any error to a wire error, defaulting the code.
func toWireError(err error) *protocol.Error {
	var werr *protocol.Error
	if errors.As(err, &werr) {
		return werr
	}
	return protocol.NewError(protocol.CodeInvalidMessage, err.Error())
}
