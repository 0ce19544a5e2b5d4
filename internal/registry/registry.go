// ABOUTME: In-memory agent registry with heartbeat renewal and background pruning.
// ABOUTME: All mutation happens under one RWMutex; reads proceed concurrently.

package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/agentwire/internal/protocol"
)

// Default timings. The heartbeat timeout must exceed the interval agents
// heartbeat at (30s by convention) to tolerate jitter.
const (
	DefaultPruneInterval    = 60 * time.Second
	DefaultHeartbeatTimeout = 90 * time.Second
)

// Registration is one agent's directory record. RegisteredAt is set once;
// LastHeartbeat only moves forward.
type Registration struct {
	Name          string         `json:"name"`
	Endpoint      string         `json:"endpoint"`
	Capabilities  map[string]any `json:"capabilities,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	RegisteredAt  time.Time      `json:"registered_at"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
}

// clone returns a copy so callers never alias the registry's record.
func (r *Registration) clone() *Registration {
	out := *r
	return &out
}

// Store persists registrations across restarts. Implementations must be
// safe for concurrent use.
type Store interface {
	Save(ctx context.Context, reg *Registration) error
	Delete(ctx context.Context, name string) error
	Load(ctx context.Context) ([]*Registration, error)
	Close() error
}

// Registry tracks registered agents and prunes stale entries.
type Registry struct {
	pruneInterval    time.Duration
	heartbeatTimeout time.Duration
	store            Store
	logger           *slog.Logger

	mu     sync.RWMutex
	agents map[string]*Registration

	lifecycle sync.Mutex
	done      chan struct{}
	stopped   chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithPruneInterval sets how often the pruner scans for stale entries.
func WithPruneInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.pruneInterval = d
	}
}

// WithHeartbeatTimeout sets the age after which a registration is stale.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.heartbeatTimeout = d
	}
}

// WithStore mirrors registrations to a persistent store. Existing records
// are loaded when the registry is constructed.
func WithStore(s Store) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a Registry. With a store configured, surviving registrations
// are loaded before the registry is returned.
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		pruneInterval:    DefaultPruneInterval,
		heartbeatTimeout: DefaultHeartbeatTimeout,
		agents:           make(map[string]*Registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "registry")
	}

	if r.store != nil {
		regs, err := r.store.Load(context.Background())
		if err != nil {
			return nil, protocol.WrapError(protocol.CodeRegistrationFailed, "loading persisted registrations", err)
		}
		for _, reg := range regs {
			r.agents[reg.Name] = reg.clone()
		}
		if len(regs) > 0 {
			r.logger.Info("restored registrations", "count", len(regs))
		}
	}
	return r, nil
}

// Register stores a new registration. An empty name fails with
// REGISTRATION_FAILED. A name that already has a live registration fails
// with DUPLICATE_AGENT; a stale one (heartbeat older than the timeout) is
// replaced so crashed agents can re-register without waiting for the
// pruner.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return protocol.NewError(protocol.CodeRegistrationFailed, "registration requires a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, existed := r.agents[reg.Name]
	if existed {
		if now.Sub(existing.LastHeartbeat) <= r.heartbeatTimeout {
			return protocol.Errorf(protocol.CodeDuplicateAgent, "agent %q already registered at %s", reg.Name, existing.Endpoint)
		}
		r.logger.Info("replacing stale registration", "agent", reg.Name, "endpoint", reg.Endpoint)
	}

	stored := reg.clone()
	stored.RegisteredAt = now
	stored.LastHeartbeat = now
	r.agents[stored.Name] = stored

	if err := r.persist(stored); err != nil {
		// Restore the pre-call state: a replaced stale record comes
		// back rather than vanishing.
		if existed {
			r.agents[stored.Name] = existing
		} else {
			delete(r.agents, stored.Name)
		}
		return err
	}

	r.logger.Info("agent registered",
		"agent", stored.Name,
		"endpoint", stored.Endpoint,
		"total_agents", len(r.agents),
	)
	return nil
}

// Unregister removes an agent's registration. Unknown names are a no-op.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[name]; !ok {
		return nil
	}
	delete(r.agents, name)
	if r.store != nil {
		if err := r.store.Delete(context.Background(), name); err != nil {
			r.logger.Warn("deleting persisted registration", "agent", name, "error", err)
		}
	}
	r.logger.Info("agent unregistered", "agent", name, "total_agents", len(r.agents))
	return nil
}

// Lookup returns the registration for name, or AGENT_NOT_FOUND.
func (r *Registry) Lookup(name string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.agents[name]
	if !ok {
		return nil, protocol.Errorf(protocol.CodeAgentNotFound, "agent %q not registered", name)
	}
	return reg.clone(), nil
}

// List returns all current registrations.
func (r *Registry) List() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Registration, 0, len(r.agents))
	for _, reg := range r.agents {
		out = append(out, reg.clone())
	}
	return out
}

// Heartbeat advances the agent's LastHeartbeat. Fails with AGENT_NOT_FOUND
// if the name is absent. RegisteredAt is never touched.
func (r *Registry) Heartbeat(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.agents[name]
	if !ok {
		return protocol.Errorf(protocol.CodeAgentNotFound, "agent %q not registered", name)
	}

	now := time.Now().UTC()
	if !now.After(reg.LastHeartbeat) {
		// Clock granularity guard: LastHeartbeat must strictly advance.
		now = reg.LastHeartbeat.Add(time.Nanosecond)
	}
	reg.LastHeartbeat = now

	if err := r.persist(reg); err != nil {
		return err
	}
	return nil
}

// persist mirrors a record to the store, if one is configured.
// Must be called with mu held.
func (r *Registry) persist(reg *Registration) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(context.Background(), reg); err != nil {
		return protocol.WrapError(protocol.CodeRegistrationFailed, "persisting registration for "+reg.Name, err)
	}
	return nil
}

// Start launches the background pruner. Calling Start on a running
// registry is a no-op.
func (r *Registry) Start() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.done != nil {
		return
	}
	r.done = make(chan struct{})
	r.stopped = make(chan struct{})
	go r.pruneLoop(r.done, r.stopped)
}

// Stop halts the pruner and waits for it to exit. Safe to call without a
// prior Start, and safe to call multiple times.
func (r *Registry) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.done == nil {
		return
	}
	close(r.done)
	<-r.stopped
	r.done = nil
	r.stopped = nil
}

// pruneLoop periodically removes stale registrations until stopped.
func (r *Registry) pruneLoop(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(r.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.prune(time.Now().UTC())
		case <-done:
			return
		}
	}
}

// prune removes every registration whose heartbeat age exceeds the timeout.
func (r *Registry) prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, reg := range r.agents {
		age := now.Sub(reg.LastHeartbeat)
		if age <= r.heartbeatTimeout {
			continue
		}
		delete(r.agents, name)
		if r.store != nil {
			if err := r.store.Delete(context.Background(), name); err != nil {
				r.logger.Warn("deleting pruned registration", "agent", name, "error", err)
			}
		}
		r.logger.Info("pruned stale agent",
			"agent", name,
			"endpoint", reg.Endpoint,
			"heartbeat_age", age,
		)
	}
}
