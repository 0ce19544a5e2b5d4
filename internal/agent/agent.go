// ABOUTME: Agent capability interface and function adapter.
// ABOUTME: Everything that processes messages, local or proxied, satisfies Agent.

package agent

import (
	"context"
	"time"

	"github.com/2389/agentwire/internal/protocol"
)

// DefaultHeartbeatInterval is how often an exported agent renews its
// registration. It must stay below the registry's heartbeat timeout.
const DefaultHeartbeatInterval = 30 * time.Second

// Agent is a named unit that processes one message and returns another.
type Agent interface {
	Name() string
	Process(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)
}

// Func adapts a plain function into an Agent.
type Func struct {
	AgentName string
	Fn        func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)
}

// Name returns the agent's name.
func (f *Func) Name() string {
	return f.AgentName
}

// Process invokes the wrapped function.
func (f *Func) Process(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	return f.Fn(ctx, msg)
}
