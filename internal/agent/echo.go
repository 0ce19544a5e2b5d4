// ABOUTME: Minimal echo agent used by the e2e tests and the echo-agent binary.
// ABOUTME: Replies to every message with "Echo: <content>".

package agent

import (
	"context"
	"fmt"

	"github.com/2389/agentwire/internal/protocol"
)

// EchoAgent replies to every message with an echo of its content.
type EchoAgent struct {
	name string
}

// NewEchoAgent creates an echo agent with the given name.
func NewEchoAgent(name string) *EchoAgent {
	return &EchoAgent{name: name}
}

// Name returns the agent's name.
func (a *EchoAgent) Name() string {
	return a.name
}

// Process echoes the message content back with role "agent".
func (a *EchoAgent) Process(_ context.Context, msg *protocol.Message) (*protocol.Message, error) {
	return protocol.NewMessage("agent", fmt.Sprintf("Echo: %v", msg.Content)), nil
}
