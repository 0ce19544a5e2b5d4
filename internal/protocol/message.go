// ABOUTME: Message and ToolResult data types passed between agents.
// ABOUTME: Messages are immutable once constructed and travel by value over the wire.

package protocol

import (
	"errors"
	"time"
)

// ErrEmptyRole indicates a message was constructed without a role.
var ErrEmptyRole = errors.New("message role must not be empty")

// ErrToolResultError indicates a failed ToolResult without an error string.
var ErrToolResultError = errors.New("failed tool result must carry an error")

// Message is the unit of work an agent processes. Content is opaque to this
// layer: any JSON-serializable value round-trips unchanged.
type Message struct {
	Role      string         `json:"role"`
	Content   any            `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage creates a Message with the timestamp set to now.
func NewMessage(role string, content any) *Message {
	return &Message{
		Role:      role,
		Content:   content,
		Metadata:  make(map[string]any),
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata returns a copy of the message with the given metadata key set.
// The receiver is not modified.
func (m *Message) WithMetadata(key string, value any) *Message {
	out := *m
	out.Metadata = make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata[key] = value
	return &out
}

// Validate checks the message invariants.
func (m *Message) Validate() error {
	if m.Role == "" {
		return ErrEmptyRole
	}
	return nil
}

// ToolResult is the outcome of a tool invocation. Data is present iff
// Success is true; Error is required iff Success is false.
type ToolResult struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewToolResult creates a successful ToolResult carrying data.
func NewToolResult(data any) *ToolResult {
	return &ToolResult{Success: true, Data: data}
}

// NewToolError creates a failed ToolResult carrying an error string.
func NewToolError(errMsg string) *ToolResult {
	return &ToolResult{Success: false, Error: errMsg}
}

// Validate enforces the success/error invariant.
func (r *ToolResult) Validate() error {
	if !r.Success && r.Error == "" {
		return ErrToolResultError
	}
	return nil
}
