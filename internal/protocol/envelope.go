// ABOUTME: Envelope type wrapping every wire exchange with version, type, and correlation id.
// ABOUTME: Provides constructors and payload accessors for each envelope type.

package protocol

import (
	"encoding/json"
	"time"
)

// Version is the protocol version this implementation speaks.
const Version = "1.0"

// EnvelopeType discriminates the payload shape of an envelope.
type EnvelopeType string

const (
	TypeRequest    EnvelopeType = "request"
	TypeResponse   EnvelopeType = "response"
	TypeError      EnvelopeType = "error"
	TypeHeartbeat  EnvelopeType = "heartbeat"
	TypeRegister   EnvelopeType = "register"
	TypeUnregister EnvelopeType = "unregister"
)

var envelopeTypes = map[EnvelopeType]bool{
	TypeRequest:    true,
	TypeResponse:   true,
	TypeError:      true,
	TypeHeartbeat:  true,
	TypeRegister:   true,
	TypeUnregister: true,
}

// Envelope is the protocol-level wrapper around every exchange. The id of a
// request envelope correlates it with exactly one response or error
// envelope on the same connection.
type Envelope struct {
	Version   string         `json:"version"`
	Type      EnvelopeType   `json:"type"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func newEnvelope(t EnvelopeType, id string, payload map[string]any) *Envelope {
	return &Envelope{
		Version:   Version,
		Type:      t,
		ID:        id,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewRequest builds a request envelope embedding the message for the named
// agent. The id must be unique within the connection's lifetime.
func NewRequest(id, agentName string, msg *Message) *Envelope {
	return newEnvelope(TypeRequest, id, map[string]any{
		"method":     "process",
		"agent_name": agentName,
		"message":    msg,
	})
}

// NewResponse builds a response envelope reusing the request's id.
func NewResponse(id string, msg *Message) *Envelope {
	return newEnvelope(TypeResponse, id, map[string]any{
		"message": msg,
	})
}

// NewErrorEnvelope builds an error envelope reusing the request's id.
func NewErrorEnvelope(id string, werr *Error) *Envelope {
	payload := map[string]any{
		"error_code":    string(werr.Code),
		"error_message": werr.Message,
	}
	if len(werr.Details) > 0 {
		payload["error_details"] = werr.Details
	}
	return newEnvelope(TypeError, id, payload)
}

// NewHeartbeat builds a heartbeat envelope for the named agent.
func NewHeartbeat(id, agentName string) *Envelope {
	return newEnvelope(TypeHeartbeat, id, map[string]any{
		"agent_name": agentName,
	})
}

// NewRegister builds a register envelope announcing an agent at an endpoint.
func NewRegister(id, agentName, endpoint string, capabilities map[string]any) *Envelope {
	return newEnvelope(TypeRegister, id, map[string]any{
		"agent_name":   agentName,
		"endpoint":     endpoint,
		"capabilities": capabilities,
	})
}

// NewUnregister builds an unregister envelope for the named agent.
func NewUnregister(id, agentName string) *Envelope {
	return newEnvelope(TypeUnregister, id, map[string]any{
		"agent_name": agentName,
	})
}

// Validate checks version, type, and id. Decode failures surface as typed
// errors so peers never silently default.
func (e *Envelope) Validate() error {
	if e.Version == "" {
		return NewError(CodeInvalidMessage, "envelope missing version")
	}
	if e.Version != Version {
		return Errorf(CodeUnsupportedVersion, "unsupported protocol version %q", e.Version)
	}
	if !envelopeTypes[e.Type] {
		return Errorf(CodeInvalidMessage, "unknown envelope type %q", e.Type)
	}
	if e.ID == "" {
		return NewError(CodeInvalidMessage, "envelope missing id")
	}
	return nil
}

// AgentName returns the payload's agent_name field, if present.
func (e *Envelope) AgentName() string {
	name, _ := e.Payload["agent_name"].(string)
	return name
}

// RequestMessage extracts the embedded Message from a request payload.
func (e *Envelope) RequestMessage() (*Message, error) {
	if e.Type != TypeRequest {
		return nil, Errorf(CodeInvalidMessage, "expected request envelope, got %q", e.Type)
	}
	return e.payloadMessage()
}

// ResponseMessage extracts the embedded Message from a response payload.
func (e *Envelope) ResponseMessage() (*Message, error) {
	if e.Type != TypeResponse {
		return nil, Errorf(CodeInvalidMessage, "expected response envelope, got %q", e.Type)
	}
	return e.payloadMessage()
}

// payloadMessage decodes payload["message"] through JSON so maps produced
// by generic decoding and *Message values placed by constructors both work.
func (e *Envelope) payloadMessage() (*Message, error) {
	raw, ok := e.Payload["message"]
	if !ok {
		return nil, NewError(CodeMalformedPayload, "payload missing message")
	}
	if msg, ok := raw.(*Message); ok {
		return msg, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, WrapError(CodeMalformedPayload, "encoding payload message", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, WrapError(CodeMalformedPayload, "decoding payload message", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, WrapError(CodeInvalidMessage, "invalid payload message", err)
	}
	return &msg, nil
}

// WireError reconstructs the typed error carried by an error envelope.
func (e *Envelope) WireError() (*Error, error) {
	if e.Type != TypeError {
		return nil, Errorf(CodeInvalidMessage, "expected error envelope, got %q", e.Type)
	}
	code, _ := e.Payload["error_code"].(string)
	if code == "" {
		return nil, NewError(CodeMalformedPayload, "error payload missing error_code")
	}
	message, _ := e.Payload["error_message"].(string)
	werr := NewError(Code(code), message)
	if details, ok := e.Payload["error_details"].(map[string]any); ok {
		werr.Details = details
	}
	return werr, nil
}
