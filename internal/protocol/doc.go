// Package protocol defines the agentwire wire format: the Message and
// Envelope data types, the typed error taxonomy, and the codec that
// serializes envelopes to length-prefixed JSON frames.
//
// # Envelope
//
// Every unit on the wire is an Envelope:
//
//	{"version":"1.0","type":"request","id":"...","timestamp":"...","payload":{...}}
//
// Envelope types: request, response, error, heartbeat, register, unregister.
// A request's id appears exactly once in the matching response or error
// envelope; ids are never reused within a connection's lifetime.
//
// # Framing
//
// Each envelope is written as one frame: a 4-byte big-endian unsigned
// length followed by the UTF-8 JSON body. Frames larger than the codec's
// maximum (10 MiB by default) are rejected before any allocation.
//
// # Errors
//
// Failures carry a stable error code (CONNECTION_FAILED, INVALID_MESSAGE,
// AGENT_NOT_FOUND, ...) so independently compiled peers can classify them
// without parsing error text.
package protocol
