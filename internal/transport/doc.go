// Package transport provides the byte-stream connections agentwire peers
// talk over: Unix domain sockets for same-host use, TCP for cross-host
// use, and an in-memory pipe pair for transport-agnostic tests.
//
// A Transport is frame-oriented: Send writes one length-prefixed frame and
// Receive returns the body of the next one. Each Transport is owned by a
// single logical connection; sharing one across goroutines requires
// external synchronization.
//
// Endpoints are URIs: unix:///path/to.sock or tcp://host:port.
package transport
