// Package agent defines the Agent capability interface and the two
// components that make it location-transparent: LocalAgent exports a
// concrete agent over a transport listener, and RemoteAgent proxies the
// same interface over a connection to a LocalAgent.
//
// # Agent
//
// An Agent is a named unit exposing one method:
//
//	type Agent interface {
//	    Name() string
//	    Process(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)
//	}
//
// Any type satisfying the interface is substitutable: a concrete
// implementation, a LocalAgent wrapping one, or a RemoteAgent proxying
// one across a socket.
//
// # Request/response correlation
//
// RemoteAgent stamps each request envelope with a fresh uuid and the
// LocalAgent reuses that id on the matching response or error envelope.
// The client sends one request per connection at a time and waits for the
// matching response, so within a connection frames are strictly ordered.
//
// # Registry integration
//
// A LocalAgent started with WithRegistry registers its name and bound
// endpoint on Start, renews the registration on a heartbeat interval, and
// deregisters on Stop. The heartbeat loop also stops itself if the
// registry no longer knows the agent.
package agent
