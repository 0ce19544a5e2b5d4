// ABOUTME: End-to-end scenarios over real Unix and TCP sockets.
// ABOUTME: Echo round-trip, dead-endpoint failures, and cross-connection correlation.

package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentwire/internal/protocol"
)

func TestE2E_EchoOverUnixSocket(t *testing.T) {
	endpoint := "unix://" + filepath.Join(t.TempDir(), "t.sock")

	local := NewLocalAgent(NewEchoAgent("echo"), endpoint, WithLocalLogger(quietLogger()))
	require.NoError(t, local.Start(context.Background()))
	defer local.Stop()

	remote, err := NewRemoteAgent("echo", endpoint, WithRemoteLogger(quietLogger()))
	require.NoError(t, err)
	defer remote.Close()

	reply, err := remote.Process(context.Background(), protocol.NewMessage("user", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "agent", reply.Role)
	assert.Equal(t, "Echo: hi", reply.Content)
}

func TestE2E_EchoOverTCP(t *testing.T) {
	local := NewLocalAgent(NewEchoAgent("echo"), "tcp://127.0.0.1:0", WithLocalLogger(quietLogger()))
	require.NoError(t, local.Start(context.Background()))
	defer local.Stop()

	remote, err := NewRemoteAgent("echo", local.Endpoint(), WithRemoteLogger(quietLogger()))
	require.NoError(t, err)
	defer remote.Close()

	reply, err := remote.Process(context.Background(), protocol.NewMessage("user", "over tcp"))
	require.NoError(t, err)
	assert.Equal(t, "Echo: over tcp", reply.Content)
}

func TestE2E_NoListenerFailsFast(t *testing.T) {
	endpoint := "unix://" + filepath.Join(t.TempDir(), "nobody-home.sock")

	remote, err := NewRemoteAgent("echo", endpoint,
		WithRemoteLogger(quietLogger()),
		WithTimeout(2*time.Second),
	)
	require.NoError(t, err)
	defer remote.Close()

	start := time.Now()
	_, err = remote.Process(context.Background(), protocol.NewMessage("user", "hi"))
	require.Error(t, err)
	assert.True(t, protocol.IsCode(err, protocol.CodeConnectionFailed), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second, "dial to a dead endpoint must not hang")
}

func TestE2E_MessageMetadataSurvivesTheWire(t *testing.T) {
	endpoint := "unix://" + filepath.Join(t.TempDir(), "meta.sock")

	reflector := &Func{
		AgentName: "reflect",
		Fn: func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
			reply := protocol.NewMessage("agent", msg.Content)
			reply.Metadata = msg.Metadata
			return reply, nil
		},
	}

	local := NewLocalAgent(reflector, endpoint, WithLocalLogger(quietLogger()))
	require.NoError(t, local.Start(context.Background()))
	defer local.Stop()

	remote, err := NewRemoteAgent("reflect", endpoint, WithRemoteLogger(quietLogger()))
	require.NoError(t, err)
	defer remote.Close()

	msg := protocol.NewMessage("user", "payload").WithMetadata("trace", "abc-123")
	reply, err := remote.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", reply.Metadata["trace"])
}

func TestE2E_ConcurrentClientsOverSeparateConnections(t *testing.T) {
	local := NewLocalAgent(NewEchoAgent("echo"), "tcp://127.0.0.1:0", WithLocalLogger(quietLogger()))
	require.NoError(t, local.Start(context.Background()))
	defer local.Stop()

	endpoint := local.Endpoint()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			remote, err := NewRemoteAgent("echo", endpoint, WithRemoteLogger(quietLogger()))
			if err != nil {
				errs <- err
				return
			}
			defer remote.Close()

			content := fmt.Sprintf("client-%d", i)
			reply, err := remote.Process(context.Background(), protocol.NewMessage("user", content))
			if err != nil {
				errs <- err
				return
			}
			if reply.Content != "Echo: "+content {
				errs <- fmt.Errorf("cross-talk: got %q", reply.Content)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestE2E_SocketFileRemovedAfterStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleanup.sock")
	local := NewLocalAgent(NewEchoAgent("echo"), "unix://"+path, WithLocalLogger(quietLogger()))
	require.NoError(t, local.Start(context.Background()))
	require.NoError(t, local.Stop())

	assert.NoFileExists(t, path)
}
