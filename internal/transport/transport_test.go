// ABOUTME: Tests for the Unix, TCP, and in-memory transports.
// ABOUTME: Validates frame exchange, socket file handling, deadlines, and close semantics.

package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentwire/internal/protocol"
)

// echoFrames accepts one connection and echoes frames back until the peer
// disconnects.
func echoFrames(t *testing.T, l Listener) {
	t.Helper()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			data, err := conn.Receive()
			if err != nil {
				return
			}
			if err := conn.Send(data); err != nil {
				return
			}
		}
	}()
}

func TestUnixTransport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.sock")
	endpoint := "unix://" + path

	l, err := Listen(endpoint)
	require.NoError(t, err)
	defer l.Close()
	echoFrames(t, l)

	// Socket file is created owner-only
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	client, err := New(endpoint)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.Equal(t, endpoint, client.Endpoint())

	require.NoError(t, client.Send([]byte("ping")))
	got, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), got)
}

func TestUnixListener_RemovesSocketOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.sock")

	l, err := Listen("unix://" + path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	require.NoError(t, l.Close())
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnixListener_ReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.sock")

	// Simulate a crashed predecessor leaving its socket behind.
	first, err := Listen("unix://" + path)
	require.NoError(t, err)
	first.Close()
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	second, err := Listen("unix://" + path)
	require.NoError(t, err)
	second.Close()
}

func TestTCPTransport_RoundTrip(t *testing.T) {
	l, err := Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	echoFrames(t, l)

	// Wildcard port resolves to the bound one
	endpoint := l.Endpoint()
	assert.NotContains(t, endpoint, ":0")

	client, err := New(endpoint)
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.NoError(t, client.Send([]byte("over tcp")))
	got, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("over tcp"), got)
}

func TestConnect_NoListener(t *testing.T) {
	client, err := New("unix:///nonexistent/agentwire-test.sock")
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, protocol.IsCode(err, protocol.CodeConnectionFailed), "got %v", err)
	assert.False(t, client.IsConnected())
}

func TestConnect_Idempotent(t *testing.T) {
	l, err := Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	client, err := New(l.Endpoint())
	require.NoError(t, err)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	// Second Connect is a no-op
	require.NoError(t, client.Connect(context.Background()))
}

func TestPipe_RoundTrip(t *testing.T) {
	client, server := NewPipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		data, err := server.Receive()
		assert.NoError(t, err)
		assert.NoError(t, server.Send(data))
	}()

	require.NoError(t, client.Send([]byte("loopback")))
	got, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("loopback"), got)
	<-done
}

func TestPipeListener_AcceptAndDial(t *testing.T) {
	l := ListenPipe()
	defer l.Close()

	accepted := make(chan Transport, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := l.Dial()
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	go func() {
		data, _ := server.Receive()
		server.Send(data)
	}()

	require.NoError(t, client.Send([]byte("hi")))
	got, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)
}

func TestPipeListener_CloseUnblocksAccept(t *testing.T) {
	l := ListenPipe()

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		errCh <- err
	}()

	l.Close()

	select {
	case err := <-errCh:
		assert.True(t, protocol.IsCode(err, protocol.CodeConnectionClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not unblock on Close")
	}
}

func TestReceive_DeadlineExpires(t *testing.T) {
	client, server := NewPipe()
	defer client.Close()
	defer server.Close()

	require.NoError(t, client.SetReceiveDeadline(time.Now().Add(20*time.Millisecond)))

	_, err := client.Receive()
	require.Error(t, err)
	assert.True(t, protocol.IsCode(err, protocol.CodeConnectionTimeout), "got %v", err)
}

func TestSend_AfterClose(t *testing.T) {
	client, server := NewPipe()
	server.Close()
	require.NoError(t, client.Close())

	err := client.Send([]byte("too late"))
	assert.True(t, protocol.IsCode(err, protocol.CodeConnectionClosed), "got %v", err)
	assert.False(t, client.IsConnected())
}

func TestTransport_MaxFrameSize(t *testing.T) {
	client, server := NewPipe(WithMaxFrameSize(16))
	defer client.Close()
	defer server.Close()

	err := client.Send(make([]byte, 17))
	assert.True(t, protocol.IsCode(err, protocol.CodeMalformedPayload), "got %v", err)
}
