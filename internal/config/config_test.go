// ABOUTME: Tests for YAML config loading, env expansion, and duration parsing.
// ABOUTME: Validates required fields and the heartbeat interval/timeout relationship.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Complete(t *testing.T) {
	path := writeConfig(t, `
server:
  endpoint: unix:///tmp/agent.sock
  max_frame_size: 1048576
agent:
  name: echo
  capabilities:
    chat: true
registry:
  enabled: true
  db_path: /tmp/registry.db
  heartbeat_interval: 30s
  heartbeat_timeout: 90s
  prune_interval: 1m
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "unix:///tmp/agent.sock", cfg.Server.Endpoint)
	assert.Equal(t, 1048576, cfg.Server.MaxFrameSize)
	assert.Equal(t, "echo", cfg.Agent.Name)
	assert.Equal(t, true, cfg.Agent.Capabilities["chat"])
	assert.True(t, cfg.Registry.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Registry.HeartbeatInterval)
	assert.Equal(t, 90*time.Second, cfg.Registry.HeartbeatTimeout)
	assert.Equal(t, time.Minute, cfg.Registry.PruneInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("AGENTWIRE_TEST_SOCK", "/run/agentwire/test.sock")

	path := writeConfig(t, `
server:
  endpoint: unix://${AGENTWIRE_TEST_SOCK}
agent:
  name: echo
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "unix:///run/agentwire/test.sock", cfg.Server.Endpoint)
}

func TestLoad_MissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
agent:
  name: echo
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "server.endpoint is required")
}

func TestLoad_MissingAgentName(t *testing.T) {
	path := writeConfig(t, `
server:
  endpoint: tcp://0.0.0.0:9090
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "agent.name is required")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  endpoint: tcp://0.0.0.0:9090
agent:
  name: echo
registry:
  enabled: true
  heartbeat_interval: soon
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "heartbeat_interval")
}

func TestLoad_TimeoutMustExceedInterval(t *testing.T) {
	path := writeConfig(t, `
server:
  endpoint: tcp://0.0.0.0:9090
agent:
  name: echo
registry:
  enabled: true
  heartbeat_interval: 30s
  heartbeat_timeout: 30s
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "must exceed")
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
