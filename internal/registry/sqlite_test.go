// ABOUTME: Tests for the SQLite-backed registry store.
// ABOUTME: Validates save/load/delete round-trips and registry reload after restart.

package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reg := &Registration{
		Name:          "echo",
		Endpoint:      "unix:///tmp/echo.sock",
		Capabilities:  map[string]any{"chat": true},
		Metadata:      map[string]any{"instance_id": "i-1"},
		RegisteredAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		LastHeartbeat: time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, reg))

	regs, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)

	got := regs[0]
	assert.Equal(t, reg.Name, got.Name)
	assert.Equal(t, reg.Endpoint, got.Endpoint)
	assert.Equal(t, reg.Capabilities, got.Capabilities)
	assert.Equal(t, reg.Metadata, got.Metadata)
	assert.True(t, reg.RegisteredAt.Equal(got.RegisteredAt))
	assert.True(t, reg.LastHeartbeat.Equal(got.LastHeartbeat))
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reg := &Registration{Name: "echo", Endpoint: "tcp://a:1", RegisteredAt: time.Now(), LastHeartbeat: time.Now()}
	require.NoError(t, store.Save(ctx, reg))

	reg.Endpoint = "tcp://b:2"
	require.NoError(t, store.Save(ctx, reg))

	regs, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "tcp://b:2", regs[0].Endpoint)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reg := &Registration{Name: "echo", Endpoint: "tcp://a:1", RegisteredAt: time.Now(), LastHeartbeat: time.Now()}
	require.NoError(t, store.Save(ctx, reg))
	require.NoError(t, store.Delete(ctx, "echo"))

	regs, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)

	// Deleting an absent row is a no-op
	assert.NoError(t, store.Delete(ctx, "echo"))
}

func TestRegistry_ReloadsFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	first, err := New(WithStore(store))
	require.NoError(t, err)
	require.NoError(t, first.Register(&Registration{Name: "echo", Endpoint: "tcp://a:1"}))
	require.NoError(t, store.Close())

	// A fresh registry over the same database sees the registration.
	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	second, err := New(WithStore(reopened))
	require.NoError(t, err)

	got, err := second.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "tcp://a:1", got.Endpoint)
}
