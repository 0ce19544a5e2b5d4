// ABOUTME: SQLite implementation of the registry Store using modernc.org/sqlite.
// ABOUTME: Persists registrations with automatic schema creation so restarts keep the directory.

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists registrations in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a registry database at the given path.
// Parent directories are created if needed; ":memory:" is supported for
// tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "registry-store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps heartbeat writes from blocking lookups.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("registry store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS registrations (
			name TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			capabilities TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			registered_at DATETIME NOT NULL,
			last_heartbeat DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_registrations_last_heartbeat
			ON registrations(last_heartbeat);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts or replaces a registration row.
func (s *SQLiteStore) Save(ctx context.Context, reg *Registration) error {
	caps, err := json.Marshal(reg.Capabilities)
	if err != nil {
		return fmt.Errorf("encoding capabilities: %w", err)
	}
	meta, err := json.Marshal(reg.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registrations (name, endpoint, capabilities, metadata, registered_at, last_heartbeat)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			endpoint = excluded.endpoint,
			capabilities = excluded.capabilities,
			metadata = excluded.metadata,
			registered_at = excluded.registered_at,
			last_heartbeat = excluded.last_heartbeat
	`, reg.Name, reg.Endpoint, string(caps), string(meta),
		reg.RegisteredAt.UTC().Format(time.RFC3339Nano),
		reg.LastHeartbeat.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving registration %q: %w", reg.Name, err)
	}
	return nil
}

// Delete removes a registration row. Unknown names are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting registration %q: %w", name, err)
	}
	return nil
}

// Load returns all persisted registrations.
func (s *SQLiteStore) Load(ctx context.Context) ([]*Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, endpoint, capabilities, metadata, registered_at, last_heartbeat
		FROM registrations
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("loading registrations: %w", err)
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		var reg Registration
		var caps, meta, registeredAt, lastHeartbeat string
		if err := rows.Scan(&reg.Name, &reg.Endpoint, &caps, &meta, &registeredAt, &lastHeartbeat); err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		if err := json.Unmarshal([]byte(caps), &reg.Capabilities); err != nil {
			return nil, fmt.Errorf("decoding capabilities for %q: %w", reg.Name, err)
		}
		if err := json.Unmarshal([]byte(meta), &reg.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %q: %w", reg.Name, err)
		}
		if reg.RegisteredAt, err = time.Parse(time.RFC3339Nano, registeredAt); err != nil {
			return nil, fmt.Errorf("parsing registered_at for %q: %w", reg.Name, err)
		}
		if reg.LastHeartbeat, err = time.Parse(time.RFC3339Nano, lastHeartbeat); err != nil {
			return nil, fmt.Errorf("parsing last_heartbeat for %q: %w", reg.Name, err)
		}
		regs = append(regs, &reg)
	}
	return regs, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
