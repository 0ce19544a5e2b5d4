// Package registry provides agent discovery and liveness tracking.
//
// A Registry maps agent names to registration records (endpoint,
// capabilities, heartbeat timestamps). Agents renew their registration
// with periodic heartbeats; a background pruner removes entries whose
// last heartbeat is older than the configured timeout.
//
// Registries are explicitly constructed instances with their own
// Start/Stop lifecycle; there is no process-wide singleton, so tests and
// multi-tenant processes can run independent registries side by side.
//
// With WithStore, registrations are mirrored to a persistent store (see
// SQLiteStore) and reloaded when the registry is constructed, so a daemon
// restart does not lose its directory.
package registry
