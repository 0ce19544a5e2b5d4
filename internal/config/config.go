// ABOUTME: Configuration loading and parsing for the agentwire daemon.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agentwire-serve configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Agent    AgentConfig    `yaml:"agent"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the serving endpoint configuration.
type ServerConfig struct {
	// Endpoint is the transport URI to serve on: unix:///path or tcp://host:port.
	Endpoint string `yaml:"endpoint"`
	// MaxFrameSize overrides the 10 MiB frame limit (bytes). Zero keeps the default.
	MaxFrameSize int `yaml:"max_frame_size"`
}

// AgentConfig names the exported agent and its advertised capabilities.
type AgentConfig struct {
	Name         string         `yaml:"name"`
	Capabilities map[string]any `yaml:"capabilities"`
}

// RegistryConfig holds discovery and liveness configuration.
type RegistryConfig struct {
	Enabled bool `yaml:"enabled"`
	// DBPath persists registrations in SQLite when set.
	DBPath string `yaml:"db_path"`

	HeartbeatInterval time.Duration `yaml:"-"`
	HeartbeatTimeout  time.Duration `yaml:"-"`
	PruneInterval     time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	HeartbeatTimeoutRaw  string `yaml:"heartbeat_timeout"`
	PruneIntervalRaw     string `yaml:"prune_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// consistent. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if c.Server.Endpoint == "" {
		return fmt.Errorf("server.endpoint is required")
	}
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}

	if c.Registry.Enabled {
		interval := c.Registry.HeartbeatInterval
		timeout := c.Registry.HeartbeatTimeout
		if interval != 0 && timeout != 0 && timeout <= interval {
			return fmt.Errorf("registry.heartbeat_timeout (%s) must exceed registry.heartbeat_interval (%s)", timeout, interval)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Registry.HeartbeatIntervalRaw != "" {
		cfg.Registry.HeartbeatInterval, err = time.ParseDuration(cfg.Registry.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Registry.HeartbeatIntervalRaw, err)
		}
	}

	if cfg.Registry.HeartbeatTimeoutRaw != "" {
		cfg.Registry.HeartbeatTimeout, err = time.ParseDuration(cfg.Registry.HeartbeatTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_timeout %q: %w", cfg.Registry.HeartbeatTimeoutRaw, err)
		}
	}

	if cfg.Registry.PruneIntervalRaw != "" {
		cfg.Registry.PruneInterval, err = time.ParseDuration(cfg.Registry.PruneIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing prune_interval %q: %w", cfg.Registry.PruneIntervalRaw, err)
		}
	}

	return nil
}
