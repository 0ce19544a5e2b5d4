// ABOUTME: Entry point for the agentwire-serve daemon.
// ABOUTME: Exposes the built-in echo agent over a socket per config, with optional registry.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/agentwire/internal/agent"
	"github.com/2389/agentwire/internal/config"
	"github.com/2389/agentwire/internal/registry"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the daemon config file.
// Priority: AGENTWIRE_CONFIG env var > XDG_CONFIG_HOME/agentwire/serve.yaml
// > ~/.config/agentwire/serve.yaml
func getConfigPath() string {
	if envPath := os.Getenv("AGENTWIRE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "serve.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "agentwire", "serve.yaml")
}

func main() {
	configPath := getConfigPath()
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if err := run(configPath); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	gray.Printf("agentwire-serve %s\n\n", version)
	green.Print("  ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("  ▶ ")
	fmt.Printf("Agent:    %s\n", cfg.Agent.Name)
	green.Print("  ▶ ")
	fmt.Printf("Endpoint: %s\n", cfg.Server.Endpoint)
	if cfg.Registry.Enabled {
		green.Print("  ▶ ")
		fmt.Printf("Registry: enabled (db: %s)\n", registryDBLabel(cfg))
	}
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var localOpts []agent.LocalOption
	localOpts = append(localOpts, agent.WithLocalLogger(logger.With("component", "local-agent")))
	if cfg.Server.MaxFrameSize > 0 {
		localOpts = append(localOpts, agent.WithLocalMaxFrameSize(cfg.Server.MaxFrameSize))
	}
	if len(cfg.Agent.Capabilities) > 0 {
		localOpts = append(localOpts, agent.WithCapabilities(cfg.Agent.Capabilities))
	}

	var reg *registry.Registry
	if cfg.Registry.Enabled {
		var store *registry.SQLiteStore
		reg, store, err = buildRegistry(cfg, logger)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}
		reg.Start()
		defer reg.Stop()
		localOpts = append(localOpts, agent.WithRegistry(reg, cfg.Registry.HeartbeatInterval))
	}

	echo := agent.NewEchoAgent(cfg.Agent.Name)
	local := agent.NewLocalAgent(echo, cfg.Server.Endpoint, localOpts...)

	if err := local.Start(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}

	logger.Info("agentwire-serve running",
		"agent", cfg.Agent.Name,
		"endpoint", local.Endpoint(),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return local.Stop()
}

func registryDBLabel(cfg *config.Config) string {
	if cfg.Registry.DBPath == "" {
		return "in-memory"
	}
	return cfg.Registry.DBPath
}

// buildRegistry creates the registry and, when persistence is configured,
// the backing store. The caller closes the store after stopping the
// registry.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*registry.Registry, *registry.SQLiteStore, error) {
	opts := []registry.Option{
		registry.WithLogger(logger.With("component", "registry")),
	}
	if cfg.Registry.PruneInterval > 0 {
		opts = append(opts, registry.WithPruneInterval(cfg.Registry.PruneInterval))
	}
	if cfg.Registry.HeartbeatTimeout > 0 {
		opts = append(opts, registry.WithHeartbeatTimeout(cfg.Registry.HeartbeatTimeout))
	}

	var store *registry.SQLiteStore
	if cfg.Registry.DBPath != "" {
		var err error
		store, err = registry.NewSQLiteStore(cfg.Registry.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening registry store: %w", err)
		}
		opts = append(opts, registry.WithStore(store))
	}

	reg, err := registry.New(opts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, fmt.Errorf("creating registry: %w", err)
	}
	return reg, store, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
