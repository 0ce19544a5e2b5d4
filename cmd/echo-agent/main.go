// ABOUTME: Minimal echo agent for e2e testing. Serves a socket and echoes messages.
// ABOUTME: Usage: echo-agent [-endpoint unix:///tmp/echo.sock] [-name echo]

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/2389/agentwire/internal/agent"
)

func main() {
	endpoint := flag.String("endpoint", "unix:///tmp/echo.sock", "endpoint URI to serve on")
	name := flag.String("name", "echo", "agent name")
	flag.Parse()

	if err := run(*endpoint, *name); err != nil {
		log.Fatal(err)
	}
}

func run(endpoint, name string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	local := agent.NewLocalAgent(
		agent.NewEchoAgent(name),
		endpoint,
		agent.WithLocalLogger(logger),
	)
	if err := local.Start(ctx); err != nil {
		return err
	}

	logger.Info("echo agent serving", "name", name, "endpoint", local.Endpoint())
	<-ctx.Done()
	return local.Stop()
}
