// ABOUTME: Admin CLI for agentwire: ping and message exported agents, inspect the registry db.
// ABOUTME: Talks the framed JSON protocol directly via RemoteAgent; no daemon-side admin API.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/agentwire/internal/agent"
	"github.com/2389/agentwire/internal/protocol"
	"github.com/2389/agentwire/internal/registry"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ping":
		err = cmdPing(args)
	case "send":
		err = cmdSend(args)
	case "agents":
		err = cmdAgents(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: agentwire-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  ping <endpoint>             Check an exported agent is alive")
	fmt.Println("  send <endpoint> <content>   Send a message and print the reply")
	fmt.Println("  agents -db <path>           List registrations from a registry database")
	fmt.Println()
	yellow.Println("Endpoints:")
	fmt.Println("  unix:///path/to.sock")
	fmt.Println("  tcp://host:port")
}

func cmdPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	name := fs.String("name", "", "agent name (optional)")
	timeout := fs.Duration("timeout", 5*time.Second, "response timeout")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: ping [-name <agent>] [-timeout <d>] <endpoint>")
	}
	endpoint := fs.Arg(0)

	remote, err := agent.NewRemoteAgent(*name, endpoint, agent.WithTimeout(*timeout))
	if err != nil {
		return err
	}
	defer remote.Close()

	start := time.Now()
	if err := remote.Ping(context.Background()); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("OK ")
	fmt.Printf("%s (%s)\n", endpoint, time.Since(start).Round(time.Millisecond))
	return nil
}

func cmdSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("name", "", "agent name (optional)")
	role := fs.String("role", "user", "message role")
	timeout := fs.Duration("timeout", 30*time.Second, "response timeout")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: send [-name <agent>] [-role <role>] <endpoint> <content>")
	}
	endpoint := fs.Arg(0)
	content := fs.Arg(1)

	remote, err := agent.NewRemoteAgent(*name, endpoint, agent.WithTimeout(*timeout))
	if err != nil {
		return err
	}
	defer remote.Close()

	reply, err := remote.Process(context.Background(), protocol.NewMessage(*role, content))
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("[%s] ", reply.Role)
	fmt.Printf("%v\n", reply.Content)
	if len(reply.Metadata) > 0 {
		meta, _ := json.Marshal(reply.Metadata)
		gray := color.New(color.FgHiBlack)
		gray.Printf("metadata: %s\n", meta)
	}
	return nil
}

func cmdAgents(args []string) error {
	fs := flag.NewFlagSet("agents", flag.ExitOnError)
	dbPath := fs.String("db", "", "registry database path")
	staleAfter := fs.Duration("stale-after", registry.DefaultHeartbeatTimeout, "heartbeat age treated as stale")
	fs.Parse(args)

	if *dbPath == "" {
		return fmt.Errorf("usage: agents -db <path>")
	}

	store, err := registry.NewSQLiteStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	regs, err := store.Load(context.Background())
	if err != nil {
		return err
	}
	if len(regs) == 0 {
		fmt.Println("No registered agents.")
		return nil
	}

	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENDPOINT\tREGISTERED\tLAST HEARTBEAT\tSTATE")
	now := time.Now()
	for _, reg := range regs {
		age := now.Sub(reg.LastHeartbeat)
		state := green.Sprint("live")
		if age > *staleAfter {
			state = red.Sprintf("stale (%s)", age.Round(time.Second))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			reg.Name,
			reg.Endpoint,
			reg.RegisteredAt.Local().Format(time.RFC3339),
			reg.LastHeartbeat.Local().Format(time.RFC3339),
			state,
		)
	}
	return w.Flush()
}
