// Command swarmnode stands up a single swarm node: it generates a
// local identity, registers the tcp transport, starts listening on a
// kernel-assigned port, prints its dial-me address, and optionally
// dials a peer given on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/internal/identity"
	swarmlog "github.com/dep2p/go-swarm/internal/log"
	"github.com/dep2p/go-swarm/resolver"
	"github.com/dep2p/go-swarm/swarm"
	"github.com/dep2p/go-swarm/transport"
	"github.com/dep2p/go-swarm/transport/tcp"
)

func main() {
	listenAddr := flag.String("listen", "/ip4/0.0.0.0/tcp/0", "multiaddr to listen on")
	dial := flag.String("dial", "", "optional multiaddr (with /p2p/<id>) to dial on startup")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		swarmlog.SetLevel(slog.LevelDebug)
	}

	if err := run(*listenAddr, *dial); err != nil {
		fmt.Fprintln(os.Stderr, "swarmnode:", err)
		os.Exit(1)
	}
}

func run(listenAddr, dial string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	localID, err := identity.NewLocalPeerID()
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	fmt.Printf("local peer id: %s\n", localID)

	registry := transport.NewRegistry()
	registry.Register(tcp.Name, tcp.New())

	s, err := swarm.NewSwarm(localID, registry, swarm.WithResolver(resolver.NewDNSResolver("8.8.8.8:53")))
	if err != nil {
		return fmt.Errorf("construct swarm: %w", err)
	}
	if err := s.Start(); err != nil {
		return fmt.Errorf("start swarm: %w", err)
	}
	defer s.Stop()

	a, err := addr.Parse(listenAddr)
	if err != nil {
		return fmt.Errorf("parse listen address %q: %w", listenAddr, err)
	}
	advertised, err := s.StartListening(ctx, a)
	if err != nil {
		return fmt.Errorf("start listening on %q: %w", listenAddr, err)
	}
	fmt.Printf("listening, dial me at: %s\n", advertised)

	if dial != "" {
		target, err := addr.Parse(dial)
		if err != nil {
			return fmt.Errorf("parse dial address %q: %w", dial, err)
		}
		peer, err := s.Connect(ctx, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect to %s failed: %v\n", target, err)
		} else {
			fmt.Printf("connected to %s\n", peer.ID)
		}
	}

	fmt.Println("press Ctrl+C to exit")
	<-ctx.Done()
	return nil
}
