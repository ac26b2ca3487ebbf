package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rescp17/peerdrop/api"
	"github.com/rescp17/peerdrop/pkg/discovery"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRelayCmd() *cobra.Command {
	var (
		addr     string
		announce bool
		name     string
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the signaling relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, portStr, err := net.SplitHostPort(addr)
			if err != nil {
				return fmt.Errorf("invalid listen address %q: %w", addr, err)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("invalid port in %q: %w", addr, err)
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("Relay listening", "addr", addr)
				return api.Serve(ctx, addr, api.NewHub())
			})
			if announce {
				g.Go(func() error {
					mdns := &discovery.MDNSAdapter{}
					if err := mdns.Announce(ctx, discovery.RelayService(name, port)); err != nil {
						// The relay keeps serving without mDNS.
						slog.Warn("mDNS announcement failed", "error", err)
					}
					return nil
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s (ctrl+c to stop)\n", addr)
			return g.Wait()
		},
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "peerdrop"
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().BoolVar(&announce, "announce", true, "Announce the relay on the local network via mDNS")
	cmd.Flags().StringVar(&name, "name", hostname, "mDNS instance name")
	return cmd
}
