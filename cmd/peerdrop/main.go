package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logFile string
	verbose bool
}

func main() {
	opts := &rootOptions{}
	var logCloser io.Closer

	cmd := &cobra.Command{
		Use:   "peerdrop",
		Short: "Send a file directly to another peer over WebRTC",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := setupLogging(opts)
			if err != nil {
				return err
			}
			logCloser = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				if err := logCloser.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "debug.log", "File to write logs to")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug messages")

	cmd.AddCommand(newRelayCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newReceiveCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// setupLogging routes slog to the log file; the terminal belongs to the UI.
func setupLogging(opts *rootOptions) (io.Closer, error) {
	f, err := os.OpenFile(opts.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return f, nil
}
