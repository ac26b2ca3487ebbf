package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/ice/v4"
	"github.com/rescp17/peerdrop/api"
	appevents "github.com/rescp17/peerdrop/internal/app_events"
	receiverEvent "github.com/rescp17/peerdrop/internal/app_events/receiver"
	senderEvent "github.com/rescp17/peerdrop/internal/app_events/sender"
	"github.com/rescp17/peerdrop/internal/util"
	"github.com/rescp17/peerdrop/pkg/discovery"
	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/peer"
	"github.com/rescp17/peerdrop/pkg/transfer"
	"github.com/rescp17/peerdrop/pkg/ui"
	webrtcPkg "github.com/rescp17/peerdrop/pkg/webrtc"
	"github.com/spf13/cobra"
)

const discoveryTimeout = 5 * time.Second

// peerOptions are the flags shared by send and receive.
type peerOptions struct {
	relay string
	room  string
	stun  []string
	turn  []string
	mdns  bool
	plain bool
}

func (o *peerOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.relay, "relay", "", "Relay address (default: discover on the local network)")
	cmd.Flags().StringVar(&o.room, "room", api.DefaultRoom, "Relay room shared with the other peer")
	cmd.Flags().StringSliceVar(&o.stun, "stun", nil, "STUN server urls (default: Google public STUN)")
	cmd.Flags().StringArrayVar(&o.turn, "turn", nil, "TURN server as url,username,credential (repeatable)")
	cmd.Flags().BoolVar(&o.mdns, "mdns", true, "Hide local addresses behind mDNS names in ICE candidates")
	cmd.Flags().BoolVar(&o.plain, "plain", false, "Print status lines instead of the interactive UI")
}

func newSendCmd() *cobra.Command {
	opts := &peerOptions{}
	cfg := peer.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Send a file to the peer waiting in the room",
		Long:  "Send a file to the peer waiting in the room. Without a file argument the interactive UI opens a file picker.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else if opts.plain {
				return errors.New("--plain requires a file argument")
			}
			if err := checkChunkSize(cfg.Transfer); err != nil {
				return err
			}
			return runPeer(cmd, ui.Sender, opts, cfg, path)
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&cfg.Transfer.ChunkSize, "chunk-size", cfg.Transfer.ChunkSize, "Payload bytes per chunk")
	cmd.Flags().DurationVar(&cfg.Transfer.PaceInterval, "pace", cfg.Transfer.PaceInterval, "Delay between chunks")
	cmd.Flags().BoolVar(&cfg.Transfer.SendChecksum, "checksum", false, "Send a SHA-256 checksum before EOF (receiver must be peerdrop)")
	return cmd
}

// checkChunkSize turns an out-of-range --chunk-size into a message that names
// the accepted range.
func checkChunkSize(cfg *transfer.Config) error {
	if cfg.IsValidChunkSize(cfg.ChunkSize) {
		return nil
	}
	return fmt.Errorf("--chunk-size %d is out of range, use %s to %s",
		cfg.ChunkSize, util.FormatSize(int64(cfg.MinChunkSize)), util.FormatSize(int64(cfg.MaxChunkSize)))
}

func newReceiveCmd() *cobra.Command {
	opts := &peerOptions{}
	cfg := peer.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Wait in the room and save incoming files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(cmd, ui.Receiver, opts, cfg, "")
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&cfg.OutputDir, "out", "o", cfg.OutputDir, "Directory to save received files in")
	cmd.Flags().Int64Var(&cfg.Transfer.MaxFileSize, "max-size", cfg.Transfer.MaxFileSize, "Largest file accepted, in bytes")
	return cmd
}

func runPeer(cmd *cobra.Command, mode ui.Mode, opts *peerOptions, cfg peer.Config, path string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	servers, err := webrtcPkg.ICEServers(opts.stun, opts.turn)
	if err != nil {
		return err
	}
	cfg.WebRTC.ICEServers = servers
	cfg.Room = opts.room

	cfg.RelayURL, err = resolveRelay(ctx, opts.relay)
	if err != nil {
		return err
	}

	relay, err := api.Dial(ctx, cfg.RelayURL, cfg.Room)
	if err != nil {
		return err
	}

	var apiOpts []webrtcPkg.APIOption
	if !opts.mdns {
		apiOpts = append(apiOpts, webrtcPkg.WithMulticastDNSMode(ice.MulticastDNSModeDisabled))
	}
	webrtcAPI := webrtcPkg.NewWebRTCAPI(apiOpts...)
	app, err := peer.NewApp(cfg, relay, func(h webrtcPkg.Handlers) (negotiation.Transport, error) {
		p, err := webrtcAPI.NewPeer(cfg.WebRTC, h)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		relay.Close()
		return err
	}

	slog.Info("Peer starting", "mode", mode, "relay", cfg.RelayURL, "room", cfg.Room)
	if opts.plain {
		return runPlain(ctx, cmd.OutOrStdout(), mode, app, path)
	}

	p := tea.NewProgram(ui.InitialModel(mode, app, path), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("UI failed: %w", err)
	}
	return nil
}

func resolveRelay(ctx context.Context, relay string) (string, error) {
	if relay != "" {
		return relay, nil
	}
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	service, err := discovery.FindRelay(ctx, &discovery.MDNSAdapter{})
	if err != nil {
		return "", fmt.Errorf("no --relay given and discovery failed: %w", err)
	}
	slog.Info("Discovered relay", "name", service.Name, "url", service.URL())
	return service.URL(), nil
}

// runPlain prints status changes and returns once the sender delivered its
// file or the receiver saved one.
func runPlain(ctx context.Context, out io.Writer, mode ui.Mode, app *peer.App, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- app.Run(ctx) }()

	if mode == ui.Sender {
		fmt.Fprintln(out, "Offering to the room, the offer is repeated when a receiver joins...")
		app.Initiate()
		app.SendFile(path)
	} else {
		fmt.Fprintln(out, "Waiting for a sender...")
	}

	finish := func() error {
		cancel()
		return <-runErr
	}

	lastStatus := ""
	for {
		select {
		case err := <-runErr:
			return err
		case msg := <-app.UIMessages():
			switch m := msg.(type) {
			case appevents.SnapshotMsg:
				if m.Snapshot.Status != lastStatus {
					lastStatus = m.Snapshot.Status
					fmt.Fprintln(out, lastStatus)
				}
			case appevents.AppErrorMsg:
				fmt.Fprintf(out, "Error: %v\n", m.Err)
			case senderEvent.FileSentMsg:
				fmt.Fprintf(out, "Sent %s (%s)\n", m.Name, util.FormatSize(m.Size))
				return finish()
			case receiverEvent.FileSavedMsg:
				fmt.Fprintf(out, "Saved %s (%s)\n", m.Path, util.FormatSize(m.Size))
				if m.Checksum != "" {
					fmt.Fprintf(out, "sha256 %s verified\n", m.Checksum)
				}
				return finish()
			}
		}
	}
}
