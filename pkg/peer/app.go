// Package peer runs one end of a peerdrop connection: it owns the negotiation
// session, the transfer in flight and the derived UI state, and serialises
// every callback from the relay and the transport through a single loop.
package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/api"
	appevents "github.com/rescp17/peerdrop/internal/app_events"
	"github.com/rescp17/peerdrop/internal/app_events/receiver"
	"github.com/rescp17/peerdrop/internal/app_events/sender"
	"github.com/rescp17/peerdrop/internal/util"
	"github.com/rescp17/peerdrop/pkg/concurrency"
	"github.com/rescp17/peerdrop/pkg/fileInfo"
	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/progress"
	"github.com/rescp17/peerdrop/pkg/transfer"
	webrtcPkg "github.com/rescp17/peerdrop/pkg/webrtc"
	"golang.org/x/sync/errgroup"
)

const (
	eventBufferSize = 256
	uiBufferSize    = 64
	drainInterval   = 20 * time.Millisecond
)

var (
	ErrRelayLost = errors.New("signaling relay connection lost before the channel opened")
	// ErrSavedCopyMismatch: the file written to disk does not hash to the
	// checksum the sender announced.
	ErrSavedCopyMismatch = errors.New("saved file does not match the announced checksum")
)

// Relay is what the App needs from the signaling relay client.
type Relay interface {
	negotiation.Signaler
	Incoming() <-chan api.Envelope
	Close() error
}

// TransportFactory creates a fresh transport wired to the given handlers.
type TransportFactory func(webrtcPkg.Handlers) (negotiation.Transport, error)

// App is the logic controller of one peer.
type App struct {
	cfg          Config
	relay        Relay
	newTransport TransportFactory

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
	events     chan any                // transport and relay -> loop

	// Everything below is owned by the loop goroutine.
	ctx      context.Context
	guard    *concurrency.ConcurrencyGuard
	tracker  *progress.Tracker
	receiver *transfer.Receiver
	session  *negotiation.Session
	gen      int
	offering bool
	sender   *transfer.Sender
	queued   *fileInfo.FileNode
	draining bool
}

// NewApp creates an App. The relay must already be connected.
func NewApp(cfg Config, relay Relay, newTransport TransportFactory) (*App, error) {
	if cfg.Transfer == nil {
		cfg.Transfer = transfer.DefaultConfig()
	}
	if cfg.ChannelLabel == "" {
		cfg.ChannelLabel = negotiation.DefaultChannelLabel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		cfg:          cfg,
		relay:        relay,
		newTransport: newTransport,
		uiMessages:   make(chan tea.Msg, uiBufferSize),
		appEvents:    make(chan appevents.AppEvent, 8),
		events:       make(chan any, eventBufferSize),
		guard:        concurrency.NewConcurrencyGuard(),
		tracker:      progress.NewTracker(),
	}
	a.receiver = transfer.NewReceiver(cfg.Transfer)
	a.receiver.OnEvent(a.onTransferEvent)
	return a, nil
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Initiate asks the loop to start negotiating as the offerer.
func (a *App) Initiate() {
	a.appEvents <- appevents.InitiateEvent{}
}

// SendFile asks the loop to send path once the channel is open.
func (a *App) SendFile(path string) {
	a.appEvents <- sender.SendFileEvent{Path: path}
}

// Run starts the application's main event loop and blocks until ctx is
// cancelled or the relay is lost before a channel opened.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	a.ctx = ctx

	g.Go(func() error {
		for env := range a.relay.Incoming() {
			a.post(relayMessage{env: env})
		}
		a.post(relayClosed{})
		return nil
	})

	g.Go(func() error {
		defer a.shutdown()
		a.publish(a.tracker.Snapshot())
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				a.handleAppEvent(event)
			case ev := <-a.events:
				if err := a.handle(ev); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

func (a *App) shutdown() {
	if a.session != nil {
		a.session.Close()
	}
	if err := a.relay.Close(); err != nil {
		slog.Warn("Failed to close relay", "error", err)
	}
}

// post hands ev to the loop from any goroutine.
func (a *App) post(ev any) {
	select {
	case a.events <- ev:
	case <-a.ctx.Done():
	}
}

func (a *App) publish(msg any) {
	var out tea.Msg
	switch m := msg.(type) {
	case progress.Snapshot:
		out = appevents.SnapshotMsg{Snapshot: m}
	default:
		out = m
	}
	select {
	case a.uiMessages <- out:
	case <-a.ctx.Done():
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	err = fmt.Errorf("%s: %w", baseMessage, err)
	slog.Error(baseMessage, "error", err)
	a.publish(appevents.AppErrorMsg{Err: err})
}

func (a *App) handleAppEvent(event appevents.AppEvent) {
	switch e := event.(type) {
	case appevents.InitiateEvent:
		a.initiate()
	case sender.SendFileEvent:
		a.queueFile(e.Path)
	case appevents.CloseEvent:
		a.abortTransfers()
		if a.session != nil {
			a.session.Close()
		}
	default:
		slog.Warn("Unhandled app event", "type", fmt.Sprintf("%T", event))
	}
}

func (a *App) handle(ev any) error {
	switch e := ev.(type) {
	case relayMessage:
		a.onRelayMessage(e.env)
	case relayClosed:
		if a.session == nil || !a.session.Connected() {
			a.sendAndLogError("Relay unavailable", ErrRelayLost)
			return ErrRelayLost
		}
		slog.Warn("Relay connection lost, keeping the open channel")
	case localCandidate:
		if s := a.current(e.gen); s != nil {
			_ = s.OnLocalHint(e.candidate)
		}
	case channelOpened:
		if s := a.current(e.gen); s != nil {
			if err := s.OnChannelOpen(e.ch); err == nil {
				a.startQueued()
			}
		}
	case channelMessage:
		if a.current(e.gen) != nil {
			a.onChannelMessage(e.msg)
		}
	case channelClosed:
		if s := a.current(e.gen); s != nil {
			a.abortTransfers()
			s.OnChannelClose()
		}
	case sendTick:
		if e.gen == a.gen {
			a.step()
		}
	}
	return nil
}

func (a *App) current(gen int) *negotiation.Session {
	if gen != a.gen || a.session == nil {
		return nil
	}
	return a.session
}

// ensureSession returns a live session, replacing a closed one with a fresh
// transport.
func (a *App) ensureSession() (*negotiation.Session, error) {
	if a.session != nil && !a.session.State().IsTerminal() {
		return a.session, nil
	}
	a.gen++
	gen := a.gen
	transport, err := a.newTransport(webrtcPkg.Handlers{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) { a.post(localCandidate{gen: gen, candidate: c}) },
		OnChannelOpen:    func(ch transfer.Channel) { a.post(channelOpened{gen: gen, ch: ch}) },
		OnMessage:        func(m transfer.Message) { a.post(channelMessage{gen: gen, msg: m}) },
		OnChannelClose:   func() { a.post(channelClosed{gen: gen}) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	a.session = negotiation.NewSession(transport, a.relay,
		negotiation.WithObserver(a.onNotice),
		negotiation.WithChannelLabel(a.cfg.ChannelLabel),
	)
	slog.Info("New session", "session", a.session.ID())
	return a.session, nil
}

func (a *App) initiate() {
	a.offering = true
	s, err := a.ensureSession()
	if err != nil {
		a.sendAndLogError("Failed to initiate", err)
		return
	}
	if err := s.Initiate(); err != nil && !errors.Is(err, negotiation.ErrOutOfOrder) {
		a.sendAndLogError("Failed to initiate", err)
	}
}

// reoffer abandons a negotiation that never produced a channel and offers
// again on a fresh session. A queued file stays queued.
func (a *App) reoffer(reason string) {
	if s := a.session; s != nil {
		if s.Connected() {
			return
		}
		slog.Info("Restarting negotiation", "reason", reason, "session", s.ID(), "state", s.State())
		s.Close()
	}
	a.initiate()
}

// dropStalledAnswer closes a session that answered an earlier offer but never
// opened a channel, so the next offer from a restarted peer is accepted.
func (a *App) dropStalledAnswer() {
	s := a.session
	if a.offering || s == nil || s.Connected() || s.State().IsTerminal() || !s.RemoteDescriptionSet() {
		return
	}
	slog.Info("Peer restarted negotiation", "session", s.ID(), "state", s.State())
	s.Close()
}

func (a *App) onRelayMessage(env api.Envelope) {
	switch env.Type {
	case api.TypeJoin:
		slog.Info("Peer joined the room", "peer", env.From)
		if a.offering {
			a.reoffer("peer joined")
		}
	case api.TypeOffer, api.TypeAnswer:
		desc, err := env.Description()
		if err != nil {
			slog.Warn("Ignoring undecodable description", "from", env.From, "error", err)
			return
		}
		if env.Type == api.TypeOffer {
			a.dropStalledAnswer()
		}
		s, err := a.ensureSession()
		if err != nil {
			a.sendAndLogError("Failed to handle remote description", err)
			return
		}
		if env.Type == api.TypeOffer {
			err = s.OnRemoteOffer(desc)
		} else {
			err = s.OnRemoteAnswer(desc)
		}
		if err != nil && !errors.Is(err, negotiation.ErrOutOfOrder) && !errors.Is(err, negotiation.ErrUnexpectedDescription) {
			a.sendAndLogError("Negotiation failed", err)
		}
	case api.TypeCandidate:
		candidate, err := env.Candidate()
		if err != nil {
			slog.Warn("Ignoring undecodable candidate", "from", env.From, "error", err)
			return
		}
		s, err := a.ensureSession()
		if err != nil {
			a.sendAndLogError("Failed to handle remote candidate", err)
			return
		}
		if err := s.OnRemoteHint(candidate); err != nil {
			slog.Warn("Failed to apply remote candidate", "error", err)
		}
	}
}

func (a *App) onChannelMessage(msg transfer.Message) {
	artifact, err := a.receiver.Handle(msg)
	if err != nil {
		slog.Warn("Dropped channel message", "error", err)
		return
	}
	if artifact == nil {
		return
	}
	path, err := util.SaveFile(a.cfg.OutputDir, artifact.Name, artifact.Data)
	if err != nil {
		a.sendAndLogError("Failed to save received file", err)
		return
	}
	saved := receiver.FileSavedMsg{Name: artifact.Name, Path: path, Size: int64(len(artifact.Data))}
	if artifact.Verified {
		if err := verifySaved(path, artifact.Checksum); err != nil {
			a.sendAndLogError("Failed to verify received file", err)
			return
		}
		saved.Checksum = artifact.Checksum
	}
	slog.Info("Saved received file", "path", path, "size", saved.Size, "verified", artifact.Verified)
	a.publish(saved)
}

// verifySaved re-reads the file written at path and compares it to sum.
func verifySaved(path, sum string) error {
	node, err := fileInfo.CreateNode(path)
	if err != nil {
		return err
	}
	ok, err := node.VerifySHA256(sum)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSavedCopyMismatch, path)
	}
	return nil
}

func (a *App) queueFile(path string) {
	if err := a.guard.TryAcquire(); err != nil {
		a.sendAndLogError("Cannot send "+path, err)
		return
	}
	node, err := fileInfo.CreateNode(path)
	if err != nil {
		a.guard.Release()
		a.sendAndLogError("Cannot send "+path, err)
		return
	}
	a.queued = &node
	slog.Info("File queued for sending", "name", node.Name, "size", node.Size, "mime", node.MimeType)
	a.startQueued()
}

// startQueued begins the queued transfer if a channel is open.
func (a *App) startQueued() {
	if a.queued == nil || a.session == nil {
		return
	}
	ch, ok := a.session.Channel()
	if !ok {
		return
	}
	node := a.queued
	a.queued = nil

	data, err := node.ReadAll()
	if err != nil {
		a.guard.Release()
		a.sendAndLogError("Failed to read "+node.Name, err)
		return
	}
	var opts []transfer.SenderOption
	if a.cfg.Transfer.SendChecksum {
		node.Checksum = fileInfo.SumBytes(data)
		opts = append(opts, transfer.WithChecksum(node.Checksum))
	}
	s, err := transfer.NewSender(ch, node.Name, data, a.cfg.Transfer, opts...)
	if err != nil {
		a.guard.Release()
		a.sendAndLogError("Failed to prepare transfer", err)
		return
	}
	s.OnEvent(a.onTransferEvent)
	if err := s.Start(); err != nil {
		a.guard.Release()
		a.sendAndLogError("Failed to start transfer", err)
		return
	}
	a.sender = s
	a.schedule(a.cfg.Transfer.PaceInterval)
}

// schedule re-arms the pace timer. Each tick sends at most one chunk, so
// channel close notifications get a turn between chunks.
func (a *App) schedule(d time.Duration) {
	gen := a.gen
	time.AfterFunc(d, func() { a.post(sendTick{gen: gen}) })
}

func (a *App) step() {
	s := a.sender
	if s == nil {
		return
	}
	if a.draining {
		a.finishWhenFlushed()
		return
	}
	done, err := s.Step()
	if err != nil {
		a.sender = nil
		a.guard.Release()
		a.onTransferEvent(transfer.Discarded{Direction: transfer.DirectionOutgoing, Reason: err})
		a.sendAndLogError("Transfer failed", err)
		return
	}
	if done {
		a.draining = true
		a.finishWhenFlushed()
		return
	}
	a.schedule(a.cfg.Transfer.PaceInterval)
}

// finishWhenFlushed reports the send once the channel buffer is empty, so a
// caller that exits on FileSentMsg does not cut off queued data.
func (a *App) finishWhenFlushed() {
	if ch, ok := a.session.Channel(); ok {
		if bc, ok := ch.(transfer.BufferedChannel); ok && bc.BufferedAmount() > 0 {
			a.schedule(drainInterval)
			return
		}
	}
	s := a.sender
	a.sender = nil
	a.draining = false
	a.guard.Release()
	a.publish(sender.FileSentMsg{Name: s.Name(), Size: s.TotalSize()})
}

func (a *App) abortTransfers() {
	if a.sender != nil {
		if !a.sender.Done() {
			a.onTransferEvent(transfer.Discarded{Direction: transfer.DirectionOutgoing, Reason: transfer.ErrChannelClosed})
		}
		a.sender = nil
		a.draining = false
		a.guard.Release()
	}
	if a.queued != nil {
		a.queued = nil
		a.guard.Release()
	}
	a.receiver.Discard(transfer.ErrChannelClosed)
}

func (a *App) onNotice(n negotiation.Notice) {
	a.publish(a.tracker.Apply(n))
}

func (a *App) onTransferEvent(ev transfer.Event) {
	a.publish(a.tracker.Apply(ev))
}
