package negotiation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/pkg/transfer"
)

// DefaultChannelLabel is the label of the data channel opened by the offerer.
const DefaultChannelLabel = "fileTransfer"

var (
	// ErrOutOfOrder is returned when a handshake message arrives in a state
	// where it cannot be valid. The Session is left untouched.
	ErrOutOfOrder = errors.New("handshake message out of order")
	// ErrUnexpectedDescription is returned when a description has the wrong SDP type.
	ErrUnexpectedDescription = errors.New("unexpected session description type")
	// ErrSessionClosed is returned for any event delivered to a closed Session.
	ErrSessionClosed = errors.New("session closed")
)

// Transport is the negotiation surface of the channel transport.
// CreateOffer and CreateAnswer also install the result as the local description.
type Transport interface {
	CreateChannel(label string) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	Close() error
}

// Signaler decouples the negotiation from the signaling relay.
// Delivery is best-effort and unordered.
type Signaler interface {
	SendOffer(offer webrtc.SessionDescription) error
	SendAnswer(answer webrtc.SessionDescription) error
	SendICECandidate(candidate webrtc.ICECandidateInit) error
}

// Session is one peer's view of one connection attempt. It is not safe for
// concurrent use: the owner must deliver events one at a time.
type Session struct {
	id        string
	label     string
	role      Role
	state     SignalingState
	transport Transport
	signaler  Signaler
	observer  func(Notice)

	remoteApplied bool
	pending       hintQueue
	applied       map[string]struct{}

	channel   transfer.Channel
	connected bool
}

// Option configures a Session.
type Option func(*Session)

// WithObserver registers a callback that receives every Notice the Session emits.
func WithObserver(f func(Notice)) Option {
	return func(s *Session) {
		s.observer = f
	}
}

// WithChannelLabel overrides DefaultChannelLabel.
func WithChannelLabel(label string) Option {
	return func(s *Session) {
		s.label = label
	}
}

// NewSession creates an idle Session over the given transport and signaler.
func NewSession(t Transport, sig Signaler, opts ...Option) *Session {
	s := &Session{
		id:        uuid.New().String(),
		label:     DefaultChannelLabel,
		state:     StateIdle,
		transport: t,
		signaler:  sig,
		applied:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }
func (s *Session) Role() Role { return s.role }
func (s *Session) State() SignalingState { return s.state }
func (s *Session) Connected() bool { return s.connected }
func (s *Session) PendingHints() int { return s.pending.len() }
func (s *Session) RemoteDescriptionSet() bool { return s.remoteApplied }

// Channel returns the open channel, if negotiation has produced one.
func (s *Session) Channel() (transfer.Channel, bool) {
	return s.channel, s.channel != nil
}

// Initiate starts a negotiation as the offerer. It is only valid while idle;
// a second call is a logged no-op so no duplicate offer is ever sent.
func (s *Session) Initiate() error {
	if s.state != StateIdle {
		slog.Warn("Cannot initiate, negotiation already in progress", "session", s.id, "state", s.state.String())
		return fmt.Errorf("%w: initiate in state %s", ErrOutOfOrder, s.state)
	}

	s.assignRole(RoleOfferer)
	if err := s.transport.CreateChannel(s.label); err != nil {
		return s.fail("create data channel", err)
	}
	if err := s.advance(EventLocalOffer); err != nil {
		return err
	}
	offer, err := s.transport.CreateOffer()
	if err != nil {
		return s.fail("create offer", err)
	}
	if err := s.signaler.SendOffer(offer); err != nil {
		return s.fail("send offer", err)
	}
	slog.Info("Offer sent", "session", s.id)
	return nil
}

// OnRemoteOffer answers a remote offer. Offers that arrive outside the idle
// state are stale or duplicated and are ignored.
func (s *Session) OnRemoteOffer(offer webrtc.SessionDescription) error {
	if s.state != StateIdle {
		slog.Warn("Ignoring offer", "session", s.id, "state", s.state.String())
		return fmt.Errorf("%w: offer in state %s", ErrOutOfOrder, s.state)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		slog.Warn("Ignoring offer with wrong type", "session", s.id, "type", offer.Type.String())
		return fmt.Errorf("%w: got %s, want offer", ErrUnexpectedDescription, offer.Type)
	}

	s.assignRole(RoleAnswerer)
	if err := s.transport.SetRemoteDescription(offer); err != nil {
		return s.fail("set remote offer", err)
	}
	s.remoteApplied = true
	if err := s.advance(EventRemoteOffer); err != nil {
		return err
	}

	answer, err := s.transport.CreateAnswer()
	if err != nil {
		return s.fail("create answer", err)
	}
	if err := s.advance(EventLocalAnswer); err != nil {
		return err
	}
	if err := s.signaler.SendAnswer(answer); err != nil {
		return s.fail("send answer", err)
	}
	if err := s.advance(EventDescriptionsApplied); err != nil {
		return err
	}
	slog.Info("Answer sent", "session", s.id)

	s.drainHints()
	return nil
}

// OnRemoteAnswer completes a negotiation this side initiated.
func (s *Session) OnRemoteAnswer(answer webrtc.SessionDescription) error {
	if s.state != StateOfferSent {
		slog.Warn("Ignoring answer because no offer is outstanding", "session", s.id, "state", s.state.String())
		return fmt.Errorf("%w: answer in state %s", ErrOutOfOrder, s.state)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		slog.Warn("Ignoring answer with wrong type", "session", s.id, "type", answer.Type.String())
		return fmt.Errorf("%w: got %s, want answer", ErrUnexpectedDescription, answer.Type)
	}

	if err := s.transport.SetRemoteDescription(answer); err != nil {
		return s.fail("set remote answer", err)
	}
	s.remoteApplied = true
	if err := s.advance(EventRemoteAnswer); err != nil {
		return err
	}
	if err := s.advance(EventDescriptionsApplied); err != nil {
		return err
	}
	slog.Info("Remote answer applied", "session", s.id)

	s.drainHints()
	return nil
}

// OnRemoteHint applies a remote ICE candidate, or queues it until the remote
// description is in place. A candidate already applied is skipped.
func (s *Session) OnRemoteHint(hint webrtc.ICECandidateInit) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if !s.remoteApplied {
		s.pending.push(hint)
		slog.Debug("Storing ICE candidate for later", "session", s.id, "pending", s.pending.len())
		return nil
	}
	return s.applyHint(hint)
}

// OnLocalHint forwards a locally gathered candidate to the remote peer.
func (s *Session) OnLocalHint(hint webrtc.ICECandidateInit) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if err := s.signaler.SendICECandidate(hint); err != nil {
		// The relay is best-effort; a lost candidate is not fatal.
		slog.Warn("Failed to forward local ICE candidate", "session", s.id, "error", err)
		return err
	}
	return nil
}

// OnChannelOpen records the open channel. The Session owns it until a
// transfer borrows it.
func (s *Session) OnChannelOpen(ch transfer.Channel) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.state != StateStable {
		slog.Warn("Channel opened before negotiation settled", "session", s.id, "state", s.state.String())
	}
	s.channel = ch
	s.connected = true
	slog.Info("Data channel opened", "session", s.id, "role", s.role.String())
	s.notify(ChannelOpened{})
	return nil
}

// OnChannelClose tears the Session down.
func (s *Session) OnChannelClose() {
	if s.state == StateClosed {
		return
	}
	slog.Info("Data channel closed", "session", s.id)
	s.close()
}

// Close abandons the negotiation and releases everything the Session owns.
func (s *Session) Close() {
	if s.state == StateClosed {
		return
	}
	slog.Info("Abandoning session", "session", s.id, "state", s.state.String())
	s.close()
}

func (s *Session) close() {
	wasConnected := s.connected
	s.connected = false
	s.channel = nil
	s.pending.reset()
	s.applied = make(map[string]struct{})
	if err := s.transport.Close(); err != nil {
		slog.Warn("Failed to close transport", "session", s.id, "error", err)
	}
	_ = s.advance(EventClose)
	s.notify(ChannelClosed{WasConnected: wasConnected})
}

func (s *Session) drainHints() {
	n := s.pending.len()
	for {
		hint, ok := s.pending.pop()
		if !ok {
			break
		}
		if err := s.applyHint(hint); err != nil {
			slog.Warn("Failed to apply queued ICE candidate", "session", s.id, "error", err)
		}
	}
	s.pending.reset()
	if n > 0 {
		slog.Info("Applied queued ICE candidates", "session", s.id, "count", n)
	}
}

func (s *Session) applyHint(hint webrtc.ICECandidateInit) error {
	if _, dup := s.applied[hint.Candidate]; dup {
		slog.Debug("Skipping duplicate ICE candidate", "session", s.id)
		return nil
	}
	if err := s.transport.AddICECandidate(hint); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	s.applied[hint.Candidate] = struct{}{}
	return nil
}

func (s *Session) assignRole(r Role) {
	if s.role != RoleUnassigned {
		return
	}
	s.role = r
	s.notify(RoleAssigned{Role: r})
}

func (s *Session) advance(ev Event) error {
	next, err := Transition(s.state, ev)
	if err != nil {
		slog.Error("Rejected signaling transition", "session", s.id, "error", err)
		return err
	}
	prev := s.state
	s.state = next
	s.notify(StateChanged{From: prev, To: next})
	return nil
}

// fail treats err as a transport failure: terminal for the Session.
func (s *Session) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	slog.Error("Negotiation failed", "session", s.id, "error", err)
	s.close()
	return err
}

func (s *Session) notify(n Notice) {
	if s.observer != nil {
		s.observer(n)
	}
}
