package negotiation

import (
	"errors"
	"fmt"
)

// Role is the part a peer plays in one handshake. It is assigned once, on the
// first handshake action of a Session.
type Role int

const (
	RoleUnassigned Role = iota
	RoleOfferer
	RoleAnswerer
)

// String returns a human-readable string representation of the role
func (r Role) String() string {
	switch r {
	case RoleUnassigned:
		return "unassigned"
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "unknown"
	}
}

// SignalingState mirrors the negotiation state of the underlying transport.
type SignalingState int

const (
	StateIdle SignalingState = iota
	StateOfferSent
	StateOfferReceived
	StateAnswerSent
	StateAnswerReceived
	StateStable
	// StateClosed is terminal. A closed Session is never reused.
	StateClosed
)

func (s SignalingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateAnswerReceived:
		return "answer-received"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s SignalingState) IsTerminal() bool {
	return s == StateClosed
}

// Event is an input to the signaling state machine.
type Event int

const (
	// EventLocalOffer: a local offer was created and forwarded.
	EventLocalOffer Event = iota
	// EventRemoteOffer: a remote offer was applied.
	EventRemoteOffer
	// EventLocalAnswer: a local answer was created and forwarded.
	EventLocalAnswer
	// EventRemoteAnswer: a remote answer was applied.
	EventRemoteAnswer
	// EventDescriptionsApplied: both descriptions are in place.
	EventDescriptionsApplied
	// EventClose: the channel closed or negotiation was abandoned.
	EventClose
)

func (e Event) String() string {
	switch e {
	case EventLocalOffer:
		return "local-offer"
	case EventRemoteOffer:
		return "remote-offer"
	case EventLocalAnswer:
		return "local-answer"
	case EventRemoteAnswer:
		return "remote-answer"
	case EventDescriptionsApplied:
		return "descriptions-applied"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned by Transition for a (state, event) pair the
// state machine does not accept.
var ErrInvalidTransition = errors.New("invalid signaling transition")

// Transition returns the state reached by applying ev in state s. All paths are
// one-directional; there is no renegotiation.
//
//	offerer:  idle -> offer-sent -> answer-received -> stable
//	answerer: idle -> offer-received -> answer-sent -> stable
func Transition(s SignalingState, ev Event) (SignalingState, error) {
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
	}
	if ev == EventClose {
		return StateClosed, nil
	}

	switch {
	case s == StateIdle && ev == EventLocalOffer:
		return StateOfferSent, nil
	case s == StateIdle && ev == EventRemoteOffer:
		return StateOfferReceived, nil
	case s == StateOfferReceived && ev == EventLocalAnswer:
		return StateAnswerSent, nil
	case s == StateOfferSent && ev == EventRemoteAnswer:
		return StateAnswerReceived, nil
	case (s == StateAnswerSent || s == StateAnswerReceived) && ev == EventDescriptionsApplied:
		return StateStable, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}
