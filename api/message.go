package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType names a signaling message kind.
type MessageType string

const (
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
	// TypeJoin is sent by the hub to the members already in a room when a new
	// peer arrives. From carries the newcomer's id and there is no payload.
	TypeJoin MessageType = "join"
)

// Valid reports whether t is one of the message kinds a client may receive.
func (t MessageType) Valid() bool {
	return t.Relayable() || t == TypeJoin
}

// Relayable reports whether peers may send t through the hub.
func (t MessageType) Relayable() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

var ErrUnknownMessageType = errors.New("unknown signaling message type")

// Envelope is the JSON frame exchanged through the relay. The payload is
// opaque to the relay.
type Envelope struct {
	Type    MessageType     `json:"type"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope of type t.
func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	if !t.Relayable() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, t)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// joinNotice is the envelope the hub sends about a newcomer.
func joinNotice(id string) Envelope {
	return Envelope{Type: TypeJoin, From: id}
}

// Description decodes an offer or answer payload.
func (e Envelope) Description() (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if e.Type != TypeOffer && e.Type != TypeAnswer {
		return desc, fmt.Errorf("envelope of type %q carries no description", e.Type)
	}
	if err := json.Unmarshal(e.Payload, &desc); err != nil {
		return desc, fmt.Errorf("failed to unmarshal %s: %w", e.Type, err)
	}
	return desc, nil
}

// Candidate decodes a candidate payload.
func (e Envelope) Candidate() (webrtc.ICECandidateInit, error) {
	var candidate webrtc.ICECandidateInit
	if e.Type != TypeCandidate {
		return candidate, fmt.Errorf("envelope of type %q carries no candidate", e.Type)
	}
	if err := json.Unmarshal(e.Payload, &candidate); err != nil {
		return candidate, fmt.Errorf("failed to unmarshal candidate: %w", err)
	}
	return candidate, nil
}
