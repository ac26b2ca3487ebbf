package webrtc

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/transfer"
)

const (
	MTU uint = 1400
)

// DefaultICEServers is used when no servers are configured explicitly.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// Config holds the configuration for creating a new Peer.
type Config struct {
	ICEServers []webrtc.ICEServer
}

// DefaultConfig returns a Config using the public STUN server.
func DefaultConfig() Config {
	return Config{ICEServers: append([]webrtc.ICEServer(nil), DefaultICEServers...)}
}

// WebRTCAPI owns the pion API shared by every Peer of the process.
type WebRTCAPI struct {
	api *webrtc.API
}

// APIOption tweaks the pion setting engine.
type APIOption func(*webrtc.SettingEngine)

// WithMulticastDNSMode sets how host candidates are obfuscated and resolved.
func WithMulticastDNSMode(mode ice.MulticastDNSMode) APIOption {
	return func(s *webrtc.SettingEngine) {
		s.SetICEMulticastDNSMode(mode)
	}
}

func NewWebRTCAPI(opts ...APIOption) *WebRTCAPI {
	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	settings.SetReceiveMTU(MTU)
	for _, opt := range opts {
		opt(&settings)
	}

	// Using NewAPI is crucial for managing multiple PeerConnections in one application.
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	return &WebRTCAPI{
		api: api,
	}
}

// Handlers receive the transport callbacks of a Peer. pion invokes them from
// its own goroutines; callers are expected to hand them to a single event loop.
type Handlers struct {
	OnLocalCandidate func(webrtc.ICECandidateInit)
	OnChannelOpen    func(transfer.Channel)
	OnMessage        func(transfer.Message)
	OnChannelClose   func()
}

// Peer wraps a single WebRTC peer connection and implements negotiation.Transport.
type Peer struct {
	peerConnection *webrtc.PeerConnection
	handlers       Handlers

	mu        sync.Mutex
	channel   *Channel
	closeOnce sync.Once
}

var _ negotiation.Transport = (*Peer)(nil)

// NewPeer creates a peer connection and wires its callbacks to h.
func (a *WebRTCAPI) NewPeer(config Config, h Handlers) (*Peer, error) {
	pc, err := a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
	if err != nil {
		err = fmt.Errorf("failed to create peer connection: %w", err)
		slog.Error("[NewPeer]", "error", err)
		return nil, err
	}

	p := &Peer{
		peerConnection: pc,
		handlers:       h,
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			slog.Debug("All local ICE candidates gathered.")
			return
		}
		if h.OnLocalCandidate != nil {
			h.OnLocalCandidate(candidate.ToJSON())
		}
	})

	// The answerer learns about the channel from the remote side.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		slog.Info("Remote data channel announced", "label", dc.Label())
		p.attach(dc)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Info("Peer Connection State has changed", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			p.notifyClose()
		}
	})

	return p, nil
}

// CreateChannel opens the ordered data channel on the offering side.
func (p *Peer) CreateChannel(label string) error {
	ordered := true
	dc, err := p.peerConnection.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	p.attach(dc)
	return nil
}

func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.peerConnection.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("fail to createOffer %w", err)
	}
	if err := p.peerConnection.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("fail to set local description %w", err)
	}
	return offer, nil
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := p.peerConnection.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := p.peerConnection.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description for answer: %w", err)
	}
	return answer, nil
}

func (p *Peer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := p.peerConnection.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// AddICECandidate is called by both peers to add a candidate received from the other peer.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	if err := p.peerConnection.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add ICE candidate: %w", err)
	}
	return nil
}

// Close gracefully shuts down the WebRTC connection.
func (p *Peer) Close() error {
	if p.peerConnection == nil {
		return nil
	}
	slog.Info("Closing webrtc connection", "signaling", p.peerConnection.SignalingState().String())
	return p.peerConnection.Close()
}

func (p *Peer) attach(dc *webrtc.DataChannel) {
	ch := newChannel(dc)
	p.mu.Lock()
	p.channel = ch
	p.mu.Unlock()

	dc.OnOpen(func() {
		slog.Info("Data channel opened.", "label", dc.Label())
		if p.handlers.OnChannelOpen != nil {
			p.handlers.OnChannelOpen(ch)
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if p.handlers.OnMessage != nil {
			p.handlers.OnMessage(transfer.Message{IsString: msg.IsString, Data: msg.Data})
		}
	})
	dc.OnClose(func() {
		slog.Info("Data channel closed.", "label", dc.Label())
		p.notifyClose()
	})
	dc.OnError(func(err error) {
		slog.Error("DataChannel Error", "label", dc.Label(), "error", err)
	})
}

func (p *Peer) notifyClose() {
	p.closeOnce.Do(func() {
		if p.handlers.OnChannelClose != nil {
			p.handlers.OnChannelClose()
		}
	})
}

// ParseTURN parses "url,username,credential" into an ICE server entry.
func ParseTURN(entry string) (webrtc.ICEServer, error) {
	parts := strings.Split(entry, ",")
	if len(parts) != 3 {
		return webrtc.ICEServer{}, fmt.Errorf("invalid TURN server %q: want url,username,credential", entry)
	}
	url := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(url, "turn:") && !strings.HasPrefix(url, "turns:") {
		return webrtc.ICEServer{}, fmt.Errorf("invalid TURN url %q", url)
	}
	return webrtc.ICEServer{
		URLs:       []string{url},
		Username:   strings.TrimSpace(parts[1]),
		Credential: strings.TrimSpace(parts[2]),
	}, nil
}

// ICEServers builds the server list from STUN urls and TURN specs. An empty
// STUN list falls back to DefaultICEServers.
func ICEServers(stun, turn []string) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer
	if len(stun) == 0 {
		servers = append(servers, DefaultICEServers...)
	}
	for _, u := range stun {
		if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "stuns:") {
			return nil, fmt.Errorf("invalid STUN url %q", u)
		}
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	for _, entry := range turn {
		s, err := ParseTURN(entry)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, nil
}
