package webrtc

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopPeer runs one side of the handshake. Every callback is funnelled into
// a single goroutine, the way the application drives a Session.
type loopPeer struct {
	tasks    chan func()
	session  *negotiation.Session
	receiver *transfer.Receiver
	opened   chan transfer.Channel
	closed   chan struct{}
	artifact chan *transfer.Artifact
}

func (p *loopPeer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			task()
		}
	}
}

func (p *loopPeer) post(f func()) {
	p.tasks <- f
}

// mocksignaler delivers straight into the remote peer's loop.
type mocksignaler struct {
	remote *loopPeer
}

func (m *mocksignaler) SendOffer(offer webrtc.SessionDescription) error {
	m.remote.post(func() { _ = m.remote.session.OnRemoteOffer(offer) })
	return nil
}

func (m *mocksignaler) SendAnswer(answer webrtc.SessionDescription) error {
	m.remote.post(func() { _ = m.remote.session.OnRemoteAnswer(answer) })
	return nil
}

func (m *mocksignaler) SendICECandidate(candidate webrtc.ICECandidateInit) error {
	m.remote.post(func() { _ = m.remote.session.OnRemoteHint(candidate) })
	return nil
}

func newLoopPeer(t *testing.T, api *WebRTCAPI, sig *mocksignaler) *loopPeer {
	t.Helper()
	p := &loopPeer{
		tasks:    make(chan func(), 256),
		receiver: transfer.NewReceiver(nil),
		opened:   make(chan transfer.Channel, 1),
		closed:   make(chan struct{}),
		artifact: make(chan *transfer.Artifact, 1),
	}
	peer, err := api.NewPeer(Config{}, Handlers{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) {
			p.post(func() { _ = p.session.OnLocalHint(c) })
		},
		OnChannelOpen: func(ch transfer.Channel) {
			p.post(func() {
				_ = p.session.OnChannelOpen(ch)
				p.opened <- ch
			})
		},
		OnMessage: func(m transfer.Message) {
			p.post(func() {
				if a, err := p.receiver.Handle(m); err == nil && a != nil {
					p.artifact <- a
				}
			})
		},
		OnChannelClose: func() {
			p.post(func() {
				p.session.OnChannelClose()
				close(p.closed)
			})
		},
	})
	require.NoError(t, err)
	p.session = negotiation.NewSession(peer, sig)
	return p
}

func TestConnectionHandShake(t *testing.T) {
	env := detectLoopbackEnv()
	env.requireNetwork(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := NewWebRTCAPI(WithMulticastDNSMode(ice.MulticastDNSModeDisabled))

	toOfferer, toAnswerer := &mocksignaler{}, &mocksignaler{}
	offerer := newLoopPeer(t, api, toAnswerer)
	answerer := newLoopPeer(t, api, toOfferer)
	toAnswerer.remote = answerer
	toOfferer.remote = offerer

	go offerer.run(ctx)
	go answerer.run(ctx)

	errCh := make(chan error, 1)
	offerer.post(func() { errCh <- offerer.session.Initiate() })
	require.NoError(t, <-errCh)

	timeout := env.wait(15 * time.Second)
	var offererCh transfer.Channel
	select {
	case offererCh = <-offerer.opened:
	case <-time.After(timeout):
		t.Fatal("offerer channel did not open")
	}
	select {
	case <-answerer.opened:
	case <-time.After(timeout):
		t.Fatal("answerer channel did not open")
	}

	pionCh, ok := offererCh.(*Channel)
	require.True(t, ok)
	assert.Equal(t, negotiation.DefaultChannelLabel, pionCh.Label())

	stateCh := make(chan negotiation.SignalingState, 2)
	offerer.post(func() { stateCh <- offerer.session.State() })
	answerer.post(func() { stateCh <- answerer.session.State() })
	assert.Equal(t, negotiation.StateStable, <-stateCh)
	assert.Equal(t, negotiation.StateStable, <-stateCh)

	payload := bytes.Repeat([]byte{0xAB}, 300*1024)
	sender, err := transfer.NewSender(offererCh, "loopback.bin", payload, nil)
	require.NoError(t, err)
	require.NoError(t, transfer.Pump(ctx, sender, 0))

	select {
	case a := <-answerer.artifact:
		assert.Equal(t, "loopback.bin", a.Name)
		assert.Equal(t, payload, a.Data)
	case <-time.After(timeout):
		t.Fatal("answerer never assembled the file")
	}

	offerer.post(func() { offerer.session.Close() })
	select {
	case <-answerer.closed:
	case <-time.After(timeout):
		t.Fatal("answerer did not observe the close")
	}
}

func TestParseTURN(t *testing.T) {
	s, err := ParseTURN("turn:turn.example.com:3478, alice, secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"turn:turn.example.com:3478"}, s.URLs)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "secret", s.Credential)

	_, err = ParseTURN("turn:host")
	assert.Error(t, err)
	_, err = ParseTURN("stun:host,a,b")
	assert.Error(t, err)
}

func TestICEServers(t *testing.T) {
	servers, err := ICEServers(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultICEServers, servers)

	servers, err = ICEServers([]string{"stun:stun.example.com:3478"}, []string{"turn:t:3478,u,p"})
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "u", servers[1].Username)

	_, err = ICEServers([]string{"http://nope"}, nil)
	assert.Error(t, err)
}
