package peer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/api"
	appevents "github.com/rescp17/peerdrop/internal/app_events"
	"github.com/rescp17/peerdrop/internal/app_events/receiver"
	"github.com/rescp17/peerdrop/internal/app_events/sender"
	"github.com/rescp17/peerdrop/pkg/concurrency"
	"github.com/rescp17/peerdrop/pkg/fileInfo"
	"github.com/rescp17/peerdrop/pkg/negotiation"
	"github.com/rescp17/peerdrop/pkg/progress"
	"github.com/rescp17/peerdrop/pkg/transfer"
	webrtcPkg "github.com/rescp17/peerdrop/pkg/webrtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRelay is one end of an in-memory relay room with two members.
type memRelay struct {
	peer *memRelay

	mu     sync.Mutex
	in     chan api.Envelope
	closed bool
}

func newRelayPair() (*memRelay, *memRelay) {
	a := &memRelay{in: make(chan api.Envelope, 256)}
	b := &memRelay{in: make(chan api.Envelope, 256)}
	a.peer, b.peer = b, a
	return a, b
}

func (r *memRelay) send(t api.MessageType, payload any) error {
	env, err := api.NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	p := r.peer
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	select {
	case p.in <- env:
	default:
	}
	return nil
}

func (r *memRelay) SendOffer(o webrtc.SessionDescription) error { return r.send(api.TypeOffer, o) }
func (r *memRelay) SendAnswer(a webrtc.SessionDescription) error { return r.send(api.TypeAnswer, a) }
func (r *memRelay) SendICECandidate(c webrtc.ICECandidateInit) error {
	return r.send(api.TypeCandidate, c)
}
func (r *memRelay) Incoming() <-chan api.Envelope { return r.in }

func (r *memRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.in)
	}
	return nil
}

// memLink connects two memTransports. The channel opens once both sides
// hold a local and a remote description, unless the link is held.
type memLink struct {
	mu     sync.Mutex
	ends   [2]*memTransport
	opened bool
	closed bool
	hold   bool
}

func (l *memLink) setHold(hold bool) {
	l.mu.Lock()
	l.hold = hold
	l.mu.Unlock()
}

func (l *memLink) factory(idx int) TransportFactory {
	return func(h webrtcPkg.Handlers) (negotiation.Transport, error) {
		t := &memTransport{link: l, idx: idx, h: h}
		l.mu.Lock()
		l.ends[idx] = t
		l.opened, l.closed = false, false
		l.mu.Unlock()
		return t, nil
	}
}

func (l *memLink) maybeOpen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, b := l.ends[0], l.ends[1]
	if l.opened || l.hold || a == nil || b == nil {
		return
	}
	if !(a.local && a.remote && b.local && b.remote) {
		return
	}
	l.opened = true
	go a.h.OnChannelOpen(&memChannel{link: l, to: 1})
	go b.h.OnChannelOpen(&memChannel{link: l, to: 0})
}

func (l *memLink) deliver(to int, msg transfer.Message) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("channel closed")
	}
	h := l.ends[to].h
	l.mu.Unlock()
	h.OnMessage(msg)
	return nil
}

type memTransport struct {
	link *memLink
	idx  int
	h    webrtcPkg.Handlers

	local, remote bool
}

func (t *memTransport) CreateChannel(string) error { return nil }

func (t *memTransport) describe(typ webrtc.SDPType) (webrtc.SessionDescription, error) {
	t.link.mu.Lock()
	t.local = true
	t.link.mu.Unlock()
	go t.h.OnLocalCandidate(webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:%d", t.idx)})
	t.link.maybeOpen()
	return webrtc.SessionDescription{Type: typ, SDP: "sdp"}, nil
}

func (t *memTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.describe(webrtc.SDPTypeOffer)
}

func (t *memTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.describe(webrtc.SDPTypeAnswer)
}

func (t *memTransport) SetRemoteDescription(webrtc.SessionDescription) error {
	t.link.mu.Lock()
	t.remote = true
	t.link.mu.Unlock()
	t.link.maybeOpen()
	return nil
}

func (t *memTransport) AddICECandidate(webrtc.ICECandidateInit) error { return nil }

func (t *memTransport) Close() error {
	l := t.link
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if !l.opened {
		return nil
	}
	for _, end := range l.ends {
		if end != nil && end.h.OnChannelClose != nil {
			go end.h.OnChannelClose()
		}
	}
	return nil
}

type memChannel struct {
	link *memLink
	to   int
}

func (c *memChannel) SendText(s string) error {
	return c.link.deliver(c.to, transfer.TextMessage(s))
}

func (c *memChannel) Send(b []byte) error {
	return c.link.deliver(c.to, transfer.BinaryMessage(append([]byte(nil), b...)))
}

// collect drains an App's UI messages so the loop never blocks on publish.
func collect(app *App) <-chan tea.Msg {
	out := make(chan tea.Msg, 1024)
	go func() {
		for msg := range app.UIMessages() {
			out <- msg
		}
	}()
	return out
}

func waitFor[T any](t *testing.T, msgs <-chan tea.Msg, match func(T) bool) T {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case m := <-msgs:
			if v, ok := m.(T); ok && (match == nil || match(v)) {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

type testPair struct {
	a, b         *App
	aMsgs, bMsgs <-chan tea.Msg
	outDir       string
	relayA       *memRelay
	cancel       context.CancelFunc
	errs         chan error
}

// newTestPair starts two connected Apps. tweak, if given, adjusts the
// sender's config before it runs.
func newTestPair(t *testing.T, pace time.Duration, tweak ...func(*Config)) *testPair {
	t.Helper()
	relayA, relayB := newRelayPair()
	link := &memLink{}

	cfgA := DefaultConfig()
	cfgA.Transfer.PaceInterval = pace
	for _, f := range tweak {
		f(&cfgA)
	}
	cfgB := DefaultConfig()
	cfgB.OutputDir = t.TempDir()

	a, err := NewApp(cfgA, relayA, link.factory(0))
	require.NoError(t, err)
	b, err := NewApp(cfgB, relayB, link.factory(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	p := &testPair{
		a: a, b: b,
		aMsgs: collect(a), bMsgs: collect(b),
		outDir: cfgB.OutputDir,
		relayA: relayA,
		cancel: cancel,
		errs:   make(chan error, 2),
	}
	go func() { p.errs <- a.Run(ctx) }()
	go func() { p.errs <- b.Run(ctx) }()
	t.Cleanup(cancel)
	return p
}

func writeTempFile(t *testing.T, name string, size int) (string, []byte) {
	t.Helper()
	data := bytes.Repeat([]byte("peerdrop"), size/8+1)[:size]
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func TestApp_TransfersFileEndToEnd(t *testing.T) {
	p := newTestPair(t, time.Millisecond)
	path, data := writeTempFile(t, "photo.bin", 300*1024)

	p.a.Initiate()
	p.a.SendFile(path)

	sent := waitFor[sender.FileSentMsg](t, p.aMsgs, nil)
	assert.Equal(t, "photo.bin", sent.Name)
	assert.Equal(t, int64(len(data)), sent.Size)

	snap := waitFor[appevents.SnapshotMsg](t, p.bMsgs, func(m appevents.SnapshotMsg) bool {
		return m.Snapshot.Complete
	})
	assert.Equal(t, progress.StatusFileReceived, snap.Snapshot.Status)
	assert.Equal(t, float64(100), snap.Snapshot.Percent)
	assert.Equal(t, negotiation.RoleAnswerer, snap.Snapshot.Role)

	saved := waitFor[receiver.FileSavedMsg](t, p.bMsgs, nil)
	assert.Equal(t, filepath.Join(p.outDir, "photo.bin"), saved.Path)
	got, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestApp_ChecksumIsVerifiedOnDisk(t *testing.T) {
	p := newTestPair(t, time.Millisecond, func(c *Config) { c.Transfer.SendChecksum = true })
	path, data := writeTempFile(t, "signed.bin", 2048)

	p.a.Initiate()
	p.a.SendFile(path)

	saved := waitFor[receiver.FileSavedMsg](t, p.bMsgs, nil)
	assert.Equal(t, fileInfo.SumBytes(data), saved.Checksum)
}

func TestVerifySaved(t *testing.T) {
	path, data := writeTempFile(t, "copy.bin", 64)
	assert.NoError(t, verifySaved(path, fileInfo.SumBytes(data)))
	assert.ErrorIs(t, verifySaved(path, fileInfo.SumBytes([]byte("other"))), ErrSavedCopyMismatch)
	assert.Error(t, verifySaved(filepath.Join(t.TempDir(), "gone"), "x"))
}

func TestApp_SecondSendIsRejectedWhileBusy(t *testing.T) {
	p := newTestPair(t, time.Millisecond)
	path, _ := writeTempFile(t, "a.txt", 10)

	// Nothing is connected yet, so the first file stays queued.
	p.a.SendFile(path)
	p.a.SendFile(path)

	msg := waitFor[appevents.AppErrorMsg](t, p.aMsgs, nil)
	assert.ErrorIs(t, msg.Err, concurrency.ErrBusy)
}

func TestApp_SendMissingFileReportsError(t *testing.T) {
	p := newTestPair(t, time.Millisecond)
	p.a.SendFile(filepath.Join(t.TempDir(), "missing"))

	msg := waitFor[appevents.AppErrorMsg](t, p.aMsgs, nil)
	assert.Error(t, msg.Err)
}

func TestApp_CloseMidTransferDiscardsPartialFile(t *testing.T) {
	p := newTestPair(t, 200*time.Millisecond)
	path, _ := writeTempFile(t, "big.bin", 1024*1024)

	p.a.Initiate()
	p.a.SendFile(path)

	waitFor[appevents.SnapshotMsg](t, p.bMsgs, func(m appevents.SnapshotMsg) bool {
		return m.Snapshot.InProgress && m.Snapshot.BytesTransferred > 0
	})
	p.a.AppEvents() <- appevents.CloseEvent{}

	snap := waitFor[appevents.SnapshotMsg](t, p.bMsgs, func(m appevents.SnapshotMsg) bool {
		return m.Snapshot.Status == progress.StatusClosed
	})
	assert.False(t, snap.Snapshot.Connected)
	assert.False(t, snap.Snapshot.InProgress)

	entries, err := os.ReadDir(p.outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApp_RelayLostBeforeConnect(t *testing.T) {
	p := newTestPair(t, time.Millisecond)
	require.NoError(t, p.relayA.Close())

	select {
	case err := <-p.errs:
		assert.ErrorIs(t, err, ErrRelayLost)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the relay closed")
	}
}

func TestNewApp_ValidatesConfig(t *testing.T) {
	relay, _ := newRelayPair()
	cfg := DefaultConfig()
	cfg.Transfer.ChunkSize = 0
	_, err := NewApp(cfg, relay, (&memLink{}).factory(0))
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.OutputDir = ""
	_, err = NewApp(cfg, relay, (&memLink{}).factory(0))
	assert.Error(t, err)
}
