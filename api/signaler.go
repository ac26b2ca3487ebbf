package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/peerdrop/pkg/negotiation"
)

const incomingBufferSize = 64

var ErrClientClosed = errors.New("relay client is closed")

// RelayClient is the peer side of the relay. It implements negotiation.Signaler
// and surfaces every envelope received from other room members on Incoming.
type RelayClient struct {
	conn     *websocket.Conn
	incoming chan Envelope

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var _ negotiation.Signaler = (*RelayClient)(nil)

// BuildURL turns a relay base address such as "http://host:8080" or
// "host:8080" into the websocket endpoint for room.
func BuildURL(relay, room string) (string, error) {
	if !strings.Contains(relay, "://") {
		relay = "ws://" + relay
	}
	u, err := url.Parse(relay)
	if err != nil {
		return "", fmt.Errorf("invalid relay address %q: %w", relay, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("relay address %q has no host", relay)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if room == "" {
		room = DefaultRoom
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to the relay and joins room.
func Dial(ctx context.Context, relay, room string) (*RelayClient, error) {
	endpoint, err := BuildURL(relay, room)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", endpoint, err)
	}
	slog.Info("Connected to relay", "url", endpoint)

	c := &RelayClient{
		conn:     conn,
		incoming: make(chan Envelope, incomingBufferSize),
		done:     make(chan struct{}),
	}
	conn.SetPingHandler(func(data string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	go c.readLoop()
	return c, nil
}

// Incoming delivers envelopes from the other room members. It is closed when
// the connection ends.
func (c *RelayClient) Incoming() <-chan Envelope {
	return c.incoming
}

// Done is closed once the client has been closed.
func (c *RelayClient) Done() <-chan struct{} {
	return c.done
}

func (c *RelayClient) readLoop() {
	defer close(c.incoming)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				slog.Warn("Relay connection lost", "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Ignoring malformed relay message", "error", err)
			continue
		}
		if !env.Type.Valid() {
			slog.Warn("Ignoring relay message of unknown type", "type", env.Type)
			continue
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *RelayClient) send(t MessageType, payload any) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s to relay: %w", t, err)
	}
	return nil
}

func (c *RelayClient) SendOffer(offer webrtc.SessionDescription) error {
	return c.send(TypeOffer, offer)
}

func (c *RelayClient) SendAnswer(answer webrtc.SessionDescription) error {
	return c.send(TypeAnswer, answer)
}

func (c *RelayClient) SendICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.send(TypeCandidate, candidate)
}

// Close leaves the room.
func (c *RelayClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
