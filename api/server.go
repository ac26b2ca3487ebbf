package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultRoom = "default"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 64
)

// Hub is the signaling relay. It forwards every envelope it receives to all
// other members of the sender's room, best-effort: no ordering across
// members, no acknowledgement, no persistence, and messages for a member whose
// send buffer is full are dropped. Members already in a room are told when a
// new peer joins it.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*member]struct{}
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

type member struct {
	id   string
	room string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a relay with its routes registered.
func NewHub() *Hub {
	h := &Hub{
		rooms: make(map[string]map[*member]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /ws", h.handleWebSocket)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return h
}

// ServeHTTP allows the Hub to satisfy the http.Handler interface.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// RoomSize returns the number of connected members in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = DefaultRoom
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	m := &member{
		id:   uuid.New().String(),
		room: room,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.join(m)
	slog.Info("Peer joined relay", "peer", m.id, "room", room, "members", h.RoomSize(room))
	if data, err := json.Marshal(joinNotice(m.id)); err == nil {
		h.broadcast(m, data)
	}

	go m.writePump()
	h.readPump(m)
}

func (h *Hub) join(m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[m.room]
	if !ok {
		members = make(map[*member]struct{})
		h.rooms[m.room] = members
	}
	members[m] = struct{}{}
}

func (h *Hub) leave(m *member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[m.room]
	if !ok {
		return
	}
	if _, ok := members[m]; !ok {
		return
	}
	delete(members, m)
	close(m.send)
	if len(members) == 0 {
		delete(h.rooms, m.room)
	}
}

func (h *Hub) readPump(m *member) {
	defer func() {
		h.leave(m)
		m.conn.Close()
		slog.Info("Peer left relay", "peer", m.id, "room", m.room)
	}()

	m.conn.SetReadLimit(maxMessageSize)
	m.conn.SetReadDeadline(time.Now().Add(pongWait))
	m.conn.SetPongHandler(func(string) error {
		return m.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Relay read failed", "peer", m.id, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Dropping malformed signaling message", "peer", m.id, "error", err)
			continue
		}
		if !env.Type.Relayable() {
			slog.Warn("Dropping signaling message of unknown type", "peer", m.id, "type", env.Type)
			continue
		}
		env.From = m.id
		out, err := json.Marshal(env)
		if err != nil {
			slog.Error("Failed to re-encode envelope", "error", err)
			continue
		}
		h.broadcast(m, out)
	}
}

func (h *Hub) broadcast(from *member, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for other := range h.rooms[from.room] {
		if other == from {
			continue
		}
		select {
		case other.send <- data:
		default:
			slog.Warn("Dropping signaling message for slow peer", "peer", other.id)
		}
	}
}

func (m *member) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		m.conn.Close()
	}()

	for {
		select {
		case data, ok := <-m.send:
			m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				m.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Serve runs handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
			return err
		}
		return nil
	}
}
