package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// wsMessage is one push frame: a new confirmed block with its state,
// or an updated pending projection.
type wsMessage struct {
	Type    string          `json:"type"`
	Height  uint64          `json:"height,omitempty"`
	State   json.RawMessage `json:"state,omitempty"`
	Pending json.RawMessage `json:"pending,omitempty"`
}

// wsHub tracks connected subscribers and fans messages out to them.
type wsHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newWsHub() *wsHub {
	return &wsHub{conns: make(map[*websocket.Conn]struct{})}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// The state endpoints are public; so is the stream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWs upgrades a connection and registers it with the hub.
func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	s.hub.add(conn)
	slog.Debug("websocket subscriber connected", "remote", r.RemoteAddr)

	// Drain (and discard) client frames so pings are answered and
	// closes are noticed.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *wsHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast sends a frame to every subscriber, dropping connections
// that fail to keep up.
func (h *wsHub) broadcast(msg wsMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	var dead []*websocket.Conn
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
