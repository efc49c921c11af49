// Package chatws provides WebSocket chat transport for assessment sessions.
package chatws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashureev/assessor/internal/dialog"
)

const sendBuffer = 16

// Event types sent to clients.
const (
	EventHistory = "history"
	EventTurn    = "turn"
	EventError   = "error"
	EventPong    = "pong"
)

// event is the envelope for every server-to-client message.
type event struct {
	Type    string             `json:"type"`
	Turn    *dialog.TurnResult `json:"turn,omitempty"`
	History any                `json:"history,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// client is one connected browser tab. send is never closed; done signals
// the writer to stop.
type client struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(id string) *client {
	return &client{id: id, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks the connections watching each assessment session and fans
// committed turns out to them.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[string]*client)}
}

// Register adds a client to a session.
func (h *Hub) Register(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.active[sessionID]; !ok {
		h.active[sessionID] = make(map[string]*client)
	}
	h.active[sessionID][c.id] = c
	slog.Info("Chat client registered", "session_id", sessionID, "client_id", c.id)
}

// Unregister removes a client and stops its writer.
func (h *Hub) Unregister(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.active[sessionID]
	if !ok {
		return
	}
	if current, exists := clients[c.id]; exists && current == c {
		delete(clients, c.id)
		c.close()
		if len(clients) == 0 {
			delete(h.active, sessionID)
		}
		slog.Info("Chat client unregistered", "session_id", sessionID, "client_id", c.id)
	}
}

// Count returns the number of clients watching a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[sessionID])
}

// NotifyTurn broadcasts a committed turn to every client of the session.
// Clients whose queue is full miss the event.
func (h *Hub) NotifyTurn(sessionID string, result *dialog.TurnResult) {
	data, err := json.Marshal(event{Type: EventTurn, Turn: result})
	if err != nil {
		slog.Error("Failed to encode turn event", "session_id", sessionID, "error", err)
		return
	}
	h.broadcast(sessionID, data)
}

// CloseSession drops every client of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.active[sessionID] {
		c.close()
	}
	delete(h.active, sessionID)
}

func (h *Hub) broadcast(sessionID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.active[sessionID] {
		select {
		case c.send <- data:
		default:
			slog.Warn("Chat client too slow, dropping event", "session_id", sessionID, "client_id", c.id)
		}
	}
}

var _ dialog.Notifier = (*Hub)(nil)
