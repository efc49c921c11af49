package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/assessor/internal/dialog"
	"github.com/ashureev/assessor/internal/domain"
	"github.com/ashureev/assessor/internal/identity"
)

const writeTimeout = 10 * time.Second

// Handler upgrades chat connections and runs turns received over them.
type Handler struct {
	svc           *dialog.Service
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket chat handler.
func NewHandler(svc *dialog.Service, hub *Hub, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		svc:           svc,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/{sessionID}", h.ServeHTTP)
}

// inbound is a client-to-server message.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	respondent := identity.RespondentFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	history, err := h.svc.History(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to load chat history", "session_id", sessionID, "error", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(uuid.NewString())
	h.hub.Register(sessionID, c)
	defer h.hub.Unregister(sessionID, c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		writeLoop(ctx, ws, c)
	}()

	h.queue(c, event{Type: EventHistory, History: history})
	h.readLoop(ctx, ws, c, sessionID, respondent)

	cancel()
	<-done
	slog.Info("Chat connection ended", "session_id", sessionID, "client_id", c.id)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, c *client, sessionID, respondent string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.queue(c, event{Type: EventError, Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "message":
			res, err := h.svc.HandleTurn(ctx, sessionID, msg.Content, respondent)
			if err != nil {
				h.queue(c, event{Type: EventError, Error: turnErrorMessage(err)})
				continue
			}
			// Committed turns reach every client through the hub; a degraded
			// turn is only for the sender.
			if res.Degraded {
				h.queue(c, event{Type: EventTurn, Turn: res})
			}
		case "ping":
			h.queue(c, event{Type: EventPong})
		default:
			h.queue(c, event{Type: EventError, Error: "unknown message type"})
		}
	}
}

func (h *Handler) queue(c *client, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode chat event", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("Chat client queue full, dropping event", "client_id", c.id, "type", ev.Type)
	}
}

func writeLoop(ctx context.Context, ws *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("WebSocket write error", "error", err, "client_id", c.id)
				return
			}
		}
	}
}

func turnErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "session not found"
	case errors.Is(err, domain.ErrMalformedInput):
		return "message is required"
	default:
		slog.Error("Chat turn failed", "error", err)
		return "failed to process message"
	}
}
