// Package api provides HTTP handlers for the assessment API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/assessor/internal/dialog"
	"github.com/ashureev/assessor/internal/domain"
)

// Handler serves the session, chat and export endpoints.
type Handler struct {
	svc            *dialog.Service
	maxUploadBytes int64
	chatMiddleware []func(http.Handler) http.Handler
}

// NewHandler creates a new Handler.
func NewHandler(svc *dialog.Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// UseForChat adds middleware applied only to posting chat messages.
func (h *Handler) UseForChat(mw ...func(http.Handler) http.Handler) {
	h.chatMiddleware = append(h.chatMiddleware, mw...)
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Put("/sessions/{sessionID}/questions/{questionID}/answer", h.UpdateAnswer)

		r.With(h.chatMiddleware...).Post("/chat/{sessionID}", h.PostMessage)
		r.Get("/chat/{sessionID}", h.GetHistory)

		r.Get("/export/{sessionID}", h.Export)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Internal errors are logged and
// replaced by fallback so storage details are not leaked.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(fallback, "error", err, "path", r.URL.Path)
		Error(w, status, fallback)
		return
	}
	Error(w, status, err.Error())
}
