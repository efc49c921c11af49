package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/assessor/internal/domain"
	"github.com/ashureev/assessor/internal/identity"
	"github.com/ashureev/assessor/internal/sheet"
)

type createSessionResponse struct {
	SessionID      string `json:"sessionId"`
	SessionURL     string `json:"sessionUrl"`
	QuestionsCount int    `json:"questionsCount"`
}

type sessionSummary struct {
	ID        string                `json:"id"`
	Context   domain.SessionContext `json:"context"`
	Progress  domain.Progress       `json:"progress"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

type updateAnswerRequest struct {
	Answer     string `json:"answer"`
	AnsweredBy string `json:"answeredBy"`
	Comments   string `json:"comments"`
}

// CreateSession imports an uploaded workbook and starts a session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	sc := domain.SessionContext{
		ClientName:      strings.TrimSpace(r.FormValue("clientName")),
		ProjectName:     strings.TrimSpace(r.FormValue("projectName")),
		ProjectOverview: strings.TrimSpace(r.FormValue("projectOverview")),
	}

	file, header, err := r.FormFile("file")
	if err != nil || sc.ClientName == "" || sc.ProjectName == "" {
		Error(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		Error(w, http.StatusBadRequest, "Only .xlsx files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	questions, err := sheet.Parse(data)
	if err != nil {
		writeError(w, r, err, "failed to parse workbook")
		return
	}
	if len(questions) == 0 {
		Error(w, http.StatusBadRequest, "No valid questions found in the Excel file")
		return
	}

	id, err := h.svc.CreateSession(r.Context(), sc, questions)
	if err != nil {
		writeError(w, r, err, "failed to create session")
		return
	}

	JSON(w, http.StatusCreated, createSessionResponse{
		SessionID:      id,
		SessionURL:     "/session/" + id,
		QuestionsCount: len(questions),
	})
}

// ListSessions returns session summaries, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err, "failed to list sessions")
		return
	}
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			ID:        s.ID,
			Context:   s.Context,
			Progress:  s.Progress,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// GetSession returns a session with category stats and its next question.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, view)
}

// UpdateAnswer replaces one question's answer fields.
func (h *Handler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	questionID, err := strconv.Atoi(chi.URLParam(r, "questionID"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid question id")
		return
	}

	var req updateAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AnsweredBy == "" {
		req.AnsweredBy = identity.RespondentFromContext(r.Context())
	}

	sess, err := h.svc.UpdateAnswer(r.Context(), sessionID, questionID, req.Answer, req.AnsweredBy, req.Comments)
	if err != nil {
		writeError(w, r, err, "failed to update answer")
		return
	}
	JSON(w, http.StatusOK, sess)
}

// Export streams the session's catalogue as an .xlsx workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err, "failed to load session")
		return
	}

	data, err := sheet.Serialize(sess.Questions)
	if err != nil {
		writeError(w, r, err, "Failed to export session")
		return
	}

	filename := sheet.ExportFilename(sess.Context, time.Now())
	w.Header().Set("Content-Type", sheet.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("Failed to write export", "session_id", sess.ID, "error", err)
	}
}
