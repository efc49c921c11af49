package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/assessor/internal/domain"
	"github.com/ashureev/assessor/internal/identity"
)

const maxChatBodyBytes = 64 << 10

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response           string          `json:"response"`
	QuestionID         *int            `json:"questionId,omitempty"`
	AnsweredQuestionID *int            `json:"answeredQuestionId,omitempty"`
	Progress           domain.Progress `json:"progress"`
	UpdatedSession     *domain.Session `json:"updatedSession"`
	Degraded           bool            `json:"degraded,omitempty"`
}

// PostMessage runs one chat turn.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Message == "" {
		Error(w, http.StatusBadRequest, "Message is required")
		return
	}

	res, err := h.svc.HandleTurn(r.Context(), chi.URLParam(r, "sessionID"), req.Message, identity.RespondentFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, "Failed to process message")
		return
	}

	JSON(w, http.StatusOK, chatResponse{
		Response:           res.OutboundText,
		QuestionID:         res.NextQuestionID,
		AnsweredQuestionID: res.AnsweredQuestionID,
		Progress:           res.Progress,
		UpdatedSession:     res.Session,
		Degraded:           res.Degraded,
	})
}

// GetHistory returns the session's turn log.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"history": history})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	return dec.Decode(v)
}
