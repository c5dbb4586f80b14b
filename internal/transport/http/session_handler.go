package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/auth"
	"sciquest/internal/domain"
)

// SessionHandler serves the student quiz flow.
type SessionHandler struct {
	sessions    *app.SessionService
	leaderboard *app.LeaderboardService
	logger      *zap.Logger
}

func NewSessionHandler(sessions *app.SessionService, leaderboard *app.LeaderboardService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, leaderboard: leaderboard, logger: logger}
}

type startRequest struct {
	TopicID string `json:"topicId"`
	Mode    string `json:"mode"`
}

type answerRequest struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	TimedOut       bool   `json:"timedOut"`
}

type completeRequest struct {
	CorrectAnswers int `json:"correctAnswers"`
	TotalAttempts  int `json:"totalAttempts"`
}

type powerUpRequest struct {
	PowerUps []domain.PowerUp `json:"powerUps"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.TopicID == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: topicId is required", domain.ErrValidation))
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	view, err := h.sessions.StartSession(r.Context(), userID(r), req.TopicID, mode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.GetSession(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.sessions.RecordAnswer(r.Context(), userID(r), chi.URLParam(r, "id"), app.AnswerSubmission{
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		TimedOut:       req.TimedOut,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	result, err := h.sessions.CompleteSession(r.Context(), userID(r), chi.URLParam(r, "id"), req.CorrectAnswers, req.TotalAttempts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) PowerUps(w http.ResponseWriter, r *http.Request) {
	var req powerUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	view, err := h.sessions.PurchasePowerUps(r.Context(), userID(r), chi.URLParam(r, "id"), req.PowerUps)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Progress(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Leaderboard returns the current ranking, optionally for one class section.
func (h *SessionHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, h.logger, fmt.Errorf("%w: limit must be a positive integer", domain.ErrValidation))
			return
		}
		limit = n
	}
	lb, err := h.leaderboard.Top(r.Context(), r.URL.Query().Get("section"), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}
