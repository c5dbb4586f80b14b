package http

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"sciquest/internal/domain"
	"sciquest/internal/llm"
	"sciquest/internal/tutor"
)

type TutorHandler struct {
	tutor  *tutor.Service
	logger *zap.Logger
}

func NewTutorHandler(svc *tutor.Service, logger *zap.Logger) *TutorHandler {
	return &TutorHandler{tutor: svc, logger: logger}
}

type lessonRequest struct {
	TopicID string `json:"topicId"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	TopicID string     `json:"topicId"`
	Message string     `json:"message"`
	History []chatTurn `json:"history"`
}

func (h *TutorHandler) Lesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.TopicID == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: topicId is required", domain.ErrValidation))
		return
	}
	lesson, err := h.tutor.Lesson(r.Context(), req.TopicID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *TutorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.TopicID == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: topicId is required", domain.ErrValidation))
		return
	}
	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		role := llm.RoleModel
		if turn.Role == "user" {
			role = llm.RoleUser
		}
		history = append(history, llm.Message{Role: role, Text: turn.Content})
	}
	reply, err := h.tutor.Chat(r.Context(), req.TopicID, req.Message, history)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
