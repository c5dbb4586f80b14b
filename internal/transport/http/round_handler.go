package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/domain"
)

// RoundHandler lets teachers open and close competition rounds.
type RoundHandler struct {
	competition *app.CompetitionService
	logger      *zap.Logger
}

func NewRoundHandler(competition *app.CompetitionService, logger *zap.Logger) *RoundHandler {
	return &RoundHandler{competition: competition, logger: logger}
}

type roundsResponse struct {
	Rounds []domain.CompetitionRound `json:"rounds"`
}

func (h *RoundHandler) List(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.competition.Rounds(r.Context(), chi.URLParam(r, "id"))
	h.respondRounds(w, r, rounds, err)
}

func (h *RoundHandler) Open(w http.ResponseWriter, r *http.Request) {
	round, err := h.competition.OpenRound(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "section"))
	h.respondRound(w, r, round, err)
}

func (h *RoundHandler) Close(w http.ResponseWriter, r *http.Request) {
	round, err := h.competition.CloseRound(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "section"))
	h.respondRound(w, r, round, err)
}

func (h *RoundHandler) OpenAll(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.competition.OpenAll(r.Context(), chi.URLParam(r, "id"))
	h.respondRounds(w, r, rounds, err)
}

func (h *RoundHandler) CloseAll(w http.ResponseWriter, r *http.Request) {
	rounds, err := h.competition.CloseAll(r.Context(), chi.URLParam(r, "id"))
	h.respondRounds(w, r, rounds, err)
}

func (h *RoundHandler) respondRound(w http.ResponseWriter, r *http.Request, round domain.CompetitionRound, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *RoundHandler) respondRounds(w http.ResponseWriter, r *http.Request, rounds []domain.CompetitionRound, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roundsResponse{Rounds: rounds})
}
