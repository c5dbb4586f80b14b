package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"sciquest/internal/domain"
)

const genericError = "Something went wrong."

type errorBody struct {
	Error      string `json:"error"`
	SessionID  string `json:"sessionId,omitempty"`
	SkipToQuiz bool   `json:"skipToQuiz,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var done *domain.CompetitionDoneError
	switch {
	case errors.As(err, &done):
		return http.StatusConflict, errorBody{Error: "You already completed this competition round.", SessionID: done.SessionID}
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: "Not authenticated"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "Forbidden"}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrTopicNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRoundNotFound):
		return http.StatusNotFound, errorBody{Error: rootMessage(err)}
	case errors.Is(err, domain.ErrSessionComplete),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrRoundClosed),
		errors.Is(err, domain.ErrNoClassSection),
		errors.Is(err, domain.ErrNotCompetition),
		errors.Is(err, domain.ErrPowerUpOwned),
		errors.Is(err, domain.ErrInsufficientXP):
		return http.StatusConflict, errorBody{Error: rootMessage(err)}
	case errors.Is(err, domain.ErrTutorUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: domain.ErrTutorUnavailable.Error()}
	case errors.Is(err, domain.ErrInvalidLesson):
		return http.StatusInternalServerError, errorBody{Error: "Failed to generate lesson", SkipToQuiz: true}
	default:
		return http.StatusInternalServerError, errorBody{Error: genericError}
	}
}

var sentinels = []error{
	domain.ErrProfileNotFound, domain.ErrTopicNotFound, domain.ErrQuestionNotFound,
	domain.ErrSessionNotFound, domain.ErrRoundNotFound, domain.ErrSessionComplete,
	domain.ErrAlreadyAnswered, domain.ErrRoundClosed, domain.ErrNoClassSection,
	domain.ErrNotCompetition, domain.ErrPowerUpOwned, domain.ErrInsufficientXP,
}

// rootMessage strips wrapping context so internal ids do not leak.
func rootMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrValidation)
	}
	return nil
}
