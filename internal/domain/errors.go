package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no valid user identity.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the user's role may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("invalid request")

	ErrProfileNotFound  = errors.New("profile not found")
	ErrTopicNotFound    = errors.New("topic not found")
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is also returned for sessions owned by another student.
	ErrSessionNotFound = errors.New("session not found")
	ErrRoundNotFound   = errors.New("competition round not found")

	// ErrSessionComplete guards against applying completion effects twice.
	ErrSessionComplete = errors.New("session already complete")
	ErrAlreadyAnswered = errors.New("question already answered in this session")
	ErrRoundClosed     = errors.New("competition round is not open")
	// ErrCompetitionDone means the student already competed in the current round.
	ErrCompetitionDone = errors.New("competition already completed for this round")
	ErrNoClassSection  = errors.New("student has no class section")
	ErrNotCompetition  = errors.New("power-ups are only available in competition sessions")
	ErrPowerUpOwned    = errors.New("power-up already purchased for this session")
	ErrInsufficientXP  = errors.New("not enough XP")

	// ErrBackend wraps storage and cache failures. Clients only see a generic message.
	ErrBackend = errors.New("backend failure")

	// ErrTutorUnavailable is returned when no completion provider is configured.
	ErrTutorUnavailable = errors.New("AI service not configured")
	// ErrInvalidLesson is returned when the generated lesson could not be parsed.
	ErrInvalidLesson = errors.New("failed to generate lesson")
)

// CompetitionDoneError carries the id of the completed session so clients can show its summary.
type CompetitionDoneError struct {
	SessionID string
}

func (e *CompetitionDoneError) Error() string { return ErrCompetitionDone.Error() }

func (e *CompetitionDoneError) Unwrap() error { return ErrCompetitionDone }
