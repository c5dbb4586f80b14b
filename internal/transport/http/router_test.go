package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sciquest/internal/app"
	"sciquest/internal/domain"
	"sciquest/internal/llm"
)

func TestCompetitionFlow(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	var round domain.CompetitionRound
	code := srv.call(t, http.MethodPost, "/api/topics/forces/rounds/8A/open", "t1", nil, &round)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, round.IsOpen)
	assert.Equal(t, 1, round.RoundNumber)

	var view app.SessionView
	code = srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"topicId": "forces", "mode": "competition"}, &view)
	require.Equal(t, http.StatusCreated, code)
	require.Len(t, view.Questions, 3)
	assert.Equal(t, 15, view.QuestionSeconds)
	sessionPath := "/api/sessions/" + view.Session.ID

	var answer app.AnswerResult
	code = srv.call(t, http.MethodPost, sessionPath+"/answers", "s1", map[string]any{
		"questionId":     view.Questions[0].ID,
		"selectedOption": "B",
	}, &answer)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, answer.Correct)

	var dup map[string]string
	code = srv.call(t, http.MethodPost, sessionPath+"/answers", "s1", map[string]any{
		"questionId":     view.Questions[0].ID,
		"selectedOption": "a",
	}, &dup)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.ErrAlreadyAnswered.Error(), dup["error"])

	var result app.CompletionResult
	code = srv.call(t, http.MethodPost, sessionPath+"/complete", "s1", map[string]int{"correctAnswers": 3, "totalAttempts": 3}, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, result.Accuracy)
	assert.Equal(t, 1, result.NewStreak)
	assert.Positive(t, result.XPEarned)

	var again map[string]string
	code = srv.call(t, http.MethodPost, sessionPath+"/complete", "s1", map[string]int{"correctAnswers": 3, "totalAttempts": 3}, &again)
	assert.Equal(t, http.StatusConflict, code)

	var done map[string]string
	code = srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"topicId": "forces", "mode": "competition"}, &done)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, view.Session.ID, done["sessionId"])

	var progress app.ProgressView
	code = srv.call(t, http.MethodGet, "/api/me/progress", "s1", nil, &progress)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, result.XP, progress.Stats.XP)
	require.Len(t, progress.RecentSessions, 1)

	var lb domain.Leaderboard
	code = srv.call(t, http.MethodGet, "/api/leaderboard?section=8A", "s1", nil, &lb)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "s1", lb.Entries[0].StudentID)
	assert.Equal(t, 1, lb.Entries[0].Rank)
}

func TestPowerUpRoute(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.call(t, http.MethodPost, "/api/topics/forces/rounds/open-all", "t1", nil, nil)

	var view app.SessionView
	srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"topicId": "forces", "mode": "competition"}, &view)

	var body map[string]string
	code := srv.call(t, http.MethodPost, "/api/sessions/"+view.Session.ID+"/power-ups", "s1",
		map[string][]string{"powerUps": {"hint"}}, &body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.ErrInsufficientXP.Error(), body["error"])

	code = srv.call(t, http.MethodPost, "/api/sessions/"+view.Session.ID+"/power-ups", "s1",
		map[string][]string{"powerUps": {"rocket"}}, &body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAccessControl(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	var body map[string]string
	code := srv.call(t, http.MethodGet, "/api/me/progress", "", nil, &body)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Not authenticated", body["error"])

	code = srv.call(t, http.MethodPost, "/api/topics/forces/rounds/8A/open", "s1", nil, &body)
	assert.Equal(t, http.StatusForbidden, code)

	code = srv.call(t, http.MethodGet, "/api/sessions/missing", "s1", nil, &body)
	assert.Equal(t, http.StatusNotFound, code)

	code = srv.call(t, http.MethodPost, "/api/topics/forces/rounds/9Z/close", "t1", nil, &body)
	assert.Equal(t, http.StatusBadRequest, code)

	code = srv.call(t, http.MethodPost, "/api/sessions", "t1", map[string]string{"topicId": "forces", "mode": "practice"}, &body)
	assert.Equal(t, http.StatusForbidden, code)

	code = srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"topicId": "forces", "mode": "competition"}, &body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.ErrRoundClosed.Error(), body["error"])

	code = srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"nope": "x"}, &body)
	assert.Equal(t, http.StatusBadRequest, code)

	code = srv.call(t, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestStartSessionRejectsUnknownMode(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	ctx := context.Background()

	for _, mode := range []string{"", "Practice", "sprint"} {
		var body map[string]string
		code := srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"topicId": "forces", "mode": mode}, &body)
		assert.Equal(t, http.StatusBadRequest, code, "mode %q", mode)
		assert.Contains(t, body["error"], "mode must be", "mode %q", mode)
	}

	err := srv.store.WithinTx(ctx, func(tx app.StoreTx) error {
		for _, mode := range []domain.Mode{domain.ModePractice, domain.ModeCompetition} {
			_, found, err := tx.FindOpenSession(ctx, "s1", "forces", mode, 0)
			if err != nil {
				return err
			}
			assert.False(t, found, "no %s session should exist", mode)
		}
		return nil
	})
	require.NoError(t, err)

	var view app.SessionView
	code := srv.call(t, http.MethodPost, "/api/sessions", "s1", map[string]string{"topicId": "forces", "mode": "practice"}, &view)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.ModePractice, view.Session.Mode)
}

const lessonJSON = `{"hook":"Why do you lurch on a bus?","concepts":[
{"emoji":"🚌","title":"Inertia","explanation":"Things keep moving."},
{"emoji":"⚖️","title":"Balanced forces","explanation":"No change in motion."},
{"emoji":"🚀","title":"Net force","explanation":"Changes speed."}],"quickTip":"Look for net force."}`

func TestTutorRoutes(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: lessonJSON},
		llm.MockResponse{Text: "oops"},
		llm.MockResponse{Text: "Inertia means objects resist changes in motion."},
	)
	srv := newTestServer(t, serverOptions{provider: mock})

	var lesson map[string]any
	code := srv.call(t, http.MethodPost, "/api/tutor/lesson", "s1", map[string]string{"topicId": "forces"}, &lesson)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, lesson["concepts"], 3)

	var failed map[string]any
	code = srv.call(t, http.MethodPost, "/api/tutor/lesson", "s1", map[string]string{"topicId": "forces"}, &failed)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, true, failed["skipToQuiz"])

	var reply map[string]string
	code = srv.call(t, http.MethodPost, "/api/tutor/chat", "s1", map[string]any{
		"topicId": "forces",
		"message": "What is inertia?",
		"history": []map[string]string{{"role": "user", "content": "hi"}, {"role": "assistant", "content": "Hello!"}},
	}, &reply)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, reply["reply"], "Inertia")
	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, llm.RoleModel, calls[2].Messages[1].Role)
}

func TestTutorUnavailableAndRateLimited(t *testing.T) {
	srv := newTestServer(t, serverOptions{tutorLimit: 2})

	var body map[string]string
	code := srv.call(t, http.MethodPost, "/api/tutor/chat", "s1", map[string]string{"topicId": "forces", "message": "hi"}, &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "AI service not configured", body["error"])

	srv.call(t, http.MethodPost, "/api/tutor/lesson", "s1", map[string]string{"topicId": "forces"}, nil)
	code = srv.call(t, http.MethodPost, "/api/tutor/lesson", "s1", map[string]string{"topicId": "forces"}, &body)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestClassifyHidesInternals(t *testing.T) {
	status, body := classify(fmt.Errorf("load stats: %w: %w", domain.ErrBackend, errors.New("connection refused")))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, genericError, body.Error)

	status, body = classify(fmt.Errorf("session abc: %w", domain.ErrSessionNotFound))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.ErrSessionNotFound.Error(), body.Error)

	status, body = classify(&domain.CompetitionDoneError{SessionID: "sess-1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "sess-1", body.SessionID)
}
