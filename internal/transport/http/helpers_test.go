package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/auth"
	"sciquest/internal/domain"
	"sciquest/internal/infra/memory"
	"sciquest/internal/llm"
	"sciquest/internal/tutor"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	verifier *auth.Verifier
	store    *memory.Store
}

type serverOptions struct {
	provider   llm.Provider
	tutorLimit int
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, p := range []domain.Profile{
		{ID: "s1", Name: "Ana", Role: domain.RoleStudent, ClassSection: "8A"},
		{ID: "t1", Name: "Ms. Ortiz", Role: domain.RoleTeacher},
	} {
		if err := store.UpsertProfile(ctx, p); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	if err := store.UpsertTopic(ctx, sampleTopic()); err != nil {
		t.Fatalf("seed topic: %v", err)
	}

	logger := zap.NewNop()
	topics := memory.NewTopicRepository(store, time.Minute)
	leaderboard := app.NewLeaderboardService(store, memory.NewFeedStore(), 50, logger)
	sessions := app.NewSessionService(store, topics, leaderboard, app.SessionConfig{
		PracticeQuestions: 3,
		QuestionSeconds:   15,
		Prices: map[domain.PowerUp]int{
			domain.PowerUpFiftyFifty:   30,
			domain.PowerUpHint:         20,
			domain.PowerUpStreakShield: 100,
		},
	}, logger)
	verifier := auth.NewVerifier(testSecret)

	router := NewRouter(Deps{
		Sessions:     sessions,
		Leaderboard:  leaderboard,
		Competition:  app.NewCompetitionService(store, topics, []string{"8A", "8B"}, logger),
		Tutor:        tutor.NewService(opts.provider, topics, logger),
		Profiles:     store,
		Verifier:     verifier,
		TutorLimiter: NewRateLimiter(opts.tutorLimit),
		CORSOrigins:  []string{"*"},
		Logger:       logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, verifier: verifier, store: store}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.verifier.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// call performs a request as userID (anonymous when empty) and decodes the
// JSON response into out when out is non-nil.
func (s *testServer) call(t *testing.T, method, path, userID string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func sampleTopic() domain.Topic {
	topic := domain.Topic{
		ID:               "forces",
		Title:            "Forces and Motion",
		Standard:         "MS-PS2-2",
		IsActive:         true,
		CompetitionLimit: 3,
	}
	for i := 1; i <= 4; i++ {
		topic.Questions = append(topic.Questions, domain.Question{
			ID:   fmt.Sprintf("q%d", i),
			Text: fmt.Sprintf("Question %d", i),
			Options: []domain.Option{
				{Key: "a", Text: "wrong"},
				{Key: "b", Text: "right"},
				{Key: "c", Text: "wrong"},
				{Key: "d", Text: "wrong"},
			},
			CorrectOption: "b",
			Explanation:   "Because b.",
			Hint:          "Think b.",
			OrderIndex:    i,
		})
	}
	return topic
}
