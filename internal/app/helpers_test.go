package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/domain"
	"sciquest/internal/infra/memory"
)

var testSections = []string{"8A", "8B"}

type fixture struct {
	store       *memory.Store
	topics      *memory.TopicRepository
	sessions    *app.SessionService
	competition *app.CompetitionService
	leaderboard *app.LeaderboardService
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: memory.NewStore(),
		now:   time.Date(2026, 10, 5, 15, 0, 0, 0, time.UTC),
	}
	for _, p := range []domain.Profile{
		{ID: "s1", Name: "Ana", Role: domain.RoleStudent, ClassSection: "8A"},
		{ID: "s2", Name: "Ben", Role: domain.RoleStudent, ClassSection: "8B"},
		{ID: "drifter", Name: "Dee", Role: domain.RoleStudent},
		{ID: "teacher", Name: "Ms. Ortiz", Role: domain.RoleTeacher},
	} {
		if err := f.store.UpsertProfile(ctx, p); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	for _, topic := range []domain.Topic{sampleTopic("forces", 12, 5), sampleTopic("cells", 6, 0)} {
		if err := f.store.UpsertTopic(ctx, topic); err != nil {
			t.Fatalf("seed topic: %v", err)
		}
	}

	logger := zap.NewNop()
	clock := func() time.Time { return f.now }
	f.topics = memory.NewTopicRepository(f.store, time.Minute)
	f.leaderboard = app.NewLeaderboardService(f.store, memory.NewFeedStore(), 50, logger).WithClock(clock)
	f.sessions = app.NewSessionService(f.store, f.topics, f.leaderboard, app.SessionConfig{
		PracticeQuestions: 10,
		QuestionSeconds:   15,
		Prices: map[domain.PowerUp]int{
			domain.PowerUpFiftyFifty:   30,
			domain.PowerUpHint:         20,
			domain.PowerUpStreakShield: 100,
		},
	}, logger).WithClock(clock).WithRandom(func(n int) int { return n - 1 })
	f.competition = app.NewCompetitionService(f.store, f.topics, testSections, logger)
	return f
}

// advance moves the clock forward by whole days.
func (f *fixture) advance(days int) {
	f.now = f.now.AddDate(0, 0, days)
}

func (f *fixture) openRound(t *testing.T, topicID, section string) domain.CompetitionRound {
	t.Helper()
	round, err := f.competition.OpenRound(context.Background(), topicID, section)
	if err != nil {
		t.Fatalf("open round: %v", err)
	}
	return round
}

// playCompetition opens a fresh round, starts a competition and completes it.
func (f *fixture) playCompetition(t *testing.T, studentID, topicID string, correct, total int) app.CompletionResult {
	t.Helper()
	ctx := context.Background()
	f.openRound(t, topicID, "8A")
	view, err := f.sessions.StartSession(ctx, studentID, topicID, domain.ModeCompetition)
	if err != nil {
		t.Fatalf("start competition: %v", err)
	}
	result, err := f.sessions.CompleteSession(ctx, studentID, view.Session.ID, correct, total)
	if err != nil {
		t.Fatalf("complete competition: %v", err)
	}
	return result
}

func (f *fixture) setStats(t *testing.T, stats domain.StudentStats) {
	t.Helper()
	err := f.store.WithinTx(context.Background(), func(tx app.StoreTx) error {
		return tx.SaveStats(context.Background(), stats)
	})
	if err != nil {
		t.Fatalf("seed stats: %v", err)
	}
}

func sampleTopic(id string, questions, limit int) domain.Topic {
	topic := domain.Topic{
		ID:               id,
		Title:            "Topic " + id,
		Standard:         "MS-PS2-1",
		IsActive:         true,
		CompetitionLimit: limit,
	}
	for i := 1; i <= questions; i++ {
		topic.Questions = append(topic.Questions, domain.Question{
			ID:   fmt.Sprintf("%s-q%d", id, i),
			Text: fmt.Sprintf("Question %d", i),
			Options: []domain.Option{
				{Key: "a", Text: "Alpha"},
				{Key: "b", Text: "Bravo"},
				{Key: "c", Text: "Charlie"},
				{Key: "d", Text: "Delta"},
			},
			CorrectOption: "b",
			Explanation:   "Bravo is right.",
			Hint:          "Think of the second letter.",
			OrderIndex:    i,
		})
	}
	return topic
}
