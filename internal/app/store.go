package app

import (
	"context"

	"sciquest/internal/domain"
)

// TopicRepository loads topic content (from cache/backing store).
type TopicRepository interface {
	GetTopic(ctx context.Context, topicID string) (domain.Topic, error)
}

// Store abstracts the relational backend (Postgres, in-memory).
// Multi-step writes go through WithinTx so they commit or roll back together.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx StoreTx) error) error

	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	// GetStats reports false when the student has no aggregate record yet.
	GetStats(ctx context.Context, studentID string) (domain.StudentStats, bool, error)
	// ListBadges returns awards newest first.
	ListBadges(ctx context.Context, studentID string) ([]domain.BadgeAward, error)
	// RecentSessions returns completed sessions, newest first.
	RecentSessions(ctx context.Context, studentID string, limit int) ([]domain.Session, error)
	// Leaderboard returns students ordered by overall accuracy then XP, both descending.
	// An empty section means every section.
	Leaderboard(ctx context.Context, section string, limit int) ([]domain.LeaderboardEntry, error)
	ListRounds(ctx context.Context, topicID string) ([]domain.CompetitionRound, error)
}

// StoreTx is the set of operations available inside a transaction. The
// ForUpdate reads lock their rows until the transaction ends.
type StoreTx interface {
	GetRound(ctx context.Context, topicID, section string) (domain.CompetitionRound, bool, error)
	SaveRound(ctx context.Context, round domain.CompetitionRound) error

	FindOpenSession(ctx context.Context, studentID, topicID string, mode domain.Mode, round int) (domain.Session, bool, error)
	FindCompletedCompetition(ctx context.Context, studentID, topicID string, round int) (domain.Session, bool, error)
	CreateSession(ctx context.Context, session domain.Session) error
	SessionForUpdate(ctx context.Context, sessionID string) (domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) error

	AnswerCount(ctx context.Context, sessionID string) (int, error)
	HasAnswer(ctx context.Context, sessionID, questionID string) (bool, error)
	InsertAnswer(ctx context.Context, answer domain.Answer) error

	StatsForUpdate(ctx context.Context, studentID string) (domain.StudentStats, bool, error)
	SaveStats(ctx context.Context, stats domain.StudentStats) error

	BadgeTypes(ctx context.Context, studentID string) ([]domain.BadgeType, error)
	AwardBadges(ctx context.Context, awards []domain.BadgeAward) error
	// RecentCompetitionAccuracies returns accuracies of completed competition
	// sessions, newest first, at most limit entries.
	RecentCompetitionAccuracies(ctx context.Context, studentID string, limit int) ([]int, error)
}
