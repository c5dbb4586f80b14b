package app

import (
	"context"

	"sciquest/internal/domain"
	"sciquest/internal/progression"
)

const recentSessionLimit = 5

// ProgressView is a student's dashboard: stats, level, badges and recent sessions.
type ProgressView struct {
	Stats          domain.StudentStats `json:"stats"`
	Level          progression.Level   `json:"level"`
	NextLevel      *progression.Level  `json:"nextLevel,omitempty"`
	LevelProgress  int                 `json:"levelProgress"`
	Badges         []domain.BadgeAward `json:"badges"`
	RecentSessions []domain.Session    `json:"recentSessions"`
}

// Progress assembles the student's progression summary.
func (s *SessionService) Progress(ctx context.Context, studentID string) (ProgressView, error) {
	if _, err := s.store.GetProfile(ctx, studentID); err != nil {
		return ProgressView{}, err
	}
	stats, _, err := s.store.GetStats(ctx, studentID)
	if err != nil {
		return ProgressView{}, err
	}
	stats.StudentID = studentID
	badges, err := s.store.ListBadges(ctx, studentID)
	if err != nil {
		return ProgressView{}, err
	}
	recent, err := s.store.RecentSessions(ctx, studentID, recentSessionLimit)
	if err != nil {
		return ProgressView{}, err
	}
	if badges == nil {
		badges = []domain.BadgeAward{}
	}
	if recent == nil {
		recent = []domain.Session{}
	}

	view := ProgressView{
		Stats:          stats,
		Level:          progression.LevelForXP(stats.XP),
		LevelProgress:  progression.LevelProgress(stats.XP),
		Badges:         badges,
		RecentSessions: recent,
	}
	if next, ok := progression.NextLevel(stats.XP); ok {
		view.NextLevel = &next
	}
	return view, nil
}
