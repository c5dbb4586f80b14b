package progression

import "sciquest/internal/domain"

// ScienceBrainRun is how many consecutive competition sessions must reach ScienceBrainAccuracy.
const (
	ScienceBrainRun      = 3
	ScienceBrainAccuracy = 90
)

// BadgeInput is the post-completion state the badge rules look at.
type BadgeInput struct {
	Accuracy      int
	Streak        int
	TotalSessions int
	// RecentCompetitionAccuracies holds the accuracies of the most recent
	// completed competition sessions, newest first, including this one.
	RecentCompetitionAccuracies []int
}

type badgeRule struct {
	badge   domain.BadgeType
	qualify func(BadgeInput) bool
}

var badgeRules = []badgeRule{
	{domain.BadgeFirstSession, func(in BadgeInput) bool { return in.TotalSessions == 1 }},
	{domain.BadgePerfectionist, func(in BadgeInput) bool { return in.Accuracy == 100 }},
	{domain.BadgeOnFire, func(in BadgeInput) bool { return in.Streak >= 3 }},
	{domain.BadgeVeteran, func(in BadgeInput) bool { return in.TotalSessions >= 10 }},
	{domain.BadgeScienceBrain, scienceBrain},
}

func scienceBrain(in BadgeInput) bool {
	if len(in.RecentCompetitionAccuracies) < ScienceBrainRun {
		return false
	}
	for _, acc := range in.RecentCompetitionAccuracies[:ScienceBrainRun] {
		if acc < ScienceBrainAccuracy {
			return false
		}
	}
	return true
}

// EvaluateBadges returns the badges that newly qualify, skipping any type in
// existing. Calling it again with the result merged into existing returns nothing.
func EvaluateBadges(existing []domain.BadgeType, in BadgeInput) []domain.BadgeType {
	earned := make(map[domain.BadgeType]struct{}, len(existing))
	for _, b := range existing {
		earned[b] = struct{}{}
	}

	var awarded []domain.BadgeType
	for _, rule := range badgeRules {
		if _, ok := earned[rule.badge]; ok {
			continue
		}
		if rule.qualify(in) {
			awarded = append(awarded, rule.badge)
		}
	}
	return awarded
}
