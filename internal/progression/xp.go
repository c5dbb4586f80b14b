package progression

import (
	"math"

	"sciquest/internal/domain"
)

type xpTable struct {
	base        int
	perfect     int
	nearPerfect int
	good        int
	streakBonus int
}

var (
	competitionXP = xpTable{base: 100, perfect: 150, nearPerfect: 100, good: 50, streakBonus: 25}
	practiceXP    = xpTable{base: 50, perfect: 75, nearPerfect: 50, good: 25}
)

// ComputeXP returns the XP awarded for a completed session. Exactly one
// accuracy bonus applies, the highest threshold met. Practice never earns a
// streak bonus.
func ComputeXP(accuracy int, mode domain.Mode, newStreak int) int {
	table := competitionXP
	if mode == domain.ModePractice {
		table = practiceXP
	}

	xp := table.base
	switch {
	case accuracy == 100:
		xp += table.perfect
	case accuracy >= 95:
		xp += table.nearPerfect
	case accuracy >= 80:
		xp += table.good
	}
	if mode != domain.ModePractice && newStreak > 1 {
		xp += table.streakBonus
	}
	return xp
}

// SessionAccuracy is the rounded percentage of correct answers, 0 when nothing was attempted.
func SessionAccuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return roundDiv(100*correct, total)
}

// UpdateOverallAccuracy folds a new session into the count-weighted running average.
func UpdateOverallAccuracy(priorAverage, priorCount, sessionAccuracy int) int {
	return roundDiv(priorAverage*priorCount+sessionAccuracy, priorCount+1)
}

func roundDiv(num, den int) int {
	return int(math.Round(float64(num) / float64(den)))
}
