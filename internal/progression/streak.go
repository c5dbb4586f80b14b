package progression

import "time"

// StreakWindowDays is the longest gap between scored sessions that still continues a streak.
const StreakWindowDays = 7

// EvaluateStreak returns the streak after a competition session completed on today.
// A nil last means the student has never completed a scored session.
// A shield preserves the prior streak across a missed window instead of resetting it.
func EvaluateStreak(last *time.Time, today time.Time, priorStreak int, hasShield bool) int {
	if last == nil {
		return 1
	}
	elapsed := DaysBetween(*last, today)
	switch {
	case elapsed <= StreakWindowDays:
		return priorStreak + 1
	case hasShield:
		return priorStreak
	default:
		return 1
	}
}

// DaysBetween counts whole calendar days (UTC) from a to b. Times within the
// same day count as zero days apart.
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)).Hours() / 24)
}

// TruncateDay drops the time-of-day, returning midnight UTC of t's date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
