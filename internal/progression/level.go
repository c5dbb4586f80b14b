// Package progression holds the scoring rules applied when a session completes:
// levels, weekly streaks, XP awards, running accuracy and badges.
package progression

// Level is one tier of the leveling table.
type Level struct {
	Number int    `json:"level"`
	Title  string `json:"title"`
	MinXP  int    `json:"minXp"`
}

// Levels is ordered by ascending MinXP.
var Levels = []Level{
	{Number: 1, Title: "Lab Intern", MinXP: 0},
	{Number: 2, Title: "Field Researcher", MinXP: 500},
	{Number: 3, Title: "Scientist", MinXP: 1200},
	{Number: 4, Title: "Senior Scientist", MinXP: 2500},
	{Number: 5, Title: "Lead Researcher", MinXP: 4500},
	{Number: 6, Title: "Professor", MinXP: 7500},
}

// LevelForXP returns the highest tier whose threshold is <= xp.
func LevelForXP(xp int) Level {
	current := Levels[0]
	for _, l := range Levels {
		if xp >= l.MinXP {
			current = l
		}
	}
	return current
}

// NextLevel returns the tier after the one xp falls in, or false at the top tier.
func NextLevel(xp int) (Level, bool) {
	for _, l := range Levels {
		if l.MinXP > xp {
			return l, true
		}
	}
	return Level{}, false
}

// LevelProgress is the percentage of the way from the current tier to the next, 100 at max level.
func LevelProgress(xp int) int {
	current := LevelForXP(xp)
	next, ok := NextLevel(xp)
	if !ok {
		return 100
	}
	return roundDiv(100*(xp-current.MinXP), next.MinXP-current.MinXP)
}
