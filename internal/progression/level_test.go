package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp    int
		level int
		title string
	}{
		{0, 1, "Lab Intern"},
		{499, 1, "Lab Intern"},
		{500, 2, "Field Researcher"},
		{1199, 2, "Field Researcher"},
		{1200, 3, "Scientist"},
		{2499, 3, "Scientist"},
		{2500, 4, "Senior Scientist"},
		{4499, 4, "Senior Scientist"},
		{4500, 5, "Lead Researcher"},
		{7499, 5, "Lead Researcher"},
		{7500, 6, "Professor"},
		{100000, 6, "Professor"},
	}
	for _, tt := range tests {
		got := LevelForXP(tt.xp)
		assert.Equal(t, tt.level, got.Number, "xp=%d", tt.xp)
		assert.Equal(t, tt.title, got.Title, "xp=%d", tt.xp)
	}
}

func TestLevelForXPNonDecreasing(t *testing.T) {
	prev := 0
	for xp := 0; xp <= 9000; xp += 7 {
		lvl := LevelForXP(xp).Number
		if lvl < prev {
			t.Fatalf("level dropped from %d to %d at xp=%d", prev, lvl, xp)
		}
		prev = lvl
	}
}

func TestNextLevelAndProgress(t *testing.T) {
	next, ok := NextLevel(850)
	assert.True(t, ok)
	assert.Equal(t, 3, next.Number)
	assert.Equal(t, 50, LevelProgress(850))

	_, ok = NextLevel(7500)
	assert.False(t, ok)
	assert.Equal(t, 100, LevelProgress(9000))
	assert.Equal(t, 0, LevelProgress(0))
}
