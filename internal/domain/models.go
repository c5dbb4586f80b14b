package domain

import (
	"fmt"
	"time"
)

// Mode is the kind of quiz session a student is taking.
type Mode string

const (
	ModePractice    Mode = "practice"
	ModeCompetition Mode = "competition"
)

// ParseMode maps a client-supplied mode to a Mode. Only the exact values
// "practice" and "competition" are accepted.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModePractice, ModeCompetition:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("%w: mode must be %q or %q", ErrValidation, ModePractice, ModeCompetition)
	}
}

// Role distinguishes students from teachers.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Profile is the per-user record maintained alongside the auth provider.
type Profile struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Avatar       string `json:"avatar,omitempty" yaml:"avatar"`
	Role         Role   `json:"role" yaml:"role"`
	ClassSection string `json:"classSection,omitempty" yaml:"class_section"`
}

// Option is one lettered choice of a multiple-choice question.
type Option struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// Question is a multiple-choice question from a topic's pool.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	TopicID       string   `json:"topicId" yaml:"-"`
	Text          string   `json:"text" yaml:"text"`
	Options       []Option `json:"options" yaml:"options"`
	CorrectOption string   `json:"correctOption" yaml:"correct_option"`
	Explanation   string   `json:"explanation" yaml:"explanation"`
	Hint          string   `json:"hint,omitempty" yaml:"hint"`
	OrderIndex    int      `json:"orderIndex" yaml:"order_index"`
}

// LessonCard is a short teacher-written card shown before a quiz.
type LessonCard struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Body       string `json:"body" yaml:"body"`
	OrderIndex int    `json:"orderIndex" yaml:"order_index"`
}

// Topic is a weekly unit with its question pool.
type Topic struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Standard    string `json:"standard,omitempty" yaml:"standard"`
	Description string `json:"description,omitempty" yaml:"description"`
	WeekNumber  int    `json:"weekNumber,omitempty" yaml:"week_number"`
	IsActive    bool   `json:"isActive" yaml:"is_active"`
	// CompetitionLimit caps the number of questions drawn for a competition; 0 means the whole pool.
	CompetitionLimit int          `json:"competitionLimit,omitempty" yaml:"competition_limit"`
	Questions        []Question   `json:"questions" yaml:"questions"`
	LessonCards      []LessonCard `json:"lessonCards,omitempty" yaml:"lesson_cards"`
}

// QuestionByID returns the question with the given id from the topic's pool.
func (t Topic) QuestionByID(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// PowerUp is a consumable bought with XP before a competition.
type PowerUp string

const (
	PowerUpFiftyFifty   PowerUp = "fifty_fifty"
	PowerUpHint         PowerUp = "hint"
	PowerUpStreakShield PowerUp = "streak_shield"
)

// Valid reports whether p is a known power-up.
func (p PowerUp) Valid() bool {
	switch p {
	case PowerUpFiftyFifty, PowerUpHint, PowerUpStreakShield:
		return true
	}
	return false
}

// Session is one quiz attempt. It moves from in progress to complete exactly once.
type Session struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"studentId"`
	TopicID        string    `json:"topicId"`
	Mode           Mode      `json:"mode"`
	QuestionIDs    []string  `json:"questionIds"`
	IsComplete     bool      `json:"isComplete"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalAttempts  int       `json:"totalAttempts"`
	Accuracy       int       `json:"accuracy"`
	XPEarned       int       `json:"xpEarned"`
	PowerUps       []PowerUp `json:"powerUps,omitempty"`
	// CompetitionRound is zero for practice sessions.
	CompetitionRound int        `json:"competitionRound,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// HasPowerUp reports whether p was purchased for this session.
func (s Session) HasPowerUp(p PowerUp) bool {
	for _, owned := range s.PowerUps {
		if owned == p {
			return true
		}
	}
	return false
}

// HasQuestion reports whether the question was drawn for this session.
func (s Session) HasQuestion(questionID string) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Answer is an append-only record of one answered question.
type Answer struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	QuestionID     string    `json:"questionId"`
	SelectedOption string    `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	AttemptNumber  int       `json:"attemptNumber"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// StudentStats is the aggregate progression record, one per student.
type StudentStats struct {
	StudentID       string     `json:"studentId"`
	XP              int        `json:"xp"`
	Level           int        `json:"level"`
	StreakWeeks     int        `json:"streakWeeks"`
	LastSessionDate *time.Time `json:"lastSessionDate,omitempty"`
	OverallAccuracy int        `json:"overallAccuracy"`
	TotalSessions   int        `json:"totalSessions"`
}

// BadgeType identifies an achievement.
type BadgeType string

const (
	BadgeFirstSession  BadgeType = "first_session"
	BadgePerfectionist BadgeType = "perfectionist"
	BadgeOnFire        BadgeType = "on_fire"
	BadgeVeteran       BadgeType = "veteran"
	BadgeScienceBrain  BadgeType = "science_brain"
)

// BadgeAward records when a student earned a badge. At most one per type.
type BadgeAward struct {
	StudentID string    `json:"studentId"`
	Type      BadgeType `json:"type"`
	EarnedAt  time.Time `json:"earnedAt"`
}

// CompetitionRound is the open/closed window for one topic and class section.
type CompetitionRound struct {
	TopicID      string `json:"topicId"`
	ClassSection string `json:"classSection"`
	IsOpen       bool   `json:"isOpen"`
	RoundNumber  int    `json:"roundNumber"`
}

// LeaderboardEntry is a ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	StudentID       string `json:"studentId"`
	Name            string `json:"name"`
	Avatar          string `json:"avatar,omitempty"`
	ClassSection    string `json:"classSection,omitempty"`
	OverallAccuracy int    `json:"overallAccuracy"`
	XP              int    `json:"xp"`
	Level           int    `json:"level"`
	LevelTitle      string `json:"levelTitle"`
	StreakWeeks     int    `json:"streakWeeks"`
	TotalSessions   int    `json:"totalSessions"`
}

// Leaderboard captures the ordered ranking for a class section ("" for all sections).
type Leaderboard struct {
	Section   string             `json:"section,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
