package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sciquest/internal/domain"
	"sciquest/internal/metrics"
	"sciquest/internal/progression"
)

// SessionConfig holds the tunables of session creation and power-up pricing.
type SessionConfig struct {
	PracticeQuestions int
	QuestionSeconds   int
	Prices            map[domain.PowerUp]int
}

// LeaderboardNotifier is told when a student's standing may have changed.
type LeaderboardNotifier interface {
	Refresh(ctx context.Context, section string)
}

// SessionService contains the student-facing quiz use cases.
type SessionService struct {
	store    Store
	topics   TopicRepository
	notifier LeaderboardNotifier
	cfg      SessionConfig
	logger   *zap.Logger
	now      func() time.Time
	intn     func(n int) int
}

func NewSessionService(store Store, topics TopicRepository, notifier LeaderboardNotifier, cfg SessionConfig, logger *zap.Logger) *SessionService {
	if cfg.PracticeQuestions <= 0 {
		cfg.PracticeQuestions = 10
	}
	return &SessionService{
		store:    store,
		topics:   topics,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		intn:     rand.IntN,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// WithRandom is test-only for deterministic question picks.
func (s *SessionService) WithRandom(intn func(n int) int) *SessionService {
	s.intn = intn
	return s
}

// QuestionView is a question as shown to a student: no correct option.
type QuestionView struct {
	ID      string          `json:"id"`
	Text    string          `json:"text"`
	Options []domain.Option `json:"options"`
	// Hint is only filled once the hint power-up is bought.
	Hint string `json:"hint,omitempty"`
	// Eliminated lists two wrong option keys when fifty-fifty is bought.
	Eliminated []string `json:"eliminated,omitempty"`
}

// SessionView is everything a client needs to run a quiz.
type SessionView struct {
	Session         domain.Session         `json:"session"`
	TopicTitle      string                 `json:"topicTitle"`
	Questions       []QuestionView         `json:"questions"`
	LessonCards     []domain.LessonCard    `json:"lessonCards,omitempty"`
	StudentXP       int                    `json:"studentXp"`
	QuestionSeconds int                    `json:"questionSeconds,omitempty"`
	PowerUpPrices   map[domain.PowerUp]int `json:"powerUpPrices,omitempty"`
}

// AnswerSubmission is one answer reported by a client.
type AnswerSubmission struct {
	QuestionID     string
	SelectedOption string
	// TimedOut marks an answer auto-submitted when the countdown expired.
	TimedOut bool
}

// AnswerResult tells the client how the answer was graded.
type AnswerResult struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	CorrectOption string `json:"correctOption"`
	Explanation   string `json:"explanation,omitempty"`
}

// CompletionResult is returned once a session is completed.
type CompletionResult struct {
	SessionID  string             `json:"sessionId"`
	Mode       domain.Mode        `json:"mode"`
	XPEarned   int                `json:"xpEarned"`
	Accuracy   int                `json:"accuracy"`
	NewStreak  int                `json:"newStreak"`
	XP         int                `json:"xp"`
	Level      int                `json:"level"`
	LevelTitle string             `json:"levelTitle"`
	NewBadges  []domain.BadgeType `json:"newBadges"`
}

// StartSession resumes the student's in-progress session for the topic and
// mode, or draws a fresh question set and creates one.
func (s *SessionService) StartSession(ctx context.Context, studentID, topicID string, mode domain.Mode) (SessionView, error) {
	profile, err := s.store.GetProfile(ctx, studentID)
	if err != nil {
		return SessionView{}, err
	}
	if profile.Role == domain.RoleTeacher {
		return SessionView{}, domain.ErrForbidden
	}

	topic, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		return SessionView{}, err
	}
	if len(topic.Questions) == 0 {
		return SessionView{}, domain.ErrTopicNotFound
	}

	var session domain.Session
	err = s.store.WithinTx(ctx, func(tx StoreTx) error {
		round := 0
		if mode == domain.ModeCompetition {
			if profile.ClassSection == "" {
				return domain.ErrNoClassSection
			}
			r, ok, err := tx.GetRound(ctx, topicID, profile.ClassSection)
			if err != nil {
				return err
			}
			if !ok || !r.IsOpen {
				return domain.ErrRoundClosed
			}
			round = r.RoundNumber

			done, ok, err := tx.FindCompletedCompetition(ctx, studentID, topicID, round)
			if err != nil {
				return err
			}
			if ok {
				return &domain.CompetitionDoneError{SessionID: done.ID}
			}
		}

		existing, ok, err := tx.FindOpenSession(ctx, studentID, topicID, mode, round)
		if err != nil {
			return err
		}
		if ok {
			session = existing
			return nil
		}

		count := s.cfg.PracticeQuestions
		if mode == domain.ModeCompetition {
			count = len(topic.Questions)
			if topic.CompetitionLimit > 0 {
				count = topic.CompetitionLimit
			}
		}
		picked := pickRandom(topic.Questions, count, s.intn)
		ids := make([]string, len(picked))
		for i, q := range picked {
			ids[i] = q.ID
		}
		session = domain.Session{
			ID:               uuid.NewString(),
			StudentID:        studentID,
			TopicID:          topicID,
			Mode:             mode,
			QuestionIDs:      ids,
			CompetitionRound: round,
			StartedAt:        s.now().UTC(),
		}
		return tx.CreateSession(ctx, session)
	})
	if err != nil {
		return SessionView{}, err
	}

	return s.view(ctx, topic, session)
}

// GetSession returns the student's own session with its questions.
func (s *SessionService) GetSession(ctx context.Context, studentID, sessionID string) (SessionView, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if session.StudentID != studentID {
		return SessionView{}, domain.ErrSessionNotFound
	}
	topic, err := s.topics.GetTopic(ctx, session.TopicID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(ctx, topic, session)
}

// RecordAnswer grades and stores the answer to one question of an in-progress session.
func (s *SessionService) RecordAnswer(ctx context.Context, studentID, sessionID string, sub AnswerSubmission) (AnswerResult, error) {
	if sub.QuestionID == "" {
		return AnswerResult{}, fmt.Errorf("%w: questionId is required", domain.ErrValidation)
	}
	if !sub.TimedOut && sub.SelectedOption == "" {
		return AnswerResult{}, fmt.Errorf("%w: selectedOption is required", domain.ErrValidation)
	}

	// The topic is resolved before the transaction: a cache miss reads
	// through the store, which must not happen while the store is locked.
	current, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if current.StudentID != studentID {
		return AnswerResult{}, domain.ErrSessionNotFound
	}
	topic, err := s.topics.GetTopic(ctx, current.TopicID)
	if err != nil {
		return AnswerResult{}, err
	}
	question, ok := topic.QuestionByID(sub.QuestionID)
	if !ok || !current.HasQuestion(sub.QuestionID) {
		return AnswerResult{}, domain.ErrQuestionNotFound
	}
	selected := ""
	if !sub.TimedOut {
		selected = strings.ToLower(strings.TrimSpace(sub.SelectedOption))
		if !hasOption(question, selected) {
			return AnswerResult{}, fmt.Errorf("%w: unknown option %q", domain.ErrValidation, sub.SelectedOption)
		}
	}

	var result AnswerResult
	err = s.store.WithinTx(ctx, func(tx StoreTx) error {
		session, err := tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.StudentID != studentID {
			return domain.ErrSessionNotFound
		}
		if session.IsComplete {
			return domain.ErrSessionComplete
		}

		answered, err := tx.HasAnswer(ctx, sessionID, sub.QuestionID)
		if err != nil {
			return err
		}
		if answered {
			return domain.ErrAlreadyAnswered
		}

		correct := selected != "" && strings.EqualFold(selected, question.CorrectOption)
		if err := tx.InsertAnswer(ctx, domain.Answer{
			ID:             uuid.NewString(),
			SessionID:      sessionID,
			QuestionID:     sub.QuestionID,
			SelectedOption: selected,
			IsCorrect:      correct,
			AttemptNumber:  1,
			AnsweredAt:     s.now().UTC(),
		}); err != nil {
			return err
		}

		result = AnswerResult{
			QuestionID:    sub.QuestionID,
			Correct:       correct,
			CorrectOption: strings.ToLower(question.CorrectOption),
			Explanation:   question.Explanation,
		}
		return nil
	})
	return result, err
}

// CompleteSession moves a session to complete and applies its XP, streak,
// accuracy and badge effects. Everything commits in one transaction, and a
// session that is already complete is rejected, so a retried request cannot
// award twice.
func (s *SessionService) CompleteSession(ctx context.Context, studentID, sessionID string, correct, total int) (CompletionResult, error) {
	if correct < 0 || total < 0 || correct > total {
		return CompletionResult{}, fmt.Errorf("%w: correct answers must be between 0 and total attempts", domain.ErrValidation)
	}

	now := s.now().UTC()
	accuracy := progression.SessionAccuracy(correct, total)

	var result CompletionResult
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		session, err := tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.StudentID != studentID {
			return domain.ErrSessionNotFound
		}
		if session.IsComplete {
			return domain.ErrSessionComplete
		}

		stats, _, err := tx.StatsForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		stats.StudentID = studentID

		if session.Mode == domain.ModePractice {
			xp := progression.ComputeXP(accuracy, domain.ModePractice, 0)
			if err := tx.UpdateSession(ctx, completed(session, correct, total, accuracy, xp, now)); err != nil {
				return fmt.Errorf("mark session complete: %w", err)
			}
			stats.XP += xp
			stats.Level = progression.LevelForXP(stats.XP).Number
			if err := tx.SaveStats(ctx, stats); err != nil {
				return fmt.Errorf("save stats: %w", err)
			}
			result = newCompletionResult(session, stats, xp, accuracy, stats.StreakWeeks, nil)
			return nil
		}

		shield := session.HasPowerUp(domain.PowerUpStreakShield)
		newStreak := progression.EvaluateStreak(stats.LastSessionDate, now, stats.StreakWeeks, shield)
		xp := progression.ComputeXP(accuracy, domain.ModeCompetition, newStreak)
		overall := progression.UpdateOverallAccuracy(stats.OverallAccuracy, stats.TotalSessions, accuracy)

		if err := tx.UpdateSession(ctx, completed(session, correct, total, accuracy, xp, now)); err != nil {
			return fmt.Errorf("mark session complete: %w", err)
		}

		today := progression.TruncateDay(now)
		stats.XP += xp
		stats.Level = progression.LevelForXP(stats.XP).Number
		stats.StreakWeeks = newStreak
		stats.LastSessionDate = &today
		stats.OverallAccuracy = overall
		stats.TotalSessions++
		if err := tx.SaveStats(ctx, stats); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}

		existing, err := tx.BadgeTypes(ctx, studentID)
		if err != nil {
			return fmt.Errorf("load badges: %w", err)
		}
		recent, err := tx.RecentCompetitionAccuracies(ctx, studentID, progression.ScienceBrainRun)
		if err != nil {
			return fmt.Errorf("load recent sessions: %w", err)
		}
		newBadges := progression.EvaluateBadges(existing, progression.BadgeInput{
			Accuracy:                    accuracy,
			Streak:                      newStreak,
			TotalSessions:               stats.TotalSessions,
			RecentCompetitionAccuracies: recent,
		})
		if len(newBadges) > 0 {
			awards := make([]domain.BadgeAward, len(newBadges))
			for i, b := range newBadges {
				awards[i] = domain.BadgeAward{StudentID: studentID, Type: b, EarnedAt: now}
			}
			if err := tx.AwardBadges(ctx, awards); err != nil {
				return fmt.Errorf("award badges: %w", err)
			}
		}

		result = newCompletionResult(session, stats, xp, accuracy, newStreak, newBadges)
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	metrics.SessionCompleted(string(result.Mode), result.XPEarned, result.NewBadges)
	s.logger.Info("session completed",
		zap.String("session_id", sessionID),
		zap.String("student_id", studentID),
		zap.String("mode", string(result.Mode)),
		zap.Int("accuracy", result.Accuracy),
		zap.Int("xp_earned", result.XPEarned),
		zap.Int("streak", result.NewStreak),
		zap.Int("new_badges", len(result.NewBadges)),
	)
	s.notify(ctx, studentID)
	return result, nil
}

// PurchasePowerUps spends XP on power-ups for a competition session that has
// not had any answers recorded yet.
func (s *SessionService) PurchasePowerUps(ctx context.Context, studentID, sessionID string, powerUps []domain.PowerUp) (SessionView, error) {
	if len(powerUps) == 0 {
		return SessionView{}, fmt.Errorf("%w: no power-ups selected", domain.ErrValidation)
	}
	seen := make(map[domain.PowerUp]struct{}, len(powerUps))
	cost := 0
	for _, p := range powerUps {
		if !p.Valid() {
			return SessionView{}, fmt.Errorf("%w: unknown power-up %q", domain.ErrValidation, p)
		}
		if _, dup := seen[p]; dup {
			return SessionView{}, domain.ErrPowerUpOwned
		}
		seen[p] = struct{}{}
		cost += s.cfg.Prices[p]
	}

	var session domain.Session
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		var err error
		session, err = tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.StudentID != studentID {
			return domain.ErrSessionNotFound
		}
		if session.Mode != domain.ModeCompetition {
			return domain.ErrNotCompetition
		}
		if session.IsComplete {
			return domain.ErrSessionComplete
		}
		for _, p := range powerUps {
			if session.HasPowerUp(p) {
				return domain.ErrPowerUpOwned
			}
		}
		answered, err := tx.AnswerCount(ctx, sessionID)
		if err != nil {
			return err
		}
		if answered > 0 {
			return fmt.Errorf("%w: power-ups must be bought before the first answer", domain.ErrValidation)
		}

		stats, _, err := tx.StatsForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if stats.XP < cost {
			return domain.ErrInsufficientXP
		}
		stats.StudentID = studentID
		stats.XP -= cost
		stats.Level = progression.LevelForXP(stats.XP).Number
		if err := tx.SaveStats(ctx, stats); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}

		session.PowerUps = append(session.PowerUps, powerUps...)
		return tx.UpdateSession(ctx, session)
	})
	if err != nil {
		return SessionView{}, err
	}

	for _, p := range powerUps {
		metrics.PowerUpPurchased(string(p))
	}
	s.logger.Info("power-ups purchased",
		zap.String("session_id", sessionID),
		zap.String("student_id", studentID),
		zap.Int("cost", cost),
	)

	topic, err := s.topics.GetTopic(ctx, session.TopicID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(ctx, topic, session)
}

func (s *SessionService) view(ctx context.Context, topic domain.Topic, session domain.Session) (SessionView, error) {
	stats, _, err := s.store.GetStats(ctx, session.StudentID)
	if err != nil {
		return SessionView{}, err
	}

	view := SessionView{
		Session:     session,
		TopicTitle:  topic.Title,
		Questions:   make([]QuestionView, 0, len(session.QuestionIDs)),
		LessonCards: topic.LessonCards,
		StudentXP:   stats.XP,
	}
	if session.Mode == domain.ModeCompetition {
		view.QuestionSeconds = s.cfg.QuestionSeconds
		view.PowerUpPrices = s.cfg.Prices
	}

	hint := session.HasPowerUp(domain.PowerUpHint)
	fifty := session.HasPowerUp(domain.PowerUpFiftyFifty)
	// Questions removed from the pool since the session started are skipped.
	for _, id := range session.QuestionIDs {
		q, ok := topic.QuestionByID(id)
		if !ok {
			continue
		}
		qv := QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
		if hint {
			qv.Hint = q.Hint
		}
		if fifty {
			qv.Eliminated = eliminateTwo(q)
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

func (s *SessionService) notify(ctx context.Context, studentID string) {
	if s.notifier == nil {
		return
	}
	profile, err := s.store.GetProfile(ctx, studentID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			s.logger.Warn("leaderboard refresh skipped", zap.String("student_id", studentID), zap.Error(err))
		}
		return
	}
	s.notifier.Refresh(ctx, profile.ClassSection)
}

func completed(session domain.Session, correct, total, accuracy, xp int, now time.Time) domain.Session {
	session.IsComplete = true
	session.CorrectAnswers = correct
	session.TotalAttempts = total
	session.Accuracy = accuracy
	session.XPEarned = xp
	session.CompletedAt = &now
	return session
}

func newCompletionResult(session domain.Session, stats domain.StudentStats, xp, accuracy, streak int, badges []domain.BadgeType) CompletionResult {
	if badges == nil {
		badges = []domain.BadgeType{}
	}
	return CompletionResult{
		SessionID:  session.ID,
		Mode:       session.Mode,
		XPEarned:   xp,
		Accuracy:   accuracy,
		NewStreak:  streak,
		XP:         stats.XP,
		Level:      stats.Level,
		LevelTitle: progression.LevelForXP(stats.XP).Title,
		NewBadges:  badges,
	}
}

// pickRandom shuffles a copy of pool (Fisher-Yates) and returns the first n.
func pickRandom(pool []domain.Question, n int, intn func(int) int) []domain.Question {
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

func hasOption(q domain.Question, key string) bool {
	for _, o := range q.Options {
		if strings.EqualFold(o.Key, key) {
			return true
		}
	}
	return false
}

// eliminateTwo picks the first two wrong options by key so reloads show the same result.
func eliminateTwo(q domain.Question) []string {
	var wrong []string
	for _, o := range q.Options {
		if !strings.EqualFold(o.Key, q.CorrectOption) {
			wrong = append(wrong, strings.ToLower(o.Key))
		}
	}
	sort.Strings(wrong)
	if len(wrong) > 2 {
		wrong = wrong[:2]
	}
	return wrong
}
