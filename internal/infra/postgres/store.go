package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"sciquest/internal/app"
	"sciquest/internal/domain"
)

const uniqueViolation = "23505"

const sessionColumns = `id, student_id, topic_id, mode, question_ids, is_complete, correct_answers,
	total_attempts, accuracy, xp_earned, power_ups, competition_round, started_at, completed_at`

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// Store implements app.Store on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn in a read-committed transaction. Rows read with the
// ForUpdate methods stay locked until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(tx app.StoreTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return backend("begin tx", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&storeTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return backend("commit tx", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, avatar, role, class_section FROM profiles WHERE id = $1`, userID,
	).Scan(&p.ID, &p.Name, &p.Avatar, &role, &p.ClassSection)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, backend("get profile", err)
	}
	p.Role = domain.Role(role)
	return p, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return getSession(ctx, s.pool, sessionID, false)
}

func (s *Store) GetStats(ctx context.Context, studentID string) (domain.StudentStats, bool, error) {
	return getStats(ctx, s.pool, studentID, false)
}

func (s *Store) ListBadges(ctx context.Context, studentID string) ([]domain.BadgeAward, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT student_id, badge_type, earned_at FROM badges WHERE student_id = $1 ORDER BY earned_at DESC, badge_type`,
		studentID)
	if err != nil {
		return nil, backend("list badges", err)
	}
	defer rows.Close()

	var badges []domain.BadgeAward
	for rows.Next() {
		var (
			b         domain.BadgeAward
			badgeType string
		)
		if err := rows.Scan(&b.StudentID, &badgeType, &b.EarnedAt); err != nil {
			return nil, backend("scan badge", err)
		}
		b.Type = domain.BadgeType(badgeType)
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, backend("list badges", err)
	}
	return badges, nil
}

func (s *Store) RecentSessions(ctx context.Context, studentID string, limit int) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE student_id = $1 AND is_complete
		 ORDER BY completed_at DESC LIMIT $2`,
		studentID, limit)
	if err != nil {
		return nil, backend("recent sessions", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, backend("scan session", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, backend("recent sessions", err)
	}
	return sessions, nil
}

func (s *Store) Leaderboard(ctx context.Context, section string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT student_id, name, avatar, class_section, overall_accuracy, xp, level, streak_weeks, total_sessions
		 FROM leaderboard
		 WHERE $1 = '' OR class_section = $1
		 ORDER BY overall_accuracy DESC, xp DESC, name
		 LIMIT $2`,
		section, limit)
	if err != nil {
		return nil, backend("leaderboard", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.StudentID, &e.Name, &e.Avatar, &e.ClassSection, &e.OverallAccuracy,
			&e.XP, &e.Level, &e.StreakWeeks, &e.TotalSessions); err != nil {
			return nil, backend("scan leaderboard", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, backend("leaderboard", err)
	}
	return entries, nil
}

func (s *Store) ListRounds(ctx context.Context, topicID string) ([]domain.CompetitionRound, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, class_section, is_open, round_number FROM competition_rounds
		 WHERE topic_id = $1 ORDER BY class_section`, topicID)
	if err != nil {
		return nil, backend("list rounds", err)
	}
	defer rows.Close()

	var rounds []domain.CompetitionRound
	for rows.Next() {
		var r domain.CompetitionRound
		if err := rows.Scan(&r.TopicID, &r.ClassSection, &r.IsOpen, &r.RoundNumber); err != nil {
			return nil, backend("scan round", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, backend("list rounds", err)
	}
	return rounds, nil
}

type storeTx struct {
	q querier
}

func (t *storeTx) GetRound(ctx context.Context, topicID, section string) (domain.CompetitionRound, bool, error) {
	var r domain.CompetitionRound
	err := t.q.QueryRow(ctx,
		`SELECT topic_id, class_section, is_open, round_number FROM competition_rounds
		 WHERE topic_id = $1 AND class_section = $2 FOR UPDATE`,
		topicID, section,
	).Scan(&r.TopicID, &r.ClassSection, &r.IsOpen, &r.RoundNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CompetitionRound{}, false, nil
	}
	if err != nil {
		return domain.CompetitionRound{}, false, backend("get round", err)
	}
	return r, true, nil
}

func (t *storeTx) SaveRound(ctx context.Context, r domain.CompetitionRound) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO competition_rounds (topic_id, class_section, is_open, round_number, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (topic_id, class_section)
		 DO UPDATE SET is_open = EXCLUDED.is_open, round_number = EXCLUDED.round_number, updated_at = now()`,
		r.TopicID, r.ClassSection, r.IsOpen, r.RoundNumber)
	if err != nil {
		return backend("save round", err)
	}
	return nil
}

func (t *storeTx) FindOpenSession(ctx context.Context, studentID, topicID string, mode domain.Mode, round int) (domain.Session, bool, error) {
	sess, err := scanSession(t.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE student_id = $1 AND topic_id = $2 AND mode = $3 AND competition_round = $4 AND NOT is_complete
		 ORDER BY started_at DESC LIMIT 1`,
		studentID, topicID, string(mode), round))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, backend("find open session", err)
	}
	return sess, true, nil
}

func (t *storeTx) FindCompletedCompetition(ctx context.Context, studentID, topicID string, round int) (domain.Session, bool, error) {
	sess, err := scanSession(t.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE student_id = $1 AND topic_id = $2 AND mode = 'competition' AND competition_round = $3 AND is_complete
		 LIMIT 1`,
		studentID, topicID, round))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, backend("find completed competition", err)
	}
	return sess, true, nil
}

func (t *storeTx) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.StudentID, s.TopicID, string(s.Mode), nonNil(s.QuestionIDs), s.IsComplete, s.CorrectAnswers,
		s.TotalAttempts, s.Accuracy, s.XPEarned, powerUpStrings(s.PowerUps), s.CompetitionRound, s.StartedAt, s.CompletedAt)
	if err != nil {
		return backend("create session", err)
	}
	return nil
}

func (t *storeTx) SessionForUpdate(ctx context.Context, sessionID string) (domain.Session, error) {
	return getSession(ctx, t.q, sessionID, true)
}

func (t *storeTx) UpdateSession(ctx context.Context, s domain.Session) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE sessions SET is_complete = $2, correct_answers = $3, total_attempts = $4, accuracy = $5,
		 xp_earned = $6, power_ups = $7, completed_at = $8
		 WHERE id = $1`,
		s.ID, s.IsComplete, s.CorrectAnswers, s.TotalAttempts, s.Accuracy, s.XPEarned,
		powerUpStrings(s.PowerUps), s.CompletedAt)
	if err != nil {
		return backend("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (t *storeTx) AnswerCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := t.q.QueryRow(ctx, `SELECT count(*) FROM answers WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, backend("count answers", err)
	}
	return n, nil
}

func (t *storeTx) HasAnswer(ctx context.Context, sessionID, questionID string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM answers WHERE session_id = $1 AND question_id = $2)`,
		sessionID, questionID).Scan(&exists)
	if err != nil {
		return false, backend("check answer", err)
	}
	return exists, nil
}

func (t *storeTx) InsertAnswer(ctx context.Context, a domain.Answer) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO answers (id, session_id, question_id, selected_option, is_correct, attempt_number, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.SessionID, a.QuestionID, a.SelectedOption, a.IsCorrect, a.AttemptNumber, a.AnsweredAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyAnswered
	}
	if err != nil {
		return backend("insert answer", err)
	}
	return nil
}

// StatsForUpdate locks the student's stats row. A missing row is created
// first so that two first completions still serialize on the same lock; the
// bool reports whether the row existed before this call.
func (t *storeTx) StatsForUpdate(ctx context.Context, studentID string) (domain.StudentStats, bool, error) {
	tag, err := t.q.Exec(ctx,
		`INSERT INTO student_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, studentID)
	if err != nil {
		return domain.StudentStats{}, false, backend("ensure stats", err)
	}
	stats, ok, err := getStats(ctx, t.q, studentID, true)
	if err != nil || !ok {
		return stats, ok, err
	}
	return stats, tag.RowsAffected() == 0, nil
}

func (t *storeTx) SaveStats(ctx context.Context, s domain.StudentStats) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO student_stats (user_id, xp, level, streak_weeks, last_session_date, overall_accuracy, total_sessions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   xp = EXCLUDED.xp,
		   level = EXCLUDED.level,
		   streak_weeks = EXCLUDED.streak_weeks,
		   last_session_date = EXCLUDED.last_session_date,
		   overall_accuracy = EXCLUDED.overall_accuracy,
		   total_sessions = EXCLUDED.total_sessions`,
		s.StudentID, s.XP, s.Level, s.StreakWeeks, s.LastSessionDate, s.OverallAccuracy, s.TotalSessions)
	if err != nil {
		return backend("save stats", err)
	}
	return nil
}

func (t *storeTx) BadgeTypes(ctx context.Context, studentID string) ([]domain.BadgeType, error) {
	rows, err := t.q.Query(ctx, `SELECT badge_type FROM badges WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, backend("badge types", err)
	}
	defer rows.Close()

	var types []domain.BadgeType
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, backend("scan badge type", err)
		}
		types = append(types, domain.BadgeType(b))
	}
	if err := rows.Err(); err != nil {
		return nil, backend("badge types", err)
	}
	return types, nil
}

func (t *storeTx) AwardBadges(ctx context.Context, awards []domain.BadgeAward) error {
	for _, a := range awards {
		if _, err := t.q.Exec(ctx,
			`INSERT INTO badges (student_id, badge_type, earned_at) VALUES ($1, $2, $3)
			 ON CONFLICT (student_id, badge_type) DO NOTHING`,
			a.StudentID, string(a.Type), a.EarnedAt); err != nil {
			return backend("award badge", err)
		}
	}
	return nil
}

func (t *storeTx) RecentCompetitionAccuracies(ctx context.Context, studentID string, limit int) ([]int, error) {
	rows, err := t.q.Query(ctx,
		`SELECT accuracy FROM sessions
		 WHERE student_id = $1 AND mode = 'competition' AND is_complete
		 ORDER BY completed_at DESC LIMIT $2`,
		studentID, limit)
	if err != nil {
		return nil, backend("recent accuracies", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var acc int
		if err := rows.Scan(&acc); err != nil {
			return nil, backend("scan accuracy", err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, backend("recent accuracies", err)
	}
	return out, nil
}

func getSession(ctx context.Context, q querier, sessionID string, lock bool) (domain.Session, error) {
	sql := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	sess, err := scanSession(q.QueryRow(ctx, sql, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, backend("get session", err)
	}
	return sess, nil
}

func getStats(ctx context.Context, q querier, studentID string, lock bool) (domain.StudentStats, bool, error) {
	sql := `SELECT user_id, xp, level, streak_weeks, last_session_date, overall_accuracy, total_sessions
		FROM student_stats WHERE user_id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var (
		s    domain.StudentStats
		last *time.Time
	)
	err := q.QueryRow(ctx, sql, studentID).Scan(&s.StudentID, &s.XP, &s.Level, &s.StreakWeeks, &last,
		&s.OverallAccuracy, &s.TotalSessions)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StudentStats{}, false, nil
	}
	if err != nil {
		return domain.StudentStats{}, false, backend("get stats", err)
	}
	if last != nil {
		day := last.UTC()
		s.LastSessionDate = &day
	}
	return s, true, nil
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		s        domain.Session
		mode     string
		powerUps []string
	)
	err := row.Scan(&s.ID, &s.StudentID, &s.TopicID, &mode, &s.QuestionIDs, &s.IsComplete, &s.CorrectAnswers,
		&s.TotalAttempts, &s.Accuracy, &s.XPEarned, &powerUps, &s.CompetitionRound, &s.StartedAt, &s.CompletedAt)
	if err != nil {
		return domain.Session{}, err
	}
	s.Mode = domain.Mode(mode)
	for _, p := range powerUps {
		s.PowerUps = append(s.PowerUps, domain.PowerUp(p))
	}
	return s, nil
}

func powerUpStrings(powerUps []domain.PowerUp) []string {
	out := make([]string, len(powerUps))
	for i, p := range powerUps {
		out[i] = string(p)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func backend(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackend, err)
}
