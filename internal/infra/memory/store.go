package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"sciquest/internal/app"
	"sciquest/internal/domain"
)

// Store is an in-process implementation of app.Store. One mutex is held for
// the whole of a transaction, and a failed transaction restores the state
// captured when it began.
type Store struct {
	mu   sync.Mutex
	data state
}

type roundKey struct {
	topicID string
	section string
}

type state struct {
	seq      int64
	profiles map[string]domain.Profile
	topics   map[string]domain.Topic
	sessions map[string]storedSession
	answers  map[string][]domain.Answer
	stats    map[string]domain.StudentStats
	badges   map[string][]domain.BadgeAward
	rounds   map[roundKey]domain.CompetitionRound
}

type storedSession struct {
	session domain.Session
	seq     int64
}

func NewStore() *Store {
	return &Store{data: state{
		profiles: make(map[string]domain.Profile),
		topics:   make(map[string]domain.Topic),
		sessions: make(map[string]storedSession),
		answers:  make(map[string][]domain.Answer),
		stats:    make(map[string]domain.StudentStats),
		badges:   make(map[string][]domain.BadgeAward),
		rounds:   make(map[roundKey]domain.CompetitionRound),
	}}
}

func (s state) clone() state {
	out := s
	out.profiles = cloneMap(s.profiles)
	out.topics = cloneMap(s.topics)
	out.sessions = cloneMap(s.sessions)
	out.answers = make(map[string][]domain.Answer, len(s.answers))
	for k, v := range s.answers {
		out.answers[k] = slices.Clone(v)
	}
	out.stats = cloneMap(s.stats)
	out.badges = make(map[string][]domain.BadgeAward, len(s.badges))
	for k, v := range s.badges {
		out.badges[k] = slices.Clone(v)
	}
	out.rounds = cloneMap(s.rounds)
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithinTx runs fn with exclusive access to the store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx app.StoreTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&storeTx{data: &s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// UpsertProfile inserts or replaces a profile.
func (s *Store) UpsertProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.profiles[profile.ID] = profile
	return nil
}

// UpsertTopic inserts or replaces a topic with its questions and lesson cards.
func (s *Store) UpsertTopic(_ context.Context, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic.Questions = slices.Clone(topic.Questions)
	for i := range topic.Questions {
		topic.Questions[i].TopicID = topic.ID
	}
	s.data.topics[topic.ID] = topic
	return nil
}

// LoadTopic satisfies the topic loader used by the topic caches.
func (s *Store) LoadTopic(_ context.Context, topicID string) (domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic, ok := s.data.topics[topicID]
	if !ok || !topic.IsActive {
		return domain.Topic{}, domain.ErrTopicNotFound
	}
	return topic, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.data.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return profile, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(stored.session), nil
}

func (s *Store) GetStats(_ context.Context, studentID string) (domain.StudentStats, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.data.stats[studentID]
	return stats, ok, nil
}

func (s *Store) ListBadges(_ context.Context, studentID string) ([]domain.BadgeAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	badges := slices.Clone(s.data.badges[studentID])
	// Awards are appended in time order.
	slices.Reverse(badges)
	return badges, nil
}

func (s *Store) RecentSessions(_ context.Context, studentID string, limit int) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.completedSessions(studentID, "", limit), nil
}

func (s *Store) Leaderboard(_ context.Context, section string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.LeaderboardEntry, 0, len(s.data.stats))
	for studentID, stats := range s.data.stats {
		profile, ok := s.data.profiles[studentID]
		if !ok || profile.Role != domain.RoleStudent {
			continue
		}
		if section != "" && profile.ClassSection != section {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			StudentID:       studentID,
			Name:            profile.Name,
			Avatar:          profile.Avatar,
			ClassSection:    profile.ClassSection,
			OverallAccuracy: stats.OverallAccuracy,
			XP:              stats.XP,
			Level:           stats.Level,
			StreakWeeks:     stats.StreakWeeks,
			TotalSessions:   stats.TotalSessions,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.OverallAccuracy != b.OverallAccuracy {
			return a.OverallAccuracy > b.OverallAccuracy
		}
		if a.XP != b.XP {
			return a.XP > b.XP
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) ListRounds(_ context.Context, topicID string) ([]domain.CompetitionRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rounds []domain.CompetitionRound
	for key, round := range s.data.rounds {
		if key.topicID == topicID {
			rounds = append(rounds, round)
		}
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].ClassSection < rounds[j].ClassSection })
	return rounds, nil
}

// completedSessions returns completed sessions newest first, optionally
// filtered by mode.
func (d *state) completedSessions(studentID string, mode domain.Mode, limit int) []domain.Session {
	var found []storedSession
	for _, stored := range d.sessions {
		sess := stored.session
		if sess.StudentID != studentID || !sess.IsComplete {
			continue
		}
		if mode != "" && sess.Mode != mode {
			continue
		}
		found = append(found, stored)
	}
	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if !a.session.CompletedAt.Equal(*b.session.CompletedAt) {
			return a.session.CompletedAt.After(*b.session.CompletedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	out := make([]domain.Session, len(found))
	for i, stored := range found {
		out[i] = cloneSession(stored.session)
	}
	return out
}

func cloneSession(s domain.Session) domain.Session {
	s.QuestionIDs = slices.Clone(s.QuestionIDs)
	s.PowerUps = slices.Clone(s.PowerUps)
	return s
}

type storeTx struct {
	data *state
}

func (t *storeTx) GetRound(_ context.Context, topicID, section string) (domain.CompetitionRound, bool, error) {
	round, ok := t.data.rounds[roundKey{topicID: topicID, section: section}]
	return round, ok, nil
}

func (t *storeTx) SaveRound(_ context.Context, round domain.CompetitionRound) error {
	t.data.rounds[roundKey{topicID: round.TopicID, section: round.ClassSection}] = round
	return nil
}

func (t *storeTx) FindOpenSession(_ context.Context, studentID, topicID string, mode domain.Mode, round int) (domain.Session, bool, error) {
	var (
		best  storedSession
		found bool
	)
	for _, stored := range t.data.sessions {
		sess := stored.session
		if sess.StudentID != studentID || sess.TopicID != topicID || sess.Mode != mode || sess.IsComplete {
			continue
		}
		if mode == domain.ModeCompetition && sess.CompetitionRound != round {
			continue
		}
		if !found || stored.seq > best.seq {
			best, found = stored, true
		}
	}
	if !found {
		return domain.Session{}, false, nil
	}
	return cloneSession(best.session), true, nil
}

func (t *storeTx) FindCompletedCompetition(_ context.Context, studentID, topicID string, round int) (domain.Session, bool, error) {
	for _, stored := range t.data.sessions {
		sess := stored.session
		if sess.StudentID == studentID && sess.TopicID == topicID && sess.Mode == domain.ModeCompetition &&
			sess.CompetitionRound == round && sess.IsComplete {
			return cloneSession(sess), true, nil
		}
	}
	return domain.Session{}, false, nil
}

func (t *storeTx) CreateSession(_ context.Context, session domain.Session) error {
	t.data.seq++
	t.data.sessions[session.ID] = storedSession{session: cloneSession(session), seq: t.data.seq}
	return nil
}

func (t *storeTx) SessionForUpdate(_ context.Context, sessionID string) (domain.Session, error) {
	stored, ok := t.data.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return cloneSession(stored.session), nil
}

func (t *storeTx) UpdateSession(_ context.Context, session domain.Session) error {
	stored, ok := t.data.sessions[session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	stored.session = cloneSession(session)
	t.data.sessions[session.ID] = stored
	return nil
}

func (t *storeTx) AnswerCount(_ context.Context, sessionID string) (int, error) {
	return len(t.data.answers[sessionID]), nil
}

func (t *storeTx) HasAnswer(_ context.Context, sessionID, questionID string) (bool, error) {
	for _, a := range t.data.answers[sessionID] {
		if a.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (t *storeTx) InsertAnswer(_ context.Context, answer domain.Answer) error {
	t.data.answers[answer.SessionID] = append(t.data.answers[answer.SessionID], answer)
	return nil
}

func (t *storeTx) StatsForUpdate(_ context.Context, studentID string) (domain.StudentStats, bool, error) {
	stats, ok := t.data.stats[studentID]
	return stats, ok, nil
}

func (t *storeTx) SaveStats(_ context.Context, stats domain.StudentStats) error {
	t.data.stats[stats.StudentID] = stats
	return nil
}

func (t *storeTx) BadgeTypes(_ context.Context, studentID string) ([]domain.BadgeType, error) {
	awards := t.data.badges[studentID]
	types := make([]domain.BadgeType, len(awards))
	for i, a := range awards {
		types[i] = a.Type
	}
	return types, nil
}

func (t *storeTx) AwardBadges(_ context.Context, awards []domain.BadgeAward) error {
	for _, award := range awards {
		existing := t.data.badges[award.StudentID]
		if slices.ContainsFunc(existing, func(b domain.BadgeAward) bool { return b.Type == award.Type }) {
			continue
		}
		t.data.badges[award.StudentID] = append(existing, award)
	}
	return nil
}

func (t *storeTx) RecentCompetitionAccuracies(_ context.Context, studentID string, limit int) ([]int, error) {
	sessions := t.data.completedSessions(studentID, domain.ModeCompetition, limit)
	out := make([]int, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Accuracy
	}
	return out, nil
}
