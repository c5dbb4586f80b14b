package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"sciquest/internal/domain"
)

// LoadTopic reads an active topic with its questions and lesson cards.
func (s *Store) LoadTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	var t domain.Topic
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, standard, description, week_number, is_active, competition_limit
		 FROM topics WHERE id = $1 AND is_active`, topicID,
	).Scan(&t.ID, &t.Title, &t.Standard, &t.Description, &t.WeekNumber, &t.IsActive, &t.CompetitionLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Topic{}, domain.ErrTopicNotFound
	}
	if err != nil {
		return domain.Topic{}, backend("load topic", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, question_text, options, correct_option, explanation, hint, order_index
		 FROM questions WHERE topic_id = $1 ORDER BY order_index, id`, topicID)
	if err != nil {
		return domain.Topic{}, backend("load questions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			q       domain.Question
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &options, &q.CorrectOption, &q.Explanation, &q.Hint, &q.OrderIndex); err != nil {
			return domain.Topic{}, backend("scan question", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.Topic{}, fmt.Errorf("unmarshal options of question %s: %w", q.ID, err)
		}
		q.TopicID = topicID
		t.Questions = append(t.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Topic{}, backend("load questions", err)
	}

	cards, err := s.pool.Query(ctx,
		`SELECT id, title, body, order_index FROM lesson_cards WHERE topic_id = $1 ORDER BY order_index, id`, topicID)
	if err != nil {
		return domain.Topic{}, backend("load lesson cards", err)
	}
	defer cards.Close()
	for cards.Next() {
		var c domain.LessonCard
		if err := cards.Scan(&c.ID, &c.Title, &c.Body, &c.OrderIndex); err != nil {
			return domain.Topic{}, backend("scan lesson card", err)
		}
		t.LessonCards = append(t.LessonCards, c)
	}
	if err := cards.Err(); err != nil {
		return domain.Topic{}, backend("load lesson cards", err)
	}
	return t, nil
}

// UpsertProfile inserts or updates a profile.
func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, name, avatar, role, class_section) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, avatar = EXCLUDED.avatar,
		   role = EXCLUDED.role, class_section = EXCLUDED.class_section`,
		p.ID, p.Name, p.Avatar, string(p.Role), p.ClassSection)
	if err != nil {
		return backend("upsert profile", err)
	}
	return nil
}

// UpsertTopic replaces a topic's content. Questions and lesson cards missing
// from the new version are removed.
func (s *Store) UpsertTopic(ctx context.Context, t domain.Topic) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return backend("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO topics (id, title, standard, description, week_number, is_active, competition_limit)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, standard = EXCLUDED.standard,
		   description = EXCLUDED.description, week_number = EXCLUDED.week_number,
		   is_active = EXCLUDED.is_active, competition_limit = EXCLUDED.competition_limit`,
		t.ID, t.Title, t.Standard, t.Description, t.WeekNumber, t.IsActive, t.CompetitionLimit)
	if err != nil {
		return backend("upsert topic", err)
	}

	questionIDs := make([]string, 0, len(t.Questions))
	for _, q := range t.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options of question %s: %w", q.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (id, topic_id, question_text, options, correct_option, explanation, hint, order_index)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET topic_id = EXCLUDED.topic_id, question_text = EXCLUDED.question_text,
			   options = EXCLUDED.options, correct_option = EXCLUDED.correct_option,
			   explanation = EXCLUDED.explanation, hint = EXCLUDED.hint, order_index = EXCLUDED.order_index`,
			q.ID, t.ID, q.Text, options, q.CorrectOption, q.Explanation, q.Hint, q.OrderIndex)
		if err != nil {
			return backend("upsert question", err)
		}
		questionIDs = append(questionIDs, q.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE topic_id = $1 AND NOT (id = ANY($2))`, t.ID, questionIDs); err != nil {
		return backend("prune questions", err)
	}

	cardIDs := make([]string, 0, len(t.LessonCards))
	for _, c := range t.LessonCards {
		_, err := tx.Exec(ctx,
			`INSERT INTO lesson_cards (id, topic_id, title, body, order_index) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET topic_id = EXCLUDED.topic_id, title = EXCLUDED.title,
			   body = EXCLUDED.body, order_index = EXCLUDED.order_index`,
			c.ID, t.ID, c.Title, c.Body, c.OrderIndex)
		if err != nil {
			return backend("upsert lesson card", err)
		}
		cardIDs = append(cardIDs, c.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM lesson_cards WHERE topic_id = $1 AND NOT (id = ANY($2))`, t.ID, cardIDs); err != nil {
		return backend("prune lesson cards", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return backend("commit tx", err)
	}
	return nil
}
