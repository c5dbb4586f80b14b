package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"sciquest/internal/domain"
)

// CompetitionService lets teachers open and close competition rounds per class section.
type CompetitionService struct {
	store    Store
	topics   TopicRepository
	sections []string
	logger   *zap.Logger
}

func NewCompetitionService(store Store, topics TopicRepository, sections []string, logger *zap.Logger) *CompetitionService {
	return &CompetitionService{store: store, topics: topics, sections: sections, logger: logger}
}

// Sections lists the class sections rounds can be opened for.
func (s *CompetitionService) Sections() []string {
	return slices.Clone(s.sections)
}

// OpenRound opens a new round for one section. The round number goes up on
// every open, so students who finished the previous round may compete again.
func (s *CompetitionService) OpenRound(ctx context.Context, topicID, section string) (domain.CompetitionRound, error) {
	if err := s.check(ctx, topicID, section); err != nil {
		return domain.CompetitionRound{}, err
	}
	var round domain.CompetitionRound
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		var err error
		round, err = openRound(ctx, tx, topicID, section)
		return err
	})
	if err != nil {
		return domain.CompetitionRound{}, err
	}
	s.logger.Info("competition round opened",
		zap.String("topic_id", topicID),
		zap.String("section", section),
		zap.Int("round", round.RoundNumber),
	)
	return round, nil
}

// CloseRound closes a section's round. The round number is left unchanged.
func (s *CompetitionService) CloseRound(ctx context.Context, topicID, section string) (domain.CompetitionRound, error) {
	if err := s.check(ctx, topicID, section); err != nil {
		return domain.CompetitionRound{}, err
	}
	var round domain.CompetitionRound
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		var err error
		round, err = closeRound(ctx, tx, topicID, section)
		return err
	})
	if err != nil {
		return domain.CompetitionRound{}, err
	}
	s.logger.Info("competition round closed",
		zap.String("topic_id", topicID),
		zap.String("section", section),
		zap.Int("round", round.RoundNumber),
	)
	return round, nil
}

// OpenAll opens a round for every configured section.
func (s *CompetitionService) OpenAll(ctx context.Context, topicID string) ([]domain.CompetitionRound, error) {
	return s.all(ctx, topicID, openRound)
}

// CloseAll closes the round of every configured section. Sections that never
// had a round are reported as closed round 0.
func (s *CompetitionService) CloseAll(ctx context.Context, topicID string) ([]domain.CompetitionRound, error) {
	return s.all(ctx, topicID, func(ctx context.Context, tx StoreTx, topicID, section string) (domain.CompetitionRound, error) {
		round, err := closeRound(ctx, tx, topicID, section)
		if errors.Is(err, domain.ErrRoundNotFound) {
			return domain.CompetitionRound{TopicID: topicID, ClassSection: section}, nil
		}
		return round, err
	})
}

// Rounds returns the round state of every configured section, closed round 0
// for sections that never had one.
func (s *CompetitionService) Rounds(ctx context.Context, topicID string) ([]domain.CompetitionRound, error) {
	if _, err := s.topics.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	stored, err := s.store.ListRounds(ctx, topicID)
	if err != nil {
		return nil, err
	}
	bySection := make(map[string]domain.CompetitionRound, len(stored))
	for _, r := range stored {
		bySection[r.ClassSection] = r
	}
	rounds := make([]domain.CompetitionRound, 0, len(s.sections))
	for _, section := range s.sections {
		r, ok := bySection[section]
		if !ok {
			r = domain.CompetitionRound{TopicID: topicID, ClassSection: section}
		}
		rounds = append(rounds, r)
	}
	return rounds, nil
}

func (s *CompetitionService) all(ctx context.Context, topicID string, apply func(context.Context, StoreTx, string, string) (domain.CompetitionRound, error)) ([]domain.CompetitionRound, error) {
	if _, err := s.topics.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	rounds := make([]domain.CompetitionRound, 0, len(s.sections))
	err := s.store.WithinTx(ctx, func(tx StoreTx) error {
		for _, section := range s.sections {
			r, err := apply(ctx, tx, topicID, section)
			if err != nil {
				return err
			}
			rounds = append(rounds, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("competition rounds updated", zap.String("topic_id", topicID), zap.Int("sections", len(rounds)))
	return rounds, nil
}

func (s *CompetitionService) check(ctx context.Context, topicID, section string) error {
	if !slices.Contains(s.sections, section) {
		return fmt.Errorf("%w: unknown class section %q", domain.ErrValidation, section)
	}
	_, err := s.topics.GetTopic(ctx, topicID)
	return err
}

func openRound(ctx context.Context, tx StoreTx, topicID, section string) (domain.CompetitionRound, error) {
	round, _, err := tx.GetRound(ctx, topicID, section)
	if err != nil {
		return domain.CompetitionRound{}, err
	}
	round.TopicID = topicID
	round.ClassSection = section
	round.IsOpen = true
	round.RoundNumber++
	return round, tx.SaveRound(ctx, round)
}

func closeRound(ctx context.Context, tx StoreTx, topicID, section string) (domain.CompetitionRound, error) {
	round, ok, err := tx.GetRound(ctx, topicID, section)
	if err != nil {
		return domain.CompetitionRound{}, err
	}
	if !ok {
		return domain.CompetitionRound{}, domain.ErrRoundNotFound
	}
	round.IsOpen = false
	return round, tx.SaveRound(ctx, round)
}
