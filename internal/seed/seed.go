// Package seed loads profiles and topic content from a YAML file into a store.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sciquest/internal/domain"
)

type File struct {
	Profiles []domain.Profile `yaml:"profiles"`
	Topics   []domain.Topic   `yaml:"topics"`
}

// Target receives the seeded records. Both the Postgres and the memory
// stores implement it.
type Target interface {
	UpsertProfile(ctx context.Context, profile domain.Profile) error
	UpsertTopic(ctx context.Context, topic domain.Topic) error
}

// Invalidator drops cached topic content after it has been rewritten.
type Invalidator interface {
	Invalidate(ctx context.Context, topicID string) error
}

func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(data)
}

// Parse decodes and validates seed YAML.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f File) validate() error {
	profiles := make(map[string]bool, len(f.Profiles))
	for _, p := range f.Profiles {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("%w: profile needs id and name", domain.ErrValidation)
		}
		if p.Role != domain.RoleStudent && p.Role != domain.RoleTeacher {
			return fmt.Errorf("%w: profile %s has unknown role %q", domain.ErrValidation, p.ID, p.Role)
		}
		if profiles[p.ID] {
			return fmt.Errorf("%w: duplicate profile %s", domain.ErrValidation, p.ID)
		}
		profiles[p.ID] = true
	}

	topics := make(map[string]bool, len(f.Topics))
	for _, t := range f.Topics {
		if t.ID == "" || t.Title == "" {
			return fmt.Errorf("%w: topic needs id and title", domain.ErrValidation)
		}
		if topics[t.ID] {
			return fmt.Errorf("%w: duplicate topic %s", domain.ErrValidation, t.ID)
		}
		topics[t.ID] = true

		questions := make(map[string]bool, len(t.Questions))
		for _, q := range t.Questions {
			if q.ID == "" || questions[q.ID] {
				return fmt.Errorf("%w: topic %s has a missing or duplicate question id %q", domain.ErrValidation, t.ID, q.ID)
			}
			questions[q.ID] = true
			if len(q.Options) < 2 {
				return fmt.Errorf("%w: question %s needs at least two options", domain.ErrValidation, q.ID)
			}
			if !hasOption(q.Options, q.CorrectOption) {
				return fmt.Errorf("%w: question %s correct option %q is not one of its options", domain.ErrValidation, q.ID, q.CorrectOption)
			}
		}
	}
	return nil
}

func hasOption(options []domain.Option, key string) bool {
	for _, o := range options {
		if strings.EqualFold(o.Key, key) {
			return true
		}
	}
	return false
}

// Apply upserts every record and invalidates cached topics. cache may be nil.
func Apply(ctx context.Context, target Target, cache Invalidator, f File) error {
	for _, p := range f.Profiles {
		if err := target.UpsertProfile(ctx, p); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.ID, err)
		}
	}
	for _, t := range f.Topics {
		for i := range t.Questions {
			t.Questions[i].CorrectOption = strings.ToLower(t.Questions[i].CorrectOption)
			for j := range t.Questions[i].Options {
				t.Questions[i].Options[j].Key = strings.ToLower(t.Questions[i].Options[j].Key)
			}
		}
		if err := target.UpsertTopic(ctx, t); err != nil {
			return fmt.Errorf("seed topic %s: %w", t.ID, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, t.ID); err != nil {
				return fmt.Errorf("invalidate topic %s: %w", t.ID, err)
			}
		}
	}
	return nil
}
