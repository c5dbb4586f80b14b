// Package tutor produces AI mini-lessons and the topic-scoped tutor chat.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sciquest/internal/app"
	"sciquest/internal/domain"
	"sciquest/internal/llm"
	"sciquest/internal/metrics"
)

const (
	lessonMaxTokens   = 800
	lessonTemperature = 0.7
	chatMaxTokens     = 300
	chatTemperature   = 0.75
	// MaxHistory is how many prior chat turns are forwarded to the model.
	MaxHistory = 20
)

// Concept is one card of a mini-lesson.
type Concept struct {
	Emoji       string `json:"emoji"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// Lesson is the generated pre-quiz mini-lesson.
type Lesson struct {
	Hook     string    `json:"hook"`
	Concepts []Concept `json:"concepts"`
	QuickTip string    `json:"quickTip"`
}

// Service talks to the model on behalf of students. A nil provider makes
// every call fail with domain.ErrTutorUnavailable.
type Service struct {
	provider llm.Provider
	topics   app.TopicRepository
	logger   *zap.Logger
	timeout  time.Duration
}

func NewService(provider llm.Provider, topics app.TopicRepository, logger *zap.Logger) *Service {
	return &Service{provider: provider, topics: topics, logger: logger}
}

// WithTimeout bounds each model call, retries included.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

func (s *Service) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.provider.Generate(ctx, req)
}

// Lesson generates a mini-lesson for the topic.
func (s *Service) Lesson(ctx context.Context, topicID string) (Lesson, error) {
	if s.provider == nil {
		metrics.TutorRequest("lesson", "unavailable")
		return Lesson{}, domain.ErrTutorUnavailable
	}
	topic, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		return Lesson{}, err
	}

	resp, err := s.generate(ctx, llm.Request{
		System:      lessonSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Text: lessonPrompt(topic)}},
		Schema:      lessonSchema,
		MaxTokens:   lessonMaxTokens,
		Temperature: lessonTemperature,
	})
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			metrics.TutorRequest("lesson", "invalid")
			s.logger.Warn("lesson output rejected", zap.String("topic_id", topicID), zap.Error(err))
			return Lesson{}, domain.ErrInvalidLesson
		}
		metrics.TutorRequest("lesson", "error")
		return Lesson{}, fmt.Errorf("generate lesson: %w", err)
	}

	var lesson Lesson
	if err := json.Unmarshal(resp.JSON, &lesson); err != nil {
		metrics.TutorRequest("lesson", "invalid")
		return Lesson{}, domain.ErrInvalidLesson
	}
	metrics.TutorRequest("lesson", "ok")
	s.logger.Debug("lesson generated",
		zap.String("topic_id", topicID),
		zap.String("model", resp.Model),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return lesson, nil
}

// Chat answers a student's message about the topic. Only the most recent
// MaxHistory turns of history are sent.
func (s *Service) Chat(ctx context.Context, topicID, message string, history []llm.Message) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if s.provider == nil {
		metrics.TutorRequest("chat", "unavailable")
		return "", domain.ErrTutorUnavailable
	}
	topic, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		return "", err
	}

	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleModel
		if m.Role == llm.RoleUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.Message{Role: role, Text: m.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Text: message})

	resp, err := s.generate(ctx, llm.Request{
		System:      chatSystemPrompt(topic),
		Messages:    messages,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		metrics.TutorRequest("chat", "error")
		return "", fmt.Errorf("generate chat reply: %w", err)
	}
	metrics.TutorRequest("chat", "ok")
	return strings.TrimSpace(resp.Text), nil
}
