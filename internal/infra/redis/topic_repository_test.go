package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sciquest/internal/domain"
	"sciquest/internal/infra/memory"
)

func TestTopicRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{TopicLoader: seededStore(t)}
	repo := NewTopicRepository(newClient(mr), loader, time.Minute, zap.NewNop())

	topic, err := repo.GetTopic(context.Background(), "topic-1")
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("topic:topic-1") {
		t.Fatalf("expected topic cached under topic:topic-1")
	}
	if ttl := mr.TTL("topic:topic-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetTopic(context.Background(), "topic-1")
	if err != nil {
		t.Fatalf("get cached topic: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[0].CorrectOption != topic.Questions[0].CorrectOption {
		t.Fatalf("cached topic lost question data: %+v", cached.Questions[0])
	}
}

func TestTopicRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{TopicLoader: seededStore(t)}
	repo := NewTopicRepository(newClient(mr), loader, time.Minute, zap.NewNop())
	ctx := context.Background()

	if _, err := repo.GetTopic(ctx, "topic-1"); err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if err := repo.Invalidate(ctx, "topic-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("topic:topic-1") {
		t.Fatalf("expected cache entry removed")
	}
	if _, err := repo.GetTopic(ctx, "topic-1"); err != nil {
		t.Fatalf("reload topic: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, calls=%d", loader.calls)
	}
}

func TestTopicRepositoryFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	loader := &countingLoader{TopicLoader: seededStore(t)}
	repo := NewTopicRepository(client, loader, time.Minute, zap.NewNop())

	if _, err := repo.GetTopic(context.Background(), "topic-1"); err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if _, err := repo.GetTopic(context.Background(), "missing"); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected topic not found, got %v", err)
	}
}

type countingLoader struct {
	memory.TopicLoader
	calls int
}

func (l *countingLoader) LoadTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	l.calls++
	return l.TopicLoader.LoadTopic(ctx, topicID)
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.UpsertTopic(context.Background(), domain.Topic{
		ID:       "topic-1",
		Title:    "Energy",
		IsActive: true,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "Which is kinetic energy?",
				Options: []domain.Option{
					{Key: "a", Text: "A rolling ball"},
					{Key: "b", Text: "A stretched band"},
				},
				CorrectOption: "a",
			},
		},
	})
	if err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	return store
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
