package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sciquest/internal/domain"
	"sciquest/internal/infra/memory"
)

// TopicRepository caches topics in Redis as JSON (SET topic:{topicID}) and
// falls back to a loader on cache miss. Redis failures degrade to the loader.
type TopicRepository struct {
	client *redis.Client
	loader memory.TopicLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewTopicRepository(client *redis.Client, loader memory.TopicLoader, ttl time.Duration, logger *zap.Logger) *TopicRepository {
	return &TopicRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TopicRepository) GetTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	if topic, ok := r.cached(ctx, topicID); ok {
		return topic, nil
	}

	result, err, _ := r.sf.Do(topicID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if topic, ok := r.cached(ctx, topicID); ok {
			return topic, nil
		}

		topic, err := r.loader.LoadTopic(ctx, topicID)
		if err != nil {
			return domain.Topic{}, err
		}

		payload, err := json.Marshal(topic)
		if err != nil {
			return topic, nil
		}
		if err := r.client.Set(ctx, r.key(topicID), payload, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("topic cache write failed", zap.String("topic_id", topicID), zap.Error(err))
		}
		return topic, nil
	})
	if err != nil {
		return domain.Topic{}, err
	}
	return result.(domain.Topic), nil
}

// Invalidate removes the cached copy of a topic.
func (r *TopicRepository) Invalidate(ctx context.Context, topicID string) error {
	return r.client.Del(ctx, r.key(topicID)).Err()
}

func (r *TopicRepository) cached(ctx context.Context, topicID string) (domain.Topic, bool) {
	raw, err := r.client.Get(ctx, r.key(topicID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("topic cache read failed", zap.String("topic_id", topicID), zap.Error(err))
		}
		return domain.Topic{}, false
	}
	var topic domain.Topic
	if err := json.Unmarshal(raw, &topic); err != nil {
		return domain.Topic{}, false
	}
	return topic, true
}

func (r *TopicRepository) key(topicID string) string {
	return "topic:" + topicID
}

func (r *TopicRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
