package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sciquest/internal/domain"
)

// TopicLoader fetches topic content from a backing store.
type TopicLoader interface {
	LoadTopic(ctx context.Context, topicID string) (domain.Topic, error)
}

// TopicRepository caches topics with TTL to avoid repeated DB hits.
type TopicRepository struct {
	loader TopicLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedTopic
}

type cachedTopic struct {
	topic     domain.Topic
	expiresAt time.Time
}

func NewTopicRepository(loader TopicLoader, ttl time.Duration) *TopicRepository {
	return &TopicRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTopic),
	}
}

// WithClock is test-only for controlling expiry.
func (r *TopicRepository) WithClock(now func() time.Time) *TopicRepository {
	r.clock = now
	return r
}

func (r *TopicRepository) GetTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	if topic, ok := r.cached(topicID); ok {
		return topic, nil
	}

	result, err, _ := r.sf.Do(topicID, func() (interface{}, error) {
		if topic, ok := r.cached(topicID); ok {
			return topic, nil
		}

		topic, err := r.loader.LoadTopic(ctx, topicID)
		if err != nil {
			return domain.Topic{}, err
		}

		r.mu.Lock()
		r.cache[topicID] = cachedTopic{
			topic:     topic,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return topic, nil
	})
	if err != nil {
		return domain.Topic{}, err
	}
	return result.(domain.Topic), nil
}

// Invalidate drops a cached topic so the next read reloads it.
func (r *TopicRepository) Invalidate(_ context.Context, topicID string) error {
	r.mu.Lock()
	delete(r.cache, topicID)
	r.mu.Unlock()
	return nil
}

func (r *TopicRepository) cached(topicID string) (domain.Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[topicID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Topic{}, false
	}
	return entry.topic, true
}

func (r *TopicRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
