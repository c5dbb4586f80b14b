package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"sciquest/internal/app"
)

// FeedStore is a Redis-aware implementation of app.FeedRepository.
// Feeds and their subscribers stay in process; Redis only marks which
// sections have live viewers on some instance.
type FeedStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	feeds  map[string]*app.LeaderboardFeed
}

func NewFeedStore(client *redis.Client, ttl time.Duration) *FeedStore {
	return &FeedStore{
		client: client,
		ttl:    ttl,
		feeds:  make(map[string]*app.LeaderboardFeed),
	}
}

func (s *FeedStore) GetOrCreate(section string) *app.LeaderboardFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds[section]; ok {
		return feed
	}
	feed := app.NewLeaderboardFeed(section)
	s.feeds[section] = feed
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(section), "1", s.ttl).Err()
	return feed
}

func (s *FeedStore) Get(section string) (*app.LeaderboardFeed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[section]
	return feed, ok
}

func (s *FeedStore) DeleteIfEmpty(section string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[section]
	if !ok {
		return
	}
	if feed.IsEmpty() {
		delete(s.feeds, section)
		_ = s.client.Del(context.Background(), s.key(section)).Err()
	}
}

func (s *FeedStore) key(section string) string {
	if section == "" {
		section = "all"
	}
	return "leaderboard:feed:" + section
}
