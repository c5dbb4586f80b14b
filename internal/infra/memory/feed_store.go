package memory

import (
	"sync"

	"sciquest/internal/app"
)

// FeedStore is an in-memory implementation of app.FeedRepository.
type FeedStore struct {
	mu    sync.RWMutex
	feeds map[string]*app.LeaderboardFeed
}

func NewFeedStore() *FeedStore {
	return &FeedStore{
		feeds: make(map[string]*app.LeaderboardFeed),
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
	}
}
