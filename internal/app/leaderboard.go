package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sciquest/internal/domain"
	"sciquest/internal/progression"
)

// FeedRepository abstracts where live leaderboard feeds are held (in-memory, Redis, etc).
type FeedRepository interface {
	GetOrCreate(section string) *LeaderboardFeed
	Get(section string) (*LeaderboardFeed, bool)
	DeleteIfEmpty(section string)
}

// LeaderboardService serves ranked standings and pushes them to live subscribers.
type LeaderboardService struct {
	store  Store
	feeds  FeedRepository
	limit  int
	logger *zap.Logger
	now    func() time.Time
}

func NewLeaderboardService(store Store, feeds FeedRepository, limit int, logger *zap.Logger) *LeaderboardService {
	if limit <= 0 {
		limit = 50
	}
	return &LeaderboardService{store: store, feeds: feeds, limit: limit, logger: logger, now: time.Now}
}

// WithClock is test-only for deterministic timestamps.
func (s *LeaderboardService) WithClock(now func() time.Time) *LeaderboardService {
	s.now = now
	return s
}

// Top returns the ranked standings for a class section, or every section when empty.
func (s *LeaderboardService) Top(ctx context.Context, section string, limit int) (domain.Leaderboard, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	entries, err := s.store.Leaderboard(ctx, section, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
		level := progression.LevelForXP(entries[i].XP)
		entries[i].Level = level.Number
		entries[i].LevelTitle = level.Title
	}
	return domain.Leaderboard{Section: section, Entries: entries, UpdatedAt: s.now().UTC()}, nil
}

// Subscribe returns a channel that receives leaderboard updates for a section.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context, section string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Top(ctx, section, s.limit)
	if err != nil {
		return nil, nil, err
	}
	feed := s.feeds.GetOrCreate(section)
	ch, cancel := feed.subscribe(initial)
	return ch, func() {
		cancel()
		if feed.IsEmpty() {
			s.feeds.DeleteIfEmpty(section)
		}
	}, nil
}

// Refresh recomputes and broadcasts the standings for the section and for
// the all-sections view. Feeds nobody is watching are skipped.
func (s *LeaderboardService) Refresh(ctx context.Context, section string) {
	targets := []string{""}
	if section != "" {
		targets = append(targets, section)
	}
	for _, target := range targets {
		feed, ok := s.feeds.Get(target)
		if !ok {
			continue
		}
		lb, err := s.Top(ctx, target, s.limit)
		if err != nil {
			s.logger.Warn("leaderboard refresh failed", zap.String("section", target), zap.Error(err))
			continue
		}
		feed.publish(lb)
	}
}

// LeaderboardFeed fans one section's standings out to its subscribers.
type LeaderboardFeed struct {
	section     string
	mu          sync.Mutex
	latest      domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed(section string) *LeaderboardFeed {
	return &LeaderboardFeed{
		section:     section,
		latest:      domain.Leaderboard{Section: section, Entries: []domain.LeaderboardEntry{}},
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Section is the class section the feed covers ("" for all).
func (f *LeaderboardFeed) Section() string { return f.section }

// IsEmpty reports whether the feed has no subscribers.
func (f *LeaderboardFeed) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) == 0
}

// Latest returns the most recently published standings.
func (f *LeaderboardFeed) Latest() domain.Leaderboard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func (f *LeaderboardFeed) subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if initial.UpdatedAt.After(f.latest.UpdatedAt) {
		f.latest = initial
	}
	snapshot := f.latest
	f.mu.Unlock()

	ch <- snapshot

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *LeaderboardFeed) publish(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = lb
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow reader: drop its stale update so the broadcast never blocks.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
