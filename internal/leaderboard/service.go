package leaderboard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/store/cache"
)

const (
	// Size is the number of players shown on the leaderboard.
	Size = 10

	// AnonymousName is shown for players without an email.
	AnonymousName = "Anonymous"

	defaultPublishInterval = 200 * time.Millisecond
	defaultTrailingTimeout = 10 * time.Second
)

type Store interface {
	ListLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
	Redis    redis.UniversalClient
	Prefix   string
	// CacheTTL of the ranked projection. Zero disables caching.
	CacheTTL time.Duration
	// PublishInterval is the minimum gap between two leaderboard.updated events. Defaults to 200ms.
	PublishInterval time.Duration
}

type Service struct {
	eb              *event.Bus
	store           Store
	redis           redis.UniversalClient
	prefix          string
	cacheTTL        time.Duration
	publishInterval time.Duration

	mu       sync.Mutex
	stopped  bool
	trailing sync.WaitGroup
}

func NewService(c Config) *Service {
	s := &Service{
		eb:              c.EventBus,
		store:           c.Store,
		redis:           c.Redis,
		prefix:          c.Prefix,
		cacheTTL:        c.CacheTTL,
		publishInterval: c.PublishInterval,
	}
	if s.publishInterval <= 0 {
		s.publishInterval = defaultPublishInterval
	}

	s.eb.Subscribe(domain.EventNameProfileUpdated, func(ctx context.Context, e event.Event) error {
		return s.Refresh(ctx, e.(domain.EventProfileUpdated))
	})

	return s
}

// Stop waits for a pending trailing publish and refuses to schedule new ones.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.trailing.Wait()
}

type GetLeaderboardRequest struct {
	User *domain.User
}

type GetLeaderboardResponse struct {
	Entries []domain.LeaderboardEntry
}

// GetLeaderboard returns the top players by total score. Anonymous callers get an empty board.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*GetLeaderboardResponse, error) {
	if req.User == nil {
		return &GetLeaderboardResponse{Entries: []domain.LeaderboardEntry{}}, nil
	}

	entries, err := s.top(ctx)
	if err != nil {
		return nil, err
	}

	return &GetLeaderboardResponse{Entries: entries}, nil
}

// Refresh drops the cached board after a profile changed and announces the new board.
func (s *Service) Refresh(ctx context.Context, e domain.EventProfileUpdated) error {
	if err := cache.Invalidate(ctx, s.redis, s.cacheKey()); err != nil {
		return fmt.Errorf("invalidate leaderboard: profile=%s: %w", e.Profile.ID, err)
	}

	return s.schedulePublish(ctx)
}

// schedulePublish publishes leaderboard.updated at most once per publish interval across all
// instances sharing the Redis. Updates inside the interval are collapsed into one trailing
// publish when the interval ends.
func (s *Service) schedulePublish(ctx context.Context) error {
	ok, err := s.redis.SetNX(ctx, s.publishKey(), time.Now().UnixMilli(), s.publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return s.publishLater(ctx)
	}

	return s.publish(ctx)
}

// publishLater arms the trailing publish. Only one instance holds the pending key at a time.
func (s *Service) publishLater(ctx context.Context) error {
	ok, err := s.redis.SetNX(ctx, s.pendingKey(), time.Now().UnixMilli(), 2*s.publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx pending: %w", err)
	}

	if !ok {
		return nil
	}

	delay, err := s.redis.PTTL(ctx, s.publishKey()).Result()
	if err != nil || delay <= 0 {
		delay = s.publishInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.redis.Del(ctx, s.pendingKey()).Err()
	}

	ctx = context.WithoutCancel(ctx)
	s.trailing.Add(1)
	time.AfterFunc(delay, func() {
		defer s.trailing.Done()

		ctx, cancel := context.WithTimeout(ctx, defaultTrailingTimeout)
		defer cancel()

		if err := s.publishTrailing(ctx); err != nil {
			slog.ErrorContext(ctx, "leaderboard: trailing publish failed", "error", err)
		}
	})

	return nil
}

func (s *Service) publishTrailing(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.pendingKey()).Err(); err != nil {
		return fmt.Errorf("del pending: %w", err)
	}

	if err := s.redis.Set(ctx, s.publishKey(), time.Now().UnixMilli(), s.publishInterval).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	return s.publish(ctx)
}

func (s *Service) publish(ctx context.Context) error {
	entries, err := s.top(ctx)
	if err != nil {
		return fmt.Errorf("get leaderboard failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Entries: entries,
	})

	return nil
}

func (s *Service) top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if s.cacheTTL <= 0 {
		rows, err := s.store.ListLeaderboard(ctx, Size)
		if err != nil {
			return nil, fmt.Errorf("list leaderboard: %w", err)
		}
		return Rank(rows), nil
	}

	if entries, ok := s.cached(ctx); ok {
		return entries, nil
	}

	version, verr := cache.Version(ctx, s.redis, s.cacheKey())

	rows, err := s.store.ListLeaderboard(ctx, Size)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}

	entries := Rank(rows)
	if verr != nil {
		slog.WarnContext(ctx, "leaderboard: get cache version failed", "error", verr)
		return entries, nil
	}
	s.setCached(ctx, version, entries)

	return entries, nil
}

// Rank turns ordered store rows into display entries with 1-based ranks.
func Rank(rows []domain.LeaderboardRow) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		e := domain.LeaderboardEntry{
			Rank:        i + 1,
			ProfileID:   r.ProfileID,
			DisplayName: AnonymousName,
		}
		if r.Email != nil && *r.Email != "" {
			e.DisplayName = *r.Email
		}
		if r.TotalScore != nil {
			e.TotalScore = *r.TotalScore
		}
		entries = append(entries, e)
	}

	return entries
}

func (s *Service) cached(ctx context.Context) ([]domain.LeaderboardEntry, bool) {
	b, err := s.redis.Get(ctx, s.cacheKey()).Bytes()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "leaderboard: get cache failed", "error", err)
		}
		return nil, false
	}

	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		slog.WarnContext(ctx, "leaderboard: decode cache failed", "error", err)
		return nil, false
	}

	return entries, true
}

func (s *Service) setCached(ctx context.Context, version int64, entries []domain.LeaderboardEntry) {
	b, err := json.Marshal(entries)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: encode cache failed", "error", err)
		return
	}

	if _, err := cache.SetIfVersion(ctx, s.redis, s.cacheKey(), version, b, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "leaderboard: set cache failed", "error", err)
	}
}

func (s *Service) cacheKey() string {
	return fmt.Sprintf("%s:leaderboard:top", s.prefix)
}

func (s *Service) publishKey() string {
	return fmt.Sprintf("%s:leaderboard:published", s.prefix)
}

func (s *Service) pendingKey() string {
	return fmt.Sprintf("%s:leaderboard:pending", s.prefix)
}
