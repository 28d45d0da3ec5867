// Package home serves the stats shown on the landing page.
package home

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/store/cache"
)

type Store interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
	Redis    redis.UniversalClient
	Prefix   string
	// CacheTTL of a cached profile. Zero disables caching.
	CacheTTL time.Duration
}

type Service struct {
	store    Store
	redis    redis.UniversalClient
	prefix   string
	cacheTTL time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		store:    c.Store,
		redis:    c.Redis,
		prefix:   c.Prefix,
		cacheTTL: c.CacheTTL,
	}

	c.EventBus.Subscribe(domain.EventNameProfileUpdated, func(ctx context.Context, e event.Event) error {
		return s.invalidate(ctx, e.(domain.EventProfileUpdated).Profile.ID)
	})

	return s
}

type SummaryRequest struct {
	User *domain.User
}

// Summary returns the player's stats. It never fails: anonymous callers and unreadable profiles
// both get zero stats.
func (s *Service) Summary(ctx context.Context, req SummaryRequest) *domain.Summary {
	sum := &domain.Summary{User: req.User}
	if req.User == nil {
		return sum
	}

	p, err := s.profile(ctx, req.User.ID)
	if err != nil {
		slog.WarnContext(ctx, "home: get profile failed, showing zero stats",
			"user", req.User.ID,
			"error", err,
		)
		return sum
	}

	sum.GamesPlayed = p.GamesPlayed
	sum.TotalScore = p.TotalScore
	return sum
}

func (s *Service) profile(ctx context.Context, id string) (*domain.Profile, error) {
	if s.cacheTTL <= 0 {
		return s.store.GetProfile(ctx, id)
	}

	b, err := s.redis.Get(ctx, s.key(id)).Bytes()
	switch {
	case err == nil:
		var p domain.Profile
		if err := json.Unmarshal(b, &p); err == nil {
			return &p, nil
		}
	case !stderrors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "home: get cached profile failed", "user", id, "error", err)
	}

	version, verr := cache.Version(ctx, s.redis, s.key(id))

	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if verr != nil {
		slog.WarnContext(ctx, "home: get profile version failed", "user", id, "error", verr)
		return p, nil
	}

	b, _ = json.Marshal(p)
	if _, err := cache.SetIfVersion(ctx, s.redis, s.key(id), version, b, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "home: cache profile failed", "user", id, "error", err)
	}

	return p, nil
}

func (s *Service) invalidate(ctx context.Context, id string) error {
	if err := cache.Invalidate(ctx, s.redis, s.key(id)); err != nil {
		return fmt.Errorf("invalidate profile: id=%s: %w", id, err)
	}
	return nil
}

func (s *Service) key(id string) string {
	return fmt.Sprintf("%s:profile:%s", s.prefix, id)
}
