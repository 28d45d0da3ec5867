// Package cache puts Redis in front of slow store reads.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/merryquiz/internal/domain"
)

type QuestionSource interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

type QuestionsConfig struct {
	Source QuestionSource
	Redis  redis.UniversalClient
	Prefix string
	// TTL of the cached question set. Zero disables caching.
	TTL time.Duration
}

// Questions is a read-through cache of the whole question set. Concurrent misses share a
// single load, and a failing Redis degrades to reading the source directly.
type Questions struct {
	source QuestionSource
	redis  redis.UniversalClient
	key    string
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestions(c QuestionsConfig) *Questions {
	return &Questions{
		source: c.Source,
		redis:  c.Redis,
		key:    fmt.Sprintf("%s:questions", c.Prefix),
		ttl:    c.TTL,
	}
}

func (q *Questions) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	if q.ttl <= 0 || q.redis == nil {
		return q.source.ListQuestions(ctx)
	}

	if qs, ok := q.get(ctx); ok {
		return qs, nil
	}

	v, err, _ := q.sf.Do(q.key, func() (any, error) {
		// The load is shared by every caller in the flight, so it must not die with the first one.
		ctx := context.WithoutCancel(ctx)

		if qs, ok := q.get(ctx); ok {
			return qs, nil
		}

		version, verr := Version(ctx, q.redis, q.key)

		qs, err := q.source.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}

		if verr != nil {
			slog.WarnContext(ctx, "cache: get questions version failed", "error", verr)
			return qs, nil
		}
		q.set(ctx, version, qs)
		return qs, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]domain.Question), nil
}

// Invalidate drops the cached set so the next read goes to the source.
func (q *Questions) Invalidate(ctx context.Context) error {
	if q.redis == nil {
		return nil
	}
	return Invalidate(ctx, q.redis, q.key)
}

func (q *Questions) get(ctx context.Context) ([]domain.Question, bool) {
	b, err := q.redis.Get(ctx, q.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.WarnContext(ctx, "cache: get questions failed", "error", err)
		return nil, false
	}

	var qs []domain.Question
	if err := json.Unmarshal(b, &qs); err != nil {
		slog.WarnContext(ctx, "cache: decode questions failed", "error", err)
		return nil, false
	}

	return qs, true
}

func (q *Questions) set(ctx context.Context, version int64, qs []domain.Question) {
	// An empty set is not cached so freshly seeded questions show up immediately.
	if len(qs) == 0 {
		return
	}

	b, err := json.Marshal(qs)
	if err != nil {
		slog.WarnContext(ctx, "cache: encode questions failed", "error", err)
		return
	}

	if _, err := SetIfVersion(ctx, q.redis, q.key, version, b, q.ttlWithJitter()); err != nil {
		slog.WarnContext(ctx, "cache: set questions failed", "error", err)
	}
}

// ttlWithJitter adds up to 10% to the TTL to spread expirations across instances.
func (q *Questions) ttlWithJitter() time.Duration {
	jitterMax := int64(q.ttl) / 10
	return q.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
