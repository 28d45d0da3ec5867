package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/store/cache"
)

func TestQuestions_ListQuestions(t *testing.T) {
	type outputs struct {
		calls int32
		err   error
		qs    []domain.Question
	}

	sample := []domain.Question{
		{ID: 1, Question: "Capital of the North Pole?", CorrectAnswer: "Santa's Village", WrongAnswers: []string{"Oslo", "Reykjavik"}},
	}

	tests := map[string]struct {
		source  *countingSource
		ttl     time.Duration
		reads   int
		prepare func(mr *miniredis.Miniredis)
		assert  func(t *testing.T, out outputs)
	}{
		"second read is served from redis": {
			source: &countingSource{qs: sample},
			ttl:    time.Minute,
			reads:  2,
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, int32(1), out.calls)
				assert.Equal(t, sample, out.qs)
			},
		},
		"zero ttl always reads the source": {
			source: &countingSource{qs: sample},
			reads:  3,
			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, int32(3), out.calls)
			},
		},
		"empty set is not cached": {
			source: &countingSource{},
			ttl:    time.Minute,
			reads:  2,
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, int32(2), out.calls)
			},
		},
		"source errors are returned and not cached": {
			source: &countingSource{err: errors.New("db down")},
			ttl:    time.Minute,
			reads:  2,
			assert: func(t *testing.T, out outputs) {
				require.EqualError(t, out.err, "db down")
				assert.Equal(t, int32(2), out.calls)
			},
		},
		"corrupted cache entry falls back to the source": {
			source: &countingSource{qs: sample},
			ttl:    time.Minute,
			reads:  1,
			prepare: func(mr *miniredis.Miniredis) {
				require.NoError(t, mr.Set("test:questions", "{not json"))
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, int32(1), out.calls)
				assert.Equal(t, sample, out.qs)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			if tt.prepare != nil {
				tt.prepare(mr)
			}

			c := cache.NewQuestions(cache.QuestionsConfig{
				Source: tt.source,
				Redis:  redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
				Prefix: "test",
				TTL:    tt.ttl,
			})

			var out outputs
			for i := 0; i < tt.reads; i++ {
				out.qs, out.err = c.ListQuestions(context.Background())
			}
			out.calls = tt.source.calls.Load()

			tt.assert(t, out)
		})
	}
}

func TestQuestions_ConcurrentMissesShareOneLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	release := make(chan struct{})
	src := &countingSource{qs: []domain.Question{{ID: 1, Question: "Q", CorrectAnswer: "A"}}, block: release}

	c := cache.NewQuestions(cache.QuestionsConfig{
		Source: src,
		Redis:  redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
		Prefix: "test",
		TTL:    time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListQuestions(context.Background())
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestQuestions_Invalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	src := &countingSource{qs: []domain.Question{{ID: 1, Question: "Q", CorrectAnswer: "A"}}}
	c := cache.NewQuestions(cache.QuestionsConfig{
		Source: src,
		Redis:  redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
		Prefix: "test",
		TTL:    time.Minute,
	})

	_, err := c.ListQuestions(context.Background())
	require.NoError(t, err)
	require.True(t, mr.Exists("test:questions"))

	require.NoError(t, c.Invalidate(context.Background()))
	assert.False(t, mr.Exists("test:questions"))
}

func TestQuestions_InvalidateDuringLoadDropsTheLoadedSet(t *testing.T) {
	mr := miniredis.RunT(t)
	release := make(chan struct{})
	src := &countingSource{qs: []domain.Question{{ID: 1, Question: "Q", CorrectAnswer: "A"}}, block: release}
	c := cache.NewQuestions(cache.QuestionsConfig{
		Source: src,
		Redis:  redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
		Prefix: "test",
		TTL:    time.Minute,
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.ListQuestions(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Invalidate(context.Background()))
	close(release)

	require.NoError(t, <-done)
	assert.False(t, mr.Exists("test:questions"), "a set loaded before the invalidation must not be cached")

	_, err := c.ListQuestions(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:questions"))
}

func TestQuestions_CancelledCallerDoesNotFailTheSharedLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	release := make(chan struct{})
	src := &countingSource{qs: []domain.Question{{ID: 1, Question: "Q", CorrectAnswer: "A"}}, block: release}
	c := cache.NewQuestions(cache.QuestionsConfig{
		Source: src,
		Redis:  redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
		Prefix: "test",
		TTL:    time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.ListQuestions(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := c.ListQuestions(context.Background())
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	close(release)

	assert.NoError(t, <-second)
	assert.NoError(t, <-first)
	assert.Equal(t, int32(1), src.calls.Load())
}

type countingSource struct {
	qs    []domain.Question
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (s *countingSource) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.qs, s.err
}
