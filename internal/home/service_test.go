package home_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/home"
	"github.com/victornm/merryquiz/internal/store/memory"
)

func TestService_Summary(t *testing.T) {
	user := &domain.User{ID: "u1", Email: "elf@northpole.test"}

	tests := map[string]struct {
		store  func() home.Store
		user   *domain.User
		assert func(t *testing.T, sum *domain.Summary)
	}{
		"anonymous visitors see zero stats": {
			store: func() home.Store { return memory.NewStore() },
			assert: func(t *testing.T, sum *domain.Summary) {
				assert.Equal(t, &domain.Summary{}, sum)
			},
		},

		"signed-in players see their profile": {
			store: func() home.Store {
				s := memory.NewStore()
				v := 42
				s.PutProfile("u1", &v, 7)
				return s
			},
			user: user,
			assert: func(t *testing.T, sum *domain.Summary) {
				assert.Equal(t, &domain.Summary{User: user, GamesPlayed: 7, TotalScore: 42}, sum)
			},
		},

		"NULL total score shows as zero": {
			store: func() home.Store {
				s := memory.NewStore()
				s.PutProfile("u1", nil, 3)
				return s
			},
			user: user,
			assert: func(t *testing.T, sum *domain.Summary) {
				assert.Equal(t, 3, sum.GamesPlayed)
				assert.Zero(t, sum.TotalScore)
			},
		},

		"missing profile shows zero stats": {
			store: func() home.Store { return memory.NewStore() },
			user:  user,
			assert: func(t *testing.T, sum *domain.Summary) {
				assert.Equal(t, &domain.Summary{User: user}, sum)
			},
		},

		"store errors show zero stats": {
			store: func() home.Store { return failingStore{err: errors.New("timeout")} },
			user:  user,
			assert: func(t *testing.T, sum *domain.Summary) {
				assert.Equal(t, &domain.Summary{User: user}, sum)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := home.NewService(home.Config{
				EventBus: event.NewBus(),
				Store:    tt.store(),
				Redis:    makeRedis(t),
				Prefix:   "test",
				CacheTTL: time.Minute,
			})

			tt.assert(t, s.Summary(context.Background(), home.SummaryRequest{User: tt.user}))
		})
	}
}

func TestService_SummaryCacheIsInvalidatedOnProfileUpdate(t *testing.T) {
	ctx := context.Background()
	user := &domain.User{ID: "u1"}

	store := memory.NewStore()
	store.PutProfile("u1", intPtr(1), 0)
	eb := event.NewBus()

	s := home.NewService(home.Config{
		EventBus: eb,
		Store:    store,
		Redis:    makeRedis(t),
		Prefix:   "test",
		CacheTTL: time.Minute,
	})

	require.Equal(t, 1, s.Summary(ctx, home.SummaryRequest{User: user}).TotalScore)

	p, err := store.IncrementTotalScore(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Summary(ctx, home.SummaryRequest{User: user}).TotalScore, "served from cache")

	eb.Publish(ctx, domain.EventProfileUpdated{Profile: *p})
	eb.Stop()

	assert.Equal(t, 2, s.Summary(ctx, home.SummaryRequest{User: user}).TotalScore)
}

func TestService_SummaryLoadedBeforeAnUpdateIsNotCached(t *testing.T) {
	ctx := context.Background()
	user := &domain.User{ID: "u1"}

	store := memory.NewStore()
	store.PutProfile("u1", intPtr(1), 0)
	slow := newBlockingStore(store)
	eb := event.NewBus()

	s := home.NewService(home.Config{
		EventBus: eb,
		Store:    slow,
		Redis:    makeRedis(t),
		Prefix:   "test",
		CacheTTL: time.Minute,
	})

	inflight := make(chan *domain.Summary, 1)
	go func() {
		inflight <- s.Summary(ctx, home.SummaryRequest{User: user})
	}()
	<-slow.loaded

	p, err := store.IncrementTotalScore(ctx, "u1", 1)
	require.NoError(t, err)
	eb.Publish(ctx, domain.EventProfileUpdated{Profile: *p})
	eb.Stop()
	close(slow.release)

	assert.Equal(t, 1, (<-inflight).TotalScore)
	assert.Equal(t, 2, s.Summary(ctx, home.SummaryRequest{User: user}).TotalScore)
}

func makeRedis(t *testing.T) redis.UniversalClient {
	rs := miniredis.RunT(t)
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
}

type failingStore struct {
	err error
}

func (f failingStore) GetProfile(context.Context, string) (*domain.Profile, error) {
	return nil, f.err
}

// blockingStore holds its first read after loading the row until release is closed.
type blockingStore struct {
	home.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newBlockingStore(s home.Store) *blockingStore {
	return &blockingStore{Store: s, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStore) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := b.Store.GetProfile(ctx, id)
	first := false
	b.once.Do(func() {
		first = true
		close(b.loaded)
	})
	if first {
		<-b.release
	}
	return p, err
}

func intPtr(v int) *int { return &v }
