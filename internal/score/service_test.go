package score_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/score"
	"github.com/victornm/merryquiz/internal/store/memory"
)

func TestService_Increment(t *testing.T) {
	type outputs struct {
		result    score.Result
		published []domain.EventProfileUpdated
	}

	tests := map[string]struct {
		store  func() score.Store
		req    score.IncrementRequest
		assert func(t *testing.T, out outputs)
	}{
		"successful write returns the updated profile and publishes profile.updated": {
			store: func() score.Store {
				s := memory.NewStore()
				s.PutProfile("u1", intPtr(4), 2)
				return s
			},
			req: score.IncrementRequest{UserID: "u1", Delta: 1},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.result.Err)
				assert.Equal(t, domain.Profile{ID: "u1", TotalScore: 5, GamesPlayed: 2}, *out.result.Profile)
				require.Len(t, out.published, 1)
				assert.Equal(t, 5, out.published[0].Profile.TotalScore)
			},
		},

		"missing profile fails without publishing": {
			store: func() score.Store { return memory.NewStore() },
			req:   score.IncrementRequest{UserID: "ghost", Delta: 1},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.result.Err)
				assert.Nil(t, out.result.Profile)
				assert.Empty(t, out.published)
			},
		},

		"store errors are reported through the result": {
			store: func() score.Store { return failingStore{err: errors.New("connection reset")} },
			req:   score.IncrementRequest{UserID: "u1", Delta: 1},
			assert: func(t *testing.T, out outputs) {
				require.ErrorContains(t, out.result.Err, "connection reset")
				assert.Empty(t, out.published)
			},
		},

		"anonymous increments are rejected": {
			store: func() score.Store { return memory.NewStore() },
			req:   score.IncrementRequest{Delta: 1},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.result.Err)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var (
				mu  sync.Mutex
				out outputs
			)

			eb := event.NewBus()
			eb.Subscribe(domain.EventNameProfileUpdated, func(_ context.Context, e event.Event) error {
				mu.Lock()
				out.published = append(out.published, e.(domain.EventProfileUpdated))
				mu.Unlock()
				return nil
			})

			s := score.NewService(score.Config{EventBus: eb, Store: tt.store()})

			out.result = <-s.Increment(context.Background(), tt.req)
			s.Stop()
			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_IncrementSurvivesCallerCancellation(t *testing.T) {
	store := memory.NewStore()
	store.PutProfile("u1", intPtr(0), 0)
	s := score.NewService(score.Config{EventBus: event.NewBus(), Store: store})

	ctx, cancel := context.WithCancel(context.Background())
	res := s.Increment(ctx, score.IncrementRequest{UserID: "u1", Delta: 1})
	cancel()

	r := <-res
	require.NoError(t, r.Err)
	assert.Equal(t, 1, r.Profile.TotalScore)
}

func TestService_ConcurrentIncrementsAreNotLost(t *testing.T) {
	store := memory.NewStore()
	store.PutProfile("u1", intPtr(0), 0)
	eb := event.NewBus()
	s := score.NewService(score.Config{EventBus: eb, Store: store})

	results := make([]<-chan score.Result, 0, 25)
	for i := 0; i < 25; i++ {
		results = append(results, s.Increment(context.Background(), score.IncrementRequest{UserID: "u1", Delta: 1}))
	}
	for _, r := range results {
		require.NoError(t, (<-r).Err)
	}
	s.Stop()
	eb.Stop()

	p, err := store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, p.TotalScore)
}

type failingStore struct {
	err error
}

func (f failingStore) IncrementTotalScore(context.Context, string, int) (*domain.Profile, error) {
	return nil, f.err
}

func intPtr(v int) *int { return &v }
