package score

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/telemetry"
)

const defaultTimeout = 10 * time.Second

type Store interface {
	IncrementTotalScore(ctx context.Context, id string, delta int) (*domain.Profile, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
	// Timeout bounds a single background write. Defaults to 10s.
	Timeout time.Duration
}

// Service persists score increments to user profiles in the background.
type Service struct {
	eb      *event.Bus
	store   Store
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		store:   c.Store,
		timeout: c.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	return s
}

type IncrementRequest struct {
	UserID string
	Delta  int
}

// Result is the outcome of a background write. Exactly one of Profile and Err is set.
type Result struct {
	Profile *domain.Profile
	Err     error
}

// Increment adds req.Delta to the user's total score without blocking the caller. The write
// outlives ctx's cancellation and is bounded by the service timeout. The returned channel
// receives exactly one Result and is then closed; callers may ignore it.
func (s *Service) Increment(ctx context.Context, req IncrementRequest) <-chan Result {
	res := make(chan Result, 1)

	if req.UserID == "" || req.Delta <= 0 {
		res <- Result{Err: errors.InvalidArgument("invalid score increment: user=%q delta=%d", req.UserID, req.Delta)}
		close(res)
		return res
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(res)

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		p, err := s.store.IncrementTotalScore(ctx, req.UserID, req.Delta)
		if err != nil {
			telemetry.ScoreWritesTotal.WithLabelValues("failed").Inc()
			slog.ErrorContext(ctx, "score: increment total score failed",
				"user", req.UserID,
				"delta", req.Delta,
				"error", err,
			)
			res <- Result{Err: fmt.Errorf("increment total score: user=%s: %w", req.UserID, err)}
			return
		}

		telemetry.ScoreWritesTotal.WithLabelValues("ok").Inc()
		s.eb.Publish(ctx, domain.EventProfileUpdated{
			Profile: *p,
		})

		res <- Result{Profile: p}
	}()

	return res
}

// Stop waits for in-flight writes to finish.
func (s *Service) Stop() {
	s.wg.Wait()
}
