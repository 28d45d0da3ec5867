// Package quiz drives a single play-through of the trivia game: it loads the question set once,
// accepts one answer per question, keeps the running score and finishes with a summary.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
	"github.com/victornm/merryquiz/internal/score"
	"github.com/victornm/merryquiz/internal/telemetry"
)

const defaultSessionTTL = 30 * time.Minute

type QuestionSource interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

type ScoreRecorder interface {
	Increment(ctx context.Context, req score.IncrementRequest) <-chan score.Result
}

type Config struct {
	Questions QuestionSource
	Score     ScoreRecorder

	// SessionTTL is how long an untouched session is kept. Defaults to 30m.
	SessionTTL time.Duration

	// Now and IntN are replaceable for tests.
	Now  func() time.Time
	IntN func(n int) int
}

type Service struct {
	questions QuestionSource
	score     ScoreRecorder
	ttl       time.Duration
	now       func() time.Time
	intN      func(n int) int

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(c Config) *Service {
	s := &Service{
		questions: c.Questions,
		score:     c.Score,
		ttl:       c.SessionTTL,
		now:       c.Now,
		intN:      c.IntN,
		sessions:  make(map[string]*Session),
	}
	if s.ttl <= 0 {
		s.ttl = defaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.intN == nil {
		s.intN = rand.IntN
	}
	return s
}

type NewGameRequest struct {
	User *domain.User
}

// NewGame starts a session and loads its questions. A failed or empty load is reported through
// the returned state, not as an error.
func (s *Service) NewGame(ctx context.Context, req NewGameRequest) (*State, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("generate session id: %w", err))
	}

	sess := newSession(id.String(), userID(req.User), s.intN, s.now())
	s.mu.Lock()
	s.sessions[sess.id] = sess
	telemetry.ActiveGames.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	qs, err := s.questions.ListQuestions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "quiz: load questions failed", "session", sess.id, "error", err)
	}
	sess.load(qs, err)

	st := sess.snapshot()
	slog.InfoContext(ctx, "quiz: game started",
		"session", st.SessionID,
		"user", sess.userID,
		"status", st.Status,
		"questions", st.Total,
	)

	return &st, nil
}

type GetGameRequest struct {
	SessionID string
	User      *domain.User
}

func (s *Service) GetGame(_ context.Context, req GetGameRequest) (*State, error) {
	sess, err := s.session(req.SessionID, req.User)
	if err != nil {
		return nil, err
	}

	st := sess.snapshot()
	return &st, nil
}

type AnswerRequest struct {
	SessionID string
	User      *domain.User
	Answer    string
}

type AnswerResponse struct {
	State        State
	Notification Notification
	// Persisted receives the outcome of the background score write. It is nil when nothing is
	// persisted: the answer was wrong or the player is anonymous.
	Persisted <-chan score.Result
}

// Answer selects an option for the current question. Each question accepts one answer. The
// in-memory score is updated immediately; for signed-in players a correct answer is also
// written to their profile in the background.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	sess, err := s.session(req.SessionID, req.User)
	if err != nil {
		return nil, err
	}

	out, err := sess.selectAnswer(req.Answer, s.now())
	if err != nil {
		return nil, err
	}

	resp := &AnswerResponse{Notification: out.notification}
	if out.correct {
		telemetry.AnswersTotal.WithLabelValues("correct").Inc()
		if req.User != nil {
			resp.Persisted = s.score.Increment(ctx, score.IncrementRequest{UserID: req.User.ID, Delta: 1})
		}
	} else {
		telemetry.AnswersTotal.WithLabelValues("incorrect").Inc()
	}
	resp.State = sess.snapshot()

	return resp, nil
}

type AdvanceRequest struct {
	SessionID string
	User      *domain.User
}

type AdvanceResponse struct {
	State State
	// Notification and Summary are set once the last question has been passed.
	Notification *Notification
	Summary      *Summary
}

func (s *Service) Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResponse, error) {
	sess, err := s.session(req.SessionID, req.User)
	if err != nil {
		return nil, err
	}

	n, sum, err := sess.advance(s.now())
	if err != nil {
		return nil, err
	}

	if sum != nil {
		slog.InfoContext(ctx, "quiz: game over",
			"session", sess.id,
			"user", sess.userID,
			"score", sum.Score,
			"total", sum.Total,
		)
	}

	return &AdvanceResponse{
		State:        sess.snapshot(),
		Notification: n,
		Summary:      sum,
	}, nil
}

type EndGameRequest struct {
	SessionID string
	User      *domain.User
}

// EndGame discards the session. Ending an unknown session is a NotFound error.
func (s *Service) EndGame(_ context.Context, req EndGameRequest) error {
	if _, err := s.session(req.SessionID, req.User); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, req.SessionID)
	telemetry.ActiveGames.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	return nil
}

// Expire drops sessions untouched for longer than the session TTL and returns how many were dropped.
func (s *Service) Expire(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	telemetry.ActiveGames.Set(float64(len(s.sessions)))

	return n
}

// Run sweeps idle sessions until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	t := time.NewTicker(s.ttl / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := s.Expire(s.now()); n > 0 {
				slog.InfoContext(ctx, "quiz: expired idle sessions", "count", n)
			}
		}
	}
}

func (s *Service) session(id string, u *domain.User) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok || sess.userID != userID(u) {
		return nil, errors.NotFound("game not found: id=%s", id)
	}
	return sess, nil
}

func userID(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
