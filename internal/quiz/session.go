package quiz

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
)

type Status string

const (
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusAnswered Status = "answered"
	StatusFinished Status = "finished"
	StatusEmpty    Status = "empty"
	StatusFailed   Status = "failed"
)

type NotificationKind string

const (
	NotificationCorrect   NotificationKind = "correct"
	NotificationIncorrect NotificationKind = "incorrect"
	NotificationGameOver  NotificationKind = "game_over"
)

// Notification is a transient message shown once after an answer or at the end of a game.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

// Summary is the result of a finished game. Accuracy is a percentage rounded to two places.
type Summary struct {
	Score    int             `json:"score"`
	Total    int             `json:"total"`
	Accuracy decimal.Decimal `json:"accuracy"`
}

// State is an immutable snapshot of a session.
type State struct {
	SessionID string   `json:"session_id"`
	Status    Status   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Question  string   `json:"question,omitempty"`
	Options   []string `json:"options,omitempty"`
	Selected  string   `json:"selected,omitempty"`
	Answered  bool     `json:"answered"`
	Score     int      `json:"score"`
}

// Session is the state of one play-through. All methods are safe for concurrent use.
type Session struct {
	id     string
	userID string
	intN   func(n int) int

	mu        sync.Mutex
	status    Status
	err       error
	questions []domain.Question
	index     int
	options   []string
	selected  string
	answered  bool
	score     int
	touched   time.Time
}

func newSession(id, userID string, intN func(n int) int, now time.Time) *Session {
	return &Session{
		id:      id,
		userID:  userID,
		intN:    intN,
		status:  StatusLoading,
		touched: now,
	}
}

// load moves a loading session to ready, empty or failed. It is called exactly once.
func (s *Session) load(qs []domain.Question, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.status = StatusFailed
		s.err = err
	case len(qs) == 0:
		s.status = StatusEmpty
	default:
		s.questions = qs
		s.enter(0)
	}
}

// enter makes question i current. Options are shuffled here and nowhere else.
func (s *Session) enter(i int) {
	s.index = i
	s.selected = ""
	s.answered = false
	s.options = shuffle(s.questions[i].Answers(), s.intN)
	s.status = StatusReady
}

type outcome struct {
	correct      bool
	notification Notification
}

func (s *Session) selectAnswer(answer string, now time.Time) (outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = now

	if len(s.questions) == 0 {
		return outcome{}, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game is %s", s.status))
	}
	if s.answered {
		return outcome{}, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("question %d is already answered", s.index+1))
	}
	if !slices.Contains(s.options, answer) {
		return outcome{}, errors.InvalidArgument("%q is not an option of question %d", answer, s.index+1)
	}

	s.selected = answer
	s.answered = true
	if s.status != StatusFinished {
		s.status = StatusAnswered
	}

	q := s.questions[s.index]
	if answer != q.CorrectAnswer {
		return outcome{
			notification: Notification{
				Kind:    NotificationIncorrect,
				Title:   "Wrong answer",
				Message: fmt.Sprintf("The correct answer was %s", q.CorrectAnswer),
			},
		}, nil
	}

	s.score++
	return outcome{
		correct: true,
		notification: Notification{
			Kind:    NotificationCorrect,
			Title:   "Correct!",
			Message: "Well done!",
		},
	}, nil
}

// advance enters the next question, or finishes the game on the last one. A finished game keeps
// its index and selection.
func (s *Session) advance(now time.Time) (*Notification, *Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = now

	if len(s.questions) == 0 {
		return nil, nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("game is %s", s.status))
	}

	if s.index < len(s.questions)-1 {
		s.enter(s.index + 1)
		return nil, nil, nil
	}

	s.status = StatusFinished
	total := len(s.questions)
	sum := &Summary{
		Score:    s.score,
		Total:    total,
		Accuracy: decimal.NewFromInt(int64(s.score)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(total))).Round(2),
	}

	return &Notification{
		Kind:    NotificationGameOver,
		Title:   "Game over!",
		Message: fmt.Sprintf("You scored %d out of %d", s.score, total),
	}, sum, nil
}

func (s *Session) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SessionID: s.id,
		Status:    s.status,
		Total:     len(s.questions),
		Score:     s.score,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	if len(s.questions) > 0 {
		st.Index = s.index
		st.Question = s.questions[s.index].Question
		st.Options = slices.Clone(s.options)
		st.Selected = s.selected
		st.Answered = s.answered
	}

	return st
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
