// Package memory is an in-process implementation of the backend store. It is used by tests and
// by the "memory" backend driver, and mirrors the semantics of the Postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
)

type profileRow struct {
	totalScore  *int
	gamesPlayed int
}

type userRow struct {
	email        *string
	passwordHash []byte
}

type Store struct {
	mu        sync.RWMutex
	questions []domain.Question
	nextID    int64
	profiles  map[string]profileRow
	users     map[string]userRow
}

func NewStore() *Store {
	return &Store{
		nextID:   1,
		profiles: make(map[string]profileRow),
		users:    make(map[string]userRow),
	}
}

// ListQuestions returns every question in insertion order.
func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Question, len(s.questions))
	for i, q := range s.questions {
		q.WrongAnswers = append([]string(nil), q.WrongAnswers...)
		out[i] = q
	}
	return out, nil
}

// InsertQuestions appends questions, assigning IDs to those without one. A question whose ID
// already exists replaces the stored one in place.
func (s *Store) InsertQuestions(_ context.Context, qs []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range qs {
		if q.ID == 0 {
			q.ID = s.nextID
		}
		if q.ID >= s.nextID {
			s.nextID = q.ID + 1
		}
		q.WrongAnswers = append([]string(nil), q.WrongAnswers...)

		if i := s.questionIndex(q.ID); i >= 0 {
			s.questions[i] = q
			continue
		}
		s.questions = append(s.questions, q)
	}
	return nil
}

func (s *Store) questionIndex(id int64) int {
	for i, q := range s.questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, errors.NotFound("profile not found: id=%s", id)
	}
	return toProfile(id, p), nil
}

// IncrementTotalScore adds delta to the profile's total score in a single critical section.
func (s *Store) IncrementTotalScore(_ context.Context, id string, delta int) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, errors.NotFound("profile not found: id=%s", id)
	}

	total := delta
	if p.totalScore != nil {
		total += *p.totalScore
	}
	p.totalScore = &total
	s.profiles[id] = p

	return toProfile(id, p), nil
}

// PutProfile creates or replaces a profile. A nil totalScore is stored as NULL.
func (s *Store) PutProfile(id string, totalScore *int, gamesPlayed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[id] = profileRow{totalScore: totalScore, gamesPlayed: gamesPlayed}
}

// ListLeaderboard returns up to limit profiles joined with their owner's email, highest total
// score first and NULL scores last.
func (s *Store) ListLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.LeaderboardRow, 0, len(s.profiles))
	for id, p := range s.profiles {
		row := domain.LeaderboardRow{ProfileID: id}
		if p.totalScore != nil {
			v := *p.totalScore
			row.TotalScore = &v
		}
		if u, ok := s.users[id]; ok && u.email != nil {
			e := *u.email
			row.Email = &e
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].TotalScore, rows[j].TotalScore
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case *a != *b:
			return *a > *b
		}
		return rows[i].ProfileID < rows[j].ProfileID
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// CreateUser stores the user and provisions its profile with zero stats.
func (s *Store) CreateUser(_ context.Context, u domain.User, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("user already exists: id=%s", u.ID))
	}
	for _, existing := range s.users {
		if existing.email != nil && strings.EqualFold(*existing.email, u.Email) {
			return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("email already registered: %s", u.Email))
		}
	}

	s.users[u.ID] = newUserRow(u.Email, passwordHash)
	zero := 0
	s.profiles[u.ID] = profileRow{totalScore: &zero}
	return nil
}

// PutUser creates or replaces a user without touching profiles. An empty email is stored as NULL.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = newUserRow(u.Email, nil)
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.NotFound("user not found: id=%s", id)
	}
	return toUser(id, u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, u := range s.users {
		if u.email != nil && strings.EqualFold(*u.email, email) {
			return toUser(id, u), append([]byte(nil), u.passwordHash...), nil
		}
	}
	return nil, nil, errors.NotFound("user not found: email=%s", email)
}

func newUserRow(email string, passwordHash []byte) userRow {
	row := userRow{passwordHash: append([]byte(nil), passwordHash...)}
	if email != "" {
		row.email = &email
	}
	return row
}

func toProfile(id string, p profileRow) *domain.Profile {
	out := &domain.Profile{ID: id, GamesPlayed: p.gamesPlayed}
	if p.totalScore != nil {
		out.TotalScore = *p.totalScore
	}
	return out
}

func toUser(id string, u userRow) *domain.User {
	out := &domain.User{ID: id}
	if u.email != nil {
		out.Email = *u.email
	}
	return out
}
