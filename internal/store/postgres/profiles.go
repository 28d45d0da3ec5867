package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
)

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	const stmt = `SELECT id, COALESCE(total_score, 0), COALESCE(games_played, 0) FROM profiles WHERE id = $1;`

	var p domain.Profile
	err := s.db.QueryRow(ctx, stmt, id).Scan(&p.ID, &p.TotalScore, &p.GamesPlayed)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("profile not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// IncrementTotalScore adds delta to the stored total in a single statement, so concurrent
// increments never overwrite each other.
func (s *Store) IncrementTotalScore(ctx context.Context, id string, delta int) (*domain.Profile, error) {
	const stmt = `
UPDATE profiles
SET total_score = COALESCE(total_score, 0) + $2, updated_at = now()
WHERE id = $1
RETURNING id, total_score, COALESCE(games_played, 0);`

	var p domain.Profile
	err := s.db.QueryRow(ctx, stmt, id, delta).Scan(&p.ID, &p.TotalScore, &p.GamesPlayed)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("profile not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("increment total score: %w", err)
	}

	return &p, nil
}
