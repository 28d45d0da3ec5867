package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/merryquiz/internal/domain"
)

// ListLeaderboard returns the top profiles joined with their owner's email.
func (s *Store) ListLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	const stmt = `
SELECT p.id, p.total_score, u.email
FROM profiles p
LEFT JOIN users u ON u.id = p.id
ORDER BY p.total_score DESC NULLS LAST, p.id
LIMIT $1;`

	rows, err := s.db.Query(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardRow, error) {
		var row domain.LeaderboardRow
		if err := r.Scan(&row.ProfileID, &row.TotalScore, &row.Email); err != nil {
			return domain.LeaderboardRow{}, err
		}
		return row, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: scan: %w", err)
	}

	return out, nil
}
