package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
)

const codeUniqueViolation = "23505"

// CreateUser inserts the user and its zeroed profile in one transaction.
func (s *Store) CreateUser(ctx context.Context, u domain.User, passwordHash []byte) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insUserStmt    = `INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3);`
		insProfileStmt = `INSERT INTO profiles (id, total_score, games_played) VALUES ($1, 0, 0);`
	)

	_, err = tx.Exec(ctx, insUserStmt, u.ID, u.Email, passwordHash)
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("email already registered: %s", u.Email),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	if _, err = tx.Exec(ctx, insProfileStmt, u.ID); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const stmt = `SELECT id, COALESCE(email, '') FROM users WHERE id = $1;`

	var u domain.User
	err := s.db.QueryRow(ctx, stmt, id).Scan(&u.ID, &u.Email)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user not found: id=%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, []byte, error) {
	const stmt = `SELECT id, email, password_hash FROM users WHERE lower(email) = lower($1);`

	var (
		u    domain.User
		hash []byte
	)
	err := s.db.QueryRow(ctx, stmt, email).Scan(&u.ID, &u.Email, &hash)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil, errors.NotFound("user not found: email=%s", email)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}

	return &u, hash, nil
}
