package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/merryquiz/internal/domain"
)

// ListQuestions returns every row of the questions table, in whatever order the database yields.
func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	const stmt = `SELECT id, question, correct_answer, wrong_answers FROM questions;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var q domain.Question
		if err := r.Scan(&q.ID, &q.Question, &q.CorrectAnswer, &q.WrongAnswers); err != nil {
			return domain.Question{}, err
		}
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list questions: scan: %w", err)
	}

	return qs, nil
}

// InsertQuestions inserts questions in one transaction. Questions with an ID replace the existing
// row, and the id sequence is moved past the highest ID so later inserts without one do not collide.
func (s *Store) InsertQuestions(ctx context.Context, qs []domain.Question) (err error) {
	const (
		insStmt    = `INSERT INTO questions (question, correct_answer, wrong_answers) VALUES ($1, $2, $3);`
		upsertStmt = `
INSERT INTO questions (id, question, correct_answer, wrong_answers) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question, correct_answer = EXCLUDED.correct_answer, wrong_answers = EXCLUDED.wrong_answers;`
		syncSeqStmt = `
SELECT setval(pg_get_serial_sequence('questions', 'id'), GREATEST((SELECT max(id) FROM questions), 1));`
	)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	b := &pgx.Batch{}
	explicitIDs := false
	for _, q := range qs {
		wrong := q.WrongAnswers
		if wrong == nil {
			wrong = []string{}
		}
		if q.ID == 0 {
			b.Queue(insStmt, q.Question, q.CorrectAnswer, wrong)
		} else {
			explicitIDs = true
			b.Queue(upsertStmt, q.ID, q.Question, q.CorrectAnswer, wrong)
		}
	}
	if explicitIDs {
		b.Queue(syncSeqStmt)
	}

	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	return tx.Commit(ctx)
}
