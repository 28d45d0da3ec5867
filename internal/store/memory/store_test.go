package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
	"github.com/victornm/merryquiz/internal/store/memory"
)

func TestStore_ListLeaderboard(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	s.PutUser(domain.User{ID: "u1", Email: "rudolph@northpole.test"})
	s.PutUser(domain.User{ID: "u2"})
	s.PutProfile("u1", intPtr(3), 1)
	s.PutProfile("u2", intPtr(7), 2)
	s.PutProfile("u3", nil, 0)
	s.PutProfile("u4", intPtr(3), 0)

	rows, err := s.ListLeaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "u2", rows[0].ProfileID)
	assert.Nil(t, rows[0].Email, "user without email should have a NULL email")
	assert.Equal(t, "u1", rows[1].ProfileID, "ties are ordered by profile id")
	require.NotNil(t, rows[1].Email)
	assert.Equal(t, "rudolph@northpole.test", *rows[1].Email)
	assert.Equal(t, "u4", rows[2].ProfileID)

	all, err := s.ListLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Nil(t, all[3].TotalScore, "NULL scores sort last")
}

func TestStore_IncrementTotalScore(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	s.PutProfile("u1", nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementTotalScore(ctx, "u1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.TotalScore)

	_, err = s.IncrementTotalScore(ctx, "missing", 1)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestStore_CreateUser(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "u1", Email: "elf@northpole.test"}, []byte("hash")))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.Profile{ID: "u1"}, *p)

	u, hash, err := s.GetUserByEmail(ctx, "ELF@northpole.test")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []byte("hash"), hash)

	err = s.CreateUser(ctx, domain.User{ID: "u2", Email: "elf@northpole.test"}, nil)
	assert.True(t, errors.Is(err, errors.CodeAlreadyExists))
}

func TestStore_Questions(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	require.NoError(t, s.InsertQuestions(ctx, []domain.Question{
		{Question: "Q1", CorrectAnswer: "A", WrongAnswers: []string{"B"}},
		{Question: "Q2", CorrectAnswer: "C", WrongAnswers: []string{"D", "E"}},
	}))

	qs, err := s.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, int64(1), qs[0].ID)
	assert.Equal(t, int64(2), qs[1].ID)

	qs[0].WrongAnswers[0] = "mutated"
	again, err := s.ListQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", again[0].WrongAnswers[0], "callers must not be able to mutate stored questions")
}

func TestStore_InsertQuestionsReplacesExistingIDs(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	require.NoError(t, s.InsertQuestions(ctx, []domain.Question{
		{ID: 1, Question: "Q1", CorrectAnswer: "A"},
		{ID: 2, Question: "Q2", CorrectAnswer: "B"},
	}))
	require.NoError(t, s.InsertQuestions(ctx, []domain.Question{
		{ID: 1, Question: "Q1 reworded", CorrectAnswer: "A"},
		{Question: "Q3", CorrectAnswer: "C"},
	}))

	qs, err := s.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, "Q1 reworded", qs[0].Question)
	assert.Equal(t, int64(3), qs[2].ID, "new questions take the next free id")
}

func intPtr(v int) *int { return &v }
