package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/merryquiz/internal/seed"
	"github.com/victornm/merryquiz/internal/store/cache"
	"github.com/victornm/merryquiz/internal/store/postgres"
	"github.com/victornm/merryquiz/internal/store/postgres/migrations"
)

// Migrate applies pending schema migrations to the configured Postgres database.
func Migrate(ctx context.Context, c Config) error {
	if c.Backend.Driver == DriverMemory {
		return fmt.Errorf("migrate: backend driver %q has no schema", DriverMemory)
	}

	if err := migrations.Run(ctx, c.Postgres.DSN()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

// Seed inserts the questions in file into Postgres and drops the cached question set so new
// games see them.
func Seed(ctx context.Context, c Config, file string) error {
	if c.Backend.Driver == DriverMemory {
		return fmt.Errorf("seed: backend driver %q is seeded from backend.seed_file at start up", DriverMemory)
	}

	db, err := postgres.Connect(ctx, c.Postgres)
	if err != nil {
		return fmt.Errorf("seed: postgres: %w", err)
	}
	defer db.Close()

	n, err := seed.Apply(ctx, postgres.New(db), file)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	slog.InfoContext(ctx, "seed: questions inserted", "file", file, "count", n)

	if c.Redis.Embedded {
		return nil
	}

	r, err := ConnectRedis(c.Redis.Cache)
	if err != nil {
		slog.WarnContext(ctx, "seed: redis unavailable, cached questions expire on their own", "error", err)
		return nil
	}
	defer r.Close()

	q := cache.NewQuestions(cache.QuestionsConfig{Redis: r, Prefix: c.Redis.Cache.Prefix})
	if err := q.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "seed: invalidate question cache failed", "error", err)
	}

	return nil
}
