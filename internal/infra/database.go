package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the tables and indexes the application needs.
// The unique index on lower(email) is what turns a concurrent duplicate
// signup into a constraint violation instead of a second account.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            email TEXT NOT NULL,
            credential TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,
		`CREATE TABLE IF NOT EXISTS reports (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users (id),
            price BIGINT NOT NULL,
            make TEXT NOT NULL,
            model TEXT NOT NULL,
            year INT NOT NULL,
            lng DOUBLE PRECISION NOT NULL,
            lat DOUBLE PRECISION NOT NULL,
            mileage INT NOT NULL,
            approved BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS reports_make_model_idx ON reports (make, model)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
