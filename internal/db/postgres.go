package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPostgres connects a pool and verifies connectivity early.
func OpenPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// MigratePostgres applies PostgresSchema in order.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range PostgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migration %d: %w", i+1, err)
		}
	}
	return nil
}
