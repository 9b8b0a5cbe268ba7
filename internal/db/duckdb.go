// Package db opens the embedded DuckDB database or a Postgres pool and
// applies the project schema to either.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	DataDir string // empty opens an in-memory database
	DBName  string
}

// OpenDuckDB opens (creating if needed) <DataDir>/duckdb/<DBName>.duckdb.
func OpenDuckDB(cfg Config) (*sql.DB, error) {
	if cfg.DataDir == "" {
		return sql.Open("duckdb", "")
	}

	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	name := cfg.DBName
	if name == "" {
		name = "maps"
	}
	conn, err := sql.Open("duckdb", filepath.Join(duckdbDir, name+".duckdb"))
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open duckdb %q: %w", name, err)
	}
	return conn, nil
}

// MigrateDuckDB applies DuckDBSchema in order.
func MigrateDuckDB(ctx context.Context, conn *sql.DB) error {
	for i, stmt := range DuckDBSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("duckdb migration %d: %w", i+1, err)
		}
	}
	return nil
}
