package db

// DuckDBSchema creates the embedded schema. DuckDB has no cascading foreign
// keys, so dependent rows are removed by the store.
var DuckDBSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    VARCHAR PRIMARY KEY,
		email VARCHAR NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id          VARCHAR PRIMARY KEY,
		name        VARCHAR NOT NULL,
		description VARCHAR,
		owner_id    VARCHAR NOT NULL,
		visibility  VARCHAR NOT NULL DEFAULT 'private',
		is_favorite BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_layers (
		id          VARCHAR PRIMARY KEY,
		project_id  VARCHAR NOT NULL,
		name        VARCHAR NOT NULL,
		geojson     VARCHAR NOT NULL,
		source_path VARCHAR,
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_layer_styles (
		layer_id     VARCHAR PRIMARY KEY,
		color        VARCHAR NOT NULL,
		weight       DOUBLE NOT NULL,
		opacity      DOUBLE NOT NULL,
		fill_color   VARCHAR NOT NULL,
		fill_opacity DOUBLE NOT NULL,
		radius       DOUBLE NOT NULL,
		updated_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		project_id VARCHAR NOT NULL,
		user_id    VARCHAR NOT NULL,
		role       VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE OR REPLACE VIEW members_with_email AS
		SELECT m.project_id, m.user_id, m.role, m.created_at, coalesce(u.email, '') AS email
		FROM project_members m
		LEFT JOIN users u ON u.id = m.user_id`,
}

// PostgresSchema mirrors DuckDBSchema and adds the email lookup function.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		owner_id    TEXT NOT NULL,
		visibility  TEXT NOT NULL DEFAULT 'private' CHECK (visibility IN ('private', 'public')),
		is_favorite BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS project_layers (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		geojson     JSONB NOT NULL,
		source_path TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS project_layers_project_created_idx
		ON project_layers (project_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS project_layer_styles (
		layer_id     TEXT PRIMARY KEY,
		color        TEXT NOT NULL,
		weight       DOUBLE PRECISION NOT NULL,
		opacity      DOUBLE PRECISION NOT NULL,
		fill_color   TEXT NOT NULL,
		fill_opacity DOUBLE PRECISION NOT NULL,
		radius       DOUBLE PRECISION NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('viewer', 'editor')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE OR REPLACE VIEW members_with_email AS
		SELECT m.project_id, m.user_id, m.role, m.created_at, coalesce(u.email, '') AS email
		FROM project_members m
		LEFT JOIN users u ON u.id = m.user_id`,
	`CREATE OR REPLACE FUNCTION get_user_id_by_email(p_email TEXT)
		RETURNS TEXT LANGUAGE sql STABLE AS $$
			SELECT id FROM users WHERE lower(email) = lower(p_email) LIMIT 1
		$$`,
}
