// Package pgstore implements store.Store on Postgres through pgxpool.
package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool. Apply db.MigratePostgres separately.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const projectColumns = `id, name, coalesce(description, ''), owner_id, visibility, is_favorite, created_at, updated_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var (
		p   domain.Project
		vis string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &vis, &p.IsFavorite, &p.CreatedAt, &p.UpdatedAt)
	p.Visibility = domain.Visibility(vis)
	return p, err
}

func (s *Store) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects p
		WHERE p.owner_id = $1
		   OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1)
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, domain.Backend("projects.list", err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, domain.Backend("projects.list", err)
		}
		projects = append(projects, p)
	}
	return projects, domain.Backend("projects.list", rows.Err())
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Project{}, domain.NotFound("projects.get", "project", id)
	}
	if err != nil {
		return domain.Project{}, domain.Backend("projects.get", err)
	}
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	_, err := s.pool.Exec(ctx, `INSERT INTO projects
		(id, name, description, owner_id, visibility, is_favorite, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Description, p.OwnerID, string(p.Visibility), p.IsFavorite, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.Project{}, domain.Backend("projects.create", err)
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	got, err := scanProject(s.pool.QueryRow(ctx, `UPDATE projects
		SET name = $2, description = NULLIF($3, ''), visibility = $4, is_favorite = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+projectColumns,
		p.ID, p.Name, p.Description, string(p.Visibility), p.IsFavorite))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Project{}, domain.NotFound("projects.update", "project", p.ID)
	}
	if err != nil {
		return domain.Project{}, domain.Backend("projects.update", err)
	}
	return got, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	const op = "projects.delete"
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Backend(op, err)
	}
	defer tx.Rollback(ctx)

	// Layers and members cascade; style rows are keyed by layer only.
	if _, err := tx.Exec(ctx, `DELETE FROM project_layer_styles
		WHERE layer_id IN (SELECT id FROM project_layers WHERE project_id = $1)`, id); err != nil {
		return domain.Backend(op, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return domain.Backend(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "project", id)
	}
	return domain.Backend(op, tx.Commit(ctx))
}

const layerColumns = `id, project_id, name, geojson, coalesce(source_path, ''), created_at`

func scanLayer(row pgx.Row) (domain.ProjectLayer, error) {
	var (
		l  domain.ProjectLayer
		gj []byte
	)
	err := row.Scan(&l.ID, &l.ProjectID, &l.Name, &gj, &l.SourcePath, &l.CreatedAt)
	l.GeoJSON = gj
	return l, err
}

func (s *Store) ListLayers(ctx context.Context, projectID string) ([]domain.ProjectLayer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+layerColumns+` FROM project_layers
		WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, domain.Backend("layers.list", err)
	}
	defer rows.Close()

	layers := []domain.ProjectLayer{}
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, domain.Backend("layers.list", err)
		}
		layers = append(layers, l)
	}
	return layers, domain.Backend("layers.list", rows.Err())
}

func (s *Store) GetLayer(ctx context.Context, id string) (domain.ProjectLayer, error) {
	l, err := scanLayer(s.pool.QueryRow(ctx, `SELECT `+layerColumns+` FROM project_layers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProjectLayer{}, domain.NotFound("layers.get", "layer", id)
	}
	if err != nil {
		return domain.ProjectLayer{}, domain.Backend("layers.get", err)
	}
	return l, nil
}

func (s *Store) CreateLayer(ctx context.Context, l domain.ProjectLayer) (domain.ProjectLayer, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO project_layers (id, project_id, name, geojson, source_path, created_at)
		VALUES ($1, $2, $3, $4::jsonb, NULLIF($5, ''), $6)`,
		l.ID, l.ProjectID, l.Name, string(l.GeoJSON), l.SourcePath, l.CreatedAt)
	if err != nil {
		return domain.ProjectLayer{}, domain.Backend("layers.create", err)
	}
	return l, nil
}

func (s *Store) DeleteLayer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM project_layers WHERE id = $1`, id)
	if err != nil {
		return domain.Backend("layers.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("layers.delete", "layer", id)
	}
	return nil
}

func (s *Store) GetStyles(ctx context.Context, layerIDs []string) (map[string]domain.LayerStyle, error) {
	styles := make(map[string]domain.LayerStyle, len(layerIDs))
	if len(layerIDs) == 0 {
		return styles, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT layer_id, color, weight, opacity, fill_color, fill_opacity, radius
		FROM project_layer_styles WHERE layer_id = ANY($1)`, layerIDs)
	if err != nil {
		return nil, domain.Backend("styles.get", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st domain.LayerStyle
		if err := rows.Scan(&st.LayerID, &st.Color, &st.Weight, &st.Opacity, &st.FillColor, &st.FillOpacity, &st.Radius); err != nil {
			return nil, domain.Backend("styles.get", err)
		}
		styles[st.LayerID] = st
	}
	return styles, domain.Backend("styles.get", rows.Err())
}

func (s *Store) UpsertStyle(ctx context.Context, st domain.LayerStyle) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO project_layer_styles
		(layer_id, color, weight, opacity, fill_color, fill_opacity, radius, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (layer_id) DO UPDATE SET
			color = EXCLUDED.color,
			weight = EXCLUDED.weight,
			opacity = EXCLUDED.opacity,
			fill_color = EXCLUDED.fill_color,
			fill_opacity = EXCLUDED.fill_opacity,
			radius = EXCLUDED.radius,
			updated_at = now()`,
		st.LayerID, st.Color, st.Weight, st.Opacity, st.FillColor, st.FillOpacity, st.Radius)
	return domain.Backend("styles.upsert", err)
}

func (s *Store) GetMember(ctx context.Context, projectID, userID string) (domain.ProjectMember, error) {
	var (
		m    domain.ProjectMember
		role string
	)
	err := s.pool.QueryRow(ctx, `SELECT project_id, user_id, role, created_at FROM project_members
		WHERE project_id = $1 AND user_id = $2`, projectID, userID).Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProjectMember{}, domain.NotFound("members.get", "member", userID)
	}
	if err != nil {
		return domain.ProjectMember{}, domain.Backend("members.get", err)
	}
	m.Role = domain.Role(role)
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	rows, err := s.pool.Query(ctx, `SELECT project_id, user_id, role, created_at, email
		FROM members_with_email WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, domain.Backend("members.list", err)
	}
	defer rows.Close()

	members := []domain.ProjectMember{}
	for rows.Next() {
		var (
			m    domain.ProjectMember
			role string
		)
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt, &m.Email); err != nil {
			return nil, domain.Backend("members.list", err)
		}
		m.Role = domain.Role(role)
		members = append(members, m)
	}
	return members, domain.Backend("members.list", rows.Err())
}

func (s *Store) UpsertMember(ctx context.Context, m domain.ProjectMember) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		m.ProjectID, m.UserID, string(m.Role))
	return domain.Backend("members.upsert", err)
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE project_members SET role = $3 WHERE project_id = $1 AND user_id = $2`,
		projectID, userID, string(role))
	if err != nil {
		return domain.Backend("members.update", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("members.update", "member", userID)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return domain.Backend("members.remove", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("members.remove", "member", userID)
	}
	return nil
}

// UserIDByEmail calls the get_user_id_by_email function.
func (s *Store) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id *string
	if err := s.pool.QueryRow(ctx, `SELECT get_user_id_by_email($1)`, strings.TrimSpace(email)).Scan(&id); err != nil {
		return "", domain.Backend("users.by_email", err)
	}
	if id == nil {
		return "", domain.NotFound("users.by_email", "user", email)
	}
	return *id, nil
}

func (s *Store) UpsertUser(ctx context.Context, id, email string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`, id, email)
	return domain.Backend("users.upsert", err)
}
