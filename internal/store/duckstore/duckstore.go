// Package duckstore implements store.Store on the embedded DuckDB database.
package duckstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-maps/internal/db"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is a DuckDB-backed store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open connection and applies the schema.
func New(ctx context.Context, conn *sql.DB) (*Store, error) {
	if err := db.MigrateDuckDB(ctx, conn); err != nil {
		return nil, err
	}
	return &Store{db: conn, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// Projects

const projectColumns = `id, name, description, owner_id, visibility, is_favorite, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var (
		p    domain.Project
		desc sql.NullString
		vis  string
	)
	if err := row.Scan(&p.ID, &p.Name, &desc, &p.OwnerID, &vis, &p.IsFavorite, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Project{}, err
	}
	p.Description = desc.String
	p.Visibility = domain.Visibility(vis)
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects p
		WHERE p.owner_id = ?
		   OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)
		ORDER BY p.created_at DESC`, userID, userID)
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
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	_, err := s.db.ExecContext(ctx, `INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Description), p.OwnerID, string(p.Visibility), p.IsFavorite, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.Project{}, domain.Backend("projects.create", err)
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	p.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `UPDATE projects
		SET name = ?, description = ?, visibility = ?, is_favorite = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, nullString(p.Description), string(p.Visibility), p.IsFavorite, p.UpdatedAt, p.ID)
	if err != nil {
		return domain.Project{}, domain.Backend("projects.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Project{}, domain.NotFound("projects.update", "project", p.ID)
	}
	return s.GetProject(ctx, p.ID)
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	const op = "projects.delete"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Backend(op, err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM project_layer_styles WHERE layer_id IN (SELECT id FROM project_layers WHERE project_id = ?)`,
		`DELETE FROM project_layers WHERE project_id = ?`,
		`DELETE FROM project_members WHERE project_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return domain.Backend(op, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return domain.Backend(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound(op, "project", id)
	}
	return domain.Backend(op, tx.Commit())
}

// Layers

const layerColumns = `id, project_id, name, geojson, source_path, created_at`

func scanLayer(row interface{ Scan(...any) error }) (domain.ProjectLayer, error) {
	var (
		l      domain.ProjectLayer
		gj     string
		source sql.NullString
	)
	if err := row.Scan(&l.ID, &l.ProjectID, &l.Name, &gj, &source, &l.CreatedAt); err != nil {
		return domain.ProjectLayer{}, err
	}
	l.GeoJSON = []byte(gj)
	l.SourcePath = source.String
	return l, nil
}

func (s *Store) ListLayers(ctx context.Context, projectID string) ([]domain.ProjectLayer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+layerColumns+` FROM project_layers
		WHERE project_id = ? ORDER BY created_at DESC`, projectID)
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
	l, err := scanLayer(s.db.QueryRowContext(ctx, `SELECT `+layerColumns+` FROM project_layers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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
		l.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_layers (`+layerColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.ProjectID, l.Name, string(l.GeoJSON), nullString(l.SourcePath), l.CreatedAt)
	if err != nil {
		return domain.ProjectLayer{}, domain.Backend("layers.create", err)
	}
	return l, nil
}

func (s *Store) DeleteLayer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_layers WHERE id = ?`, id)
	if err != nil {
		return domain.Backend("layers.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("layers.delete", "layer", id)
	}
	return nil
}

// Styles

func (s *Store) GetStyles(ctx context.Context, layerIDs []string) (map[string]domain.LayerStyle, error) {
	styles := make(map[string]domain.LayerStyle, len(layerIDs))
	if len(layerIDs) == 0 {
		return styles, nil
	}

	args := make([]any, len(layerIDs))
	for i, id := range layerIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(layerIDs)), ", ")
	rows, err := s.db.QueryContext(ctx, `SELECT layer_id, color, weight, opacity, fill_color, fill_opacity, radius
		FROM project_layer_styles WHERE layer_id IN (`+placeholders+`)`, args...)
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
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_layer_styles
		(layer_id, color, weight, opacity, fill_color, fill_opacity, radius, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (layer_id) DO UPDATE SET
			color = excluded.color,
			weight = excluded.weight,
			opacity = excluded.opacity,
			fill_color = excluded.fill_color,
			fill_opacity = excluded.fill_opacity,
			radius = excluded.radius,
			updated_at = excluded.updated_at`,
		st.LayerID, st.Color, st.Weight, st.Opacity, st.FillColor, st.FillOpacity, st.Radius, s.now())
	return domain.Backend("styles.upsert", err)
}

// Members

func (s *Store) GetMember(ctx context.Context, projectID, userID string) (domain.ProjectMember, error) {
	var (
		m    domain.ProjectMember
		role string
	)
	err := s.db.QueryRowContext(ctx, `SELECT project_id, user_id, role, created_at FROM project_members
		WHERE project_id = ? AND user_id = ?`, projectID, userID).Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProjectMember{}, domain.NotFound("members.get", "member", userID)
	}
	if err != nil {
		return domain.ProjectMember{}, domain.Backend("members.get", err)
	}
	m.Role = domain.Role(role)
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, user_id, role, created_at, email
		FROM members_with_email WHERE project_id = ? ORDER BY created_at`, projectID)
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
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_members (project_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = excluded.role`,
		m.ProjectID, m.UserID, string(m.Role), m.CreatedAt)
	return domain.Backend("members.upsert", err)
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?`,
		string(role), projectID, userID)
	if err != nil {
		return domain.Backend("members.update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("members.update", "member", userID)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return domain.Backend("members.remove", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("members.remove", "member", userID)
	}
	return nil
}

// Users

func (s *Store) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE lower(email) = lower(?) LIMIT 1`,
		strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NotFound("users.by_email", "user", email)
	}
	if err != nil {
		return "", domain.Backend("users.by_email", err)
	}
	return id, nil
}

func (s *Store) UpsertUser(ctx context.Context, id, email string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email`, id, email)
	return domain.Backend("users.upsert", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
