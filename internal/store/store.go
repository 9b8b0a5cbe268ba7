// Package store defines the persistence contract for projects, layers,
// styles and members. Implementations live in duckstore and pgstore.
package store

import (
	"context"

	"github.com/joeblew999/plat-maps/internal/domain"
)

// Projects persists project records.
type Projects interface {
	// ListProjects returns projects owned by or shared with userID, newest first.
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	GetProject(ctx context.Context, id string) (domain.Project, error)
	CreateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error)
	// DeleteProject removes the project with its layers, their styles and members.
	DeleteProject(ctx context.Context, id string) error
}

// Layers persists imported layers.
type Layers interface {
	// ListLayers returns the project's layers newest first.
	ListLayers(ctx context.Context, projectID string) ([]domain.ProjectLayer, error)
	GetLayer(ctx context.Context, id string) (domain.ProjectLayer, error)
	CreateLayer(ctx context.Context, l domain.ProjectLayer) (domain.ProjectLayer, error)
	DeleteLayer(ctx context.Context, id string) error
}

// Styles persists layer styles keyed by layer ID.
type Styles interface {
	// GetStyles returns the persisted rows among layerIDs. Missing rows are
	// simply absent from the map.
	GetStyles(ctx context.Context, layerIDs []string) (map[string]domain.LayerStyle, error)
	// UpsertStyle inserts or overwrites the row for s.LayerID.
	UpsertStyle(ctx context.Context, s domain.LayerStyle) error
}

// Members persists project membership.
type Members interface {
	GetMember(ctx context.Context, projectID, userID string) (domain.ProjectMember, error)
	// ListMembers reads through the members-with-email view.
	ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error)
	UpsertMember(ctx context.Context, m domain.ProjectMember) error
	UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.Role) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

// Users resolves accounts known to the backend.
type Users interface {
	// UserIDByEmail is the get_user_id_by_email lookup.
	UserIDByEmail(ctx context.Context, email string) (string, error)
	UpsertUser(ctx context.Context, id, email string) error
}

// Store is the full backend.
type Store interface {
	Projects
	Layers
	Styles
	Members
	Users
	Ping(ctx context.Context) error
	Close() error
}
