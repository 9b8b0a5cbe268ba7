// Package access resolves a caller's role on a project.
package access

import (
	"context"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/store"
)

// Backend is the subset of the store the resolver reads.
type Backend interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	GetMember(ctx context.Context, projectID, userID string) (domain.ProjectMember, error)
}

var _ Backend = (store.Store)(nil)

type Resolver struct {
	backend Backend
}

func NewResolver(b Backend) *Resolver {
	return &Resolver{backend: b}
}

// Resolve applies, in order: owner => editor, public => viewer, membership
// row => its role, otherwise Forbidden.
func (r *Resolver) Resolve(ctx context.Context, projectID, userID string) (domain.Access, domain.Project, error) {
	const op = "access.resolve"
	p, err := r.backend.GetProject(ctx, projectID)
	if err != nil {
		return domain.Access{}, domain.Project{}, err
	}
	if userID != "" && p.OwnerID == userID {
		return domain.Access{Role: domain.RoleEditor, Owner: true}, p, nil
	}
	if p.Visibility == domain.VisibilityPublic {
		return domain.Access{Role: domain.RoleViewer}, p, nil
	}
	if userID == "" {
		return domain.Access{}, p, domain.Forbidden(op, "no access to this project")
	}

	m, err := r.backend.GetMember(ctx, projectID, userID)
	if domain.IsKind(err, domain.KindNotFound) {
		return domain.Access{}, p, domain.Forbidden(op, "no access to this project")
	}
	if err != nil {
		return domain.Access{}, p, domain.Backend(op, err)
	}
	return domain.Access{Role: m.Role}, p, nil
}

// RequireEdit resolves access and fails with Forbidden unless the caller
// may mutate the project.
func (r *Resolver) RequireEdit(ctx context.Context, projectID, userID string) (domain.Access, error) {
	a, _, err := r.Resolve(ctx, projectID, userID)
	if err != nil {
		return a, err
	}
	if !a.CanEdit() {
		return a, domain.Forbidden("access.require_edit", "editor role required")
	}
	return a, nil
}

// RequireOwner resolves access and fails with Forbidden unless the caller
// owns the project.
func (r *Resolver) RequireOwner(ctx context.Context, projectID, userID string) (domain.Project, error) {
	a, p, err := r.Resolve(ctx, projectID, userID)
	if err != nil {
		return p, err
	}
	if !a.CanAdmin() {
		return p, domain.Forbidden("access.require_owner", "only the project owner can do this")
	}
	return p, nil
}
