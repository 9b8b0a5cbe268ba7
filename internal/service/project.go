package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/access"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/store"
)

// ProjectInput creates a project.
type ProjectInput struct {
	Name        string            `json:"name" doc:"Project name" example:"Parcelas Los Ríos"`
	Description string            `json:"description,omitempty" doc:"Optional description"`
	Visibility  domain.Visibility `json:"visibility,omitempty" enum:"private,public" default:"private" doc:"Who can view the project"`
}

// ProjectPatch updates a project. Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string            `json:"name,omitempty" doc:"Project name"`
	Description *string            `json:"description,omitempty" doc:"Description"`
	Visibility  *domain.Visibility `json:"visibility,omitempty" enum:"private,public" doc:"Visibility"`
}

// ProjectView is a project with the caller's standing on it.
type ProjectView struct {
	domain.Project
	Access domain.Access `json:"access" doc:"Caller's resolved access"`
}

type ProjectService struct {
	repo   store.Store
	access *access.Resolver
	bus    *EventBus
	log    zerolog.Logger
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx, userID)
	if err != nil {
		return nil, domain.Backend("projects.list", err)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, id, userID string) (ProjectView, error) {
	acc, p, err := s.access.Resolve(ctx, id, userID)
	if err != nil {
		return ProjectView{}, err
	}
	return ProjectView{Project: p, Access: acc}, nil
}

func (s *ProjectService) Create(ctx context.Context, userID string, in ProjectInput) (ProjectView, error) {
	const op = "projects.create"
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ProjectView{}, domain.Validation(op, "El nombre es obligatorio")
	}
	vis := in.Visibility
	if vis == "" {
		vis = domain.VisibilityPrivate
	}
	if !vis.Valid() {
		return ProjectView{}, domain.Validation(op, "unknown visibility %q", vis)
	}
	p, err := s.repo.CreateProject(ctx, domain.Project{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     userID,
		Visibility:  vis,
	})
	if err != nil {
		return ProjectView{}, domain.Backend(op, err)
	}
	s.log.Info().Str("project_id", p.ID).Str("user_id", userID).Msg("project created")
	s.bus.Publish(Event{ProjectID: p.ID, Resource: "projects", Action: "created", ID: p.ID})
	return ProjectView{Project: p, Access: domain.Access{Role: domain.RoleEditor, Owner: true}}, nil
}

// Update applies patch. Editors and the owner may update.
func (s *ProjectService) Update(ctx context.Context, id, userID string, patch ProjectPatch) (ProjectView, error) {
	const op = "projects.update"
	acc, p, err := s.editable(ctx, id, userID)
	if err != nil {
		return ProjectView{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return ProjectView{}, domain.Validation(op, "El nombre es obligatorio")
		}
		p.Name = name
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Visibility != nil {
		if !patch.Visibility.Valid() {
			return ProjectView{}, domain.Validation(op, "unknown visibility %q", *patch.Visibility)
		}
		p.Visibility = *patch.Visibility
	}
	updated, err := s.repo.UpdateProject(ctx, p)
	if err != nil {
		return ProjectView{}, domain.Backend(op, err)
	}
	s.bus.Publish(Event{ProjectID: id, Resource: "projects", Action: "updated", ID: id})
	return ProjectView{Project: updated, Access: acc}, nil
}

func (s *ProjectService) SetFavorite(ctx context.Context, id, userID string, favorite bool) (ProjectView, error) {
	acc, p, err := s.editable(ctx, id, userID)
	if err != nil {
		return ProjectView{}, err
	}
	p.IsFavorite = favorite
	updated, err := s.repo.UpdateProject(ctx, p)
	if err != nil {
		return ProjectView{}, domain.Backend("projects.favorite", err)
	}
	s.bus.Publish(Event{ProjectID: id, Resource: "projects", Action: "updated", ID: id})
	return ProjectView{Project: updated, Access: acc}, nil
}

func (s *ProjectService) editable(ctx context.Context, id, userID string) (domain.Access, domain.Project, error) {
	acc, p, err := s.access.Resolve(ctx, id, userID)
	if err != nil {
		return acc, p, err
	}
	if !acc.CanEdit() {
		return acc, p, domain.Forbidden("projects.update", "editor role required")
	}
	return acc, p, nil
}

// Delete removes the project with its layers and members. Owner only.
func (s *ProjectService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.access.RequireOwner(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return domain.Backend("projects.delete", err)
	}
	s.log.Info().Str("project_id", id).Str("user_id", userID).Msg("project deleted")
	s.bus.Publish(Event{ProjectID: id, Resource: "projects", Action: "deleted", ID: id})
	return nil
}
