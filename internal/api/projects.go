package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/humastar"
	"github.com/joeblew999/plat-maps/internal/service"
)

// Guards checked by projectActions.
const (
	guardEdit  = "edit"
	guardAdmin = "admin"
)

var projectActions = []humastar.ActionDef{
	{Rel: "layers", Pattern: "/api/v1/projects/%s/layers", Method: "GET", Title: "Capas"},
	{Rel: "open", Pattern: "/api/v1/projects/%s/sessions", Method: "POST", Title: "Abrir mapa"},
	{Rel: "edit", Pattern: "/api/v1/projects/%s", Method: "PATCH", Title: "Editar proyecto", Guard: guardEdit},
	{Rel: "favorite", Pattern: "/api/v1/projects/%s/favorite", Method: "PUT", Title: "Favorito", Guard: guardEdit},
	{Rel: "upload", Pattern: "/api/v1/projects/%s/layers", Method: "POST", Title: "Subir capa", Guard: guardEdit},
	{Rel: "members", Pattern: "/api/v1/projects/%s/members", Method: "GET", Title: "Miembros", Guard: guardAdmin},
	{Rel: "delete", Pattern: "/api/v1/projects/%s", Method: "DELETE", Title: "Eliminar proyecto", Guard: guardAdmin},
}

// ProjectBody is a project plus the actions the caller may take on it.
type ProjectBody struct {
	service.ProjectView
}

func (p ProjectBody) Actions() []humastar.Action {
	return humastar.ActionsFor(p.ID, projectActions, func(guard string) bool {
		switch guard {
		case guardEdit:
			return p.Access.CanEdit()
		case guardAdmin:
			return p.Access.CanAdmin()
		}
		return false
	})
}

type ProjectIDInput struct {
	ID string `path:"id" doc:"Project ID"`
}

type ProjectListOutput struct {
	Body []domain.Project
}

type ProjectCreateInput struct {
	Body service.ProjectInput
}

type ProjectOutput struct {
	Body ProjectBody
}

type ProjectUpdateInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body service.ProjectPatch
}

type FavoriteInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body struct {
		Favorite bool `json:"favorite" doc:"Mark or unmark as favorite"`
	}
}

// RegisterProjects registers project CRUD routes.
func (h *APIHandler) RegisterProjects(api huma.API) {
	tags := huma.OperationTags("projects")

	huma.Get(api, "/api/v1/projects", h.ListProjects, tags, secured)
	huma.Post(api, "/api/v1/projects", h.CreateProject, tags, secured, status(http.StatusCreated))
	huma.Get(api, "/api/v1/projects/{id}", h.GetProject, tags, secured)
	huma.Patch(api, "/api/v1/projects/{id}", h.UpdateProject, tags, secured)
	huma.Put(api, "/api/v1/projects/{id}/favorite", h.SetFavorite, tags, secured)
	huma.Delete(api, "/api/v1/projects/{id}", h.DeleteProject, tags, secured)
}

func (h *APIHandler) ListProjects(ctx context.Context, input *struct{}) (*ProjectListOutput, error) {
	projects, err := h.svc.Projects.List(ctx, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &ProjectListOutput{Body: projects}, nil
}

func (h *APIHandler) CreateProject(ctx context.Context, input *ProjectCreateInput) (*ProjectOutput, error) {
	p, err := h.svc.Projects.Create(ctx, userID(ctx), input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &ProjectOutput{Body: ProjectBody{p}}, nil
}

func (h *APIHandler) GetProject(ctx context.Context, input *ProjectIDInput) (*ProjectOutput, error) {
	p, err := h.svc.Projects.Get(ctx, input.ID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &ProjectOutput{Body: ProjectBody{p}}, nil
}

func (h *APIHandler) UpdateProject(ctx context.Context, input *ProjectUpdateInput) (*ProjectOutput, error) {
	p, err := h.svc.Projects.Update(ctx, input.ID, userID(ctx), input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &ProjectOutput{Body: ProjectBody{p}}, nil
}

func (h *APIHandler) SetFavorite(ctx context.Context, input *FavoriteInput) (*ProjectOutput, error) {
	p, err := h.svc.Projects.SetFavorite(ctx, input.ID, userID(ctx), input.Body.Favorite)
	if err != nil {
		return nil, apiError(err)
	}
	return &ProjectOutput{Body: ProjectBody{p}}, nil
}

func (h *APIHandler) DeleteProject(ctx context.Context, input *ProjectIDInput) (*struct{}, error) {
	if err := h.svc.Projects.Delete(ctx, input.ID, userID(ctx)); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}
