// Package live contains Datastar SSE handlers for the map UI.
package live

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/auth"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/humastar"
	"github.com/joeblew999/plat-maps/internal/service"
	"github.com/joeblew999/plat-maps/internal/templates"
)

// Handler streams project changes and applies live style edits.
type Handler struct {
	humastar.Handler
	svc *service.Services
}

func NewHandler(svc *service.Services, renderer *templates.Renderer) *Handler {
	return &Handler{Handler: humastar.Handler{Renderer: renderer}, svc: svc}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("live")
	huma.Get(api, "/api/v1/live/projects/{id}/events", h.Events, tags, secured)
	huma.Post(api, "/api/v1/live/sessions/{sid}/style", h.PatchStyle, tags, secured)
}

func secured(o *huma.Operation) {
	o.Security = auth.Security
}

func userID(ctx context.Context) string {
	u, _ := auth.UserFrom(ctx)
	return u.ID
}

type listItem struct {
	ID    string
	Name  string
	Style domain.LayerStyle
}

type listData struct {
	Layers  []listItem
	CanEdit bool
}

// layerList renders the project's layer list for a viewer.
func (h *Handler) layerList(ctx context.Context, projectID, uid string, canEdit bool) (string, error) {
	layers, err := h.svc.Layers.List(ctx, projectID, uid)
	if err != nil {
		return "", err
	}
	styles, err := h.svc.Layers.Styles(ctx, projectID, uid)
	if err != nil {
		return "", err
	}
	data := listData{Layers: make([]listItem, len(layers)), CanEdit: canEdit}
	for i, l := range layers {
		st, ok := styles[l.ID]
		if !ok {
			st = domain.DefaultStyle(l.ID)
		}
		data.Layers[i] = listItem{ID: l.ID, Name: l.Name, Style: st}
	}
	return h.Fragment(templates.LayerListFragment, data), nil
}
