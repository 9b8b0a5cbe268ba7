package live

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/humastar"
)

type EventsInput struct {
	ID string `path:"id" doc:"Project ID"`
}

// Events streams the project's layer list, then re-renders it and
// dispatches a resource-changed event for every mutation of the project.
// Access is resolved once when the stream opens.
func (h *Handler) Events(ctx context.Context, input *EventsInput) (*huma.StreamResponse, error) {
	uid := userID(ctx)
	p, err := h.svc.Projects.Get(ctx, input.ID, uid)
	if err != nil {
		return nil, humastar.HTTPError(err)
	}
	canEdit := p.Access.CanEdit()

	ch := h.svc.Bus.Subscribe(input.ID)
	return h.Stream(func(sse humastar.SSE) {
		defer h.svc.Bus.Unsubscribe(ch)

		h.patchList(ctx, sse, input.ID, uid, canEdit)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if ev.Resource == "layers" || ev.Resource == "styles" {
					h.patchList(ctx, sse, input.ID, uid, canEdit)
				}
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}

func (h *Handler) patchList(ctx context.Context, sse humastar.SSE, projectID, uid string, canEdit bool) {
	html, err := h.layerList(ctx, projectID, uid, canEdit)
	if err != nil {
		sse.Error(err.Error())
		return
	}
	sse.Replace(html, "#layer-list")
}
