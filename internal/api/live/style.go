package live

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/humastar"
)

type StyleInput struct {
	SID     string `path:"sid" doc:"Map session ID"`
	RawBody []byte
}

// PatchStyle applies the style form's signals to the session's local style
// of $layerid and echoes the resulting style back as signals. Nothing is
// persisted.
func (h *Handler) PatchStyle(ctx context.Context, input *StyleInput) (*huma.StreamResponse, error) {
	signals, err := humastar.ParseSignals(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	layerID := signals.String("layerid")
	if layerID == "" {
		return nil, huma.Error400BadRequest("layerid is required")
	}
	patch := stylePatch(signals)

	return h.Stream(func(sse humastar.SSE) {
		st, err := h.svc.Sessions.PatchStyle(ctx, input.SID, userID(ctx), layerID, patch)
		if err != nil {
			msg := err.Error()
			var de *domain.Error
			if errors.As(err, &de) {
				msg = de.Message()
			}
			h.Toast(sse, domain.Notice{Level: domain.NoticeError, Message: msg})
			return
		}
		sse.Signals(styleSignals(st))
		sse.DispatchCustomEvent("style-changed", st)
	}), nil
}

// stylePatch reads the style form. Signal names are lowercase because of
// data-bind.
func stylePatch(s humastar.Signals) domain.StylePatch {
	var p domain.StylePatch
	if v := s.String("color"); v != "" {
		p.Color = &v
	}
	if v := s.String("fillcolor"); v != "" {
		p.FillColor = &v
	}
	if v, ok := s.Float("weight"); ok {
		p.Weight = &v
	}
	if v, ok := s.Float("opacity"); ok {
		p.Opacity = &v
	}
	if v, ok := s.Float("fillopacity"); ok {
		p.FillOpacity = &v
	}
	if v, ok := s.Float("radius"); ok {
		p.Radius = &v
	}
	return p
}

func styleSignals(st domain.LayerStyle) map[string]any {
	return map[string]any{
		"layerid":     st.LayerID,
		"color":       st.Color,
		"fillcolor":   st.FillColor,
		"weight":      st.Weight,
		"opacity":     st.Opacity,
		"fillopacity": st.FillOpacity,
		"radius":      st.Radius,
	}
}
