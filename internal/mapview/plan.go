package mapview

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/importer"
	"github.com/joeblew999/plat-maps/internal/mapview/draw"
	"github.com/joeblew999/plat-maps/internal/templates"
	"github.com/joeblew999/plat-maps/internal/wms"
)

// PlannedLayer is one visible layer ready to draw. Popups is index-aligned
// with the features of GeoJSON.
type PlannedLayer struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Style       domain.LayerStyle          `json:"style"`
	PointRadius float64                    `json:"point_radius" doc:"Circle marker radius for point features"`
	GeoJSON     *geojson.FeatureCollection `json:"geojson"`
	Popups      []string                   `json:"popups"`
}

type PlannedOverlay struct {
	wms.Overlay
	TileURL string `json:"tile_url"`
}

// Plan is everything the client needs to draw the session.
type Plan struct {
	Layers   []PlannedLayer   `json:"layers"`
	Overlays []PlannedOverlay `json:"overlays"`
	Viewport Viewport         `json:"viewport"`
	Draw     draw.Machine     `json:"draw"`
}

type popupRow struct {
	Key, Value string
}

// BuildPlan renders the visible layers of s in the order given. A layer
// whose stored GeoJSON cannot be read is reported as an error naming it.
func BuildPlan(s *State, layers []domain.ProjectLayer, r *templates.Renderer) (*Plan, error) {
	plan := &Plan{
		Layers:   []PlannedLayer{},
		Overlays: []PlannedOverlay{},
		Viewport: s.Viewport,
		Draw:     s.Draw,
	}
	for _, l := range s.VisibleLayers(layers) {
		fc, err := importer.Normalize(l.GeoJSON)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.Name, err)
		}
		st := s.Style(l.ID)
		pl := PlannedLayer{
			ID:          l.ID,
			Name:        l.Name,
			Style:       st,
			PointRadius: st.Radius,
			GeoJSON:     fc,
			Popups:      make([]string, 0, len(fc.Features)),
		}
		for _, f := range fc.Features {
			html, err := Popup(r, l.Name, f.Properties)
			if err != nil {
				return nil, err
			}
			pl.Popups = append(pl.Popups, html)
		}
		plan.Layers = append(plan.Layers, pl)
	}
	for _, o := range s.Overlays.List() {
		plan.Overlays = append(plan.Overlays, PlannedOverlay{Overlay: o, TileURL: wms.TileURL(o)})
	}
	return plan, nil
}

// Popup renders a feature's properties as an escaped key/value table,
// sorted by key.
func Popup(r *templates.Renderer, layerName string, props map[string]any) (string, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]popupRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, popupRow{Key: k, Value: formatValue(props[k])})
	}
	return r.Render(templates.PopupFragment, map[string]any{"Layer": layerName, "Rows": rows})
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64, bool, int, int64:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
