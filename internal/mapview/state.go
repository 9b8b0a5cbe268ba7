// Package mapview holds the server-side state of an open map and turns it
// into a render plan for the client.
package mapview

import (
	"time"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview/draw"
	"github.com/joeblew999/plat-maps/internal/style"
	"github.com/joeblew999/plat-maps/internal/wms"
)

// State is one user's open map of one project. It is passed explicitly to
// every operation and must round-trip through JSON for the session store.
type State struct {
	ID        string                       `json:"id"`
	ProjectID string                       `json:"project_id"`
	UserID    string                       `json:"user_id"`
	Access    domain.Access                `json:"access"`
	LayerIDs  []string                     `json:"layer_ids"`
	Visible   map[string]bool              `json:"visible"`
	Styles    map[string]domain.LayerStyle `json:"styles"`
	Overlays  wms.Registry                 `json:"overlays"`
	Draw      draw.Machine                 `json:"draw"`
	Viewport  Viewport                     `json:"viewport"`
	OpenedAt  time.Time                    `json:"opened_at"`
}

// New opens a map over layers (display order) with every layer visible and
// the viewport on the home region. styles is typically style.Store.Load's
// result.
func New(id, projectID, userID string, access domain.Access, layers []domain.ProjectLayer, styles map[string]domain.LayerStyle) *State {
	s := &State{
		ID:        id,
		ProjectID: projectID,
		UserID:    userID,
		Access:    access,
		Visible:   make(map[string]bool, len(layers)),
		Styles:    make(map[string]domain.LayerStyle, len(styles)),
		Viewport:  Home(),
		OpenedAt:  time.Now().UTC(),
	}
	for k, v := range styles {
		s.Styles[k] = v
	}
	s.SyncLayers(layers)
	return s
}

// SyncLayers aligns the state with a fresh layer listing: new layers start
// visible, removed ones are forgotten. Local styles are left as they are.
func (s *State) SyncLayers(layers []domain.ProjectLayer) {
	if s.Visible == nil {
		s.Visible = make(map[string]bool, len(layers))
	}
	ids := make([]string, 0, len(layers))
	seen := make(map[string]bool, len(layers))
	for _, l := range layers {
		ids = append(ids, l.ID)
		seen[l.ID] = true
		if _, ok := s.Visible[l.ID]; !ok {
			s.Visible[l.ID] = true
		}
	}
	for id := range s.Visible {
		if !seen[id] {
			delete(s.Visible, id)
		}
	}
	s.LayerIDs = ids
}

// IsVisible reports visibility; layers the state has not seen yet count as
// visible.
func (s *State) IsVisible(layerID string) bool {
	v, ok := s.Visible[layerID]
	return !ok || v
}

// SetVisible changes only the visibility flag. Style and geometry are left
// alone, so re-showing a layer shows its last style.
func (s *State) SetVisible(layerID string, visible bool) error {
	if !s.hasLayer(layerID) {
		return domain.NotFound("map.set_visible", "layer", layerID)
	}
	if s.Visible == nil {
		s.Visible = map[string]bool{}
	}
	s.Visible[layerID] = visible
	return nil
}

// Style resolves the session's style for a layer.
func (s *State) Style(layerID string) domain.LayerStyle {
	return style.Resolve(s.Styles, layerID)
}

// PatchStyle applies a local, unsaved style edit.
func (s *State) PatchStyle(layerID string, patch domain.StylePatch) (domain.LayerStyle, error) {
	if !s.hasLayer(layerID) {
		return domain.LayerStyle{}, domain.NotFound("map.patch_style", "layer", layerID)
	}
	if s.Styles == nil {
		s.Styles = map[string]domain.LayerStyle{}
	}
	return style.SetLocal(s.Styles, layerID, patch)
}

// VisibleLayers filters layers to the visible ones, keeping their order.
func (s *State) VisibleLayers(layers []domain.ProjectLayer) []domain.ProjectLayer {
	out := make([]domain.ProjectLayer, 0, len(layers))
	for _, l := range layers {
		if s.IsVisible(l.ID) {
			out = append(out, l)
		}
	}
	return out
}

func (s *State) hasLayer(id string) bool {
	for _, l := range s.LayerIDs {
		if l == id {
			return true
		}
	}
	return false
}
