package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/access"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/export"
	"github.com/joeblew999/plat-maps/internal/mapview"
	"github.com/joeblew999/plat-maps/internal/mapview/draw"
	"github.com/joeblew999/plat-maps/internal/metrics"
	"github.com/joeblew999/plat-maps/internal/session"
	"github.com/joeblew999/plat-maps/internal/store"
	"github.com/joeblew999/plat-maps/internal/style"
	"github.com/joeblew999/plat-maps/internal/templates"
	"github.com/joeblew999/plat-maps/internal/wms"
)

// SessionService drives open maps. Access is resolved once when a map is
// opened and cached on the session; later calls check the cached role.
// Each session is loaded, changed and saved under its own queue key.
type SessionService struct {
	repo     store.Store
	access   *access.Resolver
	styles   *style.Store
	sessions session.Store
	queue    *style.Queue
	renderer *templates.Renderer
	wms      *wms.Client
	bus      *EventBus
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// Open starts a map of the project: every layer visible, persisted styles
// loaded, viewport on the home region.
func (s *SessionService) Open(ctx context.Context, projectID, userID string) (*mapview.State, error) {
	acc, _, err := s.access.Resolve(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	layers, err := s.repo.ListLayers(ctx, projectID)
	if err != nil {
		return nil, domain.Backend("sessions.open", err)
	}
	ids := make([]string, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	styles, err := s.styles.Load(ctx, ids)
	if err != nil {
		return nil, err
	}

	st := mapview.New(uuid.NewString(), projectID, userID, acc, layers, styles)
	if err := s.sessions.Put(ctx, st); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("session_id", st.ID).
		Str("project_id", projectID).
		Str("user_id", userID).
		Str("role", string(acc.Role)).
		Int("layers", len(layers)).
		Msg("map session opened")
	return st, nil
}

// Get returns the caller's session. Sessions of other users are reported
// as not found.
func (s *SessionService) Get(ctx context.Context, sid, userID string) (*mapview.State, error) {
	st, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, domain.NotFound("sessions.get", "session", sid)
	}
	return st, nil
}

// List returns the IDs of the caller's live sessions.
func (s *SessionService) List(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.sessions.UserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *SessionService) Close(ctx context.Context, sid, userID string) error {
	return s.queue.Do(ctx, sessionKey(sid), func(ctx context.Context) error {
		if _, err := s.Get(ctx, sid, userID); err != nil {
			return err
		}
		return s.sessions.Delete(ctx, sid)
	})
}

func sessionKey(sid string) string { return "session:" + sid }

// update runs fn on the session and saves the result. If fn fails nothing
// is saved.
func (s *SessionService) update(ctx context.Context, sid, userID string, fn func(context.Context, *mapview.State) error) (*mapview.State, error) {
	var out *mapview.State
	err := s.queue.Do(ctx, sessionKey(sid), func(ctx context.Context) error {
		st, err := s.Get(ctx, sid, userID)
		if err != nil {
			return err
		}
		if err := fn(ctx, st); err != nil {
			return err
		}
		if err := s.sessions.Put(ctx, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// refresh re-reads the layer list and picks up persisted styles for
// layers the session has not seen yet.
func (s *SessionService) refresh(ctx context.Context, st *mapview.State) ([]domain.ProjectLayer, error) {
	layers, err := s.repo.ListLayers(ctx, st.ProjectID)
	if err != nil {
		return nil, domain.Backend("sessions.refresh", err)
	}
	st.SyncLayers(layers)

	var missing []string
	for _, id := range st.LayerIDs {
		if _, ok := st.Styles[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		loaded, err := s.styles.Load(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, ls := range loaded {
			st.Styles[id] = ls
		}
	}
	return layers, nil
}

// Render builds the plan for the visible layers from a fresh layer list.
func (s *SessionService) Render(ctx context.Context, sid, userID string) (*mapview.Plan, error) {
	var plan *mapview.Plan
	_, err := s.update(ctx, sid, userID, func(ctx context.Context, st *mapview.State) error {
		layers, err := s.refresh(ctx, st)
		if err != nil {
			return err
		}
		plan, err = mapview.BuildPlan(st, layers, s.renderer)
		return err
	})
	return plan, err
}

func (s *SessionService) SetVisible(ctx context.Context, sid, userID, layerID string, visible bool) (*mapview.State, error) {
	return s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		return st.SetVisible(layerID, visible)
	})
}

// PatchStyle changes the session's local style only.
func (s *SessionService) PatchStyle(ctx context.Context, sid, userID, layerID string, patch domain.StylePatch) (domain.LayerStyle, error) {
	var out domain.LayerStyle
	_, err := s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		var err error
		out, err = st.PatchStyle(layerID, patch)
		return err
	})
	return out, err
}

// SaveStyle persists the session's current style for layerID. A failure
// leaves the local style in place.
func (s *SessionService) SaveStyle(ctx context.Context, sid, userID, layerID string) (domain.LayerStyle, error) {
	st, err := s.Get(ctx, sid, userID)
	if err != nil {
		return domain.LayerStyle{}, err
	}
	if !st.Access.CanEdit() {
		return domain.LayerStyle{}, domain.Forbidden("sessions.save_style", "editor role required")
	}
	if !containsID(st.LayerIDs, layerID) {
		return domain.LayerStyle{}, domain.NotFound("sessions.save_style", "layer", layerID)
	}
	ls := st.Style(layerID)
	if err := s.styles.Persist(ctx, ls); err != nil {
		return domain.LayerStyle{}, err
	}
	s.bus.Publish(Event{ProjectID: st.ProjectID, Resource: "styles", Action: "updated", ID: layerID})
	return ls, nil
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Viewport

func (s *SessionService) Home(ctx context.Context, sid, userID string) (*mapview.State, error) {
	return s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		st.GoHome()
		return nil
	})
}

// Fit frames raw GeoJSON. ok is false, and the viewport unchanged, when
// it holds no geometry.
func (s *SessionService) Fit(ctx context.Context, sid, userID string, raw []byte) (st *mapview.State, ok bool, err error) {
	st, err = s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		ok = st.FitGeoJSON(raw)
		return nil
	})
	return st, ok, err
}

// FitLayer frames one of the session's layers.
func (s *SessionService) FitLayer(ctx context.Context, sid, userID, layerID string) (*mapview.State, bool, error) {
	l, err := s.repo.GetLayer(ctx, layerID)
	if err != nil {
		return nil, false, err
	}
	st, err := s.Get(ctx, sid, userID)
	if err != nil {
		return nil, false, err
	}
	if l.ProjectID != st.ProjectID {
		return nil, false, domain.NotFound("sessions.fit", "layer", layerID)
	}
	return s.Fit(ctx, sid, userID, l.GeoJSON)
}

// Locate centres on the device position. Failures come back as a notice,
// not an error.
func (s *SessionService) Locate(ctx context.Context, sid, userID string, g mapview.Geolocator) (*mapview.State, *domain.Notice, error) {
	var notice *domain.Notice
	st, err := s.update(ctx, sid, userID, func(ctx context.Context, st *mapview.State) error {
		notice = st.Locate(ctx, g)
		return nil
	})
	return st, notice, err
}

// Overlays

func (s *SessionService) Overlays(ctx context.Context, sid, userID string) ([]wms.Overlay, error) {
	st, err := s.Get(ctx, sid, userID)
	if err != nil {
		return nil, err
	}
	return st.Overlays.List(), nil
}

func (s *SessionService) AddOverlay(ctx context.Context, sid, userID, url, layers string, kind wms.Kind) (wms.Overlay, error) {
	var out wms.Overlay
	_, err := s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		var err error
		out, err = st.Overlays.Add(url, layers, kind)
		return err
	})
	return out, err
}

func (s *SessionService) ToggleOverlay(ctx context.Context, sid, userID string, id int64) (wms.Overlay, error) {
	var out wms.Overlay
	_, err := s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		var err error
		out, err = st.Overlays.Toggle(id)
		return err
	})
	return out, err
}

func (s *SessionService) RemoveOverlay(ctx context.Context, sid, userID string, id int64) error {
	_, err := s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		return st.Overlays.Remove(id)
	})
	return err
}

// FeatureInfo queries the session's active WMS overlays at a click.
func (s *SessionService) FeatureInfo(ctx context.Context, sid, userID string, click wms.Click) (*wms.Result, []domain.Notice, error) {
	st, err := s.Get(ctx, sid, userID)
	if err != nil {
		return nil, nil, err
	}
	res, notices := s.wms.FeatureInfo(ctx, st.Overlays.List(), click)
	return res, notices, nil
}

// Draw

// DrawAction is one transition of the draw machine.
type DrawAction string

const (
	DrawStart    DrawAction = "start"
	DrawMeasure  DrawAction = "measure"
	DrawVertex   DrawAction = "vertex"
	DrawComplete DrawAction = "complete"
	DrawCancel   DrawAction = "cancel"
)

// DrawInput carries the arguments a transition needs: Shape for start,
// Point for vertex.
type DrawInput struct {
	Shape draw.Shape
	Point orb.Point
}

// Draw applies one transition. Complete returns the new measurement.
func (s *SessionService) Draw(ctx context.Context, sid, userID string, action DrawAction, in DrawInput) (*mapview.State, *draw.Measurement, error) {
	var done *draw.Measurement
	st, err := s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		switch action {
		case DrawStart:
			return st.Draw.Start(in.Shape)
		case DrawMeasure:
			return st.Draw.StartMeasure()
		case DrawVertex:
			return st.Draw.AddVertex(in.Point)
		case DrawComplete:
			m, err := st.Draw.Complete()
			if err != nil {
				return err
			}
			done = &m
			return nil
		case DrawCancel:
			st.Draw.Cancel()
			return nil
		}
		return domain.Validation("sessions.draw", "unknown draw action %q", action)
	})
	return st, done, err
}

func (s *SessionService) DeleteMeasurement(ctx context.Context, sid, userID, id string) error {
	_, err := s.update(ctx, sid, userID, func(_ context.Context, st *mapview.State) error {
		return st.Draw.Delete(id)
	})
	return err
}

func (s *SessionService) MeasurementsGeoJSON(ctx context.Context, sid, userID string) (*geojson.FeatureCollection, error) {
	st, err := s.Get(ctx, sid, userID)
	if err != nil {
		return nil, err
	}
	return st.Draw.GeoJSON(), nil
}

// Export

// ExportKMZ writes the visible layers as KMZ.
func (s *SessionService) ExportKMZ(ctx context.Context, sid, userID string) (*export.File, error) {
	plan, err := s.Render(ctx, sid, userID)
	if err != nil {
		return nil, err
	}
	f, err := export.KMZ(plan.Layers, s.now())
	s.observeExport(sid, "kmz", err)
	return f, err
}

// ExportPDF lays the map out on an A4 page. snapshot is an optional PNG
// capture from the client.
func (s *SessionService) ExportPDF(ctx context.Context, sid, userID string, snapshot []byte, listLayers bool) (*export.File, error) {
	plan, err := s.Render(ctx, sid, userID)
	if err != nil {
		return nil, err
	}
	f, err := export.PDF(plan.Layers, export.PDFOptions{
		Snapshot:   snapshot,
		View:       plan.Viewport.Bound(),
		ListLayers: listLayers,
	}, s.now())
	s.observeExport(sid, "pdf", err)
	return f, err
}

func (s *SessionService) observeExport(sid, format string, err error) {
	s.metrics.ObserveExport(format, err)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sid).Str("format", format).Msg("export failed")
		return
	}
	s.log.Info().Str("session_id", sid).Str("format", format).Msg("export written")
}
