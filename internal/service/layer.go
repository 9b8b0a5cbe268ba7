package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/access"
	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/importer"
	"github.com/joeblew999/plat-maps/internal/metrics"
	"github.com/joeblew999/plat-maps/internal/storage"
	"github.com/joeblew999/plat-maps/internal/store"
	"github.com/joeblew999/plat-maps/internal/style"
)

// LayerService lists, uploads and deletes project layers and persists
// their styles.
type LayerService struct {
	repo    store.Store
	access  *access.Resolver
	styles  *style.Store
	blobs   storage.Blobs
	bus     *EventBus
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// List returns the project's layers newest first. It always reads the
// backend.
func (s *LayerService) List(ctx context.Context, projectID, userID string) ([]domain.ProjectLayer, error) {
	if _, _, err := s.access.Resolve(ctx, projectID, userID); err != nil {
		return nil, err
	}
	layers, err := s.repo.ListLayers(ctx, projectID)
	if err != nil {
		return nil, domain.Backend("layers.list", err)
	}
	if layers == nil {
		layers = []domain.ProjectLayer{}
	}
	return layers, nil
}

// Upload imports a geodata file as a new layer named after the file. The
// original bytes are kept in object storage on a best-effort basis.
func (s *LayerService) Upload(ctx context.Context, userID, projectID, filename string, data []byte) (domain.ProjectLayer, error) {
	const op = "layers.upload"
	if _, err := s.access.RequireEdit(ctx, projectID, userID); err != nil {
		return domain.ProjectLayer{}, err
	}

	format, _ := importer.Detect(filename)
	fc, err := importer.Import(filename, data)
	s.metrics.ObserveImport(string(format), err)
	if err != nil {
		s.log.Warn().Err(err).Str("project_id", projectID).Str("file", filename).Msg("import failed")
		return domain.ProjectLayer{}, err
	}
	raw, err := json.Marshal(fc)
	if err != nil {
		return domain.ProjectLayer{}, domain.Validation(op, "encode geojson: %v", err)
	}

	key := ""
	if s.blobs != nil {
		key = storage.Key(userID, projectID, filename, s.now())
		if err := s.blobs.Put(ctx, key, data, http.DetectContentType(data)); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("original upload not stored")
			key = ""
		}
	}

	layer, err := s.repo.CreateLayer(ctx, domain.ProjectLayer{
		ProjectID:  projectID,
		Name:       importer.LayerName(filename),
		GeoJSON:    raw,
		SourcePath: key,
	})
	if err != nil {
		return domain.ProjectLayer{}, domain.Backend(op, err)
	}
	s.log.Info().
		Str("project_id", projectID).
		Str("layer_id", layer.ID).
		Str("format", string(format)).
		Int("features", len(fc.Features)).
		Msg("layer imported")
	s.bus.Publish(Event{ProjectID: projectID, Resource: "layers", Action: "created", ID: layer.ID})
	return layer, nil
}

// Delete removes a layer. Its style row is left in place.
func (s *LayerService) Delete(ctx context.Context, layerID, userID string) error {
	l, err := s.repo.GetLayer(ctx, layerID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireEdit(ctx, l.ProjectID, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteLayer(ctx, layerID); err != nil {
		return domain.Backend("layers.delete", err)
	}
	s.bus.Publish(Event{ProjectID: l.ProjectID, Resource: "layers", Action: "deleted", ID: layerID})
	return nil
}

// Styles returns the resolved style of every layer in the project.
func (s *LayerService) Styles(ctx context.Context, projectID, userID string) (map[string]domain.LayerStyle, error) {
	layers, err := s.List(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return s.styles.Load(ctx, ids)
}

// SaveStyle persists a full style row for a layer.
func (s *LayerService) SaveStyle(ctx context.Context, layerID, userID string, st domain.LayerStyle) (domain.LayerStyle, error) {
	l, err := s.repo.GetLayer(ctx, layerID)
	if err != nil {
		return domain.LayerStyle{}, err
	}
	if _, err := s.access.RequireEdit(ctx, l.ProjectID, userID); err != nil {
		return domain.LayerStyle{}, err
	}
	st.LayerID = layerID
	if err := s.styles.Persist(ctx, st); err != nil {
		return domain.LayerStyle{}, err
	}
	s.bus.Publish(Event{ProjectID: l.ProjectID, Resource: "styles", Action: "updated", ID: layerID})
	return st, nil
}
