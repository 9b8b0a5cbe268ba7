// Package style loads, patches and persists per-layer styles.
//
// Local edits live in a caller-owned map (a map session's style map) and are
// never written back implicitly; Persist is the only path to the backend and
// is serialized per layer ID.
package style

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/store"
)

// Observer receives persist outcomes. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveStylePersist(ok bool)
}

// Store syncs styles with the backend.
type Store struct {
	repo  store.Styles
	queue *Queue
	log   zerolog.Logger
	obs   Observer
}

// NewStore creates a style store. queue may be shared with other stores
// writing the same table; obs may be nil.
func NewStore(repo store.Styles, queue *Queue, log zerolog.Logger, obs Observer) *Store {
	if queue == nil {
		queue = NewQueue()
	}
	return &Store{repo: repo, queue: queue, log: log, obs: obs}
}

// Load returns a style for every requested ID, synthesizing the default
// for IDs with no persisted row.
func (s *Store) Load(ctx context.Context, layerIDs []string) (map[string]domain.LayerStyle, error) {
	persisted, err := s.repo.GetStyles(ctx, layerIDs)
	if err != nil {
		return nil, domain.Backend("styles.load", err)
	}
	styles := make(map[string]domain.LayerStyle, len(layerIDs))
	for _, id := range layerIDs {
		if st, ok := persisted[id]; ok {
			styles[id] = st
			continue
		}
		styles[id] = domain.DefaultStyle(id)
	}
	return styles, nil
}

// Persist upserts the full style row. Writes to the same layer apply in
// call order. On failure the caller's local map is left as it was.
func (s *Store) Persist(ctx context.Context, st domain.LayerStyle) error {
	if err := st.Validate(); err != nil {
		return err
	}
	err := s.queue.Do(ctx, st.LayerID, func(ctx context.Context) error {
		return s.repo.UpsertStyle(ctx, st)
	})
	if s.obs != nil {
		s.obs.ObserveStylePersist(err == nil)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("layer_id", st.LayerID).Msg("style persist failed")
		return domain.Backend("styles.persist", err)
	}
	s.log.Debug().Str("layer_id", st.LayerID).Msg("style persisted")
	return nil
}

// Resolve returns styles[id], or the default style when absent.
func Resolve(styles map[string]domain.LayerStyle, id string) domain.LayerStyle {
	if st, ok := styles[id]; ok {
		return st
	}
	return domain.DefaultStyle(id)
}

// SetLocal merges patch into styles[id] without persisting. An invalid
// result leaves the map untouched.
func SetLocal(styles map[string]domain.LayerStyle, id string, patch domain.StylePatch) (domain.LayerStyle, error) {
	next := patch.Apply(Resolve(styles, id))
	next.LayerID = id
	if err := next.Validate(); err != nil {
		return domain.LayerStyle{}, err
	}
	styles[id] = next
	return next, nil
}
