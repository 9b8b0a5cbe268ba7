// Package service contains the business logic behind the API: projects,
// members, layer uploads and map sessions. Every mutation passes through
// the access resolver.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/access"
	"github.com/joeblew999/plat-maps/internal/metrics"
	"github.com/joeblew999/plat-maps/internal/session"
	"github.com/joeblew999/plat-maps/internal/storage"
	"github.com/joeblew999/plat-maps/internal/store"
	"github.com/joeblew999/plat-maps/internal/style"
	"github.com/joeblew999/plat-maps/internal/templates"
	"github.com/joeblew999/plat-maps/internal/wms"
)

// DefaultWMSRate is the outbound WMS request budget per second.
const DefaultWMSRate = 5

// Deps are the backends the services are built from. Blobs, Metrics and
// WMS may be nil.
type Deps struct {
	Store    store.Store
	Sessions session.Store
	Blobs    storage.Blobs
	Renderer *templates.Renderer
	WMS      *wms.Client
	Metrics  *metrics.Metrics
	Bus      *EventBus
	Log      zerolog.Logger
}

// Services holds the service dependencies for API handlers.
type Services struct {
	Projects *ProjectService
	Members  *MemberService
	Layers   *LayerService
	Sessions *SessionService
	Users    *UserService
	Bus      *EventBus
}

// New wires the services. One keyed queue serializes both style upserts
// (keyed by layer ID) and session updates (keyed by session ID).
func New(d Deps) *Services {
	if d.Bus == nil {
		d.Bus = NewEventBus()
	}
	if d.Renderer == nil {
		d.Renderer = templates.MustDefault()
	}
	if d.WMS == nil {
		d.WMS = wms.NewClient(DefaultWMSRate, d.Log, d.Metrics)
	}
	queue := style.NewQueue()
	resolver := access.NewResolver(d.Store)
	styles := style.NewStore(d.Store, queue, d.Log, d.Metrics)

	layers := &LayerService{
		repo:    d.Store,
		access:  resolver,
		styles:  styles,
		blobs:   d.Blobs,
		bus:     d.Bus,
		metrics: d.Metrics,
		log:     d.Log.With().Str("service", "layers").Logger(),
		now:     time.Now,
	}
	return &Services{
		Projects: &ProjectService{repo: d.Store, access: resolver, bus: d.Bus, log: d.Log},
		Members:  &MemberService{repo: d.Store, access: resolver, bus: d.Bus, log: d.Log},
		Layers:   layers,
		Sessions: &SessionService{
			repo:     d.Store,
			access:   resolver,
			styles:   styles,
			sessions: d.Sessions,
			queue:    queue,
			renderer: d.Renderer,
			wms:      d.WMS,
			bus:      d.Bus,
			metrics:  d.Metrics,
			log:      d.Log.With().Str("service", "sessions").Logger(),
			now:      time.Now,
		},
		Users: &UserService{repo: d.Store, log: d.Log},
		Bus:   d.Bus,
	}
}

// UserService mirrors authenticated callers into the users table so
// invitations by email can find them.
type UserService struct {
	repo store.Users
	log  zerolog.Logger
	seen sync.Map
}

// Remember upserts the user once per process. Failures are logged and
// retried on the next request.
func (s *UserService) Remember(ctx context.Context, id, email string) {
	if id == "" || email == "" {
		return
	}
	if prev, ok := s.seen.Load(id); ok && prev.(string) == email {
		return
	}
	if err := s.repo.UpsertUser(ctx, id, email); err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Msg("user upsert failed")
		return
	}
	s.seen.Store(id, email)
}
