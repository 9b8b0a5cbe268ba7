// Package server wires the stores, services and HTTP routes of plat-maps.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-maps/internal/api"
	"github.com/joeblew999/plat-maps/internal/api/live"
	"github.com/joeblew999/plat-maps/internal/auth"
	"github.com/joeblew999/plat-maps/internal/humastar"
	"github.com/joeblew999/plat-maps/internal/metrics"
	"github.com/joeblew999/plat-maps/internal/service"
	"github.com/joeblew999/plat-maps/internal/storage"
	"github.com/joeblew999/plat-maps/internal/store"
	"github.com/joeblew999/plat-maps/internal/templates"
	"github.com/joeblew999/plat-maps/internal/wms"
)

const Version = "0.1.0"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // pages under templates/, assets under static/

	Store       string
	DatabaseURL string

	JWTSecret string

	SessionBackend string
	RedisAddr      string
	SessionTTL     time.Duration

	Storage string
	S3      storage.S3Config

	WMSRate        float64
	RequestTimeout time.Duration
}

// Server is the plat-maps HTTP server.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	router   *chi.Mux
	humaAPI  huma.API
	metrics  *metrics.Metrics
	verifier *auth.Verifier
	store    store.Store
	services *service.Services
	renderer *templates.Renderer
	closers  []func() error
}

// New opens the configured backends and builds the router. Close releases
// them.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("--jwt-secret is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.WMSRate <= 0 {
		cfg.WMSRate = service.DefaultWMSRate
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		router:   chi.NewRouter(),
		metrics:  metrics.New(),
		verifier: auth.NewVerifier(cfg.JWTSecret),
		renderer: loadRenderer(cfg.WebDir, log),
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = st
	s.closers = append(s.closers, st.Close)

	sessions, err := s.openSessions(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	blobs, err := s.openBlobs(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s.services = service.New(service.Deps{
		Store:    st,
		Sessions: sessions,
		Blobs:    blobs,
		Renderer: s.renderer,
		WMS:      wms.NewClient(cfg.WMSRate, log, s.metrics),
		Metrics:  s.metrics,
		Log:      log,
	})

	s.routes()
	return s, nil
}

func loadRenderer(webDir string, log zerolog.Logger) *templates.Renderer {
	if webDir != "" {
		dir := filepath.Join(webDir, "templates", "fragments")
		if _, err := os.Stat(dir); err == nil {
			r, err := templates.New(dir)
			if err == nil {
				log.Info().Str("dir", dir).Msg("loaded fragment templates")
				return r
			}
			log.Warn().Err(err).Str("dir", dir).Msg("fragment templates unusable, using embedded")
		}
	}
	return templates.MustDefault()
}

func (s *Server) humaConfig() huma.Config {
	cfg := huma.DefaultConfig("plat-maps API", Version)
	cfg.Info.Description = "Pudumaps GIS project manager: projects, layers, styles and map sessions."
	if s.cfg.Host != "" && s.cfg.Port != "" {
		cfg.Servers = []*huma.Server{
			{URL: fmt.Sprintf("http://%s:%s", s.cfg.Host, s.cfg.Port), Description: "Local server"},
		}
	}
	// Disable $schema property in responses (cleaner JSON)
	cfg.CreateHooks = []func(huma.Config) huma.Config{}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		auth.SchemeName: auth.SecurityScheme(),
	}
	cfg.Transformers = append(cfg.Transformers, humastar.LinkTransformer(api.Links))
	return cfg
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(timeout(s.cfg.RequestTimeout))
	r.Use(s.accessLog)

	s.humaAPI = humachi.New(r, s.humaConfig())
	s.humaAPI.UseMiddleware(auth.Middleware(s.humaAPI, s.verifier, func(ctx context.Context, u auth.User) {
		s.services.Users.Remember(ctx, u.ID, u.Email)
	}))

	api.RegisterRoutes(s.humaAPI,
		api.NewAPIHandler(s.services, s.store, Version),
		api.NewInfoHandler(api.InfoConfig{
			Version:        Version,
			DataDir:        s.cfg.DataDir,
			Store:          orDefault(s.cfg.Store, StoreDuckDB),
			SessionBackend: orDefault(s.cfg.SessionBackend, SessionsMemory),
			Storage:        orDefault(s.cfg.Storage, StorageLocal),
		}),
	)
	live.NewHandler(s.services, s.renderer).RegisterRoutes(s.humaAPI)

	r.Handle("/metrics", s.metrics.Handler())
	s.pages(r)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI spec.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
