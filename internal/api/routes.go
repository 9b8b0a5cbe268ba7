// Package api defines the Huma API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/service"
)

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
	Store   string `json:"store" doc:"Store reachability" example:"ok"`
}

// Pinger reports backend reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc     *service.Services
	store   Pinger
	version string
}

func NewAPIHandler(svc *service.Services, store Pinger, version string) *APIHandler {
	return &APIHandler{svc: svc, store: store, version: version}
}

// RegisterRoutes registers every REST route plus the Link transformer's
// static relations.
func RegisterRoutes(api huma.API, h *APIHandler, info *InfoHandler) {
	huma.AutoRegister(api, h)
	info.RegisterRoutes(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	body := HealthBody{Status: "ok", Version: h.version, Store: "ok"}
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			body.Status, body.Store = "degraded", err.Error()
		}
	}
	return &struct{ Body HealthBody }{Body: body}, nil
}

// Links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var Links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/projects>; rel="projects"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/projects>; rel="projects"`,
	},
	"/api/v1/projects": {
		`</api/v1/sessions>; rel="sessions"`,
	},
	"/api/v1/projects/{id}": {
		`</api/v1/projects>; rel="collection"`,
	},
	"/api/v1/projects/{id}/layers": {
		`</api/v1/projects>; rel="projects"`,
	},
	"/api/v1/sessions/{sid}": {
		`</api/v1/sessions>; rel="collection"`,
	},
}
