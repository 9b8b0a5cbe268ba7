package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/importer"
)

// InfoConfig describes the running deployment.
type InfoConfig struct {
	Version        string
	DataDir        string
	Store          string
	SessionBackend string
	Storage        string
}

type InfoHandler struct {
	cfg InfoConfig
}

func NewInfoHandler(cfg InfoConfig) *InfoHandler {
	return &InfoHandler{cfg: cfg}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Store    string   `json:"store" doc:"Store backend" enum:"duckdb,postgres"`
	Sessions string   `json:"sessions" doc:"Session backend" enum:"memory,redis"`
	Storage  string   `json:"storage" doc:"Object storage for uploads" enum:"local,s3"`
	Formats  []string `json:"formats" doc:"Accepted upload extensions"`
	Exports  []string `json:"exports" doc:"Export formats"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-maps",
		Version:  h.cfg.Version,
		DataDir:  h.cfg.DataDir,
		Store:    h.cfg.Store,
		Sessions: h.cfg.SessionBackend,
		Storage:  h.cfg.Storage,
		Formats:  importer.Extensions,
		Exports:  []string{"kmz", "pdf", "geojson"},
	}}, nil
}
