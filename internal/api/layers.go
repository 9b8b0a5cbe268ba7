package api

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-maps/internal/domain"
)

// MaxUploadBytes bounds a single geodata upload.
const MaxUploadBytes = 50 << 20

type LayerListOutput struct {
	Body []domain.ProjectLayer
}

type LayerUploadInput struct {
	ID      string `path:"id" doc:"Project ID"`
	RawBody multipart.Form
}

type LayerOutput struct {
	Body domain.ProjectLayer
}

type LayerIDInput struct {
	ID string `path:"id" doc:"Layer ID"`
}

type StylesOutput struct {
	Body map[string]domain.LayerStyle
}

// StyleBody is a complete layer style without its key.
type StyleBody struct {
	Color       string  `json:"color" doc:"Stroke color (hex)" example:"#1f2937"`
	Weight      float64 `json:"weight" doc:"Stroke weight" example:"2"`
	Opacity     float64 `json:"opacity" doc:"Stroke opacity" example:"1"`
	FillColor   string  `json:"fill_color" doc:"Fill color (hex)" example:"#1f2937"`
	FillOpacity float64 `json:"fill_opacity" doc:"Fill opacity" example:"0.2"`
	Radius      float64 `json:"radius" doc:"Point marker radius" example:"5"`
}

func (b StyleBody) style(layerID string) domain.LayerStyle {
	return domain.LayerStyle{
		LayerID:     layerID,
		Color:       b.Color,
		Weight:      b.Weight,
		Opacity:     b.Opacity,
		FillColor:   b.FillColor,
		FillOpacity: b.FillOpacity,
		Radius:      b.Radius,
	}
}

type StyleSaveInput struct {
	ID   string `path:"id" doc:"Layer ID"`
	Body StyleBody
}

type StyleOutput struct {
	Body domain.LayerStyle
}

// RegisterLayers registers layer listing, upload and style routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	tags := huma.OperationTags("layers")

	huma.Get(api, "/api/v1/projects/{id}/layers", h.ListLayers, tags, secured)
	huma.Post(api, "/api/v1/projects/{id}/layers", h.UploadLayer, tags, secured, status(http.StatusCreated),
		func(o *huma.Operation) {
			o.Summary = "Upload a GeoJSON, zipped Shapefile, KML or KMZ file"
			o.MaxBodyBytes = MaxUploadBytes
		})
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, tags, secured)
	huma.Get(api, "/api/v1/projects/{id}/styles", h.ListStyles, tags, secured)
	huma.Put(api, "/api/v1/layers/{id}/style", h.SaveLayerStyle, tags, secured)
}

func (h *APIHandler) ListLayers(ctx context.Context, input *ProjectIDInput) (*LayerListOutput, error) {
	layers, err := h.svc.Layers.List(ctx, input.ID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &LayerListOutput{Body: layers}, nil
}

func (h *APIHandler) UploadLayer(ctx context.Context, input *LayerUploadInput) (*LayerOutput, error) {
	files := input.RawBody.File["file"]
	if len(files) == 0 {
		return nil, huma.Error422UnprocessableEntity("missing form field \"file\"")
	}
	name, data, err := readPart(files[0])
	if err != nil {
		return nil, huma.Error400BadRequest("cannot read upload", err)
	}
	l, err := h.svc.Layers.Upload(ctx, userID(ctx), input.ID, name, data)
	if err != nil {
		return nil, apiError(err)
	}
	return &LayerOutput{Body: l}, nil
}

func readPart(fh *multipart.FileHeader) (string, []byte, error) {
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	return fh.Filename, data, err
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *LayerIDInput) (*struct{}, error) {
	if err := h.svc.Layers.Delete(ctx, input.ID, userID(ctx)); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *APIHandler) ListStyles(ctx context.Context, input *ProjectIDInput) (*StylesOutput, error) {
	styles, err := h.svc.Layers.Styles(ctx, input.ID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &StylesOutput{Body: styles}, nil
}

func (h *APIHandler) SaveLayerStyle(ctx context.Context, input *StyleSaveInput) (*StyleOutput, error) {
	st, err := h.svc.Layers.SaveStyle(ctx, input.ID, userID(ctx), input.Body.style(input.ID))
	if err != nil {
		return nil, apiError(err)
	}
	return &StyleOutput{Body: st}, nil
}
