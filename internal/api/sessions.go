package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/export"
	"github.com/joeblew999/plat-maps/internal/mapview"
	"github.com/joeblew999/plat-maps/internal/mapview/draw"
	"github.com/joeblew999/plat-maps/internal/service"
	"github.com/joeblew999/plat-maps/internal/wms"
)

// Types

type SessionInput struct {
	SID string `path:"sid" doc:"Map session ID"`
}

type SessionLayerInput struct {
	SID     string `path:"sid" doc:"Map session ID"`
	LayerID string `path:"layerId" doc:"Layer ID"`
}

type SessionOutput struct {
	Body *mapview.State
}

type SessionListOutput struct {
	Body []string
}

type PlanOutput struct {
	Body *mapview.Plan
}

type VisibleInput struct {
	SID     string `path:"sid" doc:"Map session ID"`
	LayerID string `path:"layerId" doc:"Layer ID"`
	Body    struct {
		Visible bool `json:"visible" doc:"Show or hide the layer"`
	}
}

type StylePatchInput struct {
	SID     string `path:"sid" doc:"Map session ID"`
	LayerID string `path:"layerId" doc:"Layer ID"`
	Body    domain.StylePatch
}

type FitInput struct {
	SID  string `path:"sid" doc:"Map session ID"`
	Body struct {
		LayerID string          `json:"layer_id,omitempty" doc:"Fit to a project layer"`
		GeoJSON json.RawMessage `json:"geojson,omitempty" doc:"Fit to arbitrary GeoJSON"`
	}
}

type FitOutput struct {
	Body struct {
		State  *mapview.State `json:"state"`
		Fitted bool           `json:"fitted" doc:"False when the input had no coordinates"`
	}
}

type LocateInput struct {
	SID  string `path:"sid" doc:"Map session ID"`
	Body struct {
		Lat   *float64 `json:"lat,omitempty" doc:"Reported latitude"`
		Lng   *float64 `json:"lng,omitempty" doc:"Reported longitude"`
		Error string   `json:"error,omitempty" doc:"Browser geolocation error"`
	}
}

type NoticeStateOutput struct {
	Body struct {
		State  *mapview.State `json:"state"`
		Notice *domain.Notice `json:"notice,omitempty"`
	}
}

type OverlayListOutput struct {
	Body []wms.Overlay
}

type OverlayAddInput struct {
	SID  string `path:"sid" doc:"Map session ID"`
	Body struct {
		URL    string   `json:"url" minLength:"1" doc:"WMS or ArcGIS MapServer URL"`
		Layers string   `json:"layers,omitempty" doc:"Layer name or ArcGIS layer ids"`
		Kind   wms.Kind `json:"kind,omitempty" enum:"wms,arcgis" doc:"Service kind; detected from the URL when empty"`
	}
}

type OverlayInput struct {
	SID string `path:"sid" doc:"Map session ID"`
	OID int64  `path:"oid" doc:"Overlay ID"`
}

type OverlayOutput struct {
	Body wms.Overlay
}

type FeatureInfoInput struct {
	SID  string `path:"sid" doc:"Map session ID"`
	Body struct {
		Lat    float64     `json:"lat" doc:"Click latitude"`
		Lng    float64     `json:"lng" doc:"Click longitude"`
		View   *[4]float64 `json:"view,omitempty" doc:"Map extent as [west, south, east, north]"`
		Width  int         `json:"width,omitempty" doc:"Map width in pixels"`
		Height int         `json:"height,omitempty" doc:"Map height in pixels"`
		X      int         `json:"x,omitempty" doc:"Click x offset in pixels"`
		Y      int         `json:"y,omitempty" doc:"Click y offset in pixels"`
	}
}

func (in *FeatureInfoInput) click() wms.Click {
	b := in.Body
	c := wms.Click{Point: orb.Point{b.Lng, b.Lat}, Width: b.Width, Height: b.Height, X: b.X, Y: b.Y}
	if b.View != nil {
		c.View = orb.Bound{Min: orb.Point{b.View[0], b.View[1]}, Max: orb.Point{b.View[2], b.View[3]}}
	}
	return c
}

type FeatureInfoOutput struct {
	Body struct {
		Result  *wms.Result     `json:"result" doc:"First overlay with features, null when none"`
		Notices []domain.Notice `json:"notices"`
	}
}

type DrawInput struct {
	SID    string `path:"sid" doc:"Map session ID"`
	Action string `path:"action" enum:"start,measure,vertex,complete,cancel" doc:"Draw transition"`
	Body   struct {
		Shape draw.Shape `json:"shape,omitempty" enum:"line,polygon,circle" doc:"Shape for start"`
		Lat   *float64   `json:"lat,omitempty" doc:"Vertex latitude"`
		Lng   *float64   `json:"lng,omitempty" doc:"Vertex longitude"`
	} `required:"false"`
}

type DrawOutput struct {
	Body struct {
		State       *mapview.State    `json:"state"`
		Measurement *draw.Measurement `json:"measurement,omitempty"`
	}
}

type MeasurementInput struct {
	SID string `path:"sid" doc:"Map session ID"`
	MID string `path:"mid" doc:"Measurement ID"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type ExportPDFInput struct {
	SID  string `path:"sid" doc:"Map session ID"`
	Body struct {
		Snapshot   []byte `json:"snapshot,omitempty" doc:"Base64 PNG capture of the client map"`
		ListLayers bool   `json:"list_layers,omitempty" doc:"List visible layer names under the map"`
	} `required:"false"`
}

type FileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func fileOutput(f *export.File) *FileOutput {
	return &FileOutput{
		ContentType:        f.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", f.Name),
		Body:               f.Data,
	}
}

// Routes

// RegisterSessions registers the map session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	tags := huma.OperationTags("sessions")
	const s = "/api/v1/sessions/{sid}"

	huma.Get(api, "/api/v1/sessions", h.ListSessions, tags, secured)
	huma.Post(api, "/api/v1/projects/{id}/sessions", h.OpenSession, tags, secured, status(http.StatusCreated))
	huma.Get(api, s, h.GetSession, tags, secured)
	huma.Delete(api, s, h.CloseSession, tags, secured)
	huma.Get(api, s+"/render", h.RenderSession, tags, secured)

	huma.Put(api, s+"/layers/{layerId}/visible", h.SetLayerVisible, tags, secured)
	huma.Patch(api, s+"/layers/{layerId}/style", h.PatchLayerStyle, tags, secured)
	huma.Post(api, s+"/layers/{layerId}/style/save", h.SaveSessionStyle, tags, secured)

	huma.Post(api, s+"/viewport/home", h.ViewportHome, tags, secured)
	huma.Post(api, s+"/viewport/fit", h.ViewportFit, tags, secured)
	huma.Post(api, s+"/viewport/locate", h.ViewportLocate, tags, secured)

	huma.Get(api, s+"/overlays", h.ListOverlays, tags, secured)
	huma.Post(api, s+"/overlays", h.AddOverlay, tags, secured, status(http.StatusCreated))
	huma.Post(api, s+"/overlays/{oid}/toggle", h.ToggleOverlay, tags, secured)
	huma.Delete(api, s+"/overlays/{oid}", h.RemoveOverlay, tags, secured)
	huma.Post(api, s+"/feature-info", h.FeatureInfo, tags, secured)

	huma.Post(api, s+"/draw/{action}", h.Draw, tags, secured)
	huma.Delete(api, s+"/measurements/{mid}", h.DeleteMeasurement, tags, secured)
	huma.Get(api, s+"/measurements.geojson", h.MeasurementsGeoJSON, tags, secured)

	huma.Post(api, s+"/export/kmz", h.ExportKMZ, tags, secured)
	huma.Post(api, s+"/export/pdf", h.ExportPDF, tags, secured)
}

func (h *APIHandler) ListSessions(ctx context.Context, input *struct{}) (*SessionListOutput, error) {
	ids, err := h.svc.Sessions.List(ctx, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return &SessionListOutput{Body: ids}, nil
}

func (h *APIHandler) OpenSession(ctx context.Context, input *ProjectIDInput) (*SessionOutput, error) {
	return sessionResult(h.svc.Sessions.Open(ctx, input.ID, userID(ctx)))
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	return sessionResult(h.svc.Sessions.Get(ctx, input.SID, userID(ctx)))
}

func sessionResult(st *mapview.State, err error) (*SessionOutput, error) {
	if err != nil {
		return nil, apiError(err)
	}
	return &SessionOutput{Body: st}, nil
}

func (h *APIHandler) CloseSession(ctx context.Context, input *SessionInput) (*struct{}, error) {
	if err := h.svc.Sessions.Close(ctx, input.SID, userID(ctx)); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *APIHandler) RenderSession(ctx context.Context, input *SessionInput) (*PlanOutput, error) {
	plan, err := h.svc.Sessions.Render(ctx, input.SID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &PlanOutput{Body: plan}, nil
}

// Style

func (h *APIHandler) SetLayerVisible(ctx context.Context, input *VisibleInput) (*SessionOutput, error) {
	return sessionResult(h.svc.Sessions.SetVisible(ctx, input.SID, userID(ctx), input.LayerID, input.Body.Visible))
}

func (h *APIHandler) PatchLayerStyle(ctx context.Context, input *StylePatchInput) (*StyleOutput, error) {
	st, err := h.svc.Sessions.PatchStyle(ctx, input.SID, userID(ctx), input.LayerID, input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &StyleOutput{Body: st}, nil
}

func (h *APIHandler) SaveSessionStyle(ctx context.Context, input *SessionLayerInput) (*StyleOutput, error) {
	st, err := h.svc.Sessions.SaveStyle(ctx, input.SID, userID(ctx), input.LayerID)
	if err != nil {
		return nil, apiError(err)
	}
	return &StyleOutput{Body: st}, nil
}

// Viewport

func (h *APIHandler) ViewportHome(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	return sessionResult(h.svc.Sessions.Home(ctx, input.SID, userID(ctx)))
}

func (h *APIHandler) ViewportFit(ctx context.Context, input *FitInput) (*FitOutput, error) {
	var (
		st  *mapview.State
		ok  bool
		err error
	)
	switch {
	case input.Body.LayerID != "":
		st, ok, err = h.svc.Sessions.FitLayer(ctx, input.SID, userID(ctx), input.Body.LayerID)
	case len(input.Body.GeoJSON) > 0:
		st, ok, err = h.svc.Sessions.Fit(ctx, input.SID, userID(ctx), input.Body.GeoJSON)
	default:
		return nil, huma.Error422UnprocessableEntity("layer_id or geojson is required")
	}
	if err != nil {
		return nil, apiError(err)
	}
	out := &FitOutput{}
	out.Body.State, out.Body.Fitted = st, ok
	return out, nil
}

func (h *APIHandler) ViewportLocate(ctx context.Context, input *LocateInput) (*NoticeStateOutput, error) {
	g := mapview.Reported{Lat: input.Body.Lat, Lng: input.Body.Lng, Err: input.Body.Error}
	st, notice, err := h.svc.Sessions.Locate(ctx, input.SID, userID(ctx), g)
	if err != nil {
		return nil, apiError(err)
	}
	out := &NoticeStateOutput{}
	out.Body.State, out.Body.Notice = st, notice
	return out, nil
}

// Overlays

func (h *APIHandler) ListOverlays(ctx context.Context, input *SessionInput) (*OverlayListOutput, error) {
	overlays, err := h.svc.Sessions.Overlays(ctx, input.SID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	if overlays == nil {
		overlays = []wms.Overlay{}
	}
	return &OverlayListOutput{Body: overlays}, nil
}

func (h *APIHandler) AddOverlay(ctx context.Context, input *OverlayAddInput) (*OverlayOutput, error) {
	o, err := h.svc.Sessions.AddOverlay(ctx, input.SID, userID(ctx), input.Body.URL, input.Body.Layers, input.Body.Kind)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayOutput{Body: o}, nil
}

func (h *APIHandler) ToggleOverlay(ctx context.Context, input *OverlayInput) (*OverlayOutput, error) {
	o, err := h.svc.Sessions.ToggleOverlay(ctx, input.SID, userID(ctx), input.OID)
	if err != nil {
		return nil, apiError(err)
	}
	return &OverlayOutput{Body: o}, nil
}

func (h *APIHandler) RemoveOverlay(ctx context.Context, input *OverlayInput) (*struct{}, error) {
	if err := h.svc.Sessions.RemoveOverlay(ctx, input.SID, userID(ctx), input.OID); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *APIHandler) FeatureInfo(ctx context.Context, input *FeatureInfoInput) (*FeatureInfoOutput, error) {
	res, notices, err := h.svc.Sessions.FeatureInfo(ctx, input.SID, userID(ctx), input.click())
	if err != nil {
		return nil, apiError(err)
	}
	out := &FeatureInfoOutput{}
	out.Body.Result, out.Body.Notices = res, notices
	if out.Body.Notices == nil {
		out.Body.Notices = []domain.Notice{}
	}
	return out, nil
}

// Draw

func (h *APIHandler) Draw(ctx context.Context, input *DrawInput) (*DrawOutput, error) {
	in := service.DrawInput{Shape: input.Body.Shape}
	if input.Body.Lat != nil && input.Body.Lng != nil {
		in.Point = orb.Point{*input.Body.Lng, *input.Body.Lat}
	} else if service.DrawAction(input.Action) == service.DrawVertex {
		return nil, huma.Error422UnprocessableEntity("lat and lng are required for a vertex")
	}
	st, m, err := h.svc.Sessions.Draw(ctx, input.SID, userID(ctx), service.DrawAction(input.Action), in)
	if err != nil {
		return nil, apiError(err)
	}
	out := &DrawOutput{}
	out.Body.State, out.Body.Measurement = st, m
	return out, nil
}

func (h *APIHandler) DeleteMeasurement(ctx context.Context, input *MeasurementInput) (*struct{}, error) {
	if err := h.svc.Sessions.DeleteMeasurement(ctx, input.SID, userID(ctx), input.MID); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *APIHandler) MeasurementsGeoJSON(ctx context.Context, input *SessionInput) (*GeoJSONOutput, error) {
	fc, err := h.svc.Sessions.MeasurementsGeoJSON(ctx, input.SID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, apiError(err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

// Export

func (h *APIHandler) ExportKMZ(ctx context.Context, input *SessionInput) (*FileOutput, error) {
	f, err := h.svc.Sessions.ExportKMZ(ctx, input.SID, userID(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return fileOutput(f), nil
}

func (h *APIHandler) ExportPDF(ctx context.Context, input *ExportPDFInput) (*FileOutput, error) {
	f, err := h.svc.Sessions.ExportPDF(ctx, input.SID, userID(ctx), input.Body.Snapshot, input.Body.ListLayers)
	if err != nil {
		return nil, apiError(err)
	}
	return fileOutput(f), nil
}
