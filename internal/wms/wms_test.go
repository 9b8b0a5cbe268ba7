package wms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/domain"
)

func TestRegistryAdd(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		layers   string
		kind     Kind
		wantURL  string
		wantKind Kind
		wantLyr  string
		wantOp   float64
	}{
		{
			name: "mapserver rewritten to wmsserver", url: "  https://sit.conaf.cl/arcgis/rest/services/Bosque/MapServer ",
			wantURL: "https://sit.conaf.cl/arcgis/rest/services/Bosque/WMSServer", wantKind: KindWMS, wantLyr: "0", wantOp: 1,
		},
		{
			name: "wmsserver kept", url: "https://x.cl/arcgis/services/A/MapServer/WMSServer", layers: "rios",
			wantURL: "https://x.cl/arcgis/services/A/MapServer/WMSServer", wantKind: KindWMS, wantLyr: "rios", wantOp: 1,
		},
		{
			name: "arcgis layer path", url: "https://x.cl/arcgis/rest/services/A/MapServer/2", layers: "0, 1,2",
			wantURL: "https://x.cl/arcgis/rest/services/A/MapServer/2", wantKind: KindArcGIS, wantLyr: "0,1,2", wantOp: 0.8,
		},
		{
			name: "explicit arcgis keeps mapserver", url: "https://x.cl/rest/services/A/MapServer", kind: KindArcGIS,
			wantURL: "https://x.cl/rest/services/A/MapServer", wantKind: KindArcGIS, wantOp: 0.8,
		},
		{
			name: "explicit wms accepts any url", url: "https://geo.example.org/geoserver/wms", kind: KindWMS, layers: "ws:roads",
			wantURL: "https://geo.example.org/geoserver/wms", wantKind: KindWMS, wantLyr: "ws:roads", wantOp: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Registry
			o, err := r.Add(tt.url, tt.layers, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, o.URL)
			assert.Equal(t, tt.wantKind, o.Kind)
			assert.Equal(t, tt.wantLyr, o.Layers)
			assert.Equal(t, tt.wantOp, o.Opacity)
			assert.True(t, o.Active)
		})
	}
}

func TestRegistryRejects(t *testing.T) {
	var r Registry
	_, err := r.Add("https://example.org/tiles", "", KindAuto)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "unrecognized url")

	_, err = r.Add("https://x.cl/rest/services/A/MapServer/1", "0,a", KindAuto)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "bad arcgis id")

	_, err = r.Add("", "", KindAuto)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = r.Add("https://x.cl/A/MapServer", "", KindAuto)
	require.NoError(t, err)
	_, err = r.Add("https://x.cl/A/MapServer", "", KindAuto)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "duplicate")
	assert.Len(t, r.List(), 1)
}

func TestRegistryToggleRemove(t *testing.T) {
	var r Registry
	a, err := r.Add("https://x.cl/A/WMSServer", "a", KindAuto)
	require.NoError(t, err)
	b, err := r.Add("https://x.cl/A/WMSServer", "b", KindAuto)
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID, "ids unique even within one millisecond")

	toggled, err := r.Toggle(a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)
	assert.Equal(t, []Overlay{b}, r.Active())

	require.NoError(t, r.Remove(a.ID))
	assert.True(t, domain.IsKind(r.Remove(a.ID), domain.KindNotFound))
	_, err = r.Toggle(12345)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestTileURL(t *testing.T) {
	wmsURL := TileURL(Overlay{URL: "https://x.cl/A/WMSServer", Layers: "0", Kind: KindWMS})
	assert.True(t, strings.HasPrefix(wmsURL, "https://x.cl/A/WMSServer?"))
	assert.Contains(t, wmsURL, "REQUEST=GetMap")
	assert.Contains(t, wmsURL, "TRANSPARENT=true")
	assert.Contains(t, wmsURL, "FORMAT=image%2Fpng")
	assert.True(t, strings.HasSuffix(wmsURL, "&BBOX="+BBoxPlaceholder))

	arc := TileURL(Overlay{URL: "https://x.cl/A/MapServer/", Layers: "1,2", Kind: KindArcGIS})
	assert.True(t, strings.HasPrefix(arc, "https://x.cl/A/MapServer/export?bbox="+BBoxPlaceholder+"&"))
	assert.Contains(t, arc, "layers=show%3A1%2C2")
}

func TestFeatureInfoFirstNonEmpty(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/hit", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "GetFeatureInfo", q.Get("REQUEST"))
		assert.Equal(t, "application/json", q.Get("INFO_FORMAT"))
		assert.Equal(t, q.Get("LAYERS"), q.Get("QUERY_LAYERS"))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"id":"r.1","properties":{"nombre":"Rio Maule"},"geometry":null}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	overlays := []Overlay{
		{ID: 1, URL: srv.URL + "/empty", Layers: "0", Kind: KindWMS, Active: true},
		{ID: 2, URL: srv.URL + "/broken", Layers: "0", Kind: KindWMS, Active: true},
		{ID: 3, URL: srv.URL + "/hit", Layers: "rios", Kind: KindWMS, Active: true},
		{ID: 4, URL: srv.URL + "/hit", Layers: "x", Kind: KindWMS, Active: false},
		{ID: 5, URL: srv.URL + "/hit", Layers: "1", Kind: KindArcGIS, Active: true},
	}

	c := NewClient(0, zerolog.Nop(), nil)
	res, notices := c.FeatureInfo(context.Background(), overlays, Click{Point: orb.Point{-71.6, -35.4}})
	require.NotNil(t, res)
	assert.Equal(t, int64(3), res.OverlayID)
	assert.Equal(t, "Rio Maule", res.Features[0].Properties["nombre"])
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeWarning, notices[0].Level)
	assert.Equal(t, int32(3), calls.Load(), "inactive and arcgis overlays are not queried")
}

func TestFeatureInfoNoResult(t *testing.T) {
	c := NewClient(5, zerolog.Nop(), nil)
	res, notices := c.FeatureInfo(context.Background(), nil, Click{})
	assert.Nil(t, res)
	assert.Empty(t, notices)
}

func TestFeatureInfoURLBBox(t *testing.T) {
	raw := FeatureInfoURL(Overlay{URL: "https://x.cl/wms?map=a", Layers: "0", Kind: KindWMS}, Click{
		Point: orb.Point{0, 0},
		View:  orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}},
		Width: 800, Height: 600, X: 400, Y: 300,
	})
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "a", q.Get("map"))
	assert.Equal(t, "800", q.Get("WIDTH"))
	assert.Equal(t, "300", q.Get("Y"))
	assert.True(t, strings.HasPrefix(q.Get("BBOX"), "-111319.49"))
}
