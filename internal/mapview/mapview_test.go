package mapview

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/templates"
	"github.com/joeblew999/plat-maps/internal/wms"
)

const parcela = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Pozo","depth":12},"geometry":{"type":"Point","coordinates":[-71.60,-35.40]}},
 {"type":"Feature","properties":{"name":"Camino <norte>"},"geometry":{"type":"LineString","coordinates":[[-71.61,-35.41],[-71.59,-35.39]]}},
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-71.62,-35.42],[-71.58,-35.42],[-71.58,-35.38],[-71.62,-35.42]]]}}
]}`

func testLayers() []domain.ProjectLayer {
	return []domain.ProjectLayer{
		{ID: "l1", Name: "parcela", GeoJSON: json.RawMessage(parcela)},
		{ID: "l2", Name: "punto", GeoJSON: json.RawMessage(`{"type":"Feature","properties":{"a":1},"geometry":{"type":"Point","coordinates":[1,2]}}`)},
	}
}

func TestNewStartsVisibleAtHome(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{Role: domain.RoleViewer}, testLayers(), nil)
	assert.True(t, s.IsVisible("l1"))
	assert.True(t, s.IsVisible("l2"))
	assert.Equal(t, []string{"l1", "l2"}, s.LayerIDs)
	assert.Equal(t, Home(), s.Viewport)
	assert.Equal(t, LatLng{-56, -76}, s.Viewport.Bounds[0])
	assert.Equal(t, LatLng{-17.5, -66}, s.Viewport.Bounds[1])
	assert.Equal(t, 20, s.Viewport.Padding)
}

func TestVisibilityToggleKeepsStyle(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{Role: domain.RoleEditor}, testLayers(), nil)
	color := "#ff0000"
	_, err := s.PatchStyle("l1", domain.StylePatch{Color: &color})
	require.NoError(t, err)

	require.NoError(t, s.SetVisible("l1", false))
	plan, err := BuildPlan(s, testLayers(), templates.MustDefault())
	require.NoError(t, err)
	require.Len(t, plan.Layers, 1)
	assert.Equal(t, "l2", plan.Layers[0].ID)

	require.NoError(t, s.SetVisible("l1", true))
	plan, err = BuildPlan(s, testLayers(), templates.MustDefault())
	require.NoError(t, err)
	require.Len(t, plan.Layers, 2)
	assert.Equal(t, "#ff0000", plan.Layers[0].Style.Color)

	assert.True(t, domain.IsKind(s.SetVisible("ghost", true), domain.KindNotFound))
}

func TestPlanParcelaDefaults(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{Role: domain.RoleViewer}, testLayers(), nil)
	plan, err := BuildPlan(s, testLayers(), templates.MustDefault())
	require.NoError(t, err)

	pl := plan.Layers[0]
	assert.Len(t, pl.GeoJSON.Features, 3)
	assert.Equal(t, "#1f2937", pl.Style.Color)
	assert.Equal(t, 5.0, pl.PointRadius)
	require.Len(t, pl.Popups, 3)
	assert.Contains(t, pl.Popups[0], "<strong>parcela</strong>")
	assert.Less(t, strings.Index(pl.Popups[0], "depth"), strings.Index(pl.Popups[0], "name"), "rows sorted by key")
	assert.Contains(t, pl.Popups[1], "Camino &lt;norte&gt;")

	assert.Len(t, plan.Layers[1].GeoJSON.Features, 1, "a bare Feature is wrapped")
}

func TestPlanOverlaysCarryTileURL(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{}, nil, nil)
	_, err := s.Overlays.Add("https://x.cl/A/MapServer", "", wms.KindAuto)
	require.NoError(t, err)
	plan, err := BuildPlan(s, nil, templates.MustDefault())
	require.NoError(t, err)
	require.Len(t, plan.Overlays, 1)
	assert.Contains(t, plan.Overlays[0].TileURL, "REQUEST=GetMap")
}

func TestSyncLayers(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{}, testLayers(), nil)
	require.NoError(t, s.SetVisible("l2", false))

	s.SyncLayers([]domain.ProjectLayer{{ID: "l3"}, {ID: "l2"}})
	assert.Equal(t, []string{"l3", "l2"}, s.LayerIDs)
	assert.True(t, s.IsVisible("l3"))
	assert.False(t, s.IsVisible("l2"))
	_, tracked := s.Visible["l1"]
	assert.False(t, tracked)
}

func TestFitGeoJSON(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{}, nil, nil)

	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"feature collection", parcela, true},
		{"bare geometry", `{"type":"Point","coordinates":[1,2]}`, true},
		{"invalid json", `{nope`, false},
		{"empty collection", `{"type":"FeatureCollection","features":[]}`, false},
		{"null geometry", `{"type":"Feature","properties":{},"geometry":null}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.GoHome()
			assert.Equal(t, tt.ok, s.FitGeoJSON([]byte(tt.raw)))
			if !tt.ok {
				assert.Equal(t, Home(), s.Viewport)
			}
		})
	}

	require.True(t, s.FitGeoJSON([]byte(parcela)))
	assert.Equal(t, LatLng{-35.42, -71.62}, s.Viewport.Bounds[0])
	assert.Equal(t, LatLng{-35.38, -71.58}, s.Viewport.Bounds[1])
}

type slowLocator struct{}

func (slowLocator) Locate(ctx context.Context) (orb.Point, error) {
	<-ctx.Done()
	return orb.Point{}, ctx.Err()
}

func TestLocate(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{}, nil, nil)
	lat, lng := -33.45, -70.66

	require.Nil(t, s.Locate(context.Background(), Reported{Lat: &lat, Lng: &lng}))
	assert.Equal(t, &LatLng{lat, lng}, s.Viewport.Center)
	assert.Equal(t, 13, s.Viewport.Zoom)

	s.GoHome()
	n := s.Locate(context.Background(), Reported{Err: "User denied Geolocation"})
	require.NotNil(t, n)
	assert.Equal(t, domain.NoticeWarning, n.Level)
	assert.Contains(t, n.Message, "User denied Geolocation")
	assert.Equal(t, Home(), s.Viewport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n = s.Locate(ctx, slowLocator{})
	require.NotNil(t, n)
	assert.Contains(t, n.Message, "context canceled")

	assert.NotNil(t, s.Locate(context.Background(), nil))
}

func TestStateRoundTrip(t *testing.T) {
	s := New("s1", "p1", "u1", domain.Access{Role: domain.RoleEditor, Owner: true}, testLayers(), nil)
	fill := 0.5
	_, err := s.PatchStyle("l2", domain.StylePatch{FillOpacity: &fill})
	require.NoError(t, err)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var back State
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, s.Styles, back.Styles)
	assert.Equal(t, s.Visible, back.Visible)
	assert.Equal(t, s.Viewport, back.Viewport)
	assert.True(t, back.Access.CanAdmin())
}
