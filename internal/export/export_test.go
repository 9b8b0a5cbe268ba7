package export

import (
	"archive/zip"
	"bytes"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview"
)

func plannedLayer(id, name string, geoms ...orb.Geometry) mapview.PlannedLayer {
	fc := geojson.NewFeatureCollection()
	popups := make([]string, 0, len(geoms))
	for i, g := range geoms {
		f := geojson.NewFeature(g)
		f.Properties["name"] = name + "-" + string(rune('a'+i))
		fc.Append(f)
		popups = append(popups, "<table><tr><td>name</td></tr></table>")
	}
	st := domain.DefaultStyle(id)
	return mapview.PlannedLayer{ID: id, Name: name, Style: st, PointRadius: st.Radius, GeoJSON: fc, Popups: popups}
}

func unzipKML(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "doc.kml", zr.File[0].Name)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(body)
}

func TestKMZRejectsNoLayers(t *testing.T) {
	_, err := KMZ(nil, time.Now())
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestKMZOneFolderPerLayer(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	layers := []mapview.PlannedLayer{
		plannedLayer("l1", "parcela",
			orb.Point{-71.6, -35.4},
			orb.LineString{{-71.61, -35.41}, {-71.59, -35.39}},
			orb.Polygon{
				{{-71.62, -35.42}, {-71.58, -35.42}, {-71.58, -35.38}, {-71.62, -35.42}},
				{{-71.61, -35.41}, {-71.60, -35.41}, {-71.60, -35.40}, {-71.61, -35.41}},
			},
		),
		plannedLayer("l2", "rios", orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}),
		plannedLayer("l3", "", orb.MultiPoint{{0, 0}}),
	}

	f, err := KMZ(layers, now)
	require.NoError(t, err)
	assert.Equal(t, "pudumaps_1700000000123.kmz", f.Name)
	assert.Equal(t, KMZContentType, f.ContentType)

	doc := unzipKML(t, f.Data)
	assert.Equal(t, 3, strings.Count(doc, "<Folder>"))
	assert.Equal(t, 1, strings.Count(doc, "<Document>"))
	assert.Contains(t, doc, "<name>Pudumaps export</name>")
	assert.Contains(t, doc, "<name>parcela</name>")
	assert.Contains(t, doc, "<name>rios</name>")
	assert.Contains(t, doc, "<name>Capa</name>", "unnamed layer gets a placeholder")
	assert.Contains(t, doc, "<name>parcela-a</name>")
	assert.Contains(t, doc, "<innerBoundaryIs>")
	assert.Contains(t, doc, "<MultiGeometry>")
	// default stroke #1f2937 at full opacity, aabbggrr
	assert.Contains(t, doc, "<color>ff37291f</color>")
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}, hexColor("#f00", 1))
	assert.Equal(t, color.NRGBA{R: 0x1f, G: 0x29, B: 0x37, A: 51}, hexColor("#1f2937", 0.2))
	assert.Equal(t, uint8(0), hexColor("bogus", 0).R)
}

func TestRasterPaintsLayers(t *testing.T) {
	layers := []mapview.PlannedLayer{
		plannedLayer("l1", "parcela", orb.Polygon{{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}}}),
	}
	data, err := Raster(layers, orb.Bound{Min: orb.Point{-2, -2}, Max: orb.Point{2, 2}}, 200, 100)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	r, g, b, _ := img.At(2, 2).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b}, "outside stays white")
	r, _, _, _ = img.At(100, 50).RGBA()
	assert.Less(t, r, uint32(0xffff), "inside is tinted by the fill")
}

func TestPDF(t *testing.T) {
	layers := []mapview.PlannedLayer{plannedLayer("l1", "parcela", orb.Point{-71.6, -35.4})}
	now := time.UnixMilli(42)

	t.Run("server raster", func(t *testing.T) {
		f, err := PDF(layers, PDFOptions{View: orb.Bound{Min: orb.Point{-72, -36}, Max: orb.Point{-71, -35}}, ListLayers: true}, now)
		require.NoError(t, err)
		assert.Equal(t, "pudumaps_42.pdf", f.Name)
		assert.Equal(t, PDFContentType, f.ContentType)
		assert.True(t, bytes.HasPrefix(f.Data, []byte("%PDF-")))
	})

	t.Run("client snapshot", func(t *testing.T) {
		snap, err := Raster(nil, orb.Bound{}, 40, 20)
		require.NoError(t, err)
		f, err := PDF(nil, PDFOptions{Snapshot: snap}, now)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(f.Data, []byte("%PDF-")))
	})

	t.Run("snapshot must be png", func(t *testing.T) {
		_, err := PDF(nil, PDFOptions{Snapshot: []byte("GIF89a")}, now)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})
}

func TestLayerList(t *testing.T) {
	assert.Equal(t, "— (sin capas visibles)", layerList(nil))
	assert.Equal(t, "• a\n• b", layerList([]mapview.PlannedLayer{{Name: "a"}, {Name: "b"}}))
}
