package export

import (
	"bytes"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview"
)

const (
	RasterWidth  = 1600
	RasterHeight = 1000
)

// minSpan keeps a single-point view from collapsing the projection.
const minSpan = 200.0 // meters

// raster projects lng/lat to pixels in Web Mercator, fitting view into a
// w x h canvas with preserved aspect.
type raster struct {
	minX, maxY float64
	scale      float64
	ox, oy     float64
}

func newRaster(view orb.Bound, w, h int) raster {
	lo := project.WGS84.ToMercator(view.Min)
	hi := project.WGS84.ToMercator(view.Max)
	dx, dy := math.Max(hi.X()-lo.X(), minSpan), math.Max(hi.Y()-lo.Y(), minSpan)
	cx, cy := (lo.X()+hi.X())/2, (lo.Y()+hi.Y())/2

	scale := math.Min(float64(w)/dx, float64(h)/dy)
	return raster{
		minX:  cx - dx/2,
		maxY:  cy + dy/2,
		scale: scale,
		ox:    (float64(w) - dx*scale) / 2,
		oy:    (float64(h) - dy*scale) / 2,
	}
}

func (r raster) pixel(p orb.Point) (float64, float64) {
	m := project.WGS84.ToMercator(p)
	return r.ox + (m.X()-r.minX)*r.scale, r.oy + (r.maxY-m.Y())*r.scale
}

// Raster draws the layers with their styles over a white background and
// returns PNG bytes. Later layers paint over earlier ones.
func Raster(layers []mapview.PlannedLayer, view orb.Bound, w, h int) ([]byte, error) {
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFillRuleEvenOdd()

	r := newRaster(view, w, h)
	for _, l := range layers {
		if l.GeoJSON == nil {
			continue
		}
		for _, f := range l.GeoJSON.Features {
			r.draw(dc, f.Geometry, l.Style)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r raster) draw(dc *gg.Context, g orb.Geometry, st domain.LayerStyle) {
	stroke := hexColor(st.Color, st.Opacity)
	fill := hexColor(st.FillColor, st.FillOpacity)

	switch g := g.(type) {
	case orb.Point:
		x, y := r.pixel(g)
		dc.DrawCircle(x, y, st.Radius)
		paint(dc, fill, stroke, st.Weight, true)
	case orb.MultiPoint:
		for _, p := range g {
			r.draw(dc, p, st)
		}
	case orb.LineString:
		r.path(dc, g, false)
		paint(dc, fill, stroke, st.Weight, false)
	case orb.MultiLineString:
		for _, ls := range g {
			r.draw(dc, ls, st)
		}
	case orb.Ring:
		r.draw(dc, orb.Polygon{g}, st)
	case orb.Polygon:
		for _, ring := range g {
			r.path(dc, ring, true)
		}
		paint(dc, fill, stroke, st.Weight, true)
	case orb.MultiPolygon:
		for _, p := range g {
			r.draw(dc, p, st)
		}
	case orb.Collection:
		for _, c := range g {
			r.draw(dc, c, st)
		}
	}
}

func (r raster) path(dc *gg.Context, pts []orb.Point, closed bool) {
	if len(pts) == 0 {
		return
	}
	dc.NewSubPath()
	for i, p := range pts {
		x, y := r.pixel(p)
		if i == 0 {
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	if closed {
		dc.ClosePath()
	}
}

func paint(dc *gg.Context, fill, stroke color.Color, weight float64, filled bool) {
	if filled {
		dc.SetColor(fill)
		dc.FillPreserve()
	}
	dc.SetColor(stroke)
	dc.SetLineWidth(weight)
	dc.Stroke()
}
