// Package export writes the visible layers of a map session to KMZ and PDF.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	kml "github.com/twpayne/go-kml"

	"github.com/joeblew999/plat-maps/internal/domain"
	"github.com/joeblew999/plat-maps/internal/mapview"
)

const (
	DocumentName   = "Pudumaps export"
	KMZContentType = "application/vnd.google-earth.kmz"
	PDFContentType = "application/pdf"
)

// File is a finished export ready to download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func fileName(ext string, now time.Time) string {
	return fmt.Sprintf("pudumaps_%d.%s", now.UnixMilli(), ext)
}

// KMZ builds one Folder per layer inside a single Document and zips it as
// doc.kml. Zero layers is a validation error.
func KMZ(layers []mapview.PlannedLayer, now time.Time) (*File, error) {
	if len(layers) == 0 {
		return nil, domain.Validation("export.kmz", "No hay capas visibles para exportar.")
	}

	doc := kml.Document(kml.Name(DocumentName))
	for _, l := range layers {
		doc.Add(folder(l))
	}

	var body bytes.Buffer
	if err := kml.KML(doc).WriteIndent(&body, "", "  "); err != nil {
		return nil, fmt.Errorf("write kml: %w", err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	w, err := zw.Create("doc.kml")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return &File{Name: fileName("kmz", now), ContentType: KMZContentType, Data: out.Bytes()}, nil
}

func folder(l mapview.PlannedLayer) *kml.CompoundElement {
	name := l.Name
	if name == "" {
		name = "Capa"
	}
	styleID := "style-" + l.ID
	f := kml.Folder(kml.Name(name), layerStyle(styleID, l.Style))
	if l.GeoJSON == nil {
		return f
	}
	for i, feat := range l.GeoJSON.Features {
		g := geometry(feat.Geometry)
		if g == nil {
			continue
		}
		pm := kml.Placemark(
			kml.Name(placemarkName(feat.Properties, name, i)),
			kml.StyleURL("#"+styleID),
			g,
		)
		if i < len(l.Popups) && len(feat.Properties) > 0 {
			pm.Add(kml.Description(l.Popups[i]))
		}
		f.Add(pm)
	}
	return f
}

func placemarkName(props map[string]any, layer string, i int) string {
	for _, key := range []string{"name", "Name", "NAME", "nombre"} {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}
	return layer + " " + strconv.Itoa(i+1)
}

func layerStyle(id string, st domain.LayerStyle) *kml.SharedElement {
	stroke := kmlColor(hexColor(st.Color, st.Opacity))
	fill := kmlColor(hexColor(st.FillColor, st.FillOpacity))
	return kml.SharedStyle(id,
		kml.LineStyle(kml.Color(stroke), kml.Width(st.Weight)),
		kml.PolyStyle(kml.Color(fill)),
		kml.IconStyle(kml.Color(fill), kml.Scale(st.Radius/5)),
	)
}

func geometry(g orb.Geometry) kml.Element {
	switch g := g.(type) {
	case orb.Point:
		return kml.Point(kml.Coordinates(coord(g)))
	case orb.MultiPoint:
		mg := kml.MultiGeometry()
		for _, p := range g {
			mg.Add(kml.Point(kml.Coordinates(coord(p))))
		}
		return mg
	case orb.LineString:
		return kml.LineString(kml.Coordinates(coords(g)...))
	case orb.MultiLineString:
		mg := kml.MultiGeometry()
		for _, ls := range g {
			mg.Add(kml.LineString(kml.Coordinates(coords(ls)...)))
		}
		return mg
	case orb.Ring:
		return polygon(orb.Polygon{g})
	case orb.Polygon:
		return polygon(g)
	case orb.MultiPolygon:
		mg := kml.MultiGeometry()
		for _, p := range g {
			if e := polygon(p); e != nil {
				mg.Add(e)
			}
		}
		return mg
	case orb.Collection:
		mg := kml.MultiGeometry()
		for _, c := range g {
			if e := geometry(c); e != nil {
				mg.Add(e)
			}
		}
		return mg
	}
	return nil
}

func polygon(p orb.Polygon) kml.Element {
	if len(p) == 0 {
		return nil
	}
	el := kml.Polygon(kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(coords(p[0])...))))
	for _, hole := range p[1:] {
		el.Add(kml.InnerBoundaryIs(kml.LinearRing(kml.Coordinates(coords(hole)...))))
	}
	return el
}

func coord(p orb.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
}

func coords[T ~[]orb.Point](pts T) []kml.Coordinate {
	out := make([]kml.Coordinate, len(pts))
	for i, p := range pts {
		out[i] = coord(p)
	}
	return out
}

// hexColor parses #rgb or #rrggbb with an opacity in [0,1].
func hexColor(hex string, opacity float64) color.NRGBA {
	c := color.NRGBA{A: uint8(clamp01(opacity)*255 + 0.5)}
	h := hex
	if len(h) > 0 && h[0] == '#' {
		h = h[1:]
	}
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return c
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return c
	}
	c.R, c.G, c.B = uint8(v>>16), uint8(v>>8), uint8(v)
	return c
}

// kmlColor carries straight alpha through unchanged; kml.Color formats the
// RGBA() components directly as aabbggrr.
func kmlColor(c color.NRGBA) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
