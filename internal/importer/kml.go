package importer

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-maps/internal/domain"
)

type kmlPlacemark struct {
	Name         string `xml:"name"`
	Description  string `xml:"description"`
	ExtendedData struct {
		Data []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value"`
		} `xml:"Data"`
		SimpleData []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"SchemaData>SimpleData"`
	} `xml:"ExtendedData"`
	Point         *kmlCoords   `xml:"Point"`
	LineString    *kmlCoords   `xml:"LineString"`
	Polygon       *kmlPolygon  `xml:"Polygon"`
	MultiGeometry *kmlMultiGeo `xml:"MultiGeometry"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

// kmlMultiGeo keeps the children of a MultiGeometry in document order.
type kmlMultiGeo struct {
	Children []kmlGeometry
}

// kmlGeometry is one MultiGeometry child; exactly one field is set.
type kmlGeometry struct {
	Point   *kmlCoords
	Line    *kmlCoords
	Polygon *kmlPolygon
	Multi   *kmlMultiGeo
}

func (m *kmlMultiGeo) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			var child kmlGeometry
			var target any
			switch t.Name.Local {
			case "Point":
				child.Point = &kmlCoords{}
				target = child.Point
			case "LineString":
				child.Line = &kmlCoords{}
				target = child.Line
			case "Polygon":
				child.Polygon = &kmlPolygon{}
				target = child.Polygon
			case "MultiGeometry":
				child.Multi = &kmlMultiGeo{}
				target = child.Multi
			default:
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			if err := d.DecodeElement(target, &t); err != nil {
				return err
			}
			m.Children = append(m.Children, child)
		}
	}
}

// decodeKML streams the document and converts every Placemark, at any
// Document/Folder depth, into a feature. Placemarks without a supported
// geometry are skipped.
func decodeKML(r io.Reader) (*geojson.FeatureCollection, error) {
	const op = "import.kml"
	fc := geojson.NewFeatureCollection()
	dec := xml.NewDecoder(r)
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.Validation(op, "invalid KML: %v", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "kml" {
			sawRoot = true
		}
		if se.Name.Local != "Placemark" {
			continue
		}

		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return nil, domain.Validation(op, "invalid Placemark: %v", err)
		}
		geom, err := pm.geometry()
		if err != nil {
			return nil, domain.Validation(op, "placemark %q: %v", pm.Name, err)
		}
		if geom == nil {
			continue
		}
		f := geojson.NewFeature(geom)
		f.Properties = pm.properties()
		fc.Append(f)
	}

	if !sawRoot {
		return nil, domain.Unsupported(op, "document has no <kml> root element")
	}
	return fc, nil
}

func (pm kmlPlacemark) properties() geojson.Properties {
	props := geojson.Properties{}
	if name := strings.TrimSpace(pm.Name); name != "" {
		props["name"] = name
	}
	if desc := strings.TrimSpace(pm.Description); desc != "" {
		props["description"] = desc
	}
	for _, d := range pm.ExtendedData.Data {
		props[d.Name] = strings.TrimSpace(d.Value)
	}
	for _, d := range pm.ExtendedData.SimpleData {
		props[d.Name] = strings.TrimSpace(d.Value)
	}
	return props
}

func (pm kmlPlacemark) geometry() (orb.Geometry, error) {
	switch {
	case pm.Point != nil:
		return parsePoint(pm.Point.Coordinates)
	case pm.LineString != nil:
		return parseLine(pm.LineString.Coordinates)
	case pm.Polygon != nil:
		return parsePolygon(*pm.Polygon)
	case pm.MultiGeometry != nil:
		return pm.MultiGeometry.geometry()
	}
	return nil, nil
}

func (m kmlMultiGeo) flatten() ([]orb.Geometry, error) {
	var out []orb.Geometry
	for _, c := range m.Children {
		var (
			g   orb.Geometry
			err error
		)
		switch {
		case c.Point != nil:
			g, err = parsePoint(c.Point.Coordinates)
		case c.Line != nil:
			g, err = parseLine(c.Line.Coordinates)
		case c.Polygon != nil:
			g, err = parsePolygon(*c.Polygon)
		case c.Multi != nil:
			gs, err := c.Multi.flatten()
			if err != nil {
				return nil, err
			}
			out = append(out, gs...)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// geometry collapses a homogeneous MultiGeometry into the matching Multi*
// type and falls back to a GeometryCollection otherwise.
func (m kmlMultiGeo) geometry() (orb.Geometry, error) {
	geoms, err := m.flatten()
	if err != nil || len(geoms) == 0 {
		return nil, err
	}
	if len(geoms) == 1 {
		return geoms[0], nil
	}

	var (
		points   orb.MultiPoint
		lines    orb.MultiLineString
		polygons orb.MultiPolygon
	)
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Point:
			points = append(points, v)
		case orb.LineString:
			lines = append(lines, v)
		case orb.Polygon:
			polygons = append(polygons, v)
		}
	}
	switch len(geoms) {
	case len(points):
		return points, nil
	case len(lines):
		return lines, nil
	case len(polygons):
		return polygons, nil
	}
	return orb.Collection(geoms), nil
}

var commaSpace = regexp.MustCompile(`\s*,\s*`)

func parseCoords(text string) ([]orb.Point, error) {
	text = commaSpace.ReplaceAllString(strings.TrimSpace(text), ",")
	var pts []orb.Point
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, errors.New("coordinate tuple " + strconv.Quote(tuple) + " needs lon,lat")
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, err
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}

func parsePoint(text string) (orb.Geometry, error) {
	pts, err := parseCoords(text)
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, errors.New("point has no coordinates")
	}
	return pts[0], nil
}

func parseLine(text string) (orb.Geometry, error) {
	pts, err := parseCoords(text)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, errors.New("line string needs at least two coordinates")
	}
	return orb.LineString(pts), nil
}

func parseRing(text string) (orb.Ring, error) {
	pts, err := parseCoords(text)
	if err != nil {
		return nil, err
	}
	if len(pts) < 3 {
		return nil, errors.New("linear ring needs at least three coordinates")
	}
	ring := orb.Ring(pts)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

func parsePolygon(p kmlPolygon) (orb.Geometry, error) {
	outer, err := parseRing(p.Outer)
	if err != nil {
		return nil, err
	}
	poly := orb.Polygon{outer}
	for _, inner := range p.Inner {
		ring, err := parseRing(inner)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	return poly, nil
}
