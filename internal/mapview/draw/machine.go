// Package draw is the sketch and measurement state machine of a map session.
//
// The machine is idle, drawing one shape, or measuring. Vertices are WGS84
// orb.Points (lng, lat); results are geodesic.
package draw

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-maps/internal/domain"
)

type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeDrawing   Mode = "drawing"
	ModeMeasuring Mode = "measuring"
)

type Shape string

const (
	ShapeLine    Shape = "line"
	ShapePolygon Shape = "polygon"
	ShapeCircle  Shape = "circle"
)

func (s Shape) Valid() bool {
	return s == ShapeLine || s == ShapePolygon || s == ShapeCircle
}

// Kind labels a completed measurement.
type Kind string

const (
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
	KindCircle  Kind = "circle"
	KindMeasure Kind = "measure"
)

// Measurement is a completed sketch and its computed figures.
type Measurement struct {
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind"`
	Label    string      `json:"label"`
	Vertices []orb.Point `json:"vertices"`
	LengthM  float64     `json:"length_m,omitempty"`
	AreaM2   float64     `json:"area_m2,omitempty"`
	RadiusM  float64     `json:"radius_m,omitempty"`
}

// Value is the headline figure: area for polygons and circles, length
// otherwise.
func (m Measurement) Value() float64 {
	if m.Kind == KindPolygon || m.Kind == KindCircle {
		return m.AreaM2
	}
	return m.LengthM
}

// Geometry returns the sketch geometry. A circle is its center point; the
// radius travels as a property.
func (m Measurement) Geometry() orb.Geometry {
	switch m.Kind {
	case KindPolygon:
		return orb.Polygon{closedRing(m.Vertices)}
	case KindCircle:
		return m.Vertices[0]
	default:
		return orb.LineString(m.Vertices)
	}
}

// Machine holds the in-progress sketch and the completed measurements.
// The zero value is idle.
type Machine struct {
	Mode      Mode          `json:"mode"`
	Shape     Shape         `json:"shape,omitempty"`
	Vertices  []orb.Point   `json:"vertices,omitempty"`
	Completed []Measurement `json:"completed"`
}

func (m *Machine) mode() Mode {
	if m.Mode == "" {
		return ModeIdle
	}
	return m.Mode
}

// Start enters drawing mode for shape, discarding any in-progress
// vertices. Starting the shape already being drawn returns to idle.
func (m *Machine) Start(shape Shape) error {
	if !shape.Valid() {
		return domain.Validation("draw.start", "unknown shape %q", shape)
	}
	if m.mode() == ModeDrawing && m.Shape == shape {
		m.reset()
		return nil
	}
	m.Mode, m.Shape, m.Vertices = ModeDrawing, shape, nil
	return nil
}

// StartMeasure enters measuring mode; calling it while measuring returns to
// idle.
func (m *Machine) StartMeasure() error {
	if m.mode() == ModeMeasuring {
		m.reset()
		return nil
	}
	m.Mode, m.Shape, m.Vertices = ModeMeasuring, "", nil
	return nil
}

// AddVertex appends a click. For circles the first vertex is the center and
// the second fixes the radius.
func (m *Machine) AddVertex(pt orb.Point) error {
	const op = "draw.vertex"
	switch m.mode() {
	case ModeIdle:
		return domain.Validation(op, "no drawing tool is active")
	case ModeDrawing:
		if m.Shape == ShapeCircle && len(m.Vertices) == 2 {
			return domain.Validation(op, "circle already has a center and radius")
		}
	}
	if pt.Lat() < -90 || pt.Lat() > 90 || pt.Lon() < -180 || pt.Lon() > 180 {
		return domain.Validation(op, "coordinate out of range")
	}
	m.Vertices = append(m.Vertices, pt)
	return nil
}

// Complete validates the sketch, records its measurement and returns to
// idle.
func (m *Machine) Complete() (Measurement, error) {
	const op = "draw.complete"
	var res Measurement
	switch m.mode() {
	case ModeIdle:
		return res, domain.Validation(op, "nothing to complete")
	case ModeMeasuring:
		if len(m.Vertices) < 2 {
			return res, domain.Validation(op, "a measurement needs at least 2 points")
		}
		res = Measurement{Kind: KindMeasure, LengthM: lineLength(m.Vertices)}
	case ModeDrawing:
		switch m.Shape {
		case ShapeLine:
			if len(m.Vertices) < 2 {
				return res, domain.Validation(op, "a line needs at least 2 points")
			}
			res = Measurement{Kind: KindLine, LengthM: lineLength(m.Vertices)}
		case ShapePolygon:
			if len(m.Vertices) < 3 {
				return res, domain.Validation(op, "a polygon needs at least 3 points")
			}
			res = Measurement{
				Kind:    KindPolygon,
				AreaM2:  polygonArea(m.Vertices),
				LengthM: polygonPerimeter(m.Vertices),
			}
		case ShapeCircle:
			if len(m.Vertices) < 2 {
				return res, domain.Validation(op, "a circle needs a center and a radius point")
			}
			r := geo.Distance(m.Vertices[0], m.Vertices[1])
			res = Measurement{Kind: KindCircle, RadiusM: r, AreaM2: circleArea(r)}
		}
	}

	res.ID = uuid.NewString()
	res.Vertices = append([]orb.Point(nil), m.Vertices...)
	res.Label = describe(res)
	m.Completed = append(m.Completed, res)
	m.reset()
	return res, nil
}

// Cancel clears the in-progress sketch and every completed one.
func (m *Machine) Cancel() {
	m.reset()
	m.Completed = nil
}

// Delete removes one completed measurement.
func (m *Machine) Delete(id string) error {
	for i, c := range m.Completed {
		if c.ID == id {
			m.Completed = append(m.Completed[:i], m.Completed[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("draw.delete", "measurement", id)
}

// GeoJSON exports completed measurements with kind, label and value
// properties.
func (m *Machine) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range m.Completed {
		f := geojson.NewFeature(c.Geometry())
		f.ID = c.ID
		f.Properties["kind"] = string(c.Kind)
		f.Properties["label"] = c.Label
		f.Properties["value"] = c.Value()
		if c.Kind == KindCircle {
			f.Properties["radius_m"] = c.RadiusM
		}
		fc.Append(f)
	}
	return fc
}

func (m *Machine) reset() {
	m.Mode, m.Shape, m.Vertices = ModeIdle, "", nil
}
