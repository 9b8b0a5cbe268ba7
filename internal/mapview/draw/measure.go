package draw

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const sqmPerHectare = 10_000

// FormatLength renders a geodesic length: meters with no decimals below
// 1 km, otherwise kilometers with two.
func FormatLength(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

func FormatHectares(sqm float64) string {
	return fmt.Sprintf("%.2f ha", sqm/sqmPerHectare)
}

func lineLength(pts []orb.Point) float64 {
	return geo.Length(orb.LineString(pts))
}

func closedRing(pts []orb.Point) orb.Ring {
	ring := make(orb.Ring, len(pts), len(pts)+1)
	copy(ring, pts)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

func polygonArea(pts []orb.Point) float64 {
	return math.Abs(geo.Area(orb.Polygon{closedRing(pts)}))
}

func polygonPerimeter(pts []orb.Point) float64 {
	return geo.Length(closedRing(pts))
}

func circleArea(radius float64) float64 {
	return math.Pi * radius * radius
}

func describe(m Measurement) string {
	switch m.Kind {
	case KindPolygon:
		return fmt.Sprintf("Área: %s | Perímetro: %.2f km", FormatHectares(m.AreaM2), m.LengthM/1000)
	case KindCircle:
		return fmt.Sprintf("Radio: %.0f m | Área: %s", m.RadiusM, FormatHectares(m.AreaM2))
	default:
		return "Longitud: " + FormatLength(m.LengthM)
	}
}
