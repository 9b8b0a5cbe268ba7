package mapview

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-maps/internal/domain"
)

const (
	FitPadding    = 20
	LocateZoom    = 13
	LocateTimeout = 10 * time.Second

	homeSouth = -56.0
	homeWest  = -76.0
	homeNorth = -17.5
	homeEast  = -66.0
)

// LatLng is a Leaflet-ordered coordinate pair.
type LatLng [2]float64

// Viewport is what the client should show: either Bounds (fit with
// Padding) or Center at Zoom.
type Viewport struct {
	Bounds  *[2]LatLng `json:"bounds,omitempty" doc:"[[south, west], [north, east]]"`
	Center  *LatLng    `json:"center,omitempty" doc:"[lat, lng]"`
	Zoom    int        `json:"zoom,omitempty"`
	Padding int        `json:"padding,omitempty"`
}

// Home is the fixed home region.
func Home() Viewport {
	return fitBound(orb.Bound{
		Min: orb.Point{homeWest, homeSouth},
		Max: orb.Point{homeEast, homeNorth},
	})
}

func fitBound(b orb.Bound) Viewport {
	return Viewport{
		Bounds:  &[2]LatLng{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}},
		Padding: FitPadding,
	}
}

// Bound returns the viewport extent in WGS84. A center view is expanded to
// the approximate span of a 1024px map at its zoom.
func (v Viewport) Bound() orb.Bound {
	if v.Bounds != nil {
		return orb.Bound{
			Min: orb.Point{v.Bounds[0][1], v.Bounds[0][0]},
			Max: orb.Point{v.Bounds[1][1], v.Bounds[1][0]},
		}
	}
	if v.Center != nil {
		span := 360.0 / float64(int(1)<<max(v.Zoom, 0)) * 4
		c := orb.Point{v.Center[1], v.Center[0]}
		return orb.Bound{
			Min: orb.Point{c.Lon() - span/2, c.Lat() - span/4},
			Max: orb.Point{c.Lon() + span/2, c.Lat() + span/4},
		}
	}
	return Home().Bound()
}

// GoHome resets the viewport to the home region.
func (s *State) GoHome() {
	s.Viewport = Home()
}

// FitGeoJSON fits the viewport to the geometries in raw (a Feature,
// FeatureCollection or bare geometry). Invalid or empty input leaves the
// viewport unchanged and returns false.
func (s *State) FitGeoJSON(raw []byte) bool {
	b, ok := BoundOf(raw)
	if !ok {
		return false
	}
	s.Viewport = fitBound(b)
	return true
}

// BoundOf computes the extent of GeoJSON input.
func BoundOf(raw []byte) (orb.Bound, bool) {
	var geoms []orb.Geometry
	if fc, err := geojson.UnmarshalFeatureCollection(raw); err == nil && fc.Type == "FeatureCollection" {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(raw); err == nil && f.Type == "Feature" {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(raw); err == nil {
		geoms = append(geoms, g.Geometry())
	}

	var (
		b     orb.Bound
		found bool
	)
	for _, g := range geoms {
		if g == nil {
			continue
		}
		gb := g.Bound()
		if !found {
			b, found = gb, true
			continue
		}
		b = b.Union(gb)
	}
	return b, found
}

// Geolocator yields the device position as a WGS84 point.
type Geolocator interface {
	Locate(ctx context.Context) (orb.Point, error)
}

// ErrLocationUnavailable is returned when no position could be obtained.
var ErrLocationUnavailable = errors.New("geolocation unavailable")

// Reported is a position (or failure) the browser already resolved.
type Reported struct {
	Lat, Lng *float64
	Err      string
}

func (r Reported) Locate(context.Context) (orb.Point, error) {
	if r.Err != "" {
		return orb.Point{}, errors.New(r.Err)
	}
	if r.Lat == nil || r.Lng == nil {
		return orb.Point{}, ErrLocationUnavailable
	}
	return orb.Point{*r.Lng, *r.Lat}, nil
}

// Locate centres on the device position at a fixed zoom. Failures and
// denials yield a warning notice and leave the viewport unchanged.
func (s *State) Locate(ctx context.Context, g Geolocator) *domain.Notice {
	if g == nil {
		n := domain.Warn("Geolocalización no disponible.")
		return &n
	}
	ctx, cancel := context.WithTimeout(ctx, LocateTimeout)
	defer cancel()

	pt, err := g.Locate(ctx)
	if err == nil && (pt.Lat() < -90 || pt.Lat() > 90 || pt.Lon() < -180 || pt.Lon() > 180) {
		err = errors.New("position out of range")
	}
	if err != nil {
		n := domain.Warn("No se pudo obtener tu ubicación: %v", err)
		return &n
	}
	s.Viewport = Viewport{Center: &LatLng{pt.Lat(), pt.Lon()}, Zoom: LocateZoom}
	return nil
}
