package importer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-maps/internal/domain"
)

var (
	wktProjection = regexp.MustCompile(`(?i)PROJECTION\[\s*"([^"]+)"`)
	wktParameter  = regexp.MustCompile(`(?i)PARAMETER\[\s*"([^"]+)"\s*,\s*([-+0-9.eE]+)`)
	wktSpheroid   = regexp.MustCompile(`(?i)SPHEROID\[\s*"[^"]*"\s*,\s*([-+0-9.eE]+)\s*,\s*([-+0-9.eE]+)`)
	wktUnit       = regexp.MustCompile(`(?i)UNIT\[\s*"[^"]*"\s*,\s*([-+0-9.eE]+)`)
)

// prjProjection reads the ESRI WKT of a .prj sidecar. A geographic CRS
// needs no transform and yields nil. Transverse Mercator systems (UTM,
// Gauss-Kruger) yield the inverse projection to lon/lat; any other
// projected CRS is Unsupported. Datum shifts are ignored, which is below a
// meter for WGS84, SIRGAS and GRS80 based systems.
func prjProjection(wkt string) (orb.Projection, error) {
	const op = "import.shapefile"
	wkt = strings.TrimSpace(wkt)
	if wkt == "" || !strings.HasPrefix(strings.ToUpper(wkt), "PROJCS") {
		return nil, nil
	}

	m := wktProjection.FindStringSubmatch(wkt)
	if m == nil {
		return nil, domain.Unsupported(op, "projected .prj without a PROJECTION")
	}
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m[1])), " ", "_")
	switch name {
	case "transverse_mercator", "gauss_kruger":
	default:
		return nil, domain.Unsupported(op, "projection %q is not supported; export the layer in WGS84 (EPSG:4326)", m[1])
	}

	params := map[string]float64{}
	for _, p := range wktParameter.FindAllStringSubmatch(wkt, -1) {
		if v, err := strconv.ParseFloat(p[2], 64); err == nil {
			params[strings.ToLower(p[1])] = v
		}
	}

	tm := transverseMercator{
		a:    6378137.0,
		invF: 298.257223563,
		k0:   1,
		unit: 1,
		lon0: firstParam(params, "central_meridian", "longitude_of_center", "longitude_of_origin"),
		lat0: firstParam(params, "latitude_of_origin", "latitude_of_center"),
		x0:   params["false_easting"],
		y0:   params["false_northing"],
	}
	if k, ok := params["scale_factor"]; ok && k > 0 {
		tm.k0 = k
	}
	if s := wktSpheroid.FindStringSubmatch(wkt); s != nil {
		a, errA := strconv.ParseFloat(s[1], 64)
		inv, errF := strconv.ParseFloat(s[2], 64)
		if errA == nil && errF == nil && a > 0 {
			tm.a, tm.invF = a, inv
		}
	}
	// The last UNIT of a PROJCS is the linear one; earlier ones belong to
	// the GEOGCS.
	if units := wktUnit.FindAllStringSubmatch(wkt, -1); len(units) > 0 {
		if u, err := strconv.ParseFloat(units[len(units)-1][1], 64); err == nil && u > 0 {
			tm.unit = u
		}
	}
	return tm.inverse, nil
}

func firstParam(params map[string]float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			return v
		}
	}
	return 0
}

// transverseMercator holds an ellipsoidal Transverse Mercator definition.
// Angles are degrees; false easting/northing are in the linear unit.
type transverseMercator struct {
	a, invF    float64
	k0         float64
	unit       float64 // meters per linear unit
	lon0, lat0 float64
	x0, y0     float64
}

// meridianArc is the distance along the meridian from the equator to phi.
func meridianArc(a, e2, phi float64) float64 {
	e4, e6 := e2*e2, e2*e2*e2
	return a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// inverse maps projected easting/northing to lon/lat (Snyder, USGS PP 1395,
// eqs. 8-12 to 8-25).
func (tm transverseMercator) inverse(p orb.Point) orb.Point {
	f := 0.0
	if tm.invF != 0 {
		f = 1 / tm.invF
	}
	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)
	a := tm.a

	x := (p.X() - tm.x0) * tm.unit
	y := (p.Y() - tm.y0) * tm.unit

	m := meridianArc(a, e2, tm.lat0*math.Pi/180) + y/tm.k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1, tan1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := a / math.Sqrt(1-e2*sin1*sin1)
	r1 := a * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := x / (n1 * tm.k0)

	lat := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lon := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos1

	return orb.Point{tm.lon0 + lon*180/math.Pi, lat * 180 / math.Pi}
}

// geographic reports whether b lies inside the lon/lat domain.
func geographic(b orb.Bound) bool {
	return b.Min.X() >= -180 && b.Max.X() <= 180 && b.Min.Y() >= -90 && b.Max.Y() <= 90
}
