package importer

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/joeblew999/plat-maps/internal/domain"
)

// shapefile sidecars extracted next to the .shp.
var shapefileParts = map[string]bool{".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true}

// decodeShapefileZip extracts the bundle into a temp dir (go-shp reads from
// paths) and converts the first .shp in name order. A .prj next to it is
// honoured (geographic or Transverse Mercator) and a .cpg selects the DBF
// text encoding.
func decodeShapefileZip(data []byte) (*geojson.FeatureCollection, error) {
	const op = "import.shapefile"
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.Validation(op, "invalid zip archive: %v", err)
	}

	dir, err := os.MkdirTemp("", "shp-*")
	if err != nil {
		return nil, domain.Backend(op, err)
	}
	defer os.RemoveAll(dir)

	var shpFiles []string
	budget := MaxExtractedBytes
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !shapefileParts[ext] {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
		dest := filepath.Join(dir, base+ext)
		n, err := extract(f, dest, budget)
		if errors.Is(err, errTooLarge) {
			return nil, domain.Validation(op, "archive expands beyond %d MiB", MaxExtractedBytes>>20)
		}
		if err != nil {
			return nil, domain.Validation(op, "extract %s: %v", f.Name, err)
		}
		budget -= n
		if ext == ".shp" {
			shpFiles = append(shpFiles, dest)
		}
	}
	if len(shpFiles) == 0 {
		return nil, domain.Unsupported(op, "zip archive contains no .shp file")
	}
	sort.Strings(shpFiles)

	path := shpFiles[0]
	base := strings.TrimSuffix(path, ".shp")
	var proj orb.Projection
	if prj, err := os.ReadFile(base + ".prj"); err == nil {
		if proj, err = prjProjection(string(prj)); err != nil {
			return nil, err
		}
	}
	cpg, _ := os.ReadFile(base + ".cpg")

	fc, err := readShapefile(path, proj, dbfDecoder(string(cpg)))
	if err != nil {
		return nil, err
	}
	if b, ok := collectionBound(fc); ok && !geographic(b) {
		return nil, domain.Unsupported(op,
			"coordinates are not longitude/latitude; include the .prj or export the layer in WGS84 (EPSG:4326)")
	}
	return fc, nil
}

var errTooLarge = errors.New("entry too large")

// extract copies f to dest and fails with errTooLarge once more than limit
// bytes come out of the entry.
func extract(f *zip.File, dest string, limit int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, errTooLarge
	}
	return n, nil
}

func readShapefile(path string, proj orb.Projection, text *encoding.Decoder) (*geojson.FeatureCollection, error) {
	const op = "import.shapefile"
	if err := checkShapefileLength(path); err != nil {
		return nil, domain.Validation(op, "%v", err)
	}
	reader, err := shp.Open(path)
	if err != nil {
		return nil, domain.Validation(op, "open %s: %v", filepath.Base(path), err)
	}
	defer reader.Close()

	fields := reader.Fields()
	fc := geojson.NewFeatureCollection()
	records := 0
	for reader.Next() {
		records++
		_, shape := reader.Shape()
		geom := shapeGeometry(shape)
		if geom == nil {
			continue
		}
		if proj != nil {
			geom = project.Geometry(geom, proj)
		}
		f := geojson.NewFeature(geom)
		for i, field := range fields {
			f.Properties[field.String()] = attributeValue(field, decodeText(text, reader.Attribute(i)))
		}
		fc.Append(f)
	}
	if err := reader.Err(); err != nil {
		return nil, domain.Validation(op, "read shapefile: %v", err)
	}
	if len(fields) > 0 {
		if rows := reader.AttributeCount(); rows != records {
			return nil, domain.Validation(op, "shapefile has %d shapes but its .dbf has %d records", records, rows)
		}
	}
	return fc, nil
}

// checkShapefileLength compares the main header's declared length (16-bit
// words at offset 24) with the file size. go-shp trusts the file size, so
// a file cut at a record boundary would otherwise read as complete.
func checkShapefileLength(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var hdr [28]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return fmt.Errorf("shapefile header: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		return err
	}
	declared := int64(binary.BigEndian.Uint32(hdr[24:28])) * 2
	if st.Size() < declared {
		return fmt.Errorf("shapefile is truncated: %d of %d bytes", st.Size(), declared)
	}
	return nil
}

func collectionBound(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	var (
		b  orb.Bound
		ok bool
	)
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !ok {
			b, ok = f.Geometry.Bound(), true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, ok
}

// dbfDecoder maps a .cpg label ("UTF-8", "ISO-8859-1", "1252", "ANSI 1252",
// "88591", ...) to a decoder. Unknown or missing labels return nil.
func dbfDecoder(cpg string) *encoding.Decoder {
	label := strings.ToLower(strings.TrimSpace(cpg))
	label = strings.TrimPrefix(label, "ansi ")
	switch label {
	case "":
		return nil
	case "65001", "utf8":
		label = "utf-8"
	case "88591":
		label = "iso-8859-1"
	}
	if _, err := strconv.Atoi(label); err == nil {
		label = "windows-" + label
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil
	}
	return enc.NewDecoder()
}

// decodeText converts a raw DBF value to UTF-8. Without a decoder, valid
// UTF-8 is kept and anything else is read as Windows-1252, the usual
// encoding of legacy DBF files.
func decodeText(dec *encoding.Decoder, raw string) string {
	if dec == nil {
		if utf8.ValidString(raw) {
			return raw
		}
		dec = charmap.Windows1252.NewDecoder()
	}
	out, err := dec.String(raw)
	if err != nil {
		return strings.ToValidUTF8(raw, "\uFFFD")
	}
	return out
}

func attributeValue(field shp.Field, raw string) any {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	switch field.Fieldtype {
	case 'N', 'F':
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case 'L':
		switch strings.ToUpper(raw) {
		case "Y", "T":
			return true
		case "N", "F":
			return false
		}
	}
	return raw
}

func shapeGeometry(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.PointZ:
		return orb.Point{s.X, s.Y}
	case *shp.PointM:
		return orb.Point{s.X, s.Y}
	case *shp.MultiPoint:
		return multiPoint(s.Points)
	case *shp.MultiPointZ:
		return multiPoint(s.Points)
	case *shp.MultiPointM:
		return multiPoint(s.Points)
	case *shp.PolyLine:
		return lines(splitParts(s.Parts, s.Points))
	case *shp.PolyLineZ:
		return lines(splitParts(s.Parts, s.Points))
	case *shp.PolyLineM:
		return lines(splitParts(s.Parts, s.Points))
	case *shp.Polygon:
		return polygons(splitParts(s.Parts, s.Points))
	case *shp.PolygonZ:
		return polygons(splitParts(s.Parts, s.Points))
	case *shp.PolygonM:
		return polygons(splitParts(s.Parts, s.Points))
	}
	return nil
}

func multiPoint(pts []shp.Point) orb.Geometry {
	mp := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

func splitParts(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func lines(parts [][]orb.Point) orb.Geometry {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return orb.LineString(parts[0])
	}
	mls := make(orb.MultiLineString, len(parts))
	for i, p := range parts {
		mls[i] = orb.LineString(p)
	}
	return mls
}

// polygons groups rings by winding: clockwise rings start a new polygon,
// counter-clockwise rings are holes of the preceding one.
func polygons(parts [][]orb.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, p := range parts {
		ring := orb.Ring(p)
		if len(ring) < 4 {
			continue
		}
		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		mp[len(mp)-1] = append(mp[len(mp)-1], ring)
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}
