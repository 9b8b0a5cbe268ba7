// Package importer converts uploaded geodata files (GeoJSON, zipped
// Shapefile, KML, KMZ) into a normalized GeoJSON FeatureCollection.
package importer

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-maps/internal/domain"
)

// Format is the lower-cased file extension the importer dispatched on.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shapefile"
	FormatKML       Format = "kml"
	FormatKMZ       Format = "kmz"
)

// MaxExtractedBytes caps what a KMZ or zipped Shapefile may expand to.
var MaxExtractedBytes int64 = 256 << 20

// Extensions lists the accepted upload extensions.
var Extensions = []string{".geojson", ".json", ".zip", ".kml", ".kmz"}

// Detect maps a filename to its import format.
func Detect(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".zip":
		return FormatShapefile, nil
	case ".kml":
		return FormatKML, nil
	case ".kmz":
		return FormatKMZ, nil
	}
	return "", domain.Unsupported("import", "unsupported file type %q (expected one of %s)",
		filepath.Ext(filename), strings.Join(Extensions, ", "))
}

// Import decodes data according to filename's extension.
func Import(filename string, data []byte) (*geojson.FeatureCollection, error) {
	format, err := Detect(filename)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatShapefile:
		return decodeShapefileZip(data)
	case FormatKML:
		return decodeKML(bytes.NewReader(data))
	case FormatKMZ:
		return decodeKMZ(data)
	default:
		return Normalize(data)
	}
}

// LayerName is the filename without directory or extension.
func LayerName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Normalize parses a GeoJSON Feature or FeatureCollection. A bare Feature is
// wrapped into a one-element collection; a collection is returned as is.
func Normalize(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, domain.Validation("import.geojson", "invalid JSON: %v", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, domain.Validation("import.geojson", "invalid FeatureCollection: %v", err)
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, domain.Validation("import.geojson", "invalid Feature: %v", err)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	}
	return nil, domain.Unsupported("import.geojson", "GeoJSON type %q is not a Feature or FeatureCollection", head.Type)
}

func decodeKMZ(data []byte) (*geojson.FeatureCollection, error) {
	const op = "import.kmz"
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.Validation(op, "invalid KMZ archive: %v", err)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			continue
		}
		doc, err := readEntry(f, MaxExtractedBytes)
		if errors.Is(err, errTooLarge) {
			return nil, domain.Validation(op, "%s expands beyond %d MiB", f.Name, MaxExtractedBytes>>20)
		}
		if err != nil {
			return nil, domain.Validation(op, "read %s: %v", f.Name, err)
		}
		return decodeKML(bytes.NewReader(doc))
	}
	return nil, domain.Unsupported(op, "KMZ archive contains no .kml entry")
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}
