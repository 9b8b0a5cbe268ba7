package wms

import (
	"net/url"
	"strings"
)

// BBoxPlaceholder is substituted by the client with the tile's EPSG:3857
// bounding box.
const BBoxPlaceholder = "{bbox-epsg-3857}"

// TileURL returns a 256px tile URL template for the overlay.
func TileURL(o Overlay) string {
	switch o.Kind {
	case KindArcGIS:
		q := url.Values{}
		q.Set("bboxSR", "3857")
		q.Set("imageSR", "3857")
		q.Set("size", "256,256")
		q.Set("format", "png32")
		q.Set("transparent", "true")
		q.Set("f", "image")
		if o.Layers != "" {
			q.Set("layers", "show:"+o.Layers)
		}
		return joinPath(o.URL, "export") + "?bbox=" + BBoxPlaceholder + "&" + q.Encode()
	default:
		q := url.Values{}
		q.Set("SERVICE", "WMS")
		q.Set("REQUEST", "GetMap")
		q.Set("VERSION", "1.1.1")
		q.Set("LAYERS", o.Layers)
		q.Set("STYLES", "")
		q.Set("FORMAT", "image/png")
		q.Set("TRANSPARENT", "true")
		q.Set("SRS", "EPSG:3857")
		q.Set("WIDTH", "256")
		q.Set("HEIGHT", "256")
		return withQuery(o.URL, q.Encode()+"&BBOX="+BBoxPlaceholder)
	}
}

func joinPath(base, elem string) string {
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimRight(base, "/") + "/" + elem
}

func withQuery(base, query string) string {
	base = strings.TrimRight(base, "?&")
	if strings.Contains(base, "?") {
		return base + "&" + query
	}
	return base + "?" + query
}
