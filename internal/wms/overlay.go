// Package wms manages external WMS and ArcGIS overlays for a map session and
// queries them for feature info.
package wms

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joeblew999/plat-maps/internal/domain"
)

type Kind string

const (
	KindAuto   Kind = ""
	KindWMS    Kind = "wms"
	KindArcGIS Kind = "arcgis"
)

const (
	defaultWMSLayer = "0"
	arcgisOpacity   = 0.8
)

var (
	trailingMapServer = regexp.MustCompile(`(?i)/MapServer/?$`)
	hasWMSServer      = regexp.MustCompile(`(?i)/WMSServer`)
	hasMapServer      = regexp.MustCompile(`(?i)/MapServer(/\d+)?`)
)

// Overlay is one external service layered over the map.
type Overlay struct {
	ID      int64   `json:"id" doc:"Overlay ID (unix millis at creation)"`
	URL     string  `json:"url" doc:"Normalized service URL"`
	Layers  string  `json:"layers" doc:"WMS layer name or ArcGIS comma separated layer ids"`
	Kind    Kind    `json:"kind" enum:"wms,arcgis" doc:"Service protocol"`
	Opacity float64 `json:"opacity" doc:"Display opacity"`
	Active  bool    `json:"active" doc:"Whether the overlay is drawn and queried"`

	// Requested is the layer string as typed; duplicates are detected on it.
	Requested string `json:"requested_layers,omitempty"`
}

// LayerIDs parses an ArcGIS layer list.
func (o Overlay) LayerIDs() []int {
	var ids []int
	for _, p := range strings.Split(o.Layers, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

// Registry is the per-session overlay list. It is a plain value so it can be
// stored with the rest of the session state.
type Registry struct {
	Overlays []Overlay `json:"overlays"`
}

// Add normalizes and registers a new active overlay.
func (r *Registry) Add(rawURL, layers string, kind Kind) (Overlay, error) {
	const op = "overlays.add"
	serviceURL := strings.TrimSpace(rawURL)
	layers = strings.TrimSpace(layers)
	if serviceURL == "" {
		return Overlay{}, domain.Validation(op, "service URL is required")
	}

	switch kind {
	case KindAuto:
		serviceURL = trailingMapServer.ReplaceAllString(serviceURL, "/WMSServer")
		switch {
		case hasWMSServer.MatchString(serviceURL):
			kind = KindWMS
		case hasMapServer.MatchString(serviceURL):
			kind = KindArcGIS
		default:
			return Overlay{}, domain.Validation(op, "URL not recognized as ArcGIS REST or WMS")
		}
	case KindWMS, KindArcGIS:
	default:
		return Overlay{}, domain.Validation(op, "unknown overlay kind %q", kind)
	}

	for _, o := range r.Overlays {
		if o.URL == serviceURL && o.Requested == layers {
			return Overlay{}, domain.Validation(op, "this layer is already loaded")
		}
	}

	o := Overlay{URL: serviceURL, Kind: kind, Active: true, Opacity: 1, Requested: layers}
	switch kind {
	case KindWMS:
		o.Layers = layers
		if o.Layers == "" {
			o.Layers = defaultWMSLayer
		}
	case KindArcGIS:
		o.Opacity = arcgisOpacity
		if layers != "" {
			ids := make([]string, 0)
			for _, p := range strings.Split(layers, ",") {
				p = strings.TrimSpace(p)
				if _, err := strconv.Atoi(p); err != nil {
					return Overlay{}, domain.Validation(op, "invalid ArcGIS layer id %q", p)
				}
				ids = append(ids, p)
			}
			o.Layers = strings.Join(ids, ",")
		}
	}

	o.ID = r.nextID(time.Now().UnixMilli())
	r.Overlays = append(r.Overlays, o)
	return o, nil
}

func (r *Registry) nextID(now int64) int64 {
	for _, o := range r.Overlays {
		if o.ID >= now {
			now = o.ID + 1
		}
	}
	return now
}

// Toggle flips the active flag and returns the updated overlay.
func (r *Registry) Toggle(id int64) (Overlay, error) {
	for i := range r.Overlays {
		if r.Overlays[i].ID == id {
			r.Overlays[i].Active = !r.Overlays[i].Active
			return r.Overlays[i], nil
		}
	}
	return Overlay{}, domain.NotFound("overlays.toggle", "overlay", strconv.FormatInt(id, 10))
}

func (r *Registry) Remove(id int64) error {
	for i := range r.Overlays {
		if r.Overlays[i].ID == id {
			r.Overlays = append(r.Overlays[:i], r.Overlays[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("overlays.remove", "overlay", strconv.FormatInt(id, 10))
}

// List returns overlays in insertion order.
func (r *Registry) List() []Overlay {
	out := make([]Overlay, len(r.Overlays))
	copy(out, r.Overlays)
	return out
}

// Active returns the active overlays in insertion order.
func (r *Registry) Active() []Overlay {
	var out []Overlay
	for _, o := range r.Overlays {
		if o.Active {
			out = append(out, o)
		}
	}
	return out
}
