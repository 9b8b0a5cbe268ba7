package wms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joeblew999/plat-maps/internal/domain"
)

const (
	requestTimeout = 10 * time.Second
	maxInfoBody    = 4 << 20
	clickWindowPx  = 101
	// clickSpanDeg is the half width of the synthetic viewport used when the
	// caller sends a click without its map bounds.
	clickSpanDeg = 0.0005
)

// Click describes a map click in WGS84. View and Width/Height describe the
// map viewport at click time; X/Y are the pixel offsets of the click within
// it. When View is empty a small window centred on Point is used.
type Click struct {
	Point  orb.Point
	View   orb.Bound
	Width  int
	Height int
	X      int
	Y      int
}

// Feature is one feature from a GetFeatureInfo response.
type Feature struct {
	ID         any            `json:"id,omitempty"`
	Properties map[string]any `json:"properties"`
}

// Result is the first non-empty feature-info response.
type Result struct {
	OverlayID int64     `json:"overlay_id"`
	Features  []Feature `json:"features"`
}

// Observer receives feature-info outcomes per overlay.
type Observer interface {
	ObserveFeatureInfo(result string)
}

// Client issues rate-limited requests to external services.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	obs     Observer
}

// NewClient builds a client allowing rps requests per second across all
// overlays. A zero rps means unlimited. obs may be nil.
func NewClient(rps float64, log zerolog.Logger, obs Observer) *Client {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
		obs:     obs,
	}
}

// FeatureInfo queries every active WMS overlay concurrently and returns the
// first non-empty result in registry order. Per-overlay failures come back
// as notices; an empty result is not an error.
func (c *Client) FeatureInfo(ctx context.Context, overlays []Overlay, click Click) (*Result, []domain.Notice) {
	var targets []Overlay
	for _, o := range overlays {
		if o.Active && o.Kind == KindWMS {
			targets = append(targets, o)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	click = click.normalized()
	results := make([][]Feature, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, o := range targets {
		g.Go(func() error {
			features, err := c.query(ctx, o, click)
			results[i], errs[i] = features, err
			return nil
		})
	}
	_ = g.Wait()

	var notices []domain.Notice
	var found *Result
	for i, o := range targets {
		switch {
		case errs[i] != nil:
			c.observe("error")
			c.log.Warn().Err(errs[i]).Int64("overlay_id", o.ID).Str("url", o.URL).Msg("feature info failed")
			notices = append(notices, domain.Warn("overlay %s: %v", o.URL, errs[i]))
		case len(results[i]) == 0:
			c.observe("empty")
		default:
			c.observe("hit")
			if found == nil {
				found = &Result{OverlayID: o.ID, Features: results[i]}
			}
		}
	}
	return found, notices
}

func (c *Client) observe(result string) {
	if c.obs != nil {
		c.obs.ObserveFeatureInfo(result)
	}
}

func (c *Client) query(ctx context.Context, o Overlay, click Click) ([]Feature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, FeatureInfoURL(o, click), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Features []Feature `json:"features"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxInfoBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Features, nil
}

// FeatureInfoURL builds the GetFeatureInfo request for a click.
func FeatureInfoURL(o Overlay, click Click) string {
	click = click.normalized()
	sw := project.WGS84.ToMercator(click.View.Min)
	ne := project.WGS84.ToMercator(click.View.Max)

	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.1.1")
	q.Set("REQUEST", "GetFeatureInfo")
	q.Set("LAYERS", o.Layers)
	q.Set("QUERY_LAYERS", o.Layers)
	q.Set("STYLES", "")
	q.Set("SRS", "EPSG:3857")
	q.Set("BBOX", fmt.Sprintf("%f,%f,%f,%f", sw.X(), sw.Y(), ne.X(), ne.Y()))
	q.Set("WIDTH", strconv.Itoa(click.Width))
	q.Set("HEIGHT", strconv.Itoa(click.Height))
	q.Set("X", strconv.Itoa(click.X))
	q.Set("Y", strconv.Itoa(click.Y))
	q.Set("INFO_FORMAT", "application/json")
	q.Set("FEATURE_COUNT", "10")
	return withQuery(o.URL, q.Encode())
}

func (c Click) normalized() Click {
	if c.View.IsEmpty() || c.Width <= 0 || c.Height <= 0 {
		c.View = orb.Bound{
			Min: orb.Point{c.Point.Lon() - clickSpanDeg, c.Point.Lat() - clickSpanDeg},
			Max: orb.Point{c.Point.Lon() + clickSpanDeg, c.Point.Lat() + clickSpanDeg},
		}
		c.Width, c.Height = clickWindowPx, clickWindowPx
		c.X, c.Y = clickWindowPx/2, clickWindowPx/2
	}
	return c
}
