package domain

import "regexp"

// Defaults applied to layers without a persisted style row.
const (
	DefaultColor       = "#1f2937"
	DefaultWeight      = 2.0
	DefaultOpacity     = 1.0
	DefaultFillColor   = "#1f2937"
	DefaultFillOpacity = 0.2
	DefaultRadius      = 5.0
)

// LayerStyle is the rendering style of one layer, keyed by layer ID.
type LayerStyle struct {
	LayerID     string  `json:"layer_id" doc:"Layer ID"`
	Color       string  `json:"color" doc:"Stroke color (hex)" example:"#1f2937"`
	Weight      float64 `json:"weight" exclusiveMinimum:"0" doc:"Stroke weight" example:"2"`
	Opacity     float64 `json:"opacity" minimum:"0" maximum:"1" doc:"Stroke opacity" example:"1"`
	FillColor   string  `json:"fill_color" doc:"Fill color (hex)" example:"#1f2937"`
	FillOpacity float64 `json:"fill_opacity" minimum:"0" maximum:"1" doc:"Fill opacity" example:"0.2"`
	Radius      float64 `json:"radius" exclusiveMinimum:"0" doc:"Point marker radius" example:"5"`
}

// DefaultStyle returns the hardcoded style for a layer with no style row.
func DefaultStyle(layerID string) LayerStyle {
	return LayerStyle{
		LayerID:     layerID,
		Color:       DefaultColor,
		Weight:      DefaultWeight,
		Opacity:     DefaultOpacity,
		FillColor:   DefaultFillColor,
		FillOpacity: DefaultFillOpacity,
		Radius:      DefaultRadius,
	}
}

// StylePatch is a partial style. Nil fields are left unchanged.
type StylePatch struct {
	Color       *string  `json:"color,omitempty" doc:"Stroke color (hex)"`
	Weight      *float64 `json:"weight,omitempty" doc:"Stroke weight"`
	Opacity     *float64 `json:"opacity,omitempty" doc:"Stroke opacity"`
	FillColor   *string  `json:"fill_color,omitempty" doc:"Fill color (hex)"`
	FillOpacity *float64 `json:"fill_opacity,omitempty" doc:"Fill opacity"`
	Radius      *float64 `json:"radius,omitempty" doc:"Point marker radius"`
}

// Apply returns s with p merged in.
func (p StylePatch) Apply(s LayerStyle) LayerStyle {
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.Weight != nil {
		s.Weight = *p.Weight
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.FillColor != nil {
		s.FillColor = *p.FillColor
	}
	if p.FillOpacity != nil {
		s.FillOpacity = *p.FillOpacity
	}
	if p.Radius != nil {
		s.Radius = *p.Radius
	}
	return s
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks colors, positive sizes and opacity ranges.
func (s LayerStyle) Validate() error {
	const op = "style.validate"
	switch {
	case s.LayerID == "":
		return Validation(op, "layer id is required")
	case !hexColor.MatchString(s.Color):
		return Validation(op, "color %q is not a hex color", s.Color)
	case !hexColor.MatchString(s.FillColor):
		return Validation(op, "fill color %q is not a hex color", s.FillColor)
	case s.Weight <= 0:
		return Validation(op, "weight must be positive")
	case s.Radius <= 0:
		return Validation(op, "radius must be positive")
	case s.Opacity < 0 || s.Opacity > 1:
		return Validation(op, "opacity must be between 0 and 1")
	case s.FillOpacity < 0 || s.FillOpacity > 1:
		return Validation(op, "fill opacity must be between 0 and 1")
	}
	return nil
}
