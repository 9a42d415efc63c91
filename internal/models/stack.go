package models

import (
	"errors"
	"fmt"
	"math"
)

// Mode selects raw totals or per-year fractions when stacking.
type Mode string

const (
	ModeRaw        Mode = "raw"
	ModeNormalized Mode = "normalized"
)

// ParseMode accepts "raw", "nominal" (the chart toggle label, same as raw) and "normalized".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "raw", "nominal":
		return ModeRaw, nil
	case "normalized":
		return ModeNormalized, nil
	}
	return "", fmt.Errorf("unknown mode %q: must be raw, nominal or normalized", s)
}

// Segment is one band of a layer for a single year.
type Segment struct {
	Year int     `json:"year"`
	Y0   float64 `json:"y0"`
	Y1   float64 `json:"y1"`
}

// Height returns Y1 - Y0.
func (s Segment) Height() float64 {
	return s.Y1 - s.Y0
}

// Layer holds one category's segments, years ascending.
type Layer struct {
	Category Category  `json:"category"`
	Segments []Segment `json:"segments"`
}

// StackedSeries is the output of the stack layout transform.
type StackedSeries struct {
	Mode   Mode    `json:"mode"`
	Years  []int   `json:"years"`
	Layers []Layer `json:"layers"`
}

// stackTolerance absorbs floating-point drift in contiguity checks.
const stackTolerance = 1e-9

// Validate checks the stacking invariants: one segment per year in every layer,
// contiguous layers and, in normalized mode, a top of 1 (or 0 for empty years).
func (s *StackedSeries) Validate() error {
	if s.Mode != ModeRaw && s.Mode != ModeNormalized {
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	for i := 1; i < len(s.Years); i++ {
		if s.Years[i] <= s.Years[i-1] {
			return errors.New("years must be strictly ascending")
		}
	}
	for _, layer := range s.Layers {
		if len(layer.Segments) != len(s.Years) {
			return fmt.Errorf("layer %s has %d segments, want %d", layer.Category, len(layer.Segments), len(s.Years))
		}
		for j, seg := range layer.Segments {
			if seg.Year != s.Years[j] {
				return fmt.Errorf("layer %s segment %d has year %d, want %d", layer.Category, j, seg.Year, s.Years[j])
			}
		}
	}
	for i := 0; i+1 < len(s.Layers); i++ {
		for j := range s.Years {
			a, b := s.Layers[i].Segments[j], s.Layers[i+1].Segments[j]
			if math.Abs(a.Y1-b.Y0) > stackTolerance {
				return fmt.Errorf("layers %s and %s are not contiguous in %d", s.Layers[i].Category, s.Layers[i+1].Category, a.Year)
			}
		}
	}
	if s.Mode == ModeNormalized && len(s.Layers) > 0 {
		top := s.Layers[len(s.Layers)-1]
		for _, seg := range top.Segments {
			if math.Abs(seg.Y1) > stackTolerance && math.Abs(seg.Y1-1) > 1e-6 {
				return fmt.Errorf("normalized top for %d is %f, want 1 or 0", seg.Year, seg.Y1)
			}
		}
	}
	return nil
}

// Layer returns the layer for a category.
func (s StackedSeries) Layer(c Category) (Layer, bool) {
	for _, l := range s.Layers {
		if l.Category == c {
			return l, true
		}
	}
	return Layer{}, false
}

// Segment returns the band of a category in a given year.
func (s StackedSeries) Segment(key GroupKey) (Segment, bool) {
	layer, ok := s.Layer(key.Category)
	if !ok {
		return Segment{}, false
	}
	for _, seg := range layer.Segments {
		if seg.Year == key.Year {
			return seg, true
		}
	}
	return Segment{}, false
}

// DetailEntry is one contributor of a drill-down. Y0/Y1 are cumulative metric
// offsets; PixelY0/PixelY1 are the same offsets mapped onto the clicked bar.
type DetailEntry struct {
	Name      string  `json:"name"`
	Metric    float64 `json:"metric"`
	Y0        float64 `json:"y0"`
	Y1        float64 `json:"y1"`
	PixelY0   float64 `json:"pixel_y0"`
	PixelY1   float64 `json:"pixel_y1"`
	Synthetic bool    `json:"synthetic,omitempty"` // the folded "Others" entry
}

// DetailSeries is the nested stack of a drill-down view.
type DetailSeries struct {
	Key     GroupKey      `json:"key"`
	Total   float64       `json:"total"`
	Span    Span          `json:"span"`
	Entries []DetailEntry `json:"entries"`
}

// Span is the vertical pixel extent of a bar.
type Span struct {
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// Rect is a bar rectangle in output coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Span returns the vertical extent of the rectangle.
func (r Rect) Span() Span {
	return Span{Y0: r.Y, Y1: r.Y + r.Height}
}
