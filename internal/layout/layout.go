// Package layout places stacked bars inside an output frame.
package layout

import (
	"github.com/rewired-gh/wealthstack/internal/config"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/scale"
	"github.com/rewired-gh/wealthstack/internal/stack"
)

// Margin is the space around the plot area.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// Frame is the output surface.
type Frame struct {
	Width   float64
	Height  float64
	Margin  Margin
	Padding float64 // band padding between years
}

// DefaultFrame returns the 1200x1000 frame of the billionaires chart.
func DefaultFrame() Frame {
	return Frame{
		Width:   1200,
		Height:  1000,
		Margin:  Margin{Top: 80, Right: 60, Bottom: 60, Left: 100},
		Padding: 0.1,
	}
}

// FrameFromConfig builds a frame from the layout section.
func FrameFromConfig(cfg config.LayoutConfig) Frame {
	return Frame{
		Width:  cfg.Width,
		Height: cfg.Height,
		Margin: Margin{
			Top:    cfg.MarginTop,
			Right:  cfg.MarginRight,
			Bottom: cfg.MarginBottom,
			Left:   cfg.MarginLeft,
		},
		Padding: cfg.BandPadding,
	}
}

// X returns the band scale over the series years.
func (f Frame) X(years []int) scale.Band {
	return scale.Band{
		Domain:  years,
		Range:   [2]float64{f.Margin.Left, f.Width - f.Margin.Right},
		Padding: f.Padding,
	}
}

// Y returns the linear scale from [0, max] onto the plot height, origin at the bottom.
func (f Frame) Y(max float64) scale.Linear {
	return scale.NewLinear(0, max, f.Height-f.Margin.Bottom, f.Margin.Top)
}

// Bar is one placed segment.
type Bar struct {
	Key  models.GroupKey `json:"key"`
	Rect models.Rect     `json:"rect"`
}

// Bars lays out every segment of the series, layer by layer. Normalized series use
// the [0, 1] domain; raw series use [0, MaxY].
func Bars(series models.StackedSeries, f Frame) []Bar {
	max := stack.MaxY(series)
	if series.Mode == models.ModeNormalized {
		max = 1
	}
	x := f.X(series.Years)
	y := f.Y(max)
	width := x.Bandwidth()

	bars := make([]Bar, 0, len(series.Layers)*len(series.Years))
	for _, layer := range series.Layers {
		for _, seg := range layer.Segments {
			left, ok := x.Map(seg.Year)
			if !ok {
				continue
			}
			top, bottom := y.Map(seg.Y1), y.Map(seg.Y0)
			bars = append(bars, Bar{
				Key:  models.GroupKey{Year: seg.Year, Category: layer.Category},
				Rect: models.Rect{X: left, Y: top, Width: width, Height: bottom - top},
			})
		}
	}
	return bars
}

// Find returns the bar for key.
func Find(bars []Bar, key models.GroupKey) (Bar, bool) {
	for _, b := range bars {
		if b.Key == key {
			return b, true
		}
	}
	return Bar{}, false
}
