// Package stack turns aggregated buckets into contiguous band offsets, one layer
// per category, optionally rescaled so every year sums to 1.
package stack

import (
	"sort"

	"github.com/rewired-gh/wealthstack/internal/aggregate"
	"github.com/rewired-gh/wealthstack/internal/models"
)

// DescendingOrder sorts categories by descending name, which puts Technology
// before Other.
func DescendingOrder(categories []models.Category) []models.Category {
	out := append([]models.Category(nil), categories...)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// DefaultOrder is the stacking order used by the billionaires chart.
func DefaultOrder() []models.Category {
	return DescendingOrder(models.Categories())
}

// Stack computes cumulative offsets per year in the given category order. Layer 0
// starts at zero; a missing bucket counts as zero. Categories present in buckets
// but absent from order are stacked after the ordered ones. In normalized mode
// offsets are divided by the year total, and a zero-total year yields all-zero
// segments.
func Stack(buckets map[models.GroupKey]models.Bucket, order []models.Category, mode models.Mode) models.StackedSeries {
	if order == nil {
		order = DefaultOrder()
	}
	order = withUnlisted(buckets, order)
	years := aggregate.Years(buckets)

	series := models.StackedSeries{
		Mode:   mode,
		Years:  years,
		Layers: make([]models.Layer, len(order)),
	}
	for i, c := range order {
		series.Layers[i] = models.Layer{Category: c, Segments: make([]models.Segment, len(years))}
	}

	for j, year := range years {
		var offset float64
		for i, c := range order {
			v := buckets[models.GroupKey{Year: year, Category: c}].Total
			series.Layers[i].Segments[j] = models.Segment{Year: year, Y0: offset, Y1: offset + v}
			offset += v
		}
		if mode != models.ModeNormalized {
			continue
		}
		for i := range order {
			seg := &series.Layers[i].Segments[j]
			if offset == 0 {
				seg.Y0, seg.Y1 = 0, 0
				continue
			}
			seg.Y0 /= offset
			seg.Y1 /= offset
		}
	}
	return series
}

func withUnlisted(buckets map[models.GroupKey]models.Bucket, order []models.Category) []models.Category {
	listed := make(map[models.Category]bool, len(order))
	for _, c := range order {
		listed[c] = true
	}
	var extra []models.Category
	for k := range buckets {
		if !listed[k.Category] {
			listed[k.Category] = true
			extra = append(extra, k.Category)
		}
	}
	if len(extra) == 0 {
		return order
	}
	return append(append([]models.Category(nil), order...), DescendingOrder(extra)...)
}

// Totals returns the top of the stack per year: the year total in raw mode.
func Totals(series models.StackedSeries) map[int]float64 {
	totals := make(map[int]float64, len(series.Years))
	if len(series.Layers) == 0 {
		return totals
	}
	top := series.Layers[len(series.Layers)-1]
	for _, seg := range top.Segments {
		totals[seg.Year] = seg.Y1
	}
	return totals
}

// MaxY returns the largest offset in the series, the upper bound of its y domain.
func MaxY(series models.StackedSeries) float64 {
	var max float64
	for _, layer := range series.Layers {
		for _, seg := range layer.Segments {
			if seg.Y1 > max {
				max = seg.Y1
			}
			if seg.Y0 > max {
				max = seg.Y0
			}
		}
	}
	return max
}
