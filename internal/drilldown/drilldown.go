// Package drilldown builds the nested detail stack shown when a bar is selected.
package drilldown

import (
	"errors"
	"sort"

	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/scale"
)

// OthersName labels the synthetic entry that folds everything below the top K.
const OthersName = "Others"

// ErrInvalidK is returned when fewer than one contributor is requested.
var ErrInvalidK = errors.New("drill-down needs k >= 1")

// Select keeps the records of one (year, category) bucket, sorts them by metric
// descending (ties by name), keeps the top k and folds the rest into a single
// Others entry. The list is then stacked in reverse, so Others gets offset zero
// and the largest contributor the highest offsets. Offsets [0, total] map onto
// span, the pixel extent of the selected bar.
func Select(records []models.Record, key models.GroupKey, k int, span models.Span) (models.DetailSeries, error) {
	if k < 1 {
		return models.DetailSeries{}, ErrInvalidK
	}

	var matched []models.Record
	for _, r := range records {
		if r.Year == key.Year && r.Category == key.Category {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Metric != matched[j].Metric {
			return matched[i].Metric > matched[j].Metric
		}
		return matched[i].Name < matched[j].Name
	})

	entries := make([]models.DetailEntry, 0, k+1)
	for i := 0; i < len(matched) && i < k; i++ {
		entries = append(entries, models.DetailEntry{Name: matched[i].Name, Metric: matched[i].Metric})
	}
	if len(matched) > k {
		var rest float64
		for _, r := range matched[k:] {
			rest += r.Metric
		}
		entries = append(entries, models.DetailEntry{Name: OthersName, Metric: rest, Synthetic: true})
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	var total float64
	for i := range entries {
		entries[i].Y0 = total
		total += entries[i].Metric
		entries[i].Y1 = total
	}

	y := scale.NewLinear(0, total, span.Y0, span.Y1)
	for i := range entries {
		entries[i].PixelY0 = y.Map(entries[i].Y0)
		entries[i].PixelY1 = y.Map(entries[i].Y1)
	}

	return models.DetailSeries{Key: key, Total: total, Span: span, Entries: entries}, nil
}
