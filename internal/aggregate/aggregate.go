// Package aggregate groups records by key and sums a metric per group.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/wealthstack/internal/models"
)

// KeyFunc derives the bucket key of a record.
type KeyFunc func(models.Record) models.GroupKey

// MetricFunc extracts the summed value of a record.
type MetricFunc func(models.Record) float64

// ByYearCategory groups by (year, category).
func ByYearCategory(r models.Record) models.GroupKey {
	return r.Key()
}

// NetWorth sums the record's metric as is.
func NetWorth(r models.Record) float64 {
	return r.Metric
}

// Aggregate sums metric over all records sharing a key. Sums are accumulated as
// decimals, so the totals do not depend on the order of records. An empty input
// yields an empty, non-nil map.
func Aggregate(records []models.Record, key KeyFunc, metric MetricFunc) map[models.GroupKey]models.Bucket {
	if key == nil {
		key = ByYearCategory
	}
	if metric == nil {
		metric = NetWorth
	}

	sums := make(map[models.GroupKey]decimal.Decimal)
	counts := make(map[models.GroupKey]int)
	for _, r := range records {
		k := key(r)
		sums[k] = sums[k].Add(decimal.NewFromFloat(metric(r)))
		counts[k]++
	}

	buckets := make(map[models.GroupKey]models.Bucket, len(sums))
	for k, sum := range sums {
		total, _ := sum.Float64()
		buckets[k] = models.Bucket{Key: k, Total: total, Count: counts[k]}
	}
	return buckets
}

// Years returns the ascending union of bucket years.
func Years(buckets map[models.GroupKey]models.Bucket) []int {
	seen := make(map[int]bool)
	years := []int{}
	for k := range buckets {
		if !seen[k.Year] {
			seen[k.Year] = true
			years = append(years, k.Year)
		}
	}
	sort.Ints(years)
	return years
}

// YearTotals sums bucket totals per year across categories.
func YearTotals(buckets map[models.GroupKey]models.Bucket) map[int]float64 {
	sums := make(map[int]decimal.Decimal)
	for k, b := range buckets {
		sums[k.Year] = sums[k.Year].Add(decimal.NewFromFloat(b.Total))
	}
	totals := make(map[int]float64, len(sums))
	for year, sum := range sums {
		totals[year], _ = sum.Float64()
	}
	return totals
}

// Sorted returns the buckets ordered by year, then category name.
func Sorted(buckets map[models.GroupKey]models.Bucket) []models.Bucket {
	out := make([]models.Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Year != out[j].Key.Year {
			return out[i].Key.Year < out[j].Key.Year
		}
		return out[i].Key.Category < out[j].Key.Category
	})
	return out
}
