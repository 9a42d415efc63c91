// Package models defines the value types that flow through the wealthstack pipelines.
// Records come out of the CSV normalizer, buckets out of the aggregator, and stacked
// series and drill-down details out of the layout transforms. All of them are plain
// values: a new snapshot replaces the old one on every interaction, nothing is
// mutated in place.
//
// Terminology:
//   - Record: one parsed row (a billionaire in a given year, or a company).
//   - Bucket: the summed metric of all records sharing a (year, category) key.
//   - Layer: one category's band segments across all years of a stack.
package models

import (
	"errors"
	"fmt"
)

// Category is the binary industry classification used by every chart.
type Category string

const (
	CategoryTechnology Category = "Technology"
	CategoryOther      Category = "Other"
)

// Categories returns the fixed category set. The legend and totals depend on
// exactly these two buckets.
func Categories() []Category {
	return []Category{CategoryTechnology, CategoryOther}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryTechnology || c == CategoryOther
}

// ParseCategory accepts the exact category names.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Record is a single normalized row.
type Record struct {
	Year     int      `json:"year"`
	Category Category `json:"category"`
	Metric   float64  `json:"metric"` // net worth or market cap, in billions
	Name     string   `json:"name,omitempty"`
}

// Key returns the (year, category) bucket key of the record.
func (r Record) Key() GroupKey {
	return GroupKey{Year: r.Year, Category: r.Category}
}

// Validate checks that the record can take part in aggregation.
func (r *Record) Validate() error {
	if r.Year < 1000 || r.Year > 9999 {
		return errors.New("year must be a 4-digit integer")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("unknown category %q", r.Category)
	}
	return nil
}

// GroupKey identifies one aggregated bucket.
type GroupKey struct {
	Year     int      `json:"year"`
	Category Category `json:"category"`
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%d::%s", k.Year, k.Category)
}

// Bucket is the aggregate of all records sharing a GroupKey.
type Bucket struct {
	Key   GroupKey `json:"key"`
	Total float64  `json:"total"`
	Count int      `json:"count"`
}
