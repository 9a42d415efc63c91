// Package ingest turns raw CSV (or XLSX) rows into typed records.
//
// Every row goes through the same three steps: the dataset predicate (auxiliary
// column match and minimum year), year and metric parsing, and the binary industry
// classification. Rows that fail to parse are dropped with a warning; they never
// abort the batch.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rewired-gh/wealthstack/internal/config"
	"github.com/rewired-gh/wealthstack/internal/models"
)

// ErrFiltered marks a row rejected by the dataset predicate. It is not a warning.
var ErrFiltered = errors.New("row rejected by filter")

// ParseError reports a field that could not be parsed.
type ParseError struct {
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("column %q: cannot parse %q: %v", e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Rules configures how rows of one dataset are read.
type Rules struct {
	YearColumn     string
	MetricColumn   string
	CategoryColumn string
	NameColumn     string

	// FilterColumn/FilterValue keep only rows whose auxiliary field matches
	// exactly. An empty FilterColumn disables the match.
	FilterColumn string
	FilterValue  string
	// MinYear drops rows before this year. Zero disables the bound.
	MinYear int
}

// BillionaireRules returns the rules of the billionaires dataset: United States
// citizens from 2006 onwards.
func BillionaireRules() Rules {
	return Rules{
		YearColumn:     "year",
		MetricColumn:   "net_worth",
		CategoryColumn: "business_industries",
		NameColumn:     "full_name",
		FilterColumn:   "country_of_citizenship",
		FilterValue:    "United States",
		MinYear:        2006,
	}
}

// RulesFromConfig builds the rules from the columns and filter sections.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		YearColumn:     cfg.Columns.Year,
		MetricColumn:   cfg.Columns.Metric,
		CategoryColumn: cfg.Columns.Category,
		NameColumn:     cfg.Columns.Name,
		FilterColumn:   cfg.Filter.Column,
		FilterValue:    cfg.Filter.Value,
		MinYear:        cfg.Filter.MinYear,
	}
}

// ParseYear extracts a 4-digit year from a plain or date-like field:
// "2010", "2010-05-01", "2010/05", "2010.0".
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, fmt.Errorf("year %q is too short", s)
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("year %q does not start with 4 digits", s)
		}
	}
	if len(s) > 4 && s[4] >= '0' && s[4] <= '9' {
		return 0, fmt.Errorf("year %q has more than 4 digits", s)
	}
	year, _ := strconv.Atoi(s[:4])
	return year, nil
}

// ParseMetric parses a monetary value. Thousands separators are accepted;
// empty, NaN and infinite values are not.
func ParseMetric(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, errors.New("value is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", s)
	}
	return v, nil
}

// ClassifyIndustry collapses a free-text industry tag to Technology or Other.
// Tags arrive as list literals such as "['Technology']"; bracket and quote
// characters are stripped before an exact, case-sensitive comparison.
func ClassifyIndustry(tag string) models.Category {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '\'', '"':
			return -1
		}
		return r
	}, tag)
	if strings.TrimSpace(cleaned) == string(models.CategoryTechnology) {
		return models.CategoryTechnology
	}
	return models.CategoryOther
}

// Row normalizes one raw row. It returns ErrFiltered for rows outside the
// dataset predicate and a *ParseError for unparseable year or metric fields or a
// year outside 1000..9999.
func (r Rules) Row(row map[string]string) (models.Record, error) {
	if r.FilterColumn != "" && strings.TrimSpace(row[r.FilterColumn]) != r.FilterValue {
		return models.Record{}, ErrFiltered
	}

	yearRaw := row[r.YearColumn]
	year, err := ParseYear(yearRaw)
	if err != nil {
		return models.Record{}, &ParseError{Column: r.YearColumn, Value: yearRaw, Err: err}
	}
	if r.MinYear > 0 && year < r.MinYear {
		return models.Record{}, ErrFiltered
	}

	metricRaw := row[r.MetricColumn]
	metric, err := ParseMetric(metricRaw)
	if err != nil {
		return models.Record{}, &ParseError{Column: r.MetricColumn, Value: metricRaw, Err: err}
	}

	rec := models.Record{
		Year:     year,
		Category: models.CategoryOther,
		Metric:   metric,
	}
	if r.CategoryColumn != "" {
		rec.Category = ClassifyIndustry(row[r.CategoryColumn])
	}
	if r.NameColumn != "" {
		rec.Name = strings.TrimSpace(row[r.NameColumn])
	}
	if err := rec.Validate(); err != nil {
		return models.Record{}, &ParseError{Column: r.YearColumn, Value: yearRaw, Err: err}
	}
	return rec, nil
}
