package models

import "errors"

// TickerRow is one year of a market-cap dataset (TECH.csv, OTHER.csv, AAPL.csv, ...).
type TickerRow struct {
	Year      int      `json:"year"`
	MarketCap float64  `json:"market_cap"`
	Change    *float64 `json:"change,omitempty"` // year-over-year percent, nil when absent
}

// Validate checks the row.
func (r *TickerRow) Validate() error {
	if r.Year < 1000 || r.Year > 9999 {
		return errors.New("year must be a 4-digit integer")
	}
	if r.MarketCap < 0 {
		return errors.New("market cap must not be negative")
	}
	return nil
}

// Point is one (x, y) pair of a line or area chart. Undefined points leave a gap.
type Point struct {
	X       int     `json:"x"`
	Y       float64 `json:"y"`
	Defined bool    `json:"defined"`
}

// Series is a named sequence of points, x ascending.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// LineChart is the renderer-facing description of a line/area chart.
type LineChart struct {
	Title   string     `json:"title"`
	YLabel  string     `json:"y_label"`
	XDomain [2]float64 `json:"x_domain"`
	YDomain [2]float64 `json:"y_domain"`
	Series  []Series   `json:"series"`
}

// PieSlice is one slice of a share chart.
type PieSlice struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// PieChart holds the slices for one year.
type PieChart struct {
	Year   int        `json:"year"`
	Total  float64    `json:"total"`
	Slices []PieSlice `json:"slices"`
}
