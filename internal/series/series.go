// Package series derives the market-cap line, comparison and share charts from
// per-ticker datasets.
package series

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/wealthstack/internal/models"
)

// Metric selects what a line chart plots.
type Metric string

const (
	MetricMarketCap     Metric = "Market Cap"
	MetricPercentChange Metric = "Percent Change (%)"
)

// ParseMetric accepts the exact metric labels.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricMarketCap, MetricPercentChange:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Ticker selections with special meaning.
const (
	TickerDefault = "Default"
	TickerTech    = "Tech Industry"
	TickerOther   = "Other Industries"
)

// Dataset names of the industry-wide files.
const (
	DatasetTech  = "TECH"
	DatasetOther = "OTHER"
)

// ErrYearNotFound is returned when a share chart is requested for a year one of
// the datasets does not cover.
var ErrYearNotFound = errors.New("year not found")

var (
	xDomain             = [2]float64{2010, 2025}
	marketCapDomain     = [2]float64{0, 4000}
	percentChangeDomain = [2]float64{-250, 250}
)

const (
	marketCapLabel     = "Market Cap (Billions of Dollars)"
	percentChangeLabel = "Percent Change (%)"
)

// TickerFile maps a ticker selection to its CSV file name. The Default selection
// has no single file: it reports false and callers use Compare over the TECH and
// OTHER datasets.
func TickerFile(selection string) (string, bool) {
	switch selection {
	case TickerDefault:
		return "", false
	case TickerTech:
		return DatasetTech + ".csv", true
	case TickerOther:
		return DatasetOther + ".csv", true
	}
	name := strings.ReplaceAll(selection, " ", "_")
	name = strings.ReplaceAll(name, "$", "")
	return name + ".csv", true
}

// DatasetName is the file name without its extension; it keys stored datasets.
func DatasetName(file string) string {
	return strings.TrimSuffix(file, ".csv")
}

func titleTicker(selection string) string {
	switch selection {
	case TickerTech:
		return "Tech Industries"
	case TickerOther:
		return "Other Industries"
	}
	if strings.HasPrefix(selection, "$") {
		return selection
	}
	return "$" + selection
}

// Line builds the single-ticker chart. Market cap points are always defined;
// percent change points without a change value leave a gap.
func Line(selection string, rows []models.TickerRow, metric Metric) models.LineChart {
	chart := models.LineChart{XDomain: xDomain}
	label := "Market Cap"
	if metric == MetricPercentChange {
		label = "Percent Change"
		chart.YLabel = percentChangeLabel
		chart.YDomain = percentChangeDomain
	} else {
		chart.YLabel = marketCapLabel
		chart.YDomain = marketCapDomain
	}
	chart.Title = fmt.Sprintf("%s (2010–2025) for %s", label, titleTicker(selection))

	sorted := sortedRows(rows)
	points := make([]models.Point, 0, len(sorted))
	for _, r := range sorted {
		p := models.Point{X: r.Year, Defined: true}
		if metric == MetricPercentChange {
			if r.Change == nil {
				p.Defined = false
			} else {
				p.Y = *r.Change
			}
		} else {
			p.Y = r.MarketCap
		}
		points = append(points, p)
	}
	chart.Series = []models.Series{{Name: titleTicker(selection), Points: points}}
	return chart
}

// Compare builds the default Tech vs Other market cap chart, joined by year. The y
// domain runs from 0 to the largest value of either series.
func Compare(tech, other []models.TickerRow) models.LineChart {
	byYear := make(map[int]float64, len(other))
	for _, r := range other {
		byYear[r.Year] = r.MarketCap
	}

	sorted := sortedRows(tech)
	techPoints := make([]models.Point, 0, len(sorted))
	otherPoints := make([]models.Point, 0, len(sorted))
	var max float64
	for _, r := range sorted {
		techPoints = append(techPoints, models.Point{X: r.Year, Y: r.MarketCap, Defined: true})
		o, ok := byYear[r.Year]
		otherPoints = append(otherPoints, models.Point{X: r.Year, Y: o, Defined: ok})
		if r.MarketCap > max {
			max = r.MarketCap
		}
		if ok && o > max {
			max = o
		}
	}

	return models.LineChart{
		Title:   "Market Cap (2010–2025): Tech vs Other",
		YLabel:  marketCapLabel,
		XDomain: xDomain,
		YDomain: [2]float64{0, max},
		Series: []models.Series{
			{Name: "Tech", Points: techPoints},
			{Name: "Other", Points: otherPoints},
		},
	}
}

// Pie splits one year's combined market cap into Tech and Other shares. Percent
// is in [0, 100]; a zero total gives zero percentages.
func Pie(tech, other []models.TickerRow, year int) (models.PieChart, error) {
	t, ok := findYear(tech, year)
	if !ok {
		return models.PieChart{}, fmt.Errorf("%s %d: %w", DatasetTech, year, ErrYearNotFound)
	}
	o, ok := findYear(other, year)
	if !ok {
		return models.PieChart{}, fmt.Errorf("%s %d: %w", DatasetOther, year, ErrYearNotFound)
	}

	total := t.MarketCap + o.MarketCap
	percent := func(v float64) float64 {
		if total == 0 {
			return 0
		}
		return v / total * 100
	}
	return models.PieChart{
		Year:  year,
		Total: total,
		Slices: []models.PieSlice{
			{Label: "Tech", Value: t.MarketCap, Percent: percent(t.MarketCap)},
			{Label: "Other", Value: o.MarketCap, Percent: percent(o.MarketCap)},
		},
	}, nil
}

func findYear(rows []models.TickerRow, year int) (models.TickerRow, bool) {
	for _, r := range rows {
		if r.Year == year {
			return r, true
		}
	}
	return models.TickerRow{}, false
}

func sortedRows(rows []models.TickerRow) []models.TickerRow {
	out := append([]models.TickerRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
