package telegram

import (
	"github.com/rewired-gh/wealthstack/internal/aggregate"
	"github.com/rewired-gh/wealthstack/internal/drilldown"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/stack"
)

// Share is one category's part of a year.
type Share struct {
	Category models.Category
	Value    float64
	Percent  float64
}

// Digest summarizes the latest year of a record set.
type Digest struct {
	Year        int
	Total       float64
	Shares      []Share
	TopCategory models.Category
	Top         []models.DetailEntry // largest first, Others last
}

// BuildDigest summarizes the latest year in records. Top lists the k largest
// contributors of category. An empty record set gives an empty digest.
func BuildDigest(records []models.Record, category models.Category, k int) (Digest, error) {
	buckets := aggregate.Aggregate(records, aggregate.ByYearCategory, aggregate.NetWorth)
	years := aggregate.Years(buckets)
	if len(years) == 0 {
		return Digest{}, nil
	}
	year := years[len(years)-1]
	total := aggregate.YearTotals(buckets)[year]

	d := Digest{Year: year, Total: total, TopCategory: category}
	for _, c := range stack.DefaultOrder() {
		v := buckets[models.GroupKey{Year: year, Category: c}].Total
		s := Share{Category: c, Value: v}
		if total != 0 {
			s.Percent = v / total * 100
		}
		d.Shares = append(d.Shares, s)
	}

	detail, err := drilldown.Select(records, models.GroupKey{Year: year, Category: category}, k, models.Span{})
	if err != nil {
		return Digest{}, err
	}
	for i := len(detail.Entries) - 1; i >= 0; i-- {
		e := detail.Entries[i]
		if !e.Synthetic {
			d.Top = append(d.Top, e)
		}
	}
	for _, e := range detail.Entries {
		if e.Synthetic {
			d.Top = append(d.Top, e)
		}
	}
	return d, nil
}
