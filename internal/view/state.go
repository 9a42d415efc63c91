// Package view holds the immutable view state and the event loop that owns it.
//
// A State is a complete snapshot of what the charts show: the stacked series for
// the current mode, the drill-down detail if a bar is selected, the market line
// chart and the share chart. Transitions are pure methods returning a new State
// with a fresh ID; the receiver is never modified. The Shell applies events one
// at a time and publishes the result.
package view

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rewired-gh/wealthstack/internal/aggregate"
	"github.com/rewired-gh/wealthstack/internal/drilldown"
	"github.com/rewired-gh/wealthstack/internal/layout"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/series"
	"github.com/rewired-gh/wealthstack/internal/stack"
)

// ErrUnknownBar is returned when a selection names a bar that is not drawn.
var ErrUnknownBar = errors.New("no bar for selection")

// Scope names the chart a load failure applies to.
type Scope string

const (
	ScopeStack  Scope = "stack"
	ScopeMarket Scope = "market"
	ScopePie    Scope = "pie"
)

// Options are fixed for the lifetime of a state chain.
type Options struct {
	Order []models.Category
	TopK  int
	Frame layout.Frame
}

// DefaultOptions matches the billionaires chart.
func DefaultOptions() Options {
	return Options{Order: stack.DefaultOrder(), TopK: 7, Frame: layout.DefaultFrame()}
}

// MarketView is the selected ticker chart.
type MarketView struct {
	Ticker string           `json:"ticker"`
	Metric series.Metric    `json:"metric"`
	Chart  models.LineChart `json:"chart"`
}

// PieView is the share chart for the selected year.
type PieView struct {
	Year  int             `json:"year"`
	Chart models.PieChart `json:"chart"`
}

// LoadFailure records a dataset that could not be loaded.
type LoadFailure struct {
	Scope   Scope  `json:"scope"`
	Message string `json:"message"`
}

// State is one immutable view snapshot.
type State struct {
	ID        uuid.UUID            `json:"id"`
	Mode      models.Mode          `json:"mode"`
	Stack     models.StackedSeries `json:"stack"`
	Selection *models.GroupKey     `json:"selection,omitempty"`
	Detail    *models.DetailSeries `json:"detail,omitempty"`
	Market    *MarketView          `json:"market,omitempty"`
	Pie       *PieView             `json:"pie,omitempty"`
	Failures  []LoadFailure        `json:"failures,omitempty"`

	records []models.Record
	buckets map[models.GroupKey]models.Bucket
	opts    Options
}

// Initial aggregates and stacks records. A nil record set is a valid, empty view.
func Initial(records []models.Record, mode models.Mode, opts Options) State {
	buckets := aggregate.Aggregate(records, aggregate.ByYearCategory, aggregate.NetWorth)
	return State{
		ID:      uuid.New(),
		Mode:    mode,
		Stack:   stack.Stack(buckets, opts.Order, mode),
		records: records,
		buckets: buckets,
		opts:    opts,
	}
}

// InDrillDown reports whether a bar is selected.
func (s State) InDrillDown() bool {
	return s.Detail != nil
}

// Buckets returns the aggregated buckets behind the stack.
func (s State) Buckets() map[models.GroupKey]models.Bucket {
	return s.buckets
}

// Bars places the current stack in the configured frame.
func (s State) Bars() []layout.Bar {
	return layout.Bars(s.Stack, s.opts.Frame)
}

func (s State) next() State {
	s.ID = uuid.New()
	return s
}

// WithMode restacks in the given mode. Pixel spans change with the mode, so an
// open drill-down is closed.
func (s State) WithMode(mode models.Mode) State {
	n := s.next()
	n.Mode = mode
	n.Stack = stack.Stack(s.buckets, s.opts.Order, mode)
	n.Selection = nil
	n.Detail = nil
	return n
}

// Select enters the drill-down view for key. Selecting the bar that is already
// selected returns to the aggregate view. A nil span uses the bar's own extent.
func (s State) Select(key models.GroupKey, span *models.Span) (State, error) {
	if s.Selection != nil && *s.Selection == key {
		return s.Reset(), nil
	}

	bar, ok := layout.Find(s.Bars(), key)
	if !ok {
		return s, fmt.Errorf("%s: %w", key, ErrUnknownBar)
	}
	target := bar.Rect.Span()
	if span != nil {
		target = *span
	}

	detail, err := drilldown.Select(s.records, key, s.opts.TopK, target)
	if err != nil {
		return s, err
	}

	n := s.next()
	n.Selection = &key
	n.Detail = &detail
	return n, nil
}

// Reset returns to the aggregate view.
func (s State) Reset() State {
	n := s.next()
	n.Selection = nil
	n.Detail = nil
	return n
}

// WithMarket shows a ticker chart and clears an earlier market failure.
func (s State) WithMarket(ticker string, metric series.Metric, chart models.LineChart) State {
	n := s.next()
	n.Market = &MarketView{Ticker: ticker, Metric: metric, Chart: chart}
	n.Failures = without(s.Failures, ScopeMarket)
	return n
}

// WithPie shows the share chart for a year and clears an earlier pie failure.
func (s State) WithPie(year int, chart models.PieChart) State {
	n := s.next()
	n.Pie = &PieView{Year: year, Chart: chart}
	n.Failures = without(s.Failures, ScopePie)
	return n
}

// WithLoadFailure empties the chart of the given scope and records why.
func (s State) WithLoadFailure(scope Scope, err error) State {
	n := s.next()
	switch scope {
	case ScopeStack:
		n.Stack = stack.Stack(nil, s.opts.Order, s.Mode)
		n.records = nil
		n.buckets = map[models.GroupKey]models.Bucket{}
		n.Selection = nil
		n.Detail = nil
	case ScopeMarket:
		n.Market = nil
	case ScopePie:
		n.Pie = nil
	}
	n.Failures = append(without(s.Failures, scope), LoadFailure{Scope: scope, Message: err.Error()})
	return n
}

// Failure returns the recorded failure for scope, if any.
func (s State) Failure(scope Scope) (LoadFailure, bool) {
	for _, f := range s.Failures {
		if f.Scope == scope {
			return f, true
		}
	}
	return LoadFailure{}, false
}

func without(failures []LoadFailure, scope Scope) []LoadFailure {
	out := make([]LoadFailure, 0, len(failures))
	for _, f := range failures {
		if f.Scope != scope {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
