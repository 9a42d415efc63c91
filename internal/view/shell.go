package view

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rewired-gh/wealthstack/internal/logger"
	"github.com/rewired-gh/wealthstack/internal/metrics"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/series"
)

// ErrStopped is returned by Send once the shell is no longer running.
var ErrStopped = errors.New("view shell stopped")

// Catalog resolves market datasets by name (TECH, OTHER, AAPL, ...).
type Catalog interface {
	TickerRows(ctx context.Context, dataset string) ([]models.TickerRow, error)
}

// Event is a user interaction.
type Event interface {
	Kind() string
}

// ModeChanged switches between raw and normalized stacking.
type ModeChanged struct{ Mode models.Mode }

// BarClicked selects a bar. Span overrides the bar's own pixel extent.
type BarClicked struct {
	Key  models.GroupKey
	Span *models.Span
}

// BackgroundClicked leaves the drill-down view.
type BackgroundClicked struct{}

// TickerChanged selects the ticker and metric of the line chart.
type TickerChanged struct {
	Ticker string
	Metric series.Metric
}

// YearChanged selects the year of the share chart.
type YearChanged struct{ Year int }

func (ModeChanged) Kind() string       { return "mode" }
func (BarClicked) Kind() string        { return "select" }
func (BackgroundClicked) Kind() string { return "reset" }
func (TickerChanged) Kind() string     { return "ticker" }
func (YearChanged) Kind() string       { return "year" }

type envelope struct {
	ctx   context.Context
	event Event
	reply chan result
}

type result struct {
	state State
	err   error
}

// Shell owns the current State. Events are applied strictly one after another by
// Run; Current may be called from any goroutine.
type Shell struct {
	events  chan envelope
	current atomic.Pointer[State]
	catalog Catalog
	metrics *metrics.Metrics
	done    chan struct{}
}

// NewShell creates a shell starting from initial. m may be nil.
func NewShell(initial State, catalog Catalog, m *metrics.Metrics) *Shell {
	s := &Shell{
		events:  make(chan envelope),
		catalog: catalog,
		metrics: m,
		done:    make(chan struct{}),
	}
	s.current.Store(&initial)
	return s
}

// Current returns the latest published state.
func (s *Shell) Current() State {
	return *s.current.Load()
}

// Run applies events until ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("View shell stopped")
			return ctx.Err()
		case env := <-s.events:
			next, err := s.apply(env.ctx, s.Current(), env.event)
			if err == nil {
				s.current.Store(&next)
				if s.metrics != nil {
					s.metrics.Transitions.WithLabelValues(env.event.Kind()).Inc()
				}
			}
			env.reply <- result{state: next, err: err}
		}
	}
}

// Send delivers an event and waits for the resulting state. An error means the
// event was rejected and the current state is unchanged; load failures are not
// errors but part of the returned state.
func (s *Shell) Send(ctx context.Context, ev Event) (State, error) {
	env := envelope{ctx: ctx, event: ev, reply: make(chan result, 1)}
	select {
	case s.events <- env:
	case <-s.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r.state, r.err
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (s *Shell) apply(ctx context.Context, cur State, ev Event) (State, error) {
	switch e := ev.(type) {
	case ModeChanged:
		mode, err := models.ParseMode(string(e.Mode))
		if err != nil {
			return cur, err
		}
		return cur.WithMode(mode), nil
	case BarClicked:
		return cur.Select(e.Key, e.Span)
	case BackgroundClicked:
		return cur.Reset(), nil
	case TickerChanged:
		return s.market(ctx, cur, e), nil
	case YearChanged:
		return s.pie(ctx, cur, e.Year), nil
	}
	return cur, fmt.Errorf("unknown event %T", ev)
}

func (s *Shell) market(ctx context.Context, cur State, e TickerChanged) State {
	file, single := series.TickerFile(e.Ticker)
	if !single {
		tech, other, dataset, err := s.industries(ctx)
		if err != nil {
			return s.fail(cur, ScopeMarket, dataset, err)
		}
		return cur.WithMarket(e.Ticker, series.MetricMarketCap, series.Compare(tech, other))
	}

	dataset := series.DatasetName(file)
	rows, err := s.catalog.TickerRows(ctx, dataset)
	if err != nil {
		return s.fail(cur, ScopeMarket, dataset, err)
	}
	return cur.WithMarket(e.Ticker, e.Metric, series.Line(e.Ticker, rows, e.Metric))
}

func (s *Shell) pie(ctx context.Context, cur State, year int) State {
	tech, other, dataset, err := s.industries(ctx)
	if err != nil {
		return s.fail(cur, ScopePie, dataset, err)
	}
	chart, err := series.Pie(tech, other, year)
	if err != nil {
		logger.Error("Failed to build pie chart: %v", err)
		return cur.WithLoadFailure(ScopePie, err)
	}
	return cur.WithPie(year, chart)
}

// industries loads TECH and OTHER. On failure it names the dataset that failed.
func (s *Shell) industries(ctx context.Context) ([]models.TickerRow, []models.TickerRow, string, error) {
	tech, err := s.catalog.TickerRows(ctx, series.DatasetTech)
	if err != nil {
		return nil, nil, series.DatasetTech, err
	}
	other, err := s.catalog.TickerRows(ctx, series.DatasetOther)
	if err != nil {
		return nil, nil, series.DatasetOther, err
	}
	return tech, other, "", nil
}

func (s *Shell) fail(cur State, scope Scope, dataset string, err error) State {
	err = fmt.Errorf("dataset %s: %w", dataset, err)
	logger.Error("Failed to load %s chart: %v", scope, err)
	if s.metrics != nil {
		s.metrics.LoadFailures.WithLabelValues(dataset).Inc()
	}
	return cur.WithLoadFailure(scope, err)
}
