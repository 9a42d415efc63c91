package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/wealthstack/internal/ingest"
	"github.com/rewired-gh/wealthstack/internal/logger"
	"github.com/rewired-gh/wealthstack/internal/metrics"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/series"
)

// BillionairesDataset names the record dataset in the store.
const BillionairesDataset = "billionaires"

// Sink receives loaded datasets. Delete drops a dataset whose reload failed, so a
// copy cached by an earlier run is never served in its place.
type Sink interface {
	PutRecords(ctx context.Context, dataset string, records []models.Record) error
	PutTickerRows(ctx context.Context, dataset string, rows []models.TickerRow) error
	Delete(ctx context.Context, dataset string) error
}

// Plan lists what to load.
type Plan struct {
	Billionaires string   // path or URL of the billionaires CSV/XLSX
	MarketDir    string   // directory or base URL holding TECH.csv, OTHER.csv and ticker files
	Tickers      []string // ticker selections such as "$AAPL"
}

// Result holds what loaded. Failed datasets are absent from Records/Tickers and
// present in Failed.
type Result struct {
	Records []models.Record
	Tickers map[string][]models.TickerRow
	Failed  map[string]error
}

// Loader reads datasets through a Fetcher and stores them in a Sink.
type Loader struct {
	fetcher *Fetcher
	rules   ingest.Rules
	sink    Sink
	metrics *metrics.Metrics
	limit   int
}

// NewLoader creates a Loader. m may be nil.
func NewLoader(fetcher *Fetcher, rules ingest.Rules, sink Sink, m *metrics.Metrics) *Loader {
	return &Loader{fetcher: fetcher, rules: rules, sink: sink, metrics: m, limit: 4}
}

// LoadRecords reads and normalizes the billionaires dataset. Local .xlsx files go
// through the workbook reader.
func (l *Loader) LoadRecords(ctx context.Context, location string) ([]models.Record, error) {
	normalizer := ingest.NewNormalizer(BillionairesDataset, l.rules, l.metrics)

	var batch *ingest.Batch
	var err error
	if !IsRemote(location) && strings.EqualFold(filepath.Ext(location), ".xlsx") {
		batch, err = normalizer.ReadXLSX(location)
	} else {
		rc, openErr := l.fetcher.Open(ctx, location)
		if openErr != nil {
			return nil, openErr
		}
		defer rc.Close()
		batch, err = normalizer.ReadCSV(rc)
	}
	if err != nil {
		return nil, err
	}

	if err := l.sink.PutRecords(ctx, BillionairesDataset, batch.Records); err != nil {
		return nil, err
	}
	logger.Info("Loaded %d records from %s (%d dropped, %d filtered)",
		len(batch.Records), location, batch.Dropped, batch.Filtered)
	return batch.Records, nil
}

// LoadTicker reads one market-cap dataset and stores it under its dataset name.
func (l *Loader) LoadTicker(ctx context.Context, location, dataset string) ([]models.TickerRow, error) {
	rc, err := l.fetcher.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rows, dropped, err := ingest.ReadTickerCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	if dropped > 0 {
		logger.Warn("Dataset %s: dropped %d malformed rows", dataset, dropped)
		if l.metrics != nil {
			l.metrics.RowsDropped.WithLabelValues(dataset).Add(float64(dropped))
		}
	}
	if l.metrics != nil {
		l.metrics.RowsParsed.WithLabelValues(dataset).Add(float64(len(rows)))
	}

	if err := l.sink.PutTickerRows(ctx, dataset, rows); err != nil {
		return nil, err
	}
	logger.Debug("Loaded %d rows for %s", len(rows), dataset)
	return rows, nil
}

// LoadAll loads every dataset of the plan concurrently. A dataset that fails is
// logged once and left out; the others still load. Only a cancelled context is an
// error.
func (l *Loader) LoadAll(ctx context.Context, plan Plan) (*Result, error) {
	res := &Result{
		Tickers: make(map[string][]models.TickerRow),
		Failed:  make(map[string]error),
	}
	var mu sync.Mutex
	fail := func(dataset string, err error) {
		logger.Error("Failed to load dataset %s: %v", dataset, err)
		if l.metrics != nil {
			l.metrics.LoadFailures.WithLabelValues(dataset).Inc()
		}
		if derr := l.sink.Delete(context.WithoutCancel(ctx), dataset); derr != nil {
			logger.Warn("Failed to clear cached dataset %s: %v", dataset, derr)
		}
		mu.Lock()
		res.Failed[dataset] = err
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(l.limit)

	if plan.Billionaires != "" {
		g.Go(func() error {
			records, err := l.LoadRecords(ctx, plan.Billionaires)
			if err != nil {
				fail(BillionairesDataset, err)
				return nil
			}
			mu.Lock()
			res.Records = records
			mu.Unlock()
			return nil
		})
	}

	for _, file := range marketFiles(plan.Tickers) {
		dataset := series.DatasetName(file)
		location := Join(plan.MarketDir, file)
		g.Go(func() error {
			rows, err := l.LoadTicker(ctx, location, dataset)
			if err != nil {
				fail(dataset, err)
				return nil
			}
			mu.Lock()
			res.Tickers[dataset] = rows
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// marketFiles returns TECH.csv, OTHER.csv and the file of every ticker, deduplicated.
func marketFiles(tickers []string) []string {
	seen := map[string]bool{}
	var files []string
	for _, selection := range append([]string{series.TickerTech, series.TickerOther}, tickers...) {
		file, single := series.TickerFile(selection)
		if !single || seen[file] {
			continue
		}
		seen[file] = true
		files = append(files, file)
	}
	return files
}
