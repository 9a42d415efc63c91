package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/wealthstack/internal/logger"
	"github.com/rewired-gh/wealthstack/internal/metrics"
	"github.com/rewired-gh/wealthstack/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Batch is the result of reading one dataset.
type Batch struct {
	Records  []models.Record
	Dropped  int // malformed rows, logged as warnings
	Filtered int // rows outside the dataset predicate
}

// Normalizer reads whole datasets with a fixed set of rules.
type Normalizer struct {
	dataset string
	rules   Rules
	metrics *metrics.Metrics
}

// NewNormalizer creates a Normalizer. dataset labels log lines and metrics;
// m may be nil.
func NewNormalizer(dataset string, rules Rules, m *metrics.Metrics) *Normalizer {
	return &Normalizer{dataset: dataset, rules: rules, metrics: m}
}

// ReadCSV reads a CSV stream with a header row. Extra columns are ignored; the
// year and metric columns are required.
func (n *Normalizer) ReadCSV(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	return n.consume(header, func() ([]string, error) {
		row, err := reader.Read()
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &ParseError{Column: "*", Value: "", Err: err}
		}
		return row, err
	})
}

// ReadXLSX reads the first sheet of a workbook with the same contract as ReadCSV.
func (n *Normalizer) ReadXLSX(path string) (*Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheets[0])
	}

	next := 1
	return n.consume(rows[0], func() ([]string, error) {
		if next >= len(rows) {
			return nil, io.EOF
		}
		row := rows[next]
		next++
		return row, nil
	})
}

func (n *Normalizer) consume(header []string, next func() ([]string, error)) (*Batch, error) {
	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
		present[columns[i]] = true
	}
	for _, required := range []string{n.rules.YearColumn, n.rules.MetricColumn} {
		if !present[required] {
			return nil, fmt.Errorf("dataset %s: missing required column %q", n.dataset, required)
		}
	}

	batch := &Batch{Records: []models.Record{}}
	line := 1
	for {
		fields, err := next()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				n.drop(batch, line, err)
				continue
			}
			return nil, fmt.Errorf("dataset %s: failed to read line %d: %w", n.dataset, line, err)
		}

		row := make(map[string]string, len(columns))
		for i, value := range fields {
			if i < len(columns) {
				row[columns[i]] = value
			}
		}

		rec, err := n.rules.Row(row)
		switch {
		case errors.Is(err, ErrFiltered):
			batch.Filtered++
		case err != nil:
			n.drop(batch, line, err)
		default:
			batch.Records = append(batch.Records, rec)
		}
	}

	if n.metrics != nil {
		n.metrics.RowsParsed.WithLabelValues(n.dataset).Add(float64(len(batch.Records)))
		n.metrics.RowsFiltered.WithLabelValues(n.dataset).Add(float64(batch.Filtered))
	}
	logger.Debug("Dataset %s: %d records, %d dropped, %d filtered",
		n.dataset, len(batch.Records), batch.Dropped, batch.Filtered)
	return batch, nil
}

func (n *Normalizer) drop(batch *Batch, line int, err error) {
	batch.Dropped++
	if n.metrics != nil {
		n.metrics.RowsDropped.WithLabelValues(n.dataset).Inc()
	}
	logger.Warn("Dataset %s: dropping line %d: %v", n.dataset, line, err)
}

// ReadTickerCSV reads a market-cap dataset with columns Year, MC and an optional
// change column. Rows with an unparseable or out-of-range year, or an unparseable
// or negative market cap, are dropped and counted; the result is sorted by year.
func ReadTickerCSV(r io.Reader) ([]models.TickerRow, int, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	yearCol, mcCol, changeCol := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "Year":
			yearCol = i
		case "MC":
			mcCol = i
		case "change":
			changeCol = i
		}
	}
	if yearCol == -1 || mcCol == -1 {
		return nil, 0, errors.New("ticker CSV must have Year and MC columns")
	}

	var rows []models.TickerRow
	dropped := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}
		if yearCol >= len(fields) || mcCol >= len(fields) {
			dropped++
			continue
		}
		year, err := ParseYear(fields[yearCol])
		if err != nil {
			dropped++
			continue
		}
		mc, err := ParseMetric(fields[mcCol])
		if err != nil {
			dropped++
			continue
		}
		row := models.TickerRow{Year: year, MarketCap: mc}
		if err := row.Validate(); err != nil {
			dropped++
			continue
		}
		if changeCol != -1 && changeCol < len(fields) {
			if change, err := ParseMetric(fields[changeCol]); err == nil {
				row.Change = &change
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return rows, dropped, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
