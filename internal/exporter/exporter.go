// Package exporter writes stacked series and drill-down details as CSV or XLSX so
// an external renderer can consume them.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/stack"
)

var (
	stackHeader  = []string{"year", "category", "y0", "y1", "value"}
	totalsHeader = []string{"year", "top"}
	detailHeader = []string{"year", "category", "name", "metric", "y0", "y1", "pixel_y0", "pixel_y1", "synthetic"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stackRows(series models.StackedSeries) [][]string {
	var rows [][]string
	for j := range series.Years {
		for _, layer := range series.Layers {
			seg := layer.Segments[j]
			rows = append(rows, []string{
				strconv.Itoa(seg.Year),
				string(layer.Category),
				formatFloat(seg.Y0),
				formatFloat(seg.Y1),
				formatFloat(seg.Height()),
			})
		}
	}
	return rows
}

func detailRows(detail models.DetailSeries) [][]string {
	rows := make([][]string, 0, len(detail.Entries))
	for _, e := range detail.Entries {
		rows = append(rows, []string{
			strconv.Itoa(detail.Key.Year),
			string(detail.Key.Category),
			e.Name,
			formatFloat(e.Metric),
			formatFloat(e.Y0),
			formatFloat(e.Y1),
			formatFloat(e.PixelY0),
			formatFloat(e.PixelY1),
			strconv.FormatBool(e.Synthetic),
		})
	}
	return rows
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteStackCSV writes one row per (year, category) segment, years ascending and
// layers in stacking order.
func WriteStackCSV(w io.Writer, series models.StackedSeries) error {
	return writeCSV(w, stackHeader, stackRows(series))
}

// WriteDetailCSV writes the drill-down entries in stacking order.
func WriteDetailCSV(w io.Writer, detail models.DetailSeries) error {
	return writeCSV(w, detailHeader, detailRows(detail))
}

// Sheet names of the workbook.
const (
	StackSheet  = "stack"
	TotalsSheet = "totals"
	DetailSheet = "detail"
)

// WriteWorkbook saves an XLSX file with a stack sheet, a totals sheet holding the
// top of the stack per year and, when detail is not nil, a detail sheet. Numeric
// columns are written as numbers.
func WriteWorkbook(path string, series models.StackedSeries, detail *models.DetailSeries) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StackSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeSheet(f, StackSheet, stackHeader, stackCells(series)); err != nil {
		return err
	}

	if _, err := f.NewSheet(TotalsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := writeSheet(f, TotalsSheet, totalsHeader, totalsCells(series)); err != nil {
		return err
	}

	if detail != nil {
		if _, err := f.NewSheet(DetailSheet); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := writeSheet(f, DetailSheet, detailHeader, detailCells(*detail)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]interface{}) error {
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func stackCells(series models.StackedSeries) [][]interface{} {
	var rows [][]interface{}
	for j := range series.Years {
		for _, layer := range series.Layers {
			seg := layer.Segments[j]
			rows = append(rows, []interface{}{seg.Year, string(layer.Category), seg.Y0, seg.Y1, seg.Height()})
		}
	}
	return rows
}

func totalsCells(series models.StackedSeries) [][]interface{} {
	totals := stack.Totals(series)
	rows := make([][]interface{}, 0, len(series.Years))
	for _, year := range series.Years {
		rows = append(rows, []interface{}{year, totals[year]})
	}
	return rows
}

func detailCells(detail models.DetailSeries) [][]interface{} {
	rows := make([][]interface{}, 0, len(detail.Entries))
	for _, e := range detail.Entries {
		rows = append(rows, []interface{}{
			detail.Key.Year, string(detail.Key.Category), e.Name, e.Metric,
			e.Y0, e.Y1, e.PixelY0, e.PixelY1, e.Synthetic,
		})
	}
	return rows
}
