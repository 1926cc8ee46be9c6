package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/covidanalytics/ventdash/internal/allocation"
	"github.com/covidanalytics/ventdash/internal/scenario"
)

// Sheet names of the exported workbooks
const (
	TransfersSheet  = "Transfers"
	ComparisonSheet = "Shortage"
)

// ContentType is the media type of the workbooks written here
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteTransferTable writes table as a single-sheet workbook with an
// Origin, Destination, Units header
func WriteTransferTable(w io.Writer, table allocation.TransferTable) error {
	rows := make([][]interface{}, 0, len(table.Rows))
	for _, r := range table.Rows {
		rows = append(rows, []interface{}{r.Origin, r.Destination, r.Units})
	}
	return writeSheet(w, TransfersSheet, []string{"Origin", "Destination", "Units"}, rows)
}

// WriteComparison writes series as Date, baseline and optimized columns.
// The value headers are the series labels.
func WriteComparison(w io.Writer, series allocation.ComparisonSeries) error {
	rows := make([][]interface{}, 0, len(series.Points))
	for _, p := range series.Points {
		rows = append(rows, []interface{}{p.Date.Format(scenario.DateLayout), p.Baseline, p.Optimized})
	}
	headers := []string{"Date", series.BaselineLabel, series.OptimizedLabel}
	return writeSheet(w, ComparisonSheet, headers, rows)
}

func writeSheet(w io.Writer, sheet string, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "C", 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
