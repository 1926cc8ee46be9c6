package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covidanalytics/ventdash/internal/scenario"
)

var (
	supplyColumns   = []string{"date", "state", "param1", "param2", "param3", "shortage"}
	transferColumns = []string{"date", "param1", "param2", "param3", "state_from", "state_to", "num_units"}
	baselineColumns = []string{"date", "state", "shortage"}
)

// header maps lower-cased column names to their index
type header map[string]int

func readHeader(r *csv.Reader, required []string) (header, []string, error) {
	names, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("table is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	h := make(header, len(names))
	for i, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("header missing columns %v, got %v", missing, names)
	}

	return h, names, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}

// eachRow reads data rows and hands them to fn with their 1-based file line
func eachRow(r *csv.Reader, width int, fn func(row int, record []string) error) error {
	row := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		row++
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		if len(record) < width {
			return fmt.Errorf("row %d: expected %d columns, got %d", row, width, len(record))
		}
		if err := fn(row, record); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
	}
}

// ParseSupplies reads a state supplies table
func ParseSupplies(r io.Reader, layout string) ([]scenario.SupplyRecord, error) {
	reader := newReader(r)
	h, names, err := readHeader(reader, supplyColumns)
	if err != nil {
		return nil, err
	}

	var rows []scenario.SupplyRecord
	err = eachRow(reader, len(names), func(_ int, rec []string) error {
		date, err := parseDateCell(layout, rec[h["date"]])
		if err != nil {
			return err
		}
		params, err := parseParamCells(h, rec)
		if err != nil {
			return err
		}
		shortage, err := parseCount("Shortage", rec[h["shortage"]])
		if err != nil {
			return err
		}

		fields := make(map[string]string, len(names)-len(supplyColumns))
		for i, name := range names {
			if contains(supplyColumns, strings.ToLower(strings.TrimSpace(name))) || strings.TrimSpace(name) == "" {
				continue
			}
			fields[name] = rec[i]
		}

		rows = append(rows, scenario.SupplyRecord{
			State:    strings.TrimSpace(rec[h["state"]]),
			Date:     date,
			Params:   params,
			Shortage: shortage,
			Fields:   fields,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// ParseTransfers reads a state transfers table
func ParseTransfers(r io.Reader, layout string) ([]scenario.TransferRecord, error) {
	reader := newReader(r)
	h, names, err := readHeader(reader, transferColumns)
	if err != nil {
		return nil, err
	}

	var rows []scenario.TransferRecord
	err = eachRow(reader, len(names), func(_ int, rec []string) error {
		date, err := parseDateCell(layout, rec[h["date"]])
		if err != nil {
			return err
		}
		params, err := parseParamCells(h, rec)
		if err != nil {
			return err
		}
		units, err := parseCount("Num_Units", rec[h["num_units"]])
		if err != nil {
			return err
		}

		rows = append(rows, scenario.TransferRecord{
			Date:   date,
			Params: params,
			From:   strings.TrimSpace(rec[h["state_from"]]),
			To:     strings.TrimSpace(rec[h["state_to"]]),
			Units:  units,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// ParseBaseline reads a pre-optimization projections table
func ParseBaseline(r io.Reader, layout string) ([]scenario.BaselineRecord, error) {
	reader := newReader(r)
	h, names, err := readHeader(reader, baselineColumns)
	if err != nil {
		return nil, err
	}

	var rows []scenario.BaselineRecord
	err = eachRow(reader, len(names), func(_ int, rec []string) error {
		date, err := parseDateCell(layout, rec[h["date"]])
		if err != nil {
			return err
		}
		shortage, err := parseCount("Shortage", rec[h["shortage"]])
		if err != nil {
			return err
		}

		rows = append(rows, scenario.BaselineRecord{
			State:    strings.TrimSpace(rec[h["state"]]),
			Date:     date,
			Shortage: shortage,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// parseDateCell parses a date with the fixed layout. A trailing time of day
// ("2020-04-01 00:00:00") is discarded.
func parseDateCell(layout, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(layout) {
		if c := s[len(layout)]; c == ' ' || c == 'T' {
			s = s[:len(layout)]
		}
	}
	d, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid Date %q (expected %s)", s, layout)
	}
	return scenario.Day(d), nil
}

func parseParamCells(h header, rec []string) (scenario.Params, error) {
	return scenario.ParseParams(rec[h["param1"]], rec[h["param2"]], rec[h["param3"]])
}

// parseCount parses an integer or decimal cell, rounding half away from zero
func parseCount(column, s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", column, s)
	}
	return d.Round(0).IntPart(), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
