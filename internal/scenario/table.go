package scenario

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Table is a finite source adapting the rows of a tabular dataset.
// Each row becomes one scenario keyed by column name; empty cells are absent keys.
type Table struct {
	header []string
	rows   []Scenario
}

// NewTable builds a table from numeric rows
func NewTable(header []string, rows [][]float64) (*Table, error) {
	if err := checkHeader(header); err != nil {
		return nil, err
	}
	t := &Table{header: append([]string(nil), header...)}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.InvalidArgument(fmt.Sprintf("row %d has %d values, header has %d", i, len(row), len(header)))
		}
		values := make(map[string]float64, len(header))
		for j, key := range header {
			values[key] = row[j]
		}
		t.rows = append(t.rows, Scenario{Seq: i, values: values})
	}
	return t, nil
}

func checkHeader(header []string) error {
	if len(header) == 0 {
		return errors.InvalidArgument("scenario table has no header")
	}
	seen := make(map[string]bool, len(header))
	for i, key := range header {
		if key == "" {
			return errors.InvalidArgument(fmt.Sprintf("scenario table column %d has no name", i))
		}
		if seen[key] {
			return errors.InvalidArgument(fmt.Sprintf("scenario table column %q is duplicated", key))
		}
		seen[key] = true
	}
	return nil
}

func tableFromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.InvalidArgument("scenario table is empty")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	t := &Table{header: header}
	for i, record := range records[1:] {
		if len(record) > len(header) {
			return nil, errors.InvalidArgument(fmt.Sprintf("row %d has %d cells, header has %d", i, len(record), len(header)))
		}
		values := make(map[string]float64, len(header))
		for j, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.InvalidArgument(fmt.Sprintf("row %d column %q: %q is not a number", i, header[j], cell))
			}
			values[header[j]] = v
		}
		t.rows = append(t.rows, Scenario{Seq: i, values: values})
	}
	return t, nil
}

// ReadCSV reads a delimited table whose first record is the header
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithType(err, errors.ErrorTypeInvalidArgument)
	}
	return tableFromRecords(records)
}

// ReadXLSX reads a spreadsheet. An empty sheet name selects the first sheet.
func ReadXLSX(path string, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open spreadsheet %s", path)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidArgument("spreadsheet has no sheets: " + path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheet)
	}
	return tableFromRecords(rows)
}

// FromFile loads a scenario table, choosing the format from the file extension
func FromFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open scenario file %s", path)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path, "")
	default:
		return nil, errors.InvalidArgument("unsupported scenario file format: " + path)
	}
}

// Header returns the column names
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Len implements Finite
func (t *Table) Len() int {
	return len(t.rows)
}

// Scenarios implements Source
func (t *Table) Scenarios() Iterator {
	return Slice(t.rows).Scenarios()
}
