// Package dataset provides the in-memory ordered tabular value passed between
// workflow blocks: named columns, ordered rows, nil cells for missing values.
// Every operation returns a new dataset; blocks never see shared mutable state.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var ErrColumnLengthMismatch = errors.New("column length does not match row count")

type Dataset struct {
	columns []string
	rows    [][]any
}

// New builds a dataset from column names and row-major cells. Rows shorter
// than the header are padded with nil.
func New(columns []string, rows [][]any) *Dataset {
	normalized := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(columns))
		copy(cells, row)
		normalized[i] = cells
	}

	return &Dataset{
		columns: append([]string(nil), columns...),
		rows:    normalized,
	}
}

// FromCSV reads a header row plus data rows. Empty cells become nil.
func FromCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}

	columns := append([]string(nil), records[0]...)
	rows := make([][]any, 0, len(records)-1)

	for _, record := range records[1:] {
		cells := make([]any, len(columns))

		for i := range columns {
			if i < len(record) && record[i] != "" {
				cells[i] = record[i]
			}
		}

		rows = append(rows, cells)
	}

	return &Dataset{columns: columns, rows: rows}, nil
}

// ToCSV writes the dataset with a header row and no index column. Nil cells
// become empty fields.
func (d *Dataset) ToCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(d.columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(d.columns))

	for _, row := range d.rows {
		for i, cell := range row {
			record[i] = CellString(cell)
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

// Bytes renders the dataset as CSV bytes.
func (d *Dataset) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.ToCSV(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (d *Dataset) Len() int {
	return len(d.rows)
}

func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Row returns row i as a column-name → value mapping.
func (d *Dataset) Row(i int) map[string]any {
	row := make(map[string]any, len(d.columns))
	for c, name := range d.columns {
		row[name] = d.rows[i][c]
	}

	return row
}

// Cell returns the value at (row, column); ok is false for unknown columns.
func (d *Dataset) Cell(row int, column string) (any, bool) {
	for c, name := range d.columns {
		if name == column {
			return d.rows[row][c], true
		}
	}

	return nil, false
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(column string) bool {
	for _, name := range d.columns {
		if name == column {
			return true
		}
	}

	return false
}

// Head returns a copy of the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n > len(d.rows) {
		n = len(d.rows)
	}

	return New(d.columns, d.rows[:n])
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	return New(d.columns, d.rows)
}

// FilterRows keeps rows where mask is true, preserving source order and
// renumbering contiguously. The input dataset is left untouched.
func (d *Dataset) FilterRows(mask []bool) *Dataset {
	kept := make([][]any, 0, len(d.rows))

	for i, row := range d.rows {
		if i < len(mask) && mask[i] {
			kept = append(kept, row)
		}
	}

	return New(d.columns, kept)
}

// WithColumn returns a new dataset with the named column set to the given
// row-aligned values, replacing an existing column of the same name.
func (d *Dataset) WithColumn(name string, values []any) (*Dataset, error) {
	if len(values) != len(d.rows) {
		return nil, fmt.Errorf("%w: column %q has %d values for %d rows",
			ErrColumnLengthMismatch, name, len(values), len(d.rows))
	}

	existing := -1

	for c, col := range d.columns {
		if col == name {
			existing = c

			break
		}
	}

	clone := d.Clone()

	if existing >= 0 {
		for i := range clone.rows {
			clone.rows[i][existing] = values[i]
		}

		return clone, nil
	}

	clone.columns = append(clone.columns, name)
	for i := range clone.rows {
		clone.rows[i] = append(clone.rows[i], values[i])
	}

	return clone, nil
}

// PreviewRows returns up to n rows as column-name → value mappings.
func (d *Dataset) PreviewRows(n int) []map[string]any {
	if n > len(d.rows) {
		n = len(d.rows)
	}

	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = d.Row(i)
	}

	return rows
}

// CellString renders a cell for CSV output and text matching. Nil renders as
// the empty string; floats drop a trailing ".0" the way spreadsheet tools do.
func CellString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// CellFloat attempts numeric coercion of a cell value.
func CellFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		f, err := strconv.ParseFloat(value, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
