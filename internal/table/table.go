// Package table holds the tabular batch input: named columns over rows of
// arbitrary cell values, read from and written to CSV.
package table

import (
	"fmt"

	"github.com/crimson-sun/quip/internal/model"
)

// Table is an ordered set of rows sharing one header. A nil cell is a
// missing value.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// New validates that every row has one cell per column.
func New(columns []string, rows [][]any) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("table: duplicate column %q", c)
		}
		seen[c] = true
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("table: row %d has %d cells, header has %d", i, len(row), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Strings returns the named column as strings. A missing column, a missing
// cell or a non-string cell fails with model.ErrMalformedBatchInput; the
// first offending row is reported.
func (t *Table) Strings(name string) ([]string, error) {
	col := t.Index(name)
	if col < 0 {
		return nil, fmt.Errorf("table must contain a %q column: %w", name, model.ErrMalformedBatchInput)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if col >= len(row) {
			return nil, fmt.Errorf("row %d has no %q cell: %w", i, name, model.ErrMalformedBatchInput)
		}
		switch v := row[col].(type) {
		case string:
			out[i] = v
		case nil:
			return nil, fmt.Errorf("row %d: %q is missing: %w", i, name, model.ErrMalformedBatchInput)
		default:
			return nil, fmt.Errorf("row %d: %q is %T, want string: %w", i, name, v, model.ErrMalformedBatchInput)
		}
	}
	return out, nil
}

// WithColumn returns a copy of t with values stored under name. An existing
// column of that name is overwritten in place; otherwise the column is
// appended. len(values) must equal t.Len().
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if len(values) != len(t.Rows) {
		return nil, fmt.Errorf("table: %d values for %d rows", len(values), len(t.Rows))
	}

	col := t.Index(name)
	columns := append([]string(nil), t.Columns...)
	if col < 0 {
		col = len(columns)
		columns = append(columns, name)
	}

	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]any, len(columns))
		copy(r, row)
		r[col] = values[i]
		rows[i] = r
	}
	return &Table{Columns: columns, Rows: rows}, nil
}
