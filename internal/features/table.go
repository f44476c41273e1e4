package features

import "fmt"

// RawTable is a parsed spreadsheet: a header row and string cells, with any
// number of columns. Rows may be shorter than the header; missing trailing
// cells read as empty.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Cell returns the cell at row/col or "" when the row is short.
func (r *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(r.Rows) || col < 0 || col >= len(r.Rows[row]) {
		return ""
	}
	return r.Rows[row][col]
}

// Table is a numeric matrix whose columns follow a Schema.
type Table struct {
	Schema Schema
	Rows   [][]float64
}

// NewTable returns an empty table with n zeroed rows.
func NewTable(schema Schema, n int) *Table {
	t := &Table{Schema: schema, Rows: make([][]float64, n)}
	for i := range t.Rows {
		t.Rows[i] = make([]float64, schema.Len())
	}
	return t
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column copies the named column. It returns an error if the schema does not
// contain name.
func (t *Table) Column(name string) ([]float64, error) {
	idx := t.Schema.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not in schema", name)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	c := &Table{Schema: t.Schema, Rows: make([][]float64, len(t.Rows))}
	for i, row := range t.Rows {
		c.Rows[i] = append([]float64(nil), row...)
	}
	return c
}

// Matrix returns the rows as a plain matrix for a regressor. Rows are copied
// so a regressor cannot mutate the table.
func (t *Table) Matrix() [][]float64 {
	return t.Clone().Rows
}

// CheckShape verifies every row has exactly Schema.Len() values.
func (t *Table) CheckShape() error {
	for i, row := range t.Rows {
		if len(row) != t.Schema.Len() {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), t.Schema.Len())
		}
	}
	return nil
}
