package features

import (
	"math"
	"strconv"
	"strings"
)

// Select validates raw against schema and returns a Table with exactly the
// schema's columns, in schema order, rows in input order. Extra columns are
// discarded. A missing column yields *SchemaError listing every absent name;
// a blank or non-numeric selected cell yields *CellError.
func Select(raw *RawTable, schema Schema) (*Table, error) {
	positions := make(map[string]int, len(raw.Header))
	for i, name := range raw.Header {
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	var missing []string
	cols := make([]int, schema.Len())
	for i, name := range schema.names {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[i] = pos
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	t := &Table{Schema: schema, Rows: make([][]float64, len(raw.Rows))}
	for r := range raw.Rows {
		row := make([]float64, schema.Len())
		for i, pos := range cols {
			cell := strings.TrimSpace(raw.Cell(r, pos))
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &CellError{Row: r, Column: schema.names[i], Value: cell}
			}
			row[i] = v
		}
		t.Rows[r] = row
	}
	return t, nil
}
