package features

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns absent from an input table. The run
// must stop before any model is invoked.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required feature columns: [%s]", strings.Join(e.Missing, ", "))
}

// CellError reports a selected cell that is not a finite number.
type CellError struct {
	Row    int
	Column string
	Value  string
}

func (e *CellError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: column %q is empty", e.Row, e.Column)
	}
	return fmt.Sprintf("row %d: column %q has non-numeric value %q", e.Row, e.Column, e.Value)
}
