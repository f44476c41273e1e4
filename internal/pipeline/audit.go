package pipeline

import (
	"fmt"

	"fcc-optimizer/internal/features"
)

// Violation is one blended value outside one configured bound.
type Violation struct {
	Row    int     `json:"row"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
	Bound  Bound   `json:"bound"`
	Limit  float64 `json:"limit"`
}

// String renders the operator-facing message, for example
// "行3: 汽油收率wt% = 30.000 < 最小值 35".
func (v Violation) String() string {
	if v.Bound == BoundLow {
		return fmt.Sprintf("行%d: %s = %.3f < 最小值 %s", v.Row, v.Target, v.Value, formatLimit(v.Limit))
	}
	return fmt.Sprintf("行%d: %s = %.3f > 最大值 %s", v.Row, v.Target, v.Value, formatLimit(v.Limit))
}

// Audit compares m against ranges. For each range in table order it emits
// the low-bound violations in row order, then the high-bound ones. Both
// bounds are always checked, and NaN never violates. m is not modified.
func Audit(m *features.Table, ranges RangeTable) ([]Violation, error) {
	var out []Violation
	for _, r := range ranges {
		idx := m.Schema.Index(r.Target)
		if idx < 0 {
			return nil, fmt.Errorf("range target %q not in prediction schema", r.Target)
		}
		if r.Min != nil {
			for i, row := range m.Rows {
				if row[idx] < *r.Min {
					out = append(out, Violation{Row: i, Target: r.Target, Value: row[idx], Bound: BoundLow, Limit: *r.Min})
				}
			}
		}
		if r.Max != nil {
			for i, row := range m.Rows {
				if row[idx] > *r.Max {
					out = append(out, Violation{Row: i, Target: r.Target, Value: row[idx], Bound: BoundHigh, Limit: *r.Max})
				}
			}
		}
	}
	return out, nil
}

// Messages renders violations in order.
func Messages(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
