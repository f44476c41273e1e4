package pipeline

import (
	"fmt"
	"strconv"

	"fcc-optimizer/internal/features"
)

// Bound says which side of a range a value crossed.
type Bound string

const (
	BoundLow  Bound = "low"
	BoundHigh Bound = "high"
)

// Range is the acceptable interval of one target. A nil bound is unbounded.
type Range struct {
	Target string   `json:"target" yaml:"target"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// RangeTable is checked in order; the order fixes the order of violations.
type RangeTable []Range

func limit(v float64) *float64 { return &v }

// DefaultRanges is the engineering range table of the unit. The CO2
// emission rate is not range-checked.
func DefaultRanges() RangeTable {
	return RangeTable{
		{Target: features.GasolineYield, Min: limit(35), Max: limit(55)},
		{Target: features.GasolineAromatics, Min: limit(0), Max: limit(33)},
		{Target: features.GasolineOlefins, Min: limit(0), Max: limit(25)},
		{Target: features.GasolineRON, Min: limit(92)},
		{Target: features.GasolineEndPoint, Min: limit(0), Max: limit(215)},
		{Target: features.LPGYield, Min: limit(15), Max: limit(35)},
		{Target: features.LPGPropylene, Min: limit(30)},
		{Target: features.LPGC5Ratio, Min: limit(0), Max: limit(2.3)},
		{Target: features.DieselD86T95, Min: limit(0), Max: limit(360)},
	}
}

// Validate checks the table against schema: every target must exist and
// appear once, at least one bound must be set, and min must not exceed max.
func (rt RangeTable) Validate(schema features.Schema) error {
	seen := make(map[string]bool, len(rt))
	for i, r := range rt {
		if !schema.Has(r.Target) {
			return fmt.Errorf("range %d: unknown target %q", i, r.Target)
		}
		if seen[r.Target] {
			return fmt.Errorf("range %d: duplicate target %q", i, r.Target)
		}
		seen[r.Target] = true
		if r.Min == nil && r.Max == nil {
			return fmt.Errorf("range %d: target %q has no bounds", i, r.Target)
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("range %d: target %q has min %s greater than max %s",
				i, r.Target, formatLimit(*r.Min), formatLimit(*r.Max))
		}
	}
	return nil
}

// formatLimit prints a bound in its shortest form, 35 or 2.3.
func formatLimit(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
