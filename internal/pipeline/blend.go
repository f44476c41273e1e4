// Package pipeline turns a validated feature table into the blended
// prediction matrix, its range audit and its economic valuation.
package pipeline

import (
	"errors"
	"fmt"

	"fcc-optimizer/internal/features"
)

// GasolineYieldCorrection scales the blended gasoline yield column.
const GasolineYieldCorrection = 0.965

// ErrShapeMismatch means two matrices that must be row-aligned are not.
var ErrShapeMismatch = errors.New("matrix shape mismatch")

// secondaryColumns are taken from the secondary model instead of the primary.
var secondaryColumns = []string{
	features.CO2EmissionRate,
	features.LPGPropylene,
}

// Blend merges the primary (a) and secondary (b) raw prediction matrices:
// every column comes from a except the CO2 emission rate and LPG propylene
// content columns, which come from b; the gasoline yield column is then
// multiplied by GasolineYieldCorrection. The policy is fixed. Neither input is
// modified.
func Blend(a, b *features.Table) (*features.Table, error) {
	if err := checkTargets(a, "primary"); err != nil {
		return nil, err
	}
	if err := checkTargets(b, "secondary"); err != nil {
		return nil, err
	}
	if a.Len() != b.Len() {
		return nil, fmt.Errorf("%w: primary has %d rows, secondary has %d", ErrShapeMismatch, a.Len(), b.Len())
	}

	out := a.Clone()
	for _, name := range secondaryColumns {
		idx := features.TargetSchema.Index(name)
		for i := range out.Rows {
			out.Rows[i][idx] = b.Rows[i][idx]
		}
	}

	gas := features.TargetSchema.Index(features.GasolineYield)
	for i := range out.Rows {
		out.Rows[i][gas] *= GasolineYieldCorrection
	}
	return out, nil
}

func checkTargets(t *features.Table, which string) error {
	if t == nil {
		return fmt.Errorf("%w: %s matrix is nil", ErrShapeMismatch, which)
	}
	if !t.Schema.Equal(features.TargetSchema.Names()) {
		return fmt.Errorf("%w: %s matrix does not follow the target schema", ErrShapeMismatch, which)
	}
	if err := t.CheckShape(); err != nil {
		return fmt.Errorf("%w: %s matrix: %v", ErrShapeMismatch, which, err)
	}
	return nil
}
