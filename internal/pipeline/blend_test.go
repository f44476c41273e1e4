package pipeline

import (
	"testing"

	"fcc-optimizer/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// targetTable fills cell (i, j) with base + 10*i + j.
func targetTable(rows int, base float64) *features.Table {
	t := features.NewTable(features.TargetSchema, rows)
	for i := range t.Rows {
		for j := range t.Rows[i] {
			t.Rows[i][j] = base + float64(10*i+j)
		}
	}
	return t
}

func TestBlend_ColumnPolicy(t *testing.T) {
	a := targetTable(4, 100)
	b := targetTable(4, 500)

	out, err := Blend(a, b)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	assert.True(t, out.Schema.Equal(features.TargetSchema.Names()))

	gas := features.TargetSchema.Index(features.GasolineYield)
	co2 := features.TargetSchema.Index(features.CO2EmissionRate)
	prop := features.TargetSchema.Index(features.LPGPropylene)

	for i := range out.Rows {
		require.Len(t, out.Rows[i], features.TargetSchema.Len())
		for j, v := range out.Rows[i] {
			switch j {
			case co2, prop:
				assert.Equal(t, b.Rows[i][j], v, "row %d col %d must come from secondary", i, j)
			case gas:
				assert.Equal(t, a.Rows[i][j]*0.965, v, "row %d gasoline yield must be corrected", i)
			default:
				assert.Equal(t, a.Rows[i][j], v, "row %d col %d must come from primary", i, j)
			}
		}
	}
}

func TestBlend_DoesNotMutateInputs(t *testing.T) {
	a := targetTable(2, 1)
	b := targetTable(2, 2)
	aBefore, bBefore := a.Clone(), b.Clone()

	_, err := Blend(a, b)
	require.NoError(t, err)
	assert.Equal(t, aBefore.Rows, a.Rows)
	assert.Equal(t, bBefore.Rows, b.Rows)
}

func TestBlend_Deterministic(t *testing.T) {
	a := targetTable(5, 3.3)
	b := targetTable(5, 7.7)

	first, err := Blend(a, b)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Blend(a, b)
		require.NoError(t, err)
		assert.Equal(t, first.Rows, again.Rows)
	}
}

func TestBlend_ZeroRows(t *testing.T) {
	out, err := Blend(targetTable(0, 0), targetTable(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, features.TargetSchema.Len(), out.Schema.Len())
}

func TestBlend_ShapeErrors(t *testing.T) {
	_, err := Blend(targetTable(2, 0), targetTable(3, 0))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Blend(nil, targetTable(1, 0))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	short := targetTable(1, 0)
	short.Rows[0] = short.Rows[0][:4]
	_, err = Blend(targetTable(1, 0), short)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Blend(features.NewTable(features.FeatureSchema, 1), targetTable(1, 0))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
