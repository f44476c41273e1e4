package ml

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fcc-optimizer/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityModel maps target j to feature j plus intercept j.
func identityModel() LinearModel {
	nIn, nOut := features.FeatureSchema.Len(), features.TargetSchema.Len()
	m := LinearModel{
		Version:   "test",
		Features:  features.FeatureSchema.Names(),
		Targets:   features.TargetSchema.Names(),
		Intercept: make([]float64, nOut),
		Coef:      make([][]float64, nOut),
	}
	for j := range m.Coef {
		m.Coef[j] = make([]float64, nIn)
		m.Coef[j][j] = 1
		m.Intercept[j] = float64(j) * 10
	}
	return m
}

func TestLinearRegressor_Predict(t *testing.T) {
	r, err := NewLinearRegressor("lin", identityModel())
	require.NoError(t, err)
	assert.Equal(t, "lin", r.Name())
	assert.Equal(t, "test", r.Version())

	x := featureTable(2).Matrix()
	for i := range x {
		for j := range x[i] {
			x[i][j] = float64(i + j)
		}
	}

	y, err := r.Predict(context.Background(), x)
	require.NoError(t, err)
	require.Len(t, y, 2)
	for i, row := range y {
		require.Len(t, row, features.TargetSchema.Len())
		for j, v := range row {
			assert.InDelta(t, float64(i+j)+float64(j)*10, v, 1e-12)
		}
	}
}

func TestLinearRegressor_ZeroRows(t *testing.T) {
	r, err := NewLinearRegressor("lin", identityModel())
	require.NoError(t, err)

	y, err := r.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, y)
}

func TestLinearRegressor_RejectsWrongWidth(t *testing.T) {
	r, err := NewLinearRegressor("lin", identityModel())
	require.NoError(t, err)

	_, err = r.Predict(context.Background(), [][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestNewLinearRegressor_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LinearModel)
	}{
		{"wrong feature order", func(m *LinearModel) { m.Features[0], m.Features[1] = m.Features[1], m.Features[0] }},
		{"wrong targets", func(m *LinearModel) { m.Targets = m.Targets[:9] }},
		{"short intercept", func(m *LinearModel) { m.Intercept = m.Intercept[:3] }},
		{"short coef row", func(m *LinearModel) { m.Coef[4] = m.Coef[4][:2] }},
		{"missing coef rows", func(m *LinearModel) { m.Coef = m.Coef[:1] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := identityModel()
			tt.mutate(&m)
			_, err := NewLinearRegressor("lin", m)
			assert.Error(t, err)
		})
	}
}

func TestLoadLinearRegressor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rf_model.json")

	data, err := json.Marshal(identityModel())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := LoadLinearRegressor("rf", path)
	require.NoError(t, err)
	assert.Equal(t, "rf", r.Name())

	_, err = LoadLinearRegressor("rf", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadLinearRegressor("rf", path)
	assert.Error(t, err)
}
