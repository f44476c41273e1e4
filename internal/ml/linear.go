package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"fcc-optimizer/internal/features"

	"gonum.org/v1/gonum/mat"
)

// LinearModel is the on-disk form of a multi-output linear regressor.
// Coef has one row per target and one column per feature.
type LinearModel struct {
	Version   string      `json:"version"`
	Features  []string    `json:"features"`
	Targets   []string    `json:"targets"`
	Intercept []float64   `json:"intercept"`
	Coef      [][]float64 `json:"coef"`
}

// LinearRegressor computes Y = X·Wᵀ + b.
type LinearRegressor struct {
	name    string
	version string
	w       *mat.Dense
	b       []float64
}

// NewLinearRegressor validates m against the feature and target schemas.
// Empty Features or Targets lists are accepted and assumed to be in schema
// order.
func NewLinearRegressor(name string, m LinearModel) (*LinearRegressor, error) {
	nIn, nOut := features.FeatureSchema.Len(), features.TargetSchema.Len()

	if len(m.Features) > 0 && !features.FeatureSchema.Equal(m.Features) {
		return nil, fmt.Errorf("model %s: feature list does not match the feature schema", name)
	}
	if len(m.Targets) > 0 && !features.TargetSchema.Equal(m.Targets) {
		return nil, fmt.Errorf("model %s: target list does not match the target schema", name)
	}
	if len(m.Intercept) != nOut {
		return nil, fmt.Errorf("model %s: expected %d intercepts, got %d", name, nOut, len(m.Intercept))
	}
	if len(m.Coef) != nOut {
		return nil, fmt.Errorf("model %s: expected %d coefficient rows, got %d", name, nOut, len(m.Coef))
	}

	flat := make([]float64, 0, nIn*nOut)
	for i, row := range m.Coef {
		if len(row) != nIn {
			return nil, fmt.Errorf("model %s: coefficient row %d has %d values, want %d", name, i, len(row), nIn)
		}
		flat = append(flat, row...)
	}

	return &LinearRegressor{
		name:    name,
		version: m.Version,
		w:       mat.NewDense(nOut, nIn, flat),
		b:       append([]float64(nil), m.Intercept...),
	}, nil
}

// LoadLinearRegressor reads a LinearModel JSON file.
func LoadLinearRegressor(name, path string) (*LinearRegressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	return NewLinearRegressor(name, m)
}

func (l *LinearRegressor) Name() string { return l.name }

// Version is the artefact version, if recorded.
func (l *LinearRegressor) Version() string { return l.version }

func (l *LinearRegressor) Predict(ctx context.Context, x [][]float64) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return [][]float64{}, nil
	}

	nOut, nIn := l.w.Dims()
	flat := make([]float64, 0, len(x)*nIn)
	for i, row := range x {
		if len(row) != nIn {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrInputShape, i, len(row), nIn)
		}
		flat = append(flat, row...)
	}

	X := mat.NewDense(len(x), nIn, flat)
	var Y mat.Dense
	Y.Mul(X, l.w.T())

	out := make([][]float64, len(x))
	for i := range out {
		out[i] = make([]float64, nOut)
		for j := 0; j < nOut; j++ {
			out[i][j] = Y.At(i, j) + l.b[j]
		}
	}
	return out, nil
}
