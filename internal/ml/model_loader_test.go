package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		path    string
		want    Kind
		wantErr bool
	}{
		{"models/rf_model.json", KindLinear, false},
		{"models/rf_model.pkl", KindSubprocess, false},
		{"models/GB.JOBLIB", KindSubprocess, false},
		{"http://localhost:9000/predict", KindHTTP, false},
		{"https://models.internal/gb", KindHTTP, false},
		{"models/model.onnx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := InferKind(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeLinearModel(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(identityModel())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	metrics := &MockMetrics{}

	models, err := LoadModels(
		ModelSpec{Name: "rf", Path: writeLinearModel(t, dir, "rf.json")},
		ModelSpec{Name: "gb", Kind: KindLinear, Path: writeLinearModel(t, dir, "gb.json")},
		metrics,
	)
	require.NoError(t, err)
	assert.Equal(t, "rf", models.Primary.Name())
	assert.Equal(t, "gb", models.Secondary.Name())

	metrics.mu.Lock()
	_, aged := metrics.modelAge["rf"]
	metrics.mu.Unlock()
	assert.True(t, aged, "expected model age to be recorded")
}

func TestLoadModels_Errors(t *testing.T) {
	dir := t.TempDir()
	good := ModelSpec{Name: "rf", Path: writeLinearModel(t, dir, "rf.json")}

	_, err := LoadModels(good, ModelSpec{Name: "gb", Path: filepath.Join(dir, "gb.json")}, nil)
	assert.ErrorContains(t, err, "secondary")

	_, err = LoadModels(ModelSpec{Name: "rf", Kind: "onnx", Path: "x"}, good, nil)
	assert.ErrorContains(t, err, "primary")

	_, err = Load(ModelSpec{Name: "gb", Kind: KindSubprocess, Path: filepath.Join(dir, "missing.pkl"), Timeout: time.Second}, nil)
	assert.Error(t, err)
}

func TestLoad_HTTPKindNeedsNoFile(t *testing.T) {
	r, err := Load(ModelSpec{Name: "remote", Path: "http://127.0.0.1:1/predict"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote", r.Name())
}

func TestCreateInferenceScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), inferenceScriptName)
	require.NoError(t, createInferenceScript(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "joblib.load")
	assert.Contains(t, string(data), "predictions")
}
