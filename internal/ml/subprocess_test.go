package ml

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fcc-optimizer/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellRegressor runs body as the inference script under /bin/sh. The
// script receives the model path as $1 and the request on stdin.
func shellRegressor(t *testing.T, body string, timeout time.Duration) (*SubprocessRegressor, string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "inference.sh")
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	model := filepath.Join(dir, "model.pkl")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	return &SubprocessRegressor{
		name:       "rf",
		modelPath:  model,
		pythonPath: "/bin/sh",
		scriptPath: script,
		timeout:    timeout,
	}, dir
}

func TestSubprocessRegressor_Protocol(t *testing.T) {
	p, dir := shellRegressor(t, `cat > "$(dirname "$1")/request.json"
echo '{"predictions": [[1.5, 2], [3, 4]]}'
`, 5*time.Second)

	x := [][]float64{{1, 2}, {3, 4}}
	preds, err := p.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5, 2}, {3, 4}}, preds)

	data, err := os.ReadFile(filepath.Join(dir, "request.json"))
	require.NoError(t, err)
	var req BatchRequest
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, x, req.Features)
	assert.Equal(t, features.FeatureSchema.Names(), req.FeatureNames)
}

func TestSubprocessRegressor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"error reported with failing exit", "cat >/dev/null\necho '{\"error\": \"cannot load model\"}'\nexit 1\n", "python inference error: cannot load model"},
		{"error reported with clean exit", "cat >/dev/null\necho '{\"error\": \"bad input\"}'\n", "python inference error: bad input"},
		{"non-zero exit", "cat >/dev/null\necho 'Traceback' >&2\nexit 3\n", "python inference failed"},
		{"unparseable output", "cat >/dev/null\necho 'not json'\n", "failed to parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := shellRegressor(t, tt.script, 5*time.Second)
			preds, err := p.Predict(context.Background(), [][]float64{{1}})
			assert.Nil(t, preds)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSubprocessRegressor_StderrInError(t *testing.T) {
	p, _ := shellRegressor(t, "cat >/dev/null\necho 'ValueError: shape' >&2\nexit 1\n", 5*time.Second)

	_, err := p.Predict(context.Background(), [][]float64{{1}})
	assert.ErrorContains(t, err, "ValueError: shape")
}

func TestSubprocessRegressor_Timeout(t *testing.T) {
	p, _ := shellRegressor(t, "exec sleep 5\n", 100*time.Millisecond)

	start := time.Now()
	_, err := p.Predict(context.Background(), [][]float64{{1}})
	assert.ErrorContains(t, err, "prediction timeout")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestSubprocessRegressor_EmptyBatchSkipsProcess(t *testing.T) {
	p, dir := shellRegressor(t, "touch \"$(dirname \"$1\")/ran\"\necho '{\"predictions\": []}'\n", time.Second)

	preds, err := p.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, preds)
	_, statErr := os.Stat(filepath.Join(dir, "ran"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewSubprocessRegressor_MissingModel(t *testing.T) {
	_, err := NewSubprocessRegressor("rf", filepath.Join(t.TempDir(), "missing.pkl"), time.Second)
	assert.ErrorContains(t, err, "not accessible")
}
