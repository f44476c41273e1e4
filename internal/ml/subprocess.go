package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fcc-optimizer/internal/features"

	"github.com/rs/zerolog/log"
)

// inferenceScriptName is looked up next to the model before the embedded
// copy is written.
const inferenceScriptName = "fcc_inference.py"

// BatchRequest is the JSON body sent to an out-of-process model.
type BatchRequest struct {
	FeatureNames []string    `json:"feature_names,omitempty"`
	Features     [][]float64 `json:"features"`
}

// BatchResponse is the JSON answer of an out-of-process model.
type BatchResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// SubprocessRegressor runs a file-persisted model (for example a joblib
// pickle) through a Python inference script. Each Predict call starts one
// interpreter that loads the model, predicts the whole batch and exits.
type SubprocessRegressor struct {
	name       string
	modelPath  string
	pythonPath string
	scriptPath string
	timeout    time.Duration
}

// NewSubprocessRegressor locates Python and the inference script for the
// model at path. Unlike a scoring heuristic there is no fallback: a missing
// model or interpreter is a startup error.
func NewSubprocessRegressor(name, path string, timeout time.Duration) (*SubprocessRegressor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model %s not accessible: %w", path, err)
	}

	pythonPath, err := findPython()
	if err != nil {
		return nil, err
	}

	scriptPath := filepath.Join(filepath.Dir(path), inferenceScriptName)
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		scriptPath = filepath.Join(os.TempDir(), "fcc_inference_embedded.py")
		if err := createInferenceScript(scriptPath); err != nil {
			return nil, fmt.Errorf("failed to create inference script: %w", err)
		}
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log.Info().
		Str("model", name).
		Str("model_path", path).
		Str("python_path", pythonPath).
		Str("script_path", scriptPath).
		Msg("Subprocess model configured")

	return &SubprocessRegressor{
		name:       name,
		modelPath:  path,
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		timeout:    timeout,
	}, nil
}

func (p *SubprocessRegressor) Name() string { return p.name }

func (p *SubprocessRegressor) Predict(ctx context.Context, x [][]float64) ([][]float64, error) {
	if len(x) == 0 {
		return [][]float64{}, nil
	}

	reqJSON, err := json.Marshal(BatchRequest{
		FeatureNames: features.FeatureSchema.Names(),
		Features:     x,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pythonPath, p.scriptPath, p.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("model", p.name).
			Str("python_path", p.pythonPath).
			Str("script_path", p.scriptPath).
			Str("model_path", p.modelPath).
			Str("stderr", stderr.String()).
			Int("rows", len(x)).
			Dur("timeout", p.timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("Python inference execution failed")

		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("prediction timeout after %v: %w", p.timeout, ctx.Err())
		}

		// The script reports its own failures as JSON on stdout.
		var resp BatchResponse
		if json.Unmarshal(stdout.Bytes(), &resp) == nil && resp.Error != "" {
			return nil, fmt.Errorf("python inference error: %s", resp.Error)
		}
		if strings.Contains(stderr.String(), "No such file or directory") {
			return nil, fmt.Errorf("model file not accessible: %w", err)
		}
		return nil, fmt.Errorf("python inference failed: %w, stderr: %s", err, stderr.String())
	}

	var resp BatchResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("python inference error: %s", resp.Error)
	}

	return resp.Predictions, nil
}

func findPython() (string, error) {
	var candidates []string

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates = append(candidates,
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
				filepath.Join(root, "venv", "Scripts", "python.exe"),
			)
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil && hasJoblib(c) {
			log.Info().Str("python_path", c).Msg("Using virtual environment Python")
			return c, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil && hasJoblib(path) {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}

	return "", fmt.Errorf("no Python 3 interpreter with joblib found; install python3 with scikit-learn and joblib")
}

func hasJoblib(python string) bool {
	cmd := exec.Command(python, "-c", "import sys, joblib; print('Python', sys.version)")
	out, err := cmd.Output()
	return err == nil && strings.Contains(string(out), "Python 3")
}

func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""Batch inference for FCC regressors (embedded version)."""
import sys
import json

try:
    import joblib
    import numpy as np
except ImportError as e:
    print(json.dumps({"error": "missing dependency: %s" % e}))
    sys.exit(1)


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: fcc_inference.py <model_path>"}))
        sys.exit(1)

    try:
        request = json.load(sys.stdin)
        model = joblib.load(sys.argv[1])
        x = np.array(request["features"], dtype=np.float64)
        names = request.get("feature_names")
        if names:
            try:
                import pandas as pd
                x = pd.DataFrame(x, columns=names)
            except ImportError:
                pass
        y = np.asarray(model.predict(x), dtype=np.float64)
        if y.ndim == 1:
            y = y.reshape(-1, 1)
        print(json.dumps({"predictions": y.tolist()}))
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0o755)
}
