package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind selects a Regressor backend.
type Kind string

const (
	KindLinear     Kind = "linear"
	KindSubprocess Kind = "exec"
	KindHTTP       Kind = "http"
)

// ModelSpec describes where one model comes from.
type ModelSpec struct {
	Name    string
	Kind    Kind // inferred from Path when empty
	Path    string
	Timeout time.Duration
}

// InferKind guesses the backend from a path or URL.
func InferKind(path string) (Kind, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindHTTP, nil
	case strings.HasSuffix(lower, ".json"):
		return KindLinear, nil
	case strings.HasSuffix(lower, ".pkl"), strings.HasSuffix(lower, ".joblib"):
		return KindSubprocess, nil
	}
	return "", fmt.Errorf("cannot infer model kind from %q", path)
}

// Load builds the Regressor described by spec.
func Load(spec ModelSpec, metrics MetricsInterface) (Regressor, error) {
	kind := spec.Kind
	if kind == "" {
		var err error
		if kind, err = InferKind(spec.Path); err != nil {
			return nil, err
		}
	}

	var (
		r   Regressor
		err error
	)
	switch kind {
	case KindLinear:
		r, err = LoadLinearRegressor(spec.Name, spec.Path)
	case KindSubprocess:
		r, err = NewSubprocessRegressor(spec.Name, spec.Path, spec.Timeout)
	case KindHTTP:
		r = NewRemoteRegressor(spec.Name, spec.Path, spec.Timeout)
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	if kind != KindHTTP {
		// Get model file info for age tracking
		if info, statErr := os.Stat(spec.Path); statErr == nil && metrics != nil {
			metrics.MLModelAgeSet(spec.Name, time.Since(info.ModTime()).Seconds())
		}
	}

	log.Info().
		Str("model", spec.Name).
		Str("kind", string(kind)).
		Str("path", displayPath(spec.Path, kind)).
		Msg("model loaded")
	return r, nil
}

// LoadModels loads both models once at process start.
func LoadModels(primary, secondary ModelSpec, metrics MetricsInterface) (Models, error) {
	p, err := Load(primary, metrics)
	if err != nil {
		return Models{}, fmt.Errorf("failed to load primary model: %w", err)
	}
	s, err := Load(secondary, metrics)
	if err != nil {
		return Models{}, fmt.Errorf("failed to load secondary model: %w", err)
	}
	return Models{Primary: p, Secondary: s}, nil
}

func displayPath(path string, kind Kind) string {
	if kind == KindHTTP {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
