// Package app wires settings into a ready pipeline: both models loaded once,
// the dual predictor, the range table, optional run history and metrics.
package app

import (
	"fmt"
	"os"

	"fcc-optimizer/internal/cfg"
	"fcc-optimizer/internal/metrics"
	"fcc-optimizer/internal/ml"
	"fcc-optimizer/internal/pipeline"
	"fcc-optimizer/internal/storage"

	"github.com/rs/zerolog/log"
)

// App owns the long-lived collaborators of a process.
type App struct {
	Settings cfg.Settings
	Models   ml.Models
	Runner   *pipeline.Runner
	Store    *storage.Store // nil when DataPath is empty
}

// New loads the models and builds the runner. mw may be nil.
func New(settings cfg.Settings, mw *metrics.MetricsWrapper) (*App, error) {
	var (
		mlMetrics  ml.MetricsInterface
		runMetrics pipeline.MetricsInterface
	)
	if mw != nil {
		mlMetrics, runMetrics = mw, mw
	}

	models, err := ml.LoadModels(
		ModelSpec(settings.PrimaryModel, settings),
		ModelSpec(settings.SecondaryModel, settings),
		mlMetrics,
	)
	if err != nil {
		return nil, err
	}

	dual, err := ml.NewDualPredictor(models,
		ml.WithParallel(settings.ParallelInference),
		ml.WithTimeout(settings.ModelTimeout),
		ml.WithMetrics(mlMetrics),
	)
	if err != nil {
		return nil, err
	}

	a := &App{Settings: settings, Models: models}

	opts := pipeline.Options{
		Ranges:                RangeTable(settings.Ranges),
		IncludeProductColumns: settings.IncludeProductColumns,
		Metrics:               runMetrics,
	}

	if settings.DataPath != "" {
		if err := os.MkdirAll(settings.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := storage.New(settings.DataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		a.Store = store
		opts.Recorder = store
		log.Info().Str("path", settings.DataPath).Msg("Run history enabled")
	}

	if a.Runner, err = pipeline.NewRunner(dual, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the run history database.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// ModelSpec converts one configured model.
func ModelSpec(mc cfg.ModelConfig, settings cfg.Settings) ml.ModelSpec {
	return ml.ModelSpec{
		Name:    mc.Name,
		Kind:    ml.Kind(mc.Kind),
		Path:    mc.Path,
		Timeout: settings.ModelTimeout,
	}
}

// RangeTable converts configured ranges. nil selects the built-in table.
func RangeTable(ranges []cfg.RangeConfig) pipeline.RangeTable {
	if ranges == nil {
		return nil
	}
	out := make(pipeline.RangeTable, len(ranges))
	for i, r := range ranges {
		out[i] = pipeline.Range{Target: r.Target, Min: r.Min, Max: r.Max}
	}
	return out
}
