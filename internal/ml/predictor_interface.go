// Package ml wraps the two pre-trained regressors of the cracking unit. It
// defines the batch Regressor contract, the immutable Models context loaded
// once at startup, three backends (linear JSON artefacts, a Python subprocess
// for file-persisted models, and a remote model server) and the
// DualPredictor that invokes both models on the same validated feature table.
package ml

import "context"

// Regressor is an opaque batch regression model. Given an N×19 feature
// matrix in FeatureSchema order it returns an N×10 prediction matrix in
// TargetSchema order. Implementations must not mutate x and must be safe for
// concurrent use.
type Regressor interface {
	// Name identifies the model in logs, metrics and errors.
	Name() string

	// Predict runs the model once over every row of x.
	Predict(ctx context.Context, x [][]float64) ([][]float64, error)
}

// Models is the read-only model context handed to the pipeline. It is built
// once with LoadModels and never mutated afterwards.
type Models struct {
	Primary   Regressor
	Secondary Regressor
}

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc(model string)
	MLFailuresInc(model string)
	MLTimeoutsInc(model string)
	MLLatencyObserve(model string, seconds float64)
	MLModelAgeSet(model string, seconds float64)
}
