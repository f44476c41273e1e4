package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fcc-optimizer/internal/features"
	"fcc-optimizer/internal/ml"
	"fcc-optimizer/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Failure reasons reported to metrics and run history.
const (
	ReasonSchema   = "schema"
	ReasonCell     = "cell"
	ReasonModel    = "model"
	ReasonInternal = "internal"
)

// Predictor produces the two raw prediction matrices for a feature table.
// *ml.DualPredictor implements it.
type Predictor interface {
	Predict(ctx context.Context, x *features.Table) (*ml.Predictions, error)
}

// MetricsInterface defines metrics methods needed by the runner
type MetricsInterface interface {
	RunCompleted(rows int, seconds float64)
	RunFailed(reason string)
	RangeViolationInc(target, bound string)
	OptimumValueObserve(v float64)
	StoreFailuresInc()
}

// Recorder keeps run summaries. *storage.Store implements it.
type Recorder interface {
	SaveRun(storage.RunRecord) error
}

// Options configures a Runner.
type Options struct {
	Ranges                RangeTable // DefaultRanges when nil
	IncludeProductColumns bool
	Metrics               MetricsInterface
	Recorder              Recorder
}

// Runner executes the full pipeline for one input table at a time. It holds
// no per-run state, so one Runner may serve concurrent runs.
type Runner struct {
	predictor       Predictor
	ranges          RangeTable
	includeProducts bool
	outputSchema    features.Schema
	metrics         MetricsInterface
	recorder        Recorder
}

// NewRunner validates the range table and builds the output schema.
func NewRunner(p Predictor, opts Options) (*Runner, error) {
	if p == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	ranges := opts.Ranges
	if ranges == nil {
		ranges = DefaultRanges()
	}
	if err := ranges.Validate(features.TargetSchema); err != nil {
		return nil, fmt.Errorf("invalid range table: %w", err)
	}

	cols := append(features.TargetSchema.Names(), ColumnEconomicValue, ColumnCO2Rate, ColumnOptimumValue)
	if opts.IncludeProductColumns {
		cols = append(cols, ColumnGasolineProduct, ColumnLPGProduct, ColumnPropyleneProduct)
	}
	schema, err := features.NewSchema(cols...)
	if err != nil {
		return nil, err
	}

	return &Runner{
		predictor:       p,
		ranges:          ranges,
		includeProducts: opts.IncludeProductColumns,
		outputSchema:    schema,
		metrics:         opts.Metrics,
		recorder:        opts.Recorder,
	}, nil
}

// Ranges returns the range table in use.
func (r *Runner) Ranges() RangeTable { return r.ranges }

// OutputSchema returns the column layout of Result.Output.
func (r *Runner) OutputSchema() features.Schema { return r.outputSchema }

// Result is everything one successful run produces.
type Result struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration_ns"`
	Blended    *features.Table `json:"-"`
	Valuations []Valuation     `json:"valuations"`
	Violations []Violation     `json:"violations"`
	Output     *features.Table `json:"-"`
}

// Messages renders the violations as operator-facing strings.
func (res *Result) Messages() []string { return Messages(res.Violations) }

// Run validates raw against the feature schema, predicts with both models,
// blends, audits and values the result. A fatal error returns no result;
// range violations never fail a run.
func (r *Runner) Run(ctx context.Context, raw *features.RawTable, source string) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := log.With().Str("run_id", id).Str("source", source).Logger()

	res, err := r.run(ctx, raw)
	elapsed := time.Since(start)

	record := storage.RunRecord{
		ID:        id,
		Source:    source,
		StartedAt: start,
		Duration:  elapsed,
		Status:    storage.StatusSucceeded,
	}

	if err != nil {
		reason := classify(err)
		record.Status = storage.StatusFailed
		record.Reason = reason
		record.Error = err.Error()
		if r.metrics != nil {
			r.metrics.RunFailed(reason)
		}
		r.record(record)
		logger.Error().Err(err).Str("reason", reason).Dur("elapsed", elapsed).Msg("prediction run failed")
		return nil, err
	}

	res.RunID = id
	res.Source = source
	res.StartedAt = start
	res.Duration = elapsed
	record.Rows = res.Output.Len()
	record.Violations = len(res.Violations)

	if r.metrics != nil {
		r.metrics.RunCompleted(res.Output.Len(), elapsed.Seconds())
		for _, v := range res.Violations {
			r.metrics.RangeViolationInc(v.Target, string(v.Bound))
		}
		for _, v := range res.Valuations {
			// A CO2 prediction near -CO2Epsilon gives a non-finite optimum.
			if math.IsNaN(v.OptimumValue) || math.IsInf(v.OptimumValue, 0) {
				continue
			}
			r.metrics.OptimumValueObserve(v.OptimumValue)
		}
	}
	r.record(record)

	logger.Info().
		Int("rows", res.Output.Len()).
		Int("violations", len(res.Violations)).
		Dur("elapsed", elapsed).
		Msg("prediction run finished")
	return res, nil
}

func (r *Runner) run(ctx context.Context, raw *features.RawTable) (*Result, error) {
	if raw == nil {
		return nil, fmt.Errorf("input table is nil")
	}

	table, err := features.Select(raw, features.FeatureSchema)
	if err != nil {
		return nil, err
	}

	preds, err := r.predictor.Predict(ctx, table)
	if err != nil {
		return nil, err
	}

	blended, err := Blend(preds.Primary, preds.Secondary)
	if err != nil {
		return nil, err
	}

	violations, err := Audit(blended, r.ranges)
	if err != nil {
		return nil, err
	}

	feed, err := table.Column(features.FeedMassFlow)
	if err != nil {
		return nil, err
	}
	valuations, err := Valuate(blended, feed)
	if err != nil {
		return nil, err
	}

	return &Result{
		Blended:    blended,
		Valuations: valuations,
		Violations: violations,
		Output:     r.assemble(blended, valuations),
	}, nil
}

// assemble appends the derived columns to the blended targets.
func (r *Runner) assemble(blended *features.Table, vals []Valuation) *features.Table {
	out := &features.Table{Schema: r.outputSchema, Rows: make([][]float64, blended.Len())}
	for i, row := range blended.Rows {
		v := vals[i]
		cells := make([]float64, 0, r.outputSchema.Len())
		cells = append(cells, row...)
		cells = append(cells, v.EconomicValue, v.CO2Rate, v.OptimumValue)
		if r.includeProducts {
			cells = append(cells, v.GasolineProduct, v.LPGProduct, v.PropyleneProduct)
		}
		out.Rows[i] = cells
	}
	return out
}

func (r *Runner) record(rec storage.RunRecord) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.SaveRun(rec); err != nil {
		log.Warn().Err(err).Str("run_id", rec.ID).Msg("failed to save run history")
		if r.metrics != nil {
			r.metrics.StoreFailuresInc()
		}
	}
}

func classify(err error) string {
	var schemaErr *features.SchemaError
	var cellErr *features.CellError
	var invErr *ml.ModelInvocationError
	switch {
	case errors.As(err, &schemaErr):
		return ReasonSchema
	case errors.As(err, &cellErr):
		return ReasonCell
	case errors.As(err, &invErr):
		return ReasonModel
	}
	return ReasonInternal
}
