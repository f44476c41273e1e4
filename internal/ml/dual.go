package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"fcc-optimizer/internal/features"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Predictions holds both raw prediction matrices of one run, row-aligned
// with the feature table.
type Predictions struct {
	Primary   *features.Table
	Secondary *features.Table
}

// DualPredictor invokes the primary and secondary regressors once each on
// the same feature table.
type DualPredictor struct {
	models   Models
	parallel bool
	timeout  time.Duration
	metrics  MetricsInterface
}

// DualOption configures a DualPredictor.
type DualOption func(*DualPredictor)

// WithParallel runs both invocations concurrently.
func WithParallel(parallel bool) DualOption {
	return func(d *DualPredictor) { d.parallel = parallel }
}

// WithTimeout bounds each invocation. Zero means no bound beyond ctx.
func WithTimeout(timeout time.Duration) DualOption {
	return func(d *DualPredictor) { d.timeout = timeout }
}

// WithMetrics records invocation counts and latency.
func WithMetrics(m MetricsInterface) DualOption {
	return func(d *DualPredictor) { d.metrics = m }
}

// NewDualPredictor creates a predictor over models. Both models are required.
func NewDualPredictor(models Models, opts ...DualOption) (*DualPredictor, error) {
	if models.Primary == nil || models.Secondary == nil {
		return nil, fmt.Errorf("both primary and secondary models are required")
	}
	d := &DualPredictor{models: models}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Predict validates x and returns the two raw prediction matrices. Any
// failure is a *ModelInvocationError and no partial result is returned.
func (d *DualPredictor) Predict(ctx context.Context, x *features.Table) (*Predictions, error) {
	if err := checkInput(x); err != nil {
		return nil, &ModelInvocationError{Err: err}
	}

	if x.Len() == 0 {
		return &Predictions{
			Primary:   features.NewTable(features.TargetSchema, 0),
			Secondary: features.NewTable(features.TargetSchema, 0),
		}, nil
	}

	var primary, secondary *features.Table
	if d.parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			primary, err = d.invoke(gctx, d.models.Primary, x)
			return err
		})
		g.Go(func() error {
			var err error
			secondary, err = d.invoke(gctx, d.models.Secondary, x)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if primary, err = d.invoke(ctx, d.models.Primary, x); err != nil {
			return nil, err
		}
		if secondary, err = d.invoke(ctx, d.models.Secondary, x); err != nil {
			return nil, err
		}
	}

	return &Predictions{Primary: primary, Secondary: secondary}, nil
}

func (d *DualPredictor) invoke(ctx context.Context, r Regressor, x *features.Table) (*features.Table, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	y, err := r.Predict(ctx, x.Matrix())
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.MLLatencyObserve(r.Name(), elapsed.Seconds())
	}

	if err != nil {
		if d.metrics != nil {
			d.metrics.MLFailuresInc(r.Name())
			if ctx.Err() == context.DeadlineExceeded {
				d.metrics.MLTimeoutsInc(r.Name())
			}
		}
		log.Error().Err(err).Str("model", r.Name()).Int("rows", x.Len()).Dur("elapsed", elapsed).Msg("model invocation failed")
		return nil, &ModelInvocationError{Model: r.Name(), Err: err}
	}

	out := &features.Table{Schema: features.TargetSchema, Rows: y}
	if len(y) != x.Len() {
		err = fmt.Errorf("%w: got %d rows, want %d", ErrOutputShape, len(y), x.Len())
	} else if shapeErr := out.CheckShape(); shapeErr != nil {
		err = fmt.Errorf("%w: %v", ErrOutputShape, shapeErr)
	} else {
		err = checkFinite(y)
	}
	if err != nil {
		if d.metrics != nil {
			d.metrics.MLFailuresInc(r.Name())
		}
		return nil, &ModelInvocationError{Model: r.Name(), Err: err}
	}

	if d.metrics != nil {
		d.metrics.MLPredictionsInc(r.Name())
	}
	log.Debug().Str("model", r.Name()).Int("rows", x.Len()).Dur("elapsed", elapsed).Msg("model invocation finished")
	return out, nil
}

// checkFinite rejects NaN and infinite predictions.
func checkFinite(y [][]float64) error {
	for i, row := range y {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d target %s is not finite", ErrOutputShape, i, features.TargetSchema.Names()[j])
			}
		}
	}
	return nil
}

// checkInput verifies x is an N×19 matrix of finite values in feature order.
func checkInput(x *features.Table) error {
	if x == nil {
		return fmt.Errorf("%w: nil table", ErrInputShape)
	}
	if !x.Schema.Equal(features.FeatureSchema.Names()) {
		return fmt.Errorf("%w: columns do not follow the feature schema", ErrInputShape)
	}
	if err := x.CheckShape(); err != nil {
		return fmt.Errorf("%w: %v", ErrInputShape, err)
	}
	for i, row := range x.Rows {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d feature %d is not finite", ErrInputShape, i, j)
			}
		}
	}
	return nil
}
