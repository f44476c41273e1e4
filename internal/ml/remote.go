package ml

import (
	"context"
	"fmt"
	"time"

	"fcc-optimizer/internal/features"

	"github.com/go-resty/resty/v2"
)

// RemoteRegressor calls a model served over HTTP, for example by
// ModelServer in another process.
type RemoteRegressor struct {
	name string
	url  string
	rest *resty.Client
}

// NewRemoteRegressor posts batches to url.
func NewRemoteRegressor(name, url string, timeout time.Duration) *RemoteRegressor {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")
	return &RemoteRegressor{name: name, url: url, rest: r}
}

func (r *RemoteRegressor) Name() string { return r.name }

func (r *RemoteRegressor) Predict(ctx context.Context, x [][]float64) ([][]float64, error) {
	if len(x) == 0 {
		return [][]float64{}, nil
	}

	result := &BatchResponse{}
	resp, err := r.rest.R().
		SetContext(ctx).
		SetBody(BatchRequest{FeatureNames: features.FeatureSchema.Names(), Features: x}).
		SetResult(result).
		SetError(result).
		Post(r.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		if result.Error != "" {
			return nil, fmt.Errorf("model server %s: %d %s", r.url, resp.StatusCode(), result.Error)
		}
		return nil, fmt.Errorf("model server %s: %d %s", r.url, resp.StatusCode(), resp.Status())
	}
	if result.Error != "" {
		return nil, fmt.Errorf("model server %s: %s", r.url, result.Error)
	}
	return result.Predictions, nil
}
