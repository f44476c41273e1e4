package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces used by the ml and
// pipeline packages, which must not import Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc(model string) {
	w.m.MLPredictions.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) MLFailuresInc(model string) {
	w.m.MLFailures.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) MLTimeoutsInc(model string) {
	w.m.MLTimeouts.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(model string, seconds float64) {
	w.m.MLLatency.WithLabelValues(model).Observe(seconds)
}

func (w *MetricsWrapper) MLModelAgeSet(model string, seconds float64) {
	w.m.MLModelAge.WithLabelValues(model).Set(seconds)
}

func (w *MetricsWrapper) RunCompleted(rows int, seconds float64) {
	w.m.RunsTotal.Inc()
	w.m.RowsPredicted.Add(float64(rows))
	w.m.RunDuration.Observe(seconds)
}

func (w *MetricsWrapper) RunFailed(reason string) {
	w.m.RunFailures.WithLabelValues(reason).Inc()
}

func (w *MetricsWrapper) RangeViolationInc(target, bound string) {
	w.m.RangeViolations.WithLabelValues(target, bound).Inc()
}

func (w *MetricsWrapper) OptimumValueObserve(v float64) {
	w.m.OptimumValue.Observe(v)
}

func (w *MetricsWrapper) UploadObserve(status int, size int64) {
	w.m.UploadsTotal.WithLabelValues(strconv.Itoa(status / 100 * 100)).Inc()
	if size > 0 {
		w.m.UploadBytes.Observe(float64(size))
	}
}

func (w *MetricsWrapper) ActiveRunsAdd(delta float64) {
	w.m.ActiveRuns.Add(delta)
}

func (w *MetricsWrapper) StoreFailuresInc() {
	w.m.StoreFailures.Inc()
}
