package ml

import (
	"context"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	failures    map[string]int
	timeouts    map[string]int
	latencySum  float64
	modelAge    map[string]float64
}

func (m *MockMetrics) init() {
	if m.predictions == nil {
		m.predictions = make(map[string]int)
		m.failures = make(map[string]int)
		m.timeouts = make(map[string]int)
		m.modelAge = make(map[string]float64)
	}
}

func (m *MockMetrics) MLPredictionsInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.predictions[model]++
}

func (m *MockMetrics) MLFailuresInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.failures[model]++
}

func (m *MockMetrics) MLTimeoutsInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.timeouts[model]++
}

func (m *MockMetrics) MLLatencyObserve(model string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(model string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.modelAge[model] = v
}

func (m *MockMetrics) Predictions(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[model]
}

func (m *MockMetrics) Failures(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[model]
}

// StubRegressor returns a fixed function of each row and records calls.
type StubRegressor struct {
	ModelName string
	Fn        func(row []float64) []float64
	Err       error

	mu    sync.Mutex
	calls int
}

func (s *StubRegressor) Name() string { return s.ModelName }

func (s *StubRegressor) Predict(ctx context.Context, x [][]float64) ([][]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Fn(row)
	}
	return out, nil
}

// Calls reports how many times Predict ran.
func (s *StubRegressor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
