package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fcc-optimizer/internal/features"
	"fcc-optimizer/internal/ml"
	"fcc-optimizer/internal/pipeline"
	"fcc-optimizer/internal/report"
	"fcc-optimizer/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type uploadMetrics struct {
	statuses []int
	active   float64
}

func (m *uploadMetrics) UploadObserve(status int, size int64) { m.statuses = append(m.statuses, status) }
func (m *uploadMetrics) ActiveRunsAdd(delta float64)          { m.active += delta }

type fakeHistory struct {
	runs []storage.RunRecord
}

func (h *fakeHistory) RecentRuns(limit int) ([]storage.RunRecord, error) {
	if limit < len(h.runs) {
		return h.runs[:limit], nil
	}
	return h.runs, nil
}

func (h *fakeHistory) RunsBetween(start, end time.Time) ([]storage.RunRecord, error) {
	var out []storage.RunRecord
	for i := len(h.runs) - 1; i >= 0; i-- {
		r := h.runs[i]
		if !r.StartedAt.Before(start) && !r.StartedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *fakeHistory) GetRun(id string) (*storage.RunRecord, error) {
	for _, r := range h.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, storage.ErrRunNotFound
}

func constant(v float64) func([]float64) []float64 {
	return func([]float64) []float64 {
		out := make([]float64, features.TargetSchema.Len())
		for i := range out {
			out[i] = v
		}
		return out
	}
}

func newTestServer(t *testing.T, secondaryErr error, opts Options) (*Server, *ml.StubRegressor) {
	t.Helper()
	primary := &ml.StubRegressor{ModelName: "rf", Fn: constant(40)}
	secondary := &ml.StubRegressor{ModelName: "gb", Fn: constant(10), Err: secondaryErr}

	dual, err := ml.NewDualPredictor(ml.Models{Primary: primary, Secondary: secondary})
	require.NoError(t, err)
	runner, err := pipeline.NewRunner(dual, pipeline.Options{})
	require.NoError(t, err)
	return New(runner, opts), primary
}

func inputCSV(rows int, drop string) string {
	var header []string
	for _, n := range features.FeatureSchema.Names() {
		if n != drop {
			header = append(header, n)
		}
	}
	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for r := 0; r < rows; r++ {
		cells := make([]string, len(header))
		for i := range cells {
			cells[i] = fmt.Sprint(100 + r)
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return b.String()
}

func upload(t *testing.T, h http.Handler, target, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestPredict_JSON(t *testing.T) {
	metrics := &uploadMetrics{}
	srv, _ := newTestServer(t, nil, Options{Metrics: metrics})

	rec := upload(t, srv.Routes(), "/api/predict", "feed.csv", inputCSV(2, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc report.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, "feed.csv", doc.Source)
	assert.Len(t, doc.Columns, 13)
	require.Len(t, doc.Rows, 2)
	// Gasoline 40*0.965 = 38.6 is in range; RON 40 is below 92 on both rows.
	assert.InDelta(t, 38.6, float64(doc.Rows[0][0]), 1e-9)
	assert.NotEmpty(t, doc.Messages)
	assert.Len(t, doc.Violations, len(doc.Messages))

	assert.Equal(t, []int{http.StatusOK}, metrics.statuses)
	assert.Zero(t, metrics.active)
}

func TestPredict_Workbook(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	rec := upload(t, srv.Routes(), "/api/predict?format=xlsx", "feed.csv", inputCSV(1, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("预测结果")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, features.GasolineYield, rows[0][0])
	assert.Equal(t, pipeline.ColumnOptimumValue, rows[0][12])
}

func TestPredict_MissingColumn(t *testing.T) {
	metrics := &uploadMetrics{}
	srv, primary := newTestServer(t, nil, Options{Metrics: metrics})

	rec := upload(t, srv.Routes(), "/api/predict", "feed.csv", inputCSV(1, features.FeedSulfur))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	e := decodeError(t, rec)
	assert.Equal(t, "SCHEMA_MISMATCH", e.ErrorCode)
	details, ok := e.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{features.FeedSulfur}, details["missing"])
	assert.Zero(t, primary.Calls())
	assert.Equal(t, []int{http.StatusUnprocessableEntity}, metrics.statuses)
}

func TestPredict_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		modelErr  error
		filename  string
		content   string
		maxUpload int64
		want      int
		code      string
	}{
		{"model failure", errors.New("bad shape"), "feed.csv", inputCSV(1, ""), 0, http.StatusBadGateway, "MODEL_FAILED"},
		{"bad cell", nil, "feed.csv", strings.Replace(inputCSV(1, ""), "\n100,", "\nabc,", 1), 0, http.StatusBadRequest, "INVALID_CELL"},
		{"legacy xls", nil, "feed.xls", "whatever", 0, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"},
		{"too large", nil, "feed.csv", strings.Repeat("x", 64<<10), 2048, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.modelErr, Options{MaxUploadBytes: tt.maxUpload})
			rec := upload(t, srv.Routes(), "/api/predict", tt.filename, tt.content)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).ErrorCode)
		})
	}
}

func TestPredict_MissingFile(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeError(t, rec).ErrorCode)
}

func TestSchemaAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{ModelNames: []string{"rf", "gb"}})
	h := srv.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var schema SchemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Equal(t, features.FeatureSchema.Names(), schema.Features)
	assert.Equal(t, features.TargetSchema.Names(), schema.Targets)
	assert.Len(t, schema.Output, 13)
	assert.Len(t, schema.Ranges, 9)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, []string{"rf", "gb"}, health.Models)
}

func TestRuns(t *testing.T) {
	history := &fakeHistory{runs: []storage.RunRecord{
		{ID: "b", Source: "2.xlsx", StartedAt: time.Now(), Status: storage.StatusSucceeded},
		{ID: "a", Source: "1.xlsx", StartedAt: time.Now().Add(-time.Hour), Status: storage.StatusFailed, Reason: "schema"},
	}}
	srv, _ := newTestServer(t, nil, Options{History: history})
	h := srv.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []storage.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	from := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(-30 * time.Minute).UTC().Format(time.RFC3339)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?from="+from+"&to="+to, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run storage.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "schema", run.Reason)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/zzz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandlerMounted(t *testing.T) {
	srv, _ := newTestServer(t, nil, Options{MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "metrics")
	})})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metrics", rec.Body.String())
}
