// Package api serves the prediction pipeline over HTTP: upload a
// spreadsheet, get the blended predictions, valuations and range warnings
// back as JSON or as a workbook.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fcc-optimizer/internal/features"
	"fcc-optimizer/internal/pipeline"
	"fcc-optimizer/internal/report"
	"fcc-optimizer/internal/sheet"
	"fcc-optimizer/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RunHistory lists past runs. *storage.Store implements it.
type RunHistory interface {
	RecentRuns(limit int) ([]storage.RunRecord, error)
	GetRun(id string) (*storage.RunRecord, error)
	RunsBetween(start, end time.Time) ([]storage.RunRecord, error)
}

// MetricsInterface defines metrics methods needed by the HTTP layer
type MetricsInterface interface {
	UploadObserve(status int, size int64)
	ActiveRunsAdd(delta float64)
}

// Options configures a Server. History, Metrics and MetricsHandler are
// optional.
type Options struct {
	MaxUploadBytes    int64
	MaxConcurrentRuns int
	ModelNames        []string
	History           RunHistory
	Metrics           MetricsInterface
	MetricsHandler    http.Handler
}

// Server holds the HTTP handlers.
type Server struct {
	runner    *pipeline.Runner
	opts      Options
	runs      *semaphore.Weighted
	startedAt time.Time
}

// New creates a Server over runner.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}
	return &Server{
		runner:    runner,
		opts:      opts,
		runs:      semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		startedAt: time.Now(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		r.Handle("/metrics", s.opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/schema", s.handleSchema)
		r.Post("/predict", s.handlePredict)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
	})
	return r
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
	Uptime string   `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status: "ok",
		Models: s.opts.ModelNames,
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// SchemaResponse describes the input and output columns and the range table.
type SchemaResponse struct {
	Features []string            `json:"features"`
	Targets  []string            `json:"targets"`
	Output   []string            `json:"output"`
	Ranges   pipeline.RangeTable `json:"ranges"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, SchemaResponse{
		Features: features.FeatureSchema.Names(),
		Targets:  features.TargetSchema.Names(),
		Output:   s.runner.OutputSchema().Names(),
		Ranges:   s.runner.Ranges(),
	})
}

// handlePredict handles POST /api/predict with a multipart "file" field.
// ?format=xlsx returns the result workbook instead of JSON.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, uploadError(err), 0)
		return
	}
	defer file.Close()

	raw, err := sheet.Read(file, header.Filename)
	if err != nil {
		s.fail(w, r, uploadError(err), header.Size)
		return
	}

	// Runs queue here; by default one upload completes before the next starts.
	if err := s.runs.Acquire(r.Context(), 1); err != nil {
		s.fail(w, r, newError(http.StatusServiceUnavailable, "CANCELLED", "request cancelled while waiting for a free run slot"), header.Size)
		return
	}
	defer s.runs.Release(1)

	if s.opts.Metrics != nil {
		s.opts.Metrics.ActiveRunsAdd(1)
		defer s.opts.Metrics.ActiveRunsAdd(-1)
	}

	res, err := s.runner.Run(r.Context(), raw, header.Filename)
	if err != nil {
		s.fail(w, r, runError(err), header.Size)
		return
	}

	s.observe(http.StatusOK, header.Size)
	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="prediction-`+res.RunID+`.xlsx"`)
		if err := sheet.WriteWorkbook(w, res.Output, res.Messages()); err != nil {
			log.Error().Err(err).Str("run_id", res.RunID).Msg("failed to stream result workbook")
		}
		return
	}
	render.JSON(w, r, report.NewDocument(res))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		render.Render(w, r, newError(http.StatusServiceUnavailable, "HISTORY_DISABLED", "run history is not configured"))
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			render.Render(w, r, newError(http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	var (
		runs []storage.RunRecord
		err  error
	)
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		start, end, perr := parseWindow(q.Get("from"), q.Get("to"))
		if perr != nil {
			render.Render(w, r, newError(http.StatusBadRequest, "INVALID_WINDOW", perr.Error()))
			return
		}
		runs, err = s.opts.History.RunsBetween(start, end)
		if len(runs) > limit {
			runs = runs[:limit]
		}
	} else {
		runs, err = s.opts.History.RecentRuns(limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		render.Render(w, r, newError(http.StatusInternalServerError, "INTERNAL", "failed to list runs"))
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	render.JSON(w, r, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		render.Render(w, r, newError(http.StatusServiceUnavailable, "HISTORY_DISABLED", "run history is not configured"))
		return
	}

	run, err := s.opts.History.GetRun(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		render.Render(w, r, newError(http.StatusNotFound, "NOT_FOUND", err.Error()))
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load run")
		render.Render(w, r, newError(http.StatusInternalServerError, "INTERNAL", "failed to load run"))
		return
	}
	render.JSON(w, r, run)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, e *APIError, size int64) {
	s.observe(e.StatusCode, size)
	if err := render.Render(w, r, e); err != nil {
		log.Warn().Err(err).Msg("failed to render error")
	}
}

func (s *Server) observe(status int, size int64) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.UploadObserve(status, size)
	}
}

// parseWindow reads RFC 3339 bounds. A missing from is the zero time and a
// missing to is now.
func parseWindow(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	end = time.Now()
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return start, end, fmt.Errorf("from must be RFC 3339: %w", err)
		}
		start = t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return start, end, fmt.Errorf("to must be RFC 3339: %w", err)
		}
		end = t
	}
	if end.Before(start) {
		return start, end, errors.New("to is before from")
	}
	return start, end, nil
}
