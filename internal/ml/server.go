package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// maxBatchBody caps the JSON request body accepted by ModelServer.
const maxBatchBody = 32 << 20

// ModelServer exposes one Regressor over HTTP using the BatchRequest /
// BatchResponse protocol understood by RemoteRegressor.
type ModelServer struct {
	model Regressor
}

// NewModelServer wraps model.
func NewModelServer(model Regressor) *ModelServer {
	return &ModelServer{model: model}
}

// ServeHTTP handles POST requests carrying a BatchRequest.
func (ms *ModelServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeBatch(w, http.StatusMethodNotAllowed, BatchResponse{Error: "method not allowed"})
		return
	}

	start := time.Now()

	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody)).Decode(&req); err != nil {
		writeBatch(w, http.StatusBadRequest, BatchResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	preds, err := ms.model.Predict(r.Context(), req.Features)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInputShape) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("model", ms.model.Name()).Msg("prediction failed")
		writeBatch(w, status, BatchResponse{Error: err.Error()})
		return
	}

	log.Debug().
		Str("model", ms.model.Name()).
		Int("rows", len(req.Features)).
		Dur("latency", time.Since(start)).
		Msg("served batch prediction")

	writeBatch(w, http.StatusOK, BatchResponse{Predictions: preds})
}

func writeBatch(w http.ResponseWriter, status int, resp BatchResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("failed to write batch response")
	}
}
