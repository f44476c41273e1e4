package api

import (
	"errors"
	"net/http"
	"strings"

	"fcc-optimizer/internal/features"
	"fcc-optimizer/internal/ml"
	"fcc-optimizer/internal/sheet"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func newError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message}
}

// MissingColumns is the detail of a SCHEMA_MISMATCH error.
type MissingColumns struct {
	Missing []string `json:"missing"`
}

// BadCell is the detail of an INVALID_CELL error.
type BadCell struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// runError maps a pipeline failure to its HTTP form.
func runError(err error) *APIError {
	var schemaErr *features.SchemaError
	var cellErr *features.CellError
	var invErr *ml.ModelInvocationError

	switch {
	case errors.As(err, &schemaErr):
		e := newError(http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", err.Error())
		e.Details = MissingColumns{Missing: schemaErr.Missing}
		return e
	case errors.As(err, &cellErr):
		e := newError(http.StatusBadRequest, "INVALID_CELL", err.Error())
		e.Details = BadCell{Row: cellErr.Row, Column: cellErr.Column, Value: cellErr.Value}
		return e
	case errors.As(err, &invErr):
		return newError(http.StatusBadGateway, "MODEL_FAILED", err.Error())
	}
	return newError(http.StatusInternalServerError, "INTERNAL", err.Error())
}

// uploadError maps a failure to receive or parse the uploaded file.
func uploadError(err error) *APIError {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
		return newError(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "uploaded file is too large")
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		return newError(http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", err.Error())
	case errors.Is(err, http.ErrMissingFile):
		return newError(http.StatusBadRequest, "MISSING_FILE", "multipart field \"file\" is required")
	}
	return newError(http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
}
